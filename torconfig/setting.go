package torconfig

import "fmt"

// ConfigErrorKind classifies a ConfigError.
type ConfigErrorKind int

const (
	ErrPortUnavailable ConfigErrorKind = iota
	ErrStartupOnly
	ErrInvalidValue
	ErrMissingRequired
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ErrPortUnavailable:
		return "PortUnavailable"
	case ErrStartupOnly:
		return "StartupOnly"
	case ErrInvalidValue:
		return "InvalidValue"
	case ErrMissingRequired:
		return "MissingRequired"
	default:
		return "Unknown"
	}
}

// ConfigError is the error type returned by this package and by configgen.
type ConfigError struct {
	Kind    ConfigErrorKind
	Keyword Keyword
	Detail  string
}

func (e *ConfigError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("torconfig: %s: %s (%s)", e.Kind, e.Keyword, e.Detail)
	}
	return fmt.Sprintf("torconfig: %s: %s", e.Kind, e.Detail)
}

// LineItem is one rendered line within a Setting: `<keyword><sep><argument>`
// plus zero or more trailing space-separated optionals (isolation/socks
// flags on ports, for instance).
type LineItem struct {
	Keyword   Keyword
	Argument  string
	Optionals []string
}

// Setting is one or more LineItems sharing a logical configuration entry. A
// plain option is a single-LineItem Setting; a hidden service is a
// multi-LineItem Setting with the HiddenServiceDir item first.
type Setting struct {
	Items []LineItem
}

// NewSetting builds a single-LineItem Setting, validating that the keyword
// is in the catalogue.
func NewSetting(kw Keyword, argument string, optionals ...string) (Setting, error) {
	if !IsRecognized(kw) {
		return Setting{}, &ConfigError{Kind: ErrInvalidValue, Keyword: kw, Detail: "unrecognized keyword"}
	}
	return Setting{Items: []LineItem{{Keyword: kw, Argument: argument, Optionals: optionals}}}, nil
}

// HiddenService is the typed builder for a HiddenServiceDir block: one
// directory, one or more ports, and optional stream-isolation limits.
type HiddenService struct {
	Dir                    string
	Ports                  []HiddenServicePort
	MaxStreams             int  // defaults to 0
	MaxStreamsCloseCircuit bool // defaults to false
}

// HiddenServicePort is one `HiddenServicePort <virtual> <target>` line.
// Target is either a host:port pair or a unix:"path" string, already
// rendered by the caller via address.SocketAddress.String().
type HiddenServicePort struct {
	Virtual int
	Target  string
}

// ToSetting renders a HiddenService to a Setting in the fixed line order
// {Dir, Port+, MaxStreams, MaxStreamsCloseCircuit}. A HiddenService with no
// ports renders to a Setting with zero Items and wasAppended=false, per
// spec invariant 9 — the caller must check wasAppended before using Items.
func (hs HiddenService) ToSetting() (s Setting, wasAppended bool, err error) {
	if len(hs.Ports) == 0 {
		return Setting{}, false, nil
	}
	if hs.Dir == "" {
		return Setting{}, false, &ConfigError{Kind: ErrMissingRequired, Keyword: KeywordHiddenServiceDir, Detail: "empty directory"}
	}

	items := make([]LineItem, 0, len(hs.Ports)+3)
	items = append(items, LineItem{Keyword: KeywordHiddenServiceDir, Argument: hs.Dir})
	for _, p := range hs.Ports {
		items = append(items, LineItem{
			Keyword:  KeywordHiddenServicePort,
			Argument: fmt.Sprintf("%d %s", p.Virtual, p.Target),
		})
	}
	items = append(items, LineItem{Keyword: KeywordHiddenServiceMaxStreams, Argument: fmt.Sprintf("%d", hs.MaxStreams)})
	closeCirc := "0"
	if hs.MaxStreamsCloseCircuit {
		closeCirc = "1"
	}
	items = append(items, LineItem{Keyword: KeywordHiddenServiceMaxStreamsCloseCircuit, Argument: closeCirc})

	return Setting{Items: items}, true, nil
}

// Config is an ordered sequence of Settings. The command-line argv (items
// whose keyword's Attrs.IsCmdLineArg is true) is not stored here; Argv
// derives it from a Config.
type Config struct {
	Settings []Setting
}

// Add appends s to the config, validating any keyword in it is recognized.
func (c *Config) Add(s Setting) error {
	for _, item := range s.Items {
		if !IsRecognized(item.Keyword) {
			return &ConfigError{Kind: ErrInvalidValue, Keyword: item.Keyword, Detail: "unrecognized keyword"}
		}
	}
	c.Settings = append(c.Settings, s)
	return nil
}

// Get returns the first Setting whose first LineItem carries kw, if any.
func (c *Config) Get(kw Keyword) (Setting, bool) {
	for _, s := range c.Settings {
		if len(s.Items) > 0 && s.Items[0].Keyword == kw {
			return s, true
		}
	}
	return Setting{}, false
}

// ValidateMutation rejects SETCONF/RESETCONF attempts against startup-only
// keywords, per spec §4.2.
func ValidateMutation(kw Keyword) error {
	attrs, ok := LookupAttrs(kw)
	if !ok {
		return &ConfigError{Kind: ErrInvalidValue, Keyword: kw, Detail: "unrecognized keyword"}
	}
	if attrs.IsStartupOnly {
		return &ConfigError{Kind: ErrStartupOnly, Keyword: kw, Detail: "cannot be changed once tor is running"}
	}
	return nil
}
