package control

import (
	"fmt"
	"strings"

	"github.com/torctl/torctl/torconfig"
)

// Cmd is one Tor Control Protocol command: its wire rendering and its
// reply interpretation. Concrete types below cover the commands spec §6
// names; ParseReply returns a command-specific value on success.
type Cmd interface {
	// Privileged reports whether this command may alter the connection's
	// own lifecycle (authentication, ownership transfer, a halting
	// SIGNAL) — such commands bypass the queue's normal FIFO ordering
	// rules for pending cancellation (see Queue.Enqueue).
	Privileged() bool
	// WireBytes renders the full CRLF-terminated request, including any
	// inline multi-line body (LOADCONF uses a "+" data block).
	WireBytes() []byte
	// ParseReply interprets a completed, non-async Reply. A reply whose
	// status code is not 250 yields a *CommandRejectedError.
	ParseReply(r Reply) (any, error)
}

func rejectIfFailure(r Reply) error {
	if r.Kind() == KindFailure {
		return &CommandRejectedError{Code: r.Code, Message: r.Final}
	}
	return nil
}

func crlf(line string) []byte { return []byte(line + "\r\n") }

// AuthenticateCmd sends AUTHENTICATE with either a cookie (hex-encoded) or
// a plaintext/hashed password, per spec §4.6.
type AuthenticateCmd struct {
	// Token, when non-empty, is sent as-is and unquoted (the caller
	// hex-encodes the cookie); otherwise Password is sent quoted.
	Token    string
	Password string
}

func (c *AuthenticateCmd) Privileged() bool { return true }

func (c *AuthenticateCmd) WireBytes() []byte {
	if c.Token != "" {
		return crlf("AUTHENTICATE " + c.Token)
	}
	return crlf(fmt.Sprintf("AUTHENTICATE %q", c.Password))
}

func (c *AuthenticateCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// GetConfCmd sends GETCONF for one or more keywords.
type GetConfCmd struct {
	Keywords []torconfig.Keyword
}

func (c *GetConfCmd) Privileged() bool { return false }

func (c *GetConfCmd) WireBytes() []byte {
	words := make([]string, len(c.Keywords))
	for i, k := range c.Keywords {
		words[i] = string(k)
	}
	return crlf("GETCONF " + strings.Join(words, " "))
}

func (c *GetConfCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, l := range r.Lines {
		for k, v := range (Reply{Final: l.Payload}).Values() {
			values[k] = v
		}
	}
	return values, nil
}

// SetConfCmd sends SETCONF for a Setting, rejecting startup-only keywords
// locally before touching the wire (spec §4.2).
type SetConfCmd struct {
	Setting torconfig.Setting
}

func (c *SetConfCmd) Privileged() bool { return false }

func (c *SetConfCmd) WireBytes() []byte {
	opts := torconfig.DefaultRenderOptions()
	return crlf("SETCONF " + torconfig.RenderSetting(c.Setting, torconfig.ModeControl, opts))
}

func (c *SetConfCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// ValidateStartupOnly returns a *torconfig.ConfigError if any item in s
// targets a startup-only keyword; callers should check this before
// enqueuing a SetConfCmd or ResetConfCmd.
func ValidateStartupOnly(s torconfig.Setting) error {
	for _, item := range s.Items {
		if err := torconfig.ValidateMutation(item.Keyword); err != nil {
			return err
		}
	}
	return nil
}

// ResetConfCmd sends RESETCONF, reverting keywords to their defaults.
type ResetConfCmd struct {
	Keywords []torconfig.Keyword
}

func (c *ResetConfCmd) Privileged() bool { return false }

func (c *ResetConfCmd) WireBytes() []byte {
	words := make([]string, len(c.Keywords))
	for i, k := range c.Keywords {
		words[i] = string(k)
	}
	return crlf("RESETCONF " + strings.Join(words, " "))
}

func (c *ResetConfCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// LoadConfCmd sends LOADCONF with a torrc-formatted body as a "+" data
// block, for settings that cannot be delivered via SETCONF (spec §4.3
// step 6).
type LoadConfCmd struct {
	Body string
}

func (c *LoadConfCmd) Privileged() bool { return false }

func (c *LoadConfCmd) WireBytes() []byte {
	var b strings.Builder
	b.WriteString("+LOADCONF\r\n")
	for _, line := range strings.Split(c.Body, "\n") {
		if strings.HasPrefix(line, ".") {
			line = "." + line
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString(".\r\n")
	return []byte(b.String())
}

func (c *LoadConfCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// SaveConfCmd sends SAVECONF, optionally with FORCE to overwrite a torrc
// that was hand-edited since tor loaded it.
type SaveConfCmd struct {
	Force bool
}

func (c *SaveConfCmd) Privileged() bool { return false }

func (c *SaveConfCmd) WireBytes() []byte {
	if c.Force {
		return crlf("SAVECONF FORCE")
	}
	return crlf("SAVECONF")
}

func (c *SaveConfCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// GetInfoCmd sends GETINFO for one or more keys, returning multi-line
// ("+") values as []string and single-line values as string.
type GetInfoCmd struct {
	Keys []string
}

func (c *GetInfoCmd) Privileged() bool { return false }

func (c *GetInfoCmd) WireBytes() []byte {
	return crlf("GETINFO " + strings.Join(c.Keys, " "))
}

func (c *GetInfoCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, l := range r.Lines {
		if l.Sep == '+' {
			key := l.Payload
			if i := strings.IndexByte(key, '='); i >= 0 {
				key = key[:i]
			}
			out[key] = l.Data
			continue
		}
		if i := strings.IndexByte(l.Payload, '='); i >= 0 {
			out[l.Payload[:i]] = unquote(l.Payload[i+1:])
		}
	}
	return out, nil
}

// SetEventsCmd sends SETEVENTS, replacing the daemon's entire subscription
// set (per the protocol, SETEVENTS is not additive).
type SetEventsCmd struct {
	Events []string
}

func (c *SetEventsCmd) Privileged() bool { return false }

func (c *SetEventsCmd) WireBytes() []byte {
	return crlf("SETEVENTS " + strings.Join(c.Events, " "))
}

func (c *SetEventsCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// haltingSignals are the SIGNAL names spec §4.7 calls privileged: they may
// terminate the daemon, so any command still Enqueued behind them is
// transferred to cancellation.
var haltingSignals = map[string]bool{"HALT": true, "SHUTDOWN": true}

// SignalCmd sends SIGNAL <name>. Name is one of the tor signal vocabulary:
// RELOAD, SHUTDOWN, DUMP, DEBUG, HALT, HUP, INT, USR1, USR2, TERM, NEWNYM,
// CLEARDNSCACHE, HEARTBEAT, ACTIVE, DORMANT.
type SignalCmd struct {
	Name string
}

func (c *SignalCmd) Privileged() bool { return haltingSignals[strings.ToUpper(c.Name)] }

func (c *SignalCmd) WireBytes() []byte { return crlf("SIGNAL " + strings.ToUpper(c.Name)) }

func (c *SignalCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// AddOnionCmd sends ADD_ONION, creating an ephemeral or persistent hidden
// service. KeyType/KeyBlob follow tor's vocabulary ("NEW:BEST",
// "ED25519-V3:<base64>"); Flags and Ports map to the command's optional
// arguments.
type AddOnionCmd struct {
	KeyType string
	KeyBlob string
	Flags   []string
	Ports   []torconfig.HiddenServicePort
	MaxStreams int
}

func (c *AddOnionCmd) Privileged() bool { return false }

func (c *AddOnionCmd) WireBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "ADD_ONION %s:%s", c.KeyType, c.KeyBlob)
	if len(c.Flags) > 0 {
		fmt.Fprintf(&b, " Flags=%s", strings.Join(c.Flags, ","))
	}
	if c.MaxStreams > 0 {
		fmt.Fprintf(&b, " MaxStreams=%d", c.MaxStreams)
	}
	for _, p := range c.Ports {
		fmt.Fprintf(&b, " Port=%d,%s", p.Virtual, p.Target)
	}
	return crlf(b.String())
}

// AddOnionResult reports the service ID and, for a newly generated key,
// the private key blob tor minted.
type AddOnionResult struct {
	ServiceID  string
	PrivateKey string
}

func (c *AddOnionCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	res := AddOnionResult{}
	for _, l := range r.Lines {
		kv := strings.SplitN(l.Payload, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ServiceID":
			res.ServiceID = kv[1]
		case "PrivateKey":
			res.PrivateKey = kv[1]
		}
	}
	return res, nil
}

// DelOnionCmd sends DEL_ONION, tearing down a service this connection
// owns.
type DelOnionCmd struct {
	ServiceID string
}

func (c *DelOnionCmd) Privileged() bool { return false }

func (c *DelOnionCmd) WireBytes() []byte { return crlf("DEL_ONION " + c.ServiceID) }

func (c *DelOnionCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// OnionClientAuthAddCmd sends ONION_CLIENT_AUTH_ADD, registering a client
// auth private key for a restricted-discovery onion service.
type OnionClientAuthAddCmd struct {
	Address    string // 56-char onion address, no ".onion" suffix
	PrivateKey string // "x25519:<base64>"
	Nickname   string
	Flags      []string
}

func (c *OnionClientAuthAddCmd) Privileged() bool { return false }

func (c *OnionClientAuthAddCmd) WireBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "ONION_CLIENT_AUTH_ADD %s %s", c.Address, c.PrivateKey)
	if c.Nickname != "" {
		fmt.Fprintf(&b, " ClientName=%s", c.Nickname)
	}
	if len(c.Flags) > 0 {
		fmt.Fprintf(&b, " Flags=%s", strings.Join(c.Flags, ","))
	}
	return crlf(b.String())
}

func (c *OnionClientAuthAddCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// OnionClientAuthRemoveCmd sends ONION_CLIENT_AUTH_REMOVE.
type OnionClientAuthRemoveCmd struct {
	Address string
}

func (c *OnionClientAuthRemoveCmd) Privileged() bool { return false }

func (c *OnionClientAuthRemoveCmd) WireBytes() []byte {
	return crlf("ONION_CLIENT_AUTH_REMOVE " + c.Address)
}

func (c *OnionClientAuthRemoveCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// OnionClientAuthViewCmd sends ONION_CLIENT_AUTH_VIEW, optionally scoped to
// a single service address.
type OnionClientAuthViewCmd struct {
	Address string // empty lists every registered client auth credential
}

func (c *OnionClientAuthViewCmd) Privileged() bool { return false }

func (c *OnionClientAuthViewCmd) WireBytes() []byte {
	if c.Address == "" {
		return crlf("ONION_CLIENT_AUTH_VIEW")
	}
	return crlf("ONION_CLIENT_AUTH_VIEW " + c.Address)
}

func (c *OnionClientAuthViewCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	var creds []string
	for _, l := range r.Lines {
		if strings.HasPrefix(l.Payload, "CLIENT ") {
			creds = append(creds, strings.TrimPrefix(l.Payload, "CLIENT "))
		}
	}
	return creds, nil
}

// HSFetchCmd sends HSFETCH, asking tor to re-fetch a hidden service
// descriptor out of band (the result arrives as an HS_DESC event, not in
// this command's own reply).
type HSFetchCmd struct {
	Address string
	Servers []string // optional "$<fingerprint>" directory servers
}

func (c *HSFetchCmd) Privileged() bool { return false }

func (c *HSFetchCmd) WireBytes() []byte {
	var b strings.Builder
	b.WriteString("HSFETCH " + c.Address)
	for _, s := range c.Servers {
		fmt.Fprintf(&b, " SERVER=%s", s)
	}
	return crlf(b.String())
}

func (c *HSFetchCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// DropGuardsCmd sends DROPGUARDS, discarding the current entry guard set.
type DropGuardsCmd struct{}

func (c *DropGuardsCmd) Privileged() bool { return false }
func (c *DropGuardsCmd) WireBytes() []byte { return crlf("DROPGUARDS") }
func (c *DropGuardsCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// TakeOwnershipCmd sends TAKEOWNERSHIP, binding the daemon's lifetime to
// this control connection (tor exits when the connection closes). Marked
// Privileged because it changes how connection teardown behaves.
type TakeOwnershipCmd struct{}

func (c *TakeOwnershipCmd) Privileged() bool { return true }
func (c *TakeOwnershipCmd) WireBytes() []byte { return crlf("TAKEOWNERSHIP") }
func (c *TakeOwnershipCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}

// DropOwnershipCmd sends DROPOWNERSHIP, undoing a prior TAKEOWNERSHIP.
type DropOwnershipCmd struct{}

func (c *DropOwnershipCmd) Privileged() bool { return true }
func (c *DropOwnershipCmd) WireBytes() []byte { return crlf("DROPOWNERSHIP") }
func (c *DropOwnershipCmd) ParseReply(r Reply) (any, error) {
	if err := rejectIfFailure(r); err != nil {
		return nil, err
	}
	return nil, nil
}
