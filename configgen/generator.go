package configgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/torctl/torctl/address"
	"github.com/torctl/torctl/torconfig"
)

// Paths is the subset of runtime.Environment the generator needs: it never
// imports the runtime package, to avoid a dependency cycle (runtime depends
// on configgen, not the other way around).
type Paths struct {
	WorkDir     string
	CacheDir    string
	GeoIPFile   string // empty if unavailable/unsuppressed caller has none
	GeoIPv6File string
	PID         int
}

// Builder accumulates Settings for one Generate call. Its methods are the
// "environment-aware builder" spec §4.2 describes; user callbacks are
// `func(*Builder) error` values applied in order.
type Builder struct {
	cfg        torconfig.Config
	sawSocks   bool
	sawControl bool
	err        error
}

func (b *Builder) add(kw torconfig.Keyword, arg string, optionals ...string) {
	if b.err != nil {
		return
	}
	s, err := torconfig.NewSetting(kw, arg, optionals...)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.cfg.Add(s)
}

// SetSocksPort sets the __SocksPort option to port (or "0"/"auto" via the
// raw helpers below), optionally with isolation/socks flags appended.
func (b *Builder) SetSocksPort(port address.ProxyPort, flags ...string) {
	b.sawSocks = true
	b.add(torconfig.KeywordSocksPort, port.String(), flags...)
}

// DisableSocksPort renders `__SocksPort 0`.
func (b *Builder) DisableSocksPort() {
	b.sawSocks = true
	b.add(torconfig.KeywordSocksPort, "0")
}

// SetControlPort sets an explicit __ControlPort rather than "auto".
func (b *Builder) SetControlPort(port address.ProxyPort) {
	b.sawControl = true
	b.add(torconfig.KeywordControlPortAuto, port.String())
}

// SetDNSPort sets the __DNSPort option, with isolation flags.
func (b *Builder) SetDNSPort(port address.ProxyPort, flags ...string) {
	b.add(torconfig.KeywordDNSPort, port.String(), flags...)
}

// SetHTTPTunnelPort sets the __HTTPTunnelPort option, with isolation flags.
func (b *Builder) SetHTTPTunnelPort(port address.ProxyPort, flags ...string) {
	b.add(torconfig.KeywordHTTPTunnelPort, port.String(), flags...)
}

// SetTransPort sets the __TransPort option, with isolation flags.
func (b *Builder) SetTransPort(port address.ProxyPort, flags ...string) {
	b.add(torconfig.KeywordTransPort, port.String(), flags...)
}

// AddHiddenService appends a HiddenService block. A block with zero ports is
// silently dropped, per torconfig.HiddenService.ToSetting's documented
// behavior.
func (b *Builder) AddHiddenService(hs torconfig.HiddenService) {
	if b.err != nil {
		return
	}
	s, appended, err := hs.ToSetting()
	if err != nil {
		b.err = err
		return
	}
	if !appended {
		return
	}
	b.err = b.cfg.Add(s)
}

// SetExitNodes sets a raw ExitNodes value (caller pre-formats the `{cc}`
// node list) and StrictNodes 1.
func (b *Builder) SetExitNodes(nodes string) {
	b.add(torconfig.KeywordStrictNodes, "1")
	b.add(torconfig.KeywordExitNodes, nodes)
}

// Raw appends an arbitrary recognized-keyword Setting, for options this
// Builder has no dedicated method for.
func (b *Builder) Raw(kw torconfig.Keyword, arg string, optionals ...string) {
	b.add(kw, arg, optionals...)
}

const (
	defaultSocksPort = address.ProxyPort(9050)
)

// Generate implements spec §4.3: it seeds mandatory settings, applies user
// callbacks, fills in SocksPort/ControlPort defaults, then probes and
// reassigns unavailable ports (unless reassignment is disabled). It returns
// the final torconfig.Config.
func Generate(ctx context.Context, paths Paths, callbacks []func(*Builder) error, opts Options) (torconfig.Config, error) {
	b := &Builder{}

	b.add(torconfig.KeywordDataDirectory, paths.WorkDir)
	b.add(torconfig.KeywordCacheDirectory, paths.CacheDir)
	b.add(torconfig.KeywordControlPortWriteToFile, filepath.Join(paths.WorkDir, "ctrl.txt"))
	b.add(torconfig.KeywordCookieAuthFile, filepath.Join(paths.WorkDir, "ctrl_auth_cookie"))
	b.add(torconfig.KeywordCookieAuthentication, "1")
	b.add(torconfig.KeywordDisableNetwork, "1")
	b.add(torconfig.KeywordRunAsDaemon, "0")
	b.add(torconfig.KeywordOwningControllerProcess, strconv.Itoa(paths.PID))

	if !opts.SuppressGeoIP {
		if paths.GeoIPFile != "" {
			b.add(torconfig.KeywordGeoIPFile, paths.GeoIPFile)
		}
		if paths.GeoIPv6File != "" {
			b.add(torconfig.KeywordGeoIPv6File, paths.GeoIPv6File)
		}
	}

	for _, cb := range callbacks {
		if b.err != nil {
			break
		}
		if err := cb(b); err != nil {
			b.err = err
			break
		}
	}
	if b.err != nil {
		return torconfig.Config{}, b.err
	}

	if !b.sawSocks {
		b.SetSocksPort(defaultSocksPort)
	}
	if !b.sawControl {
		b.add(torconfig.KeywordControlPortAuto, "auto")
	}
	if b.err != nil {
		return torconfig.Config{}, b.err
	}

	if err := reassignUnavailablePorts(ctx, &b.cfg, opts); err != nil {
		return torconfig.Config{}, err
	}

	return b.cfg, nil
}

// Options configures Generate's optional behaviors.
type Options struct {
	SuppressGeoIP      bool
	DisablePortReassign bool
	ProbeHost          string // defaults to "127.0.0.1"
	Probe              func(host string, port address.ProxyPort) bool // defaults to PortAvailable
}

// reassignUnavailablePorts implements spec §4.3 step 5 literally: an
// unavailable port-bearing setting is rewritten to the literal argument
// "auto" (letting tor itself pick a free port), it is not replaced with a
// different concrete port number — that scanning behavior belongs to
// PortProber, used by callers who need a *specific* reserved port rather
// than "whatever tor picks".
func reassignUnavailablePorts(ctx context.Context, cfg *torconfig.Config, opts Options) error {
	host := opts.ProbeHost
	if host == "" {
		host = "127.0.0.1"
	}
	check := opts.Probe
	if check == nil {
		check = PortAvailable
	}

	for si, s := range cfg.Settings {
		for ii, item := range s.Items {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			attrs, ok := torconfig.LookupAttrs(item.Keyword)
			if !ok || !attrs.IsPort {
				continue
			}
			if item.Argument == "auto" || item.Argument == "disabled" || item.Argument == "0" {
				continue
			}
			port, err := address.ParseProxyPort(item.Argument)
			if err != nil {
				continue // not a number in the proxy port range (e.g. "80", or a non-numeric value)
			}
			if check(host, port) {
				continue
			}
			if opts.DisablePortReassign {
				return &torconfig.ConfigError{
					Kind:    torconfig.ErrPortUnavailable,
					Keyword: item.Keyword,
					Detail:  fmt.Sprintf("port %d unavailable on %s", port, host),
				}
			}
			cfg.Settings[si].Items[ii].Argument = "auto"
		}
	}
	return nil
}

// EnsureDirectories creates the directories tor requires with owner-only
// permissions on POSIX-like hosts.
func EnsureDirectories(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("configgen: create directory %s: %w", d, err)
		}
		if err := os.Chmod(d, 0o700); err != nil {
			return fmt.Errorf("configgen: chmod directory %s: %w", d, err)
		}
	}
	return nil
}
