package torconfig

import (
	"runtime"
	"strings"
)

// Mode selects torrc-file rendering or control-protocol-wire rendering; the
// two differ in separator, quoting, and how multi-line hidden service
// blocks are joined.
type Mode int

const (
	// ModeTorrc renders one LineItem per line, space-separated, for
	// LOADCONF or a torrc file.
	ModeTorrc Mode = iota
	// ModeControl renders "keyword=argument" suitable for SETCONF, with
	// quoting and path-escaping rules specific to the control wire.
	ModeControl
)

// RenderOptions controls host-specific escaping. Callers normally use
// DefaultRenderOptions(), which detects backslash path separators via
// runtime.GOOS; it is exported as a struct so tests can force the
// Windows-like branch on any host.
type RenderOptions struct {
	// BackslashPaths is true on hosts whose path separator is backslash;
	// such paths are escaped (backslashes doubled) only in ModeControl
	// rendering, never in ModeTorrc.
	BackslashPaths bool
}

// DefaultRenderOptions reflects the actual runtime.GOOS.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{BackslashPaths: runtime.GOOS == "windows"}
}

func sep(mode Mode) string {
	if mode == ModeControl {
		return "="
	}
	return " "
}

func escapeControlArgument(arg string, opts RenderOptions) string {
	if opts.BackslashPaths {
		arg = strings.ReplaceAll(arg, `\`, `\\`)
	}
	return arg
}

// renderLineItem renders one `<keyword><sep><argument> <optionals...>` line.
func renderLineItem(item LineItem, mode Mode, opts RenderOptions) string {
	arg := item.Argument
	isUnixArg := false
	if attrs, ok := LookupAttrs(item.Keyword); ok && attrs.IsUnixSocket {
		if path, isUnix := unixSocketPath(arg); isUnix {
			arg = RenderUnixSocketValue(path, mode)
			isUnixArg = true
		}
	}
	if mode == ModeControl && !isUnixArg {
		arg = escapeControlArgument(arg, opts)
	}
	line := string(item.Keyword) + sep(mode) + arg
	if len(item.Optionals) > 0 {
		line += " " + strings.Join(item.Optionals, " ")
	}
	return line
}

// unixSocketPath recognizes an argument already rendered as
// `unix:"<path>"` (the torrc-style form address.SocketAddress.String()
// produces) and extracts path, so renderLineItem can re-render it through
// RenderUnixSocketValue with mode-appropriate escaping.
func unixSocketPath(arg string) (path string, ok bool) {
	const prefix = `unix:"`
	if !strings.HasPrefix(arg, prefix) || !strings.HasSuffix(arg, `"`) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(arg, prefix), `"`), true
}

// RenderSetting renders a single Setting. In ModeTorrc, multi-item settings
// (hidden services) are newline-joined; in ModeControl they are joined by a
// single space, since SETCONF takes the whole block as one argument group.
func RenderSetting(s Setting, mode Mode, opts RenderOptions) string {
	if len(s.Items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, renderLineItem(item, mode, opts))
	}
	if mode == ModeControl {
		return strings.Join(lines, " ")
	}
	return strings.Join(lines, "\n")
}

// Render renders the whole Config, one Setting per paragraph, joined by
// newlines. ModeTorrc output is a ready-to-write torrc file (or a LOADCONF
// body); ModeControl output is not itself a single SETCONF command — callers
// send one Setting's RenderSetting output per SETCONF invocation.
func Render(cfg Config, mode Mode, opts RenderOptions) string {
	parts := make([]string, 0, len(cfg.Settings))
	for _, s := range cfg.Settings {
		r := RenderSetting(s, mode, opts)
		if r == "" {
			continue
		}
		parts = append(parts, r)
	}
	return strings.Join(parts, "\n")
}

// RenderUnixSocketValue renders a unix-socket-valued LineItem argument as
// tor expects: `unix:"<path>"`, with the wrapping quotes backslash-escaped
// only for ModeControl.
func RenderUnixSocketValue(path string, mode Mode) string {
	if mode == ModeControl {
		return `unix:\"` + path + `\"`
	}
	return `unix:"` + path + `"`
}

// Argv derives the command-line argument vector from cfg: only LineItems
// whose keyword's Attrs.IsCmdLineArg is true are included, each becoming
// `--Keyword value`. Optionals are not separate argv entries: they are
// joined into the same value, space-separated, as tor reads them.
func Argv(cfg Config) []string {
	var argv []string
	for _, s := range cfg.Settings {
		for _, item := range s.Items {
			attrs, ok := LookupAttrs(item.Keyword)
			if !ok || !attrs.IsCmdLineArg {
				continue
			}
			val := item.Argument
			if len(item.Optionals) > 0 {
				val += " " + strings.Join(item.Optionals, " ")
			}
			argv = append(argv, "--"+string(item.Keyword), val)
		}
	}
	return argv
}

// NonCmdLineSettings returns the Settings that are not entirely composed of
// argv-eligible keywords — these must be delivered via LOADCONF rather than
// argv, per spec §4.3 step 6.
func NonCmdLineSettings(cfg Config) []Setting {
	var out []Setting
	for _, s := range cfg.Settings {
		allArgv := true
		for _, item := range s.Items {
			attrs, ok := LookupAttrs(item.Keyword)
			if !ok || !attrs.IsCmdLineArg {
				allArgv = false
				break
			}
		}
		if !allArgv {
			out = append(out, s)
		}
	}
	return out
}
