// Package process supervises a spawned tor binary: starting it with a
// rendered torconfig.Config, tailing its stdout/stderr for the ready
// marker, polling its control-port and cookie-auth files, and tearing it
// down on Stop.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/torctl/torctl/logging"
	"github.com/torctl/torctl/torconfig"
)

// readyMarker is the stdout substring tor prints once its control
// listener is accepting connections; Supervisor treats its appearance as
// an additional (non-authoritative) readiness signal alongside the
// control port file.
const readyMarker = "Opened Control listener connection (ready) on"

// errMarkers are stdout/stderr substrings that indicate tor failed to
// start, checked case-sensitively line by line as output arrives.
var errMarkers = []string{
	" [err] ",
	" [warn] It looks like another Tor process is running with the same data directory.",
}

// minInterStartGap is the minimum spacing this process enforces between
// successive Start calls on the same Supervisor, so a caller's rapid
// restart loop cannot spawn tor faster than it can clean up its previous
// instance's DataDirectory lock file. Tunable via Supervisor.MinStartGap;
// floor-checked at 100ms in Start.
const minInterStartGap = 500 * time.Millisecond

const minStartGapFloor = 100 * time.Millisecond

// maxTailLines caps how many stdout/stderr lines Supervisor retains for
// diagnostics, matching the corpus's teeWriter-style bounded capture.
const maxTailLines = 50

// Info is what a successful Start returns: enough to dial and authenticate
// a control.Connection.
type Info struct {
	PID         int
	CtrlNetwork string // "tcp" or "unix"
	CtrlAddr    string
	Cookie      []byte // nil if cookie authentication was not configured
}

// Supervisor owns one tor child process across its start/stop lifecycle.
// It is not safe for concurrent Start calls; Stop/Kill/Running may be
// called from any goroutine.
type Supervisor struct {
	// TorBinary is the executable to run; defaults to "tor" (resolved via
	// exec.LookPath).
	TorBinary string
	// MinStartGap overrides minInterStartGap; zero uses the default, and
	// any nonzero value below minStartGapFloor is raised to the floor.
	MinStartGap time.Duration
	// CtrlPortFileTimeout/CookieFileTimeout override the default 10s/1s
	// polling timeouts.
	CtrlPortFileTimeout time.Duration
	CookieFileTimeout   time.Duration

	Logger logging.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	lastStart   time.Time
	termHooks   []func()
	stdoutTail  *tailBuffer
	stderrTail  *tailBuffer
}

// NewSupervisor builds a Supervisor with default timeouts and the "tor"
// binary name.
func NewSupervisor() *Supervisor {
	return &Supervisor{TorBinary: "tor"}
}

// AddTermHook registers fn to run once, after the process exits (cleanly
// or via Kill), before Stop or Kill returns.
func (s *Supervisor) AddTermHook(fn func()) {
	s.mu.Lock()
	s.termHooks = append(s.termHooks, fn)
	s.mu.Unlock()
}

// Running reports whether a child process is currently tracked as alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && s.cmd.Process != nil
}

// StdoutTail/StderrTail return up to the last maxTailLines lines captured
// from the child's stdout/stderr, for diagnostics on a failed Start.
func (s *Supervisor) StdoutTail() []string { return s.stdoutTail.lines() }
func (s *Supervisor) StderrTail() []string { return s.stderrTail.lines() }

// Start renders cfg to torrc-argv form, spawns the tor binary, hardens its
// working directory (the cache directory is left as it is), and blocks until the control port file and
// (if configured) cookie file are readable, or until ctx is done.
//
// Per spec §4.8, a Start whose tor process exits immediately with an empty
// stdout capture is retried exactly once (the "zombie process" heuristic:
// a stale lock file or an in-progress antivirus scan on the DataDirectory
// can cause this on the first attempt but rarely on the second).
func (s *Supervisor) Start(ctx context.Context, cfg torconfig.Config, workDir string) (Info, error) {
	s.enforceStartGap()

	info, err := s.startOnce(ctx, cfg, workDir)
	if err == nil {
		return info, nil
	}

	var se *StartError
	if errors.As(err, &se) && se.Kind == ErrZombieProcess {
		logging.OrNop(s.Logger).Log("warn", "retrying tor start after apparent zombie process", "error", err.Error())
		return s.startOnce(ctx, cfg, workDir)
	}
	return Info{}, err
}

func (s *Supervisor) enforceStartGap() {
	gap := s.MinStartGap
	if gap == 0 {
		gap = minInterStartGap
	}
	if gap < minStartGapFloor {
		gap = minStartGapFloor
	}

	s.mu.Lock()
	elapsed := time.Since(s.lastStart)
	s.mu.Unlock()
	if s.lastStart.IsZero() || elapsed >= gap {
		return
	}
	time.Sleep(gap - elapsed)
}

func (s *Supervisor) startOnce(ctx context.Context, cfg torconfig.Config, workDir string) (Info, error) {
	const op = "Start"
	logger := logging.OrNop(s.Logger)

	binPath, err := exec.LookPath(s.binary())
	if err != nil {
		return Info{}, newError(ErrBinaryNotFound, op, fmt.Sprintf("tor binary not found (looked for %q); install it via your package manager", s.binary()), err)
	}

	if err := hardenDirectory(workDir); err != nil {
		return Info{}, newError(ErrIO, op, "harden DataDirectory", err)
	}
	disableCoreDumps(logger)

	argv := torconfig.Argv(cfg)
	if extra := torconfig.NonCmdLineSettings(cfg); len(extra) > 0 {
		logger.Log("debug", "settings deferred to a post-connect LOADCONF, not passed on argv", "count", len(extra))
	}

	cmd := exec.Command(binPath, argv...) //nolint:noctx
	stdoutTail := newTailBuffer(maxTailLines)
	stderrTail := newTailBuffer(maxTailLines)
	cmd.Stdout = stdoutTail
	cmd.Stderr = stderrTail

	markerErr := make(chan string, 1)
	watchForMarkers(stdoutTail, markerErr)
	watchForMarkers(stderrTail, markerErr)

	s.mu.Lock()
	s.lastStart = time.Now()
	s.stdoutTail = stdoutTail
	s.stderrTail = stderrTail
	s.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return Info{}, newError(ErrLaunchFailed, op, "exec.Cmd.Start failed", err)
	}
	logger.Log("debug", "tor process started", "pid", cmd.Process.Pid, "argv", strings.Join(argv, " "))

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	ctrlFileTimeout := s.CtrlPortFileTimeout
	if ctrlFileTimeout == 0 {
		ctrlFileTimeout = 10 * time.Second
	}

	ctrlPath := controlPortFilePath(cfg, workDir)
	ctrlInfoCh := make(chan ctrlResult, 1)
	go func() {
		info, err := waitCtrlPortFile(ctx, ctrlPath, ctrlFileTimeout)
		ctrlInfoCh <- ctrlResult{info, err}
	}()

	select {
	case werr := <-exited:
		s.runTermHooks()
		if stdoutTail.Len() == 0 {
			return Info{}, newError(ErrZombieProcess, op, "tor exited immediately with no stdout output", werr)
		}
		return Info{}, newError(ErrLaunchFailed, op, "tor exited before control port file appeared: "+stdoutTail.String(), werr)
	case line := <-markerErr:
		_ = s.Kill()
		return Info{}, newError(ErrLaunchFailed, op, "tor reported a startup error: "+line, nil)
	case res := <-ctrlInfoCh:
		if res.err != nil {
			_ = s.Kill()
			return Info{}, res.err
		}

		var cookie []byte
		cookiePath := cookieFilePath(cfg, workDir)
		if cookiePath != "" {
			cookieTimeout := s.CookieFileTimeout
			if cookieTimeout == 0 {
				cookieTimeout = 1 * time.Second
			}
			cookie, err = waitCookieFile(ctx, cookiePath, cookieTimeout)
			if err != nil {
				_ = s.Kill()
				return Info{}, err
			}
		}

		if !sawReadyMarker(stdoutTail.lines()) {
			logger.Log("debug", "control port file present without the usual ready marker in stdout", "marker", readyMarker)
		}

		return Info{
			PID:         cmd.Process.Pid,
			CtrlNetwork: res.info.Network,
			CtrlAddr:    res.info.Address,
			Cookie:      cookie,
		}, nil
	}
}

type ctrlResult struct {
	info CtrlPortInfo
	err  error
}

func sawReadyMarker(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, readyMarker) {
			return true
		}
	}
	return false
}

// watchForMarkers installs an onLine callback on t that sends the
// offending line to errCh (non-blocking, first match wins) the moment any
// errMarkers substring appears.
func watchForMarkers(t *tailBuffer, errCh chan<- string) {
	t.watch(func(line string) {
		for _, m := range errMarkers {
			if strings.Contains(line, m) {
				select {
				case errCh <- line:
				default:
				}
				return
			}
		}
	})
}

func (s *Supervisor) binary() string {
	if s.TorBinary == "" {
		return "tor"
	}
	return s.TorBinary
}

// Stop sends SIGTERM and waits up to grace for the process to exit,
// killing it outright afterward. Use control.SignalCmd{Name: "SHUTDOWN"}
// via the control connection for a graceful protocol-level shutdown first;
// Stop is the supervision-level fallback spec §4.8 describes for when the
// control connection is unavailable or unresponsive.
func (s *Supervisor) Stop(grace time.Duration) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(terminateSignal()); err != nil {
		return s.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		s.runTermHooks()
		return err
	case <-time.After(grace):
		return s.Kill()
	}
}

// Kill forcibly terminates the process without waiting for a graceful
// exit.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
	s.runTermHooks()
	return err
}

func (s *Supervisor) runTermHooks() {
	s.mu.Lock()
	hooks := s.termHooks
	s.termHooks = nil
	s.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// hardenDirectory creates dir if needed and restricts it to owner-only
// access; a no-op restriction on windows, where tor's own ACL inheritance
// is relied on instead (matching the teacher's runtime.GOOS-gated
// treatment of path escaping).
func hardenDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(dir, 0o700)
}

func controlPortFilePath(cfg torconfig.Config, workDir string) string {
	if s, ok := cfg.Get(torconfig.KeywordControlPortWriteToFile); ok && len(s.Items) > 0 {
		return s.Items[0].Argument
	}
	return workDir + string(os.PathSeparator) + "ctrl.txt"
}

func cookieFilePath(cfg torconfig.Config, workDir string) string {
	if s, ok := cfg.Get(torconfig.KeywordCookieAuthFile); ok && len(s.Items) > 0 {
		return s.Items[0].Argument
	}
	return ""
}
