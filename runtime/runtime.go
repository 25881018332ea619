package runtime

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/torctl/torctl/configgen"
	"github.com/torctl/torctl/control"
	"github.com/torctl/torctl/event"
	"github.com/torctl/torctl/logging"
	"github.com/torctl/torctl/process"
	"github.com/torctl/torctl/state"
	"github.com/torctl/torctl/torconfig"
)

// Option configures a Runtime at construction time, following the
// functional-options convention nao1215-tornago's TorLaunchConfig uses.
type Option func(*Runtime)

// WithLogger overrides the default stderr Logger.
func WithLogger(l logging.Logger) Option { return func(r *Runtime) { r.logger = l } }

// WithMetrics attaches a Sink; nil is valid and leaves metrics disabled.
func WithMetrics(s *Sink) Option { return func(r *Runtime) { r.metrics = s } }

// WithConfigCallback appends a configgen.Builder callback, applied in
// registration order during Start, per spec §4.3 step 3.
func WithConfigCallback(fn func(*configgen.Builder) error) Option {
	return func(r *Runtime) { r.callbacks = append(r.callbacks, fn) }
}

// WithSuppressGeoIP skips GeoIPFile/GeoIPv6File generation (spec §4.3
// step 2's "unless suppressed by flag").
func WithSuppressGeoIP() Option {
	return func(r *Runtime) { r.genOpts.SuppressGeoIP = true }
}

// WithDisablePortReassign fails Start with a ConfigError::PortUnavailable
// instead of rewriting an unavailable port to "auto" (spec §4.3 step 5).
func WithDisablePortReassign() Option {
	return func(r *Runtime) { r.genOpts.DisablePortReassign = true }
}

// Runtime ties one Environment to its ConfigGenerator inputs, its
// process.Supervisor, its control.Connection (once started), its
// state.Manager, and its event.Bus. It is the "Environment" component of
// spec §3/§9: the exclusive owner of the Supervisor and Connection for its
// lifetime.
type Runtime struct {
	env       Environment
	logger    logging.Logger
	metrics   *Sink
	callbacks []func(*configgen.Builder) error
	genOpts   configgen.Options

	bus    *event.Bus
	states *state.Manager
	action *ActionProcessor

	mu   sync.Mutex
	sup  *process.Supervisor
	conn *control.Connection

	staticTag string
}

// New builds a Runtime for env and emits the OnCreate lifecycle event. It
// does not start tor; call Action().Start(ctx) for that.
func New(env Environment, opts ...Option) *Runtime {
	r := &Runtime{
		env:       env,
		logger:    logging.NewStd(),
		states:    state.NewManager(),
		staticTag: event.StaticTag + "runtime:" + env.Fid(),
	}
	r.bus = event.NewBus(r.onUncaughtPanic, nil)
	for _, o := range opts {
		o(r)
	}
	r.action = newActionProcessor(r)
	r.emitLifecycle(event.RuntimeOnCreate)
	return r
}

// Events returns the Runtime's EventBus: control-protocol events (once
// started) and the Runtime.* lifecycle/log/error categories.
func (r *Runtime) Events() *event.Bus { return r.bus }

// State returns the current daemon/network state.
func (r *Runtime) State() state.State { return r.states.Current() }

// Action returns the ActionProcessor for Start/Stop/Restart.
func (r *Runtime) Action() *ActionProcessor { return r.action }

// Connection returns the live control.Connection, or nil if not currently
// started.
func (r *Runtime) Connection() *control.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// Do enqueues cmd on the live control connection and blocks for its
// result, recording the outcome on the Runtime's metrics Sink (a no-op if
// none was attached via WithMetrics). Returns an error if tor is not
// currently started.
func (r *Runtime) Do(ctx context.Context, cmd control.Cmd) (any, error) {
	conn := r.Connection()
	if conn == nil {
		return nil, fmt.Errorf("runtime: not started")
	}
	val, err := conn.Do(ctx, cmd)
	r.metrics.CommandExecuted(commandOutcomeKind(err))
	return val, err
}

func commandOutcomeKind(err error) string {
	if err == nil {
		return "Success"
	}
	var cancelled *control.CancellationError
	if errors.As(err, &cancelled) {
		return "Cancelled"
	}
	return "Error"
}

// Close stops tor if running and emits OnDestroy; the Runtime must not be
// used afterward.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.doStop(ctx)
	r.emitLifecycle(event.RuntimeOnDestroy)
	r.bus.Close()
	return err
}

func (r *Runtime) onUncaughtPanic(name event.Name, recovered any) {
	r.logger.Log("error", "observer panicked", "event", string(name), "recovered", fmt.Sprint(recovered))
}

func (r *Runtime) emitLifecycle(name event.Name) {
	r.bus.Dispatch(name, map[string]string{"component": "runtime", "fid": r.env.Fid()})
}

// doStart is ActionProcessor's Start body: generate config, spawn tor,
// connect and authenticate, and transition Off/Starting -> On.
func (r *Runtime) doStart(ctx context.Context) error {
	if _, applied, _ := r.states.Transition(state.State{Phase: state.Starting, Network: state.Disabled}); !applied {
		return fmt.Errorf("runtime: cannot start from %s", r.states.Current())
	}
	r.emitLifecycle(event.RuntimeOnStart)

	paths := configgen.Paths{
		WorkDir:     r.env.WorkDir,
		CacheDir:    r.env.CacheDir,
		GeoIPFile:   r.env.GeoIPFile,
		GeoIPv6File: r.env.GeoIPv6File,
		PID:         os.Getpid(),
	}
	cfg, err := configgen.Generate(ctx, paths, r.callbacks, r.genOpts)
	if err != nil {
		r.states.Transition(state.State{Phase: state.Off})
		return fmt.Errorf("runtime: generate config: %w", err)
	}

	sup := process.NewSupervisor()
	sup.Logger = r.logger
	if r.env.TorBinary != "" {
		sup.TorBinary = r.env.TorBinary
	}

	info, err := sup.Start(ctx, cfg, r.env.WorkDir)
	if err != nil {
		r.states.Transition(state.State{Phase: state.Off})
		return fmt.Errorf("runtime: start tor process: %w", err)
	}

	conn, err := control.Dial(ctx, info.CtrlNetwork, info.CtrlAddr, r.bus)
	if err != nil {
		_ = sup.Stop(shutdownGrace)
		r.states.Transition(state.State{Phase: state.Off})
		return fmt.Errorf("runtime: dial control connection: %w", err)
	}

	token := ""
	if info.Cookie != nil {
		token = hex.EncodeToString(info.Cookie)
	}
	if err := conn.Authenticate(ctx, token, ""); err != nil {
		_ = conn.Close()
		_ = sup.Stop(shutdownGrace)
		r.states.Transition(state.State{Phase: state.Off})
		return fmt.Errorf("runtime: authenticate: %w", err)
	}

	if deferred := torconfig.NonCmdLineSettings(cfg); len(deferred) > 0 {
		body := torconfig.Render(torconfig.Config{Settings: deferred}, torconfig.ModeTorrc, torconfig.DefaultRenderOptions())
		if _, err := conn.Do(ctx, &control.LoadConfCmd{Body: body}); err != nil {
			_ = conn.Close()
			_ = sup.Stop(shutdownGrace)
			r.states.Transition(state.State{Phase: state.Off})
			return fmt.Errorf("runtime: load deferred config: %w", err)
		}
	}

	r.subscribeBootstrap()

	r.mu.Lock()
	r.sup = sup
	r.conn = conn
	r.mu.Unlock()

	r.states.Transition(state.State{Phase: state.On, Network: state.Disabled})
	go r.watchConnection(conn)
	return nil
}

// watchConnection waits for conn to close and, if that closure was not the
// result of an intentional Stop (doStop clears r.conn before closing),
// treats it the way the teacher's launch code treats a dropped connection
// on update ("Reconnecting to the Tor network."): it records the event on
// the metrics Sink and relaunches tor from scratch via ActionProcessor,
// rather than trying to resume the old process's control socket.
func (r *Runtime) watchConnection(conn *control.Connection) {
	<-conn.Done()

	r.mu.Lock()
	unexpected := r.conn == conn
	r.mu.Unlock()
	if !unexpected {
		return
	}

	r.metrics.Reconnected()
	r.logger.Log("warn", "control connection closed unexpectedly, relaunching tor")
	r.action.Restart(context.Background())
}

// shutdownGrace is how long Stop waits for a SIGTERM'd tor to exit before
// killing it outright.
const shutdownGrace = 3 * time.Second

// subscribeBootstrap wires STATUS_CLIENT BOOTSTRAP NOTICE events into the
// state manager's bootstrap percentage, grounded on the teacher's
// handleBootstrapEvent.
func (r *Runtime) subscribeBootstrap() {
	r.bus.Subscribe(&event.Observer{
		Event: event.Name("STATUS_CLIENT"),
		Tag:   r.staticTag,
		OnEvent: func(data event.Data) {
			reply, ok := data.(control.Reply)
			if !ok {
				return
			}
			if pct, ok := parseBootstrapProgress(reply.Final); ok {
				_ = r.states.SetBootstrapPct(pct)
				if r.metrics != nil {
					r.metrics.SetBootstrapPct(pct)
				}
			}
		},
	})
}

// parseBootstrapProgress extracts PROGRESS=<n> from a
// "STATUS_CLIENT NOTICE BOOTSTRAP PROGRESS=40 TAG=... SUMMARY=\"...\""
// payload.
func parseBootstrapProgress(payload string) (int, bool) {
	for _, tok := range strings.Fields(payload) {
		if v, ok := strings.CutPrefix(tok, "PROGRESS="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// doStop is ActionProcessor's Stop body: request SIGNAL SHUTDOWN over the
// control connection if one is live, then tear down the supervised
// process, transitioning to Off unconditionally.
func (r *Runtime) doStop(ctx context.Context) error {
	cur := r.states.Current()
	if cur.Phase == state.Off {
		return nil
	}
	r.states.Transition(state.State{Phase: state.Stopping, Network: cur.Network})
	r.emitLifecycle(event.RuntimeOnStop)

	r.mu.Lock()
	conn := r.conn
	sup := r.sup
	r.conn = nil
	r.sup = nil
	r.mu.Unlock()

	var stopErr error
	if conn != nil {
		_, err := conn.Do(ctx, &control.SignalCmd{Name: "SHUTDOWN"})
		r.metrics.CommandExecuted(commandOutcomeKind(err))
		if err != nil {
			r.logger.Log("warn", "SIGNAL SHUTDOWN failed, falling back to SIGTERM", "error", err.Error())
		}
		stopErr = conn.Close()
	}
	if sup != nil {
		if err := sup.Stop(shutdownGrace); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	r.states.Transition(state.State{Phase: state.Off})
	return stopErr
}
