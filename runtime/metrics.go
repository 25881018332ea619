package runtime

import "github.com/prometheus/client_golang/prometheus"

// Sink is a nil-safe wrapper around the Prometheus counters/gauges this
// core emits. A nil *Sink is valid and every method becomes a no-op, so
// callers that don't want Prometheus wiring can simply omit it.
type Sink struct {
	commandsExecuted  *prometheus.CounterVec
	reconnects        prometheus.Counter
	bootstrapProgress prometheus.Gauge
	processRestarts   prometheus.Counter
}

// NewSink registers this package's metrics against reg and returns a Sink.
// Passing a nil reg still returns a usable Sink backed by unregistered
// collectors (useful for tests that want real counter values without a
// live registry).
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		commandsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torctl",
			Name:      "commands_executed_total",
			Help:      "Control-protocol commands executed, by result kind.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctl",
			Name:      "control_reconnects_total",
			Help:      "Control connection reconnect attempts.",
		}),
		bootstrapProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "torctl",
			Name:      "bootstrap_percent",
			Help:      "Most recently observed STATUS_CLIENT BOOTSTRAP percentage.",
		}),
		processRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctl",
			Name:      "process_restarts_total",
			Help:      "tor child process restarts performed by ActionProcessor.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.commandsExecuted, s.reconnects, s.bootstrapProgress, s.processRestarts)
	}
	return s
}

// CommandExecuted records one completed command, labeled by its terminal
// JobState's string form ("Success", "Error", "Cancelled").
func (s *Sink) CommandExecuted(kind string) {
	if s == nil {
		return
	}
	s.commandsExecuted.WithLabelValues(kind).Inc()
}

// Reconnected records one control connection reconnect attempt.
func (s *Sink) Reconnected() {
	if s == nil {
		return
	}
	s.reconnects.Inc()
}

// SetBootstrapPct records the latest bootstrap percentage.
func (s *Sink) SetBootstrapPct(pct int) {
	if s == nil {
		return
	}
	s.bootstrapProgress.Set(float64(pct))
}

// ProcessRestarted records one supervised process restart.
func (s *Sink) ProcessRestarted() {
	if s == nil {
		return
	}
	s.processRestarts.Inc()
}
