// Package event implements the typed observer bus: control-protocol events
// and runtime lifecycle/log/error events, with tag-based bulk unsubscribe
// and a pluggable uncaught-exception handler.
package event

import "sync"

// Name identifies an event category. Control-protocol categories mirror
// tor's SETEVENTS names (e.g. "STATUS_CLIENT", "NOTICE", "CIRC"); runtime
// categories use the "Runtime." prefix (e.g. "Runtime.OnStart").
type Name string

// Runtime lifecycle/log/error event names, emitted by ActionProcessor and
// ProcessSupervisor.
const (
	RuntimeOnCreate  Name = "Runtime.OnCreate"
	RuntimeOnStart   Name = "Runtime.OnStart"
	RuntimeOnStop    Name = "Runtime.OnStop"
	RuntimeOnDestroy Name = "Runtime.OnDestroy"
	RuntimeLog       Name = "Runtime.Log"
	RuntimeError     Name = "Runtime.Error"
)

// Executor decides how an observer's callback runs relative to the caller
// that triggered dispatch.
type Executor int

const (
	// ExecutorImmediate invokes the observer inline, on the dispatching
	// goroutine.
	ExecutorImmediate Executor = iota
	// ExecutorDispatched invokes the observer on its own goroutine.
	ExecutorDispatched
	// ExecutorMain is an alias for ExecutorImmediate: this core has no
	// built-in notion of a UI main thread. A caller embedding this engine
	// in a GUI shell routes callbacks to its main loop through the execFunc
	// argument of NewBus (a func(Executor, func())).
	ExecutorMain = ExecutorImmediate
)

// StaticTag prefixes tags applied by the runtime itself, so that a caller's
// UnsubscribeAll(tag) can never accidentally strip runtime-owned observers.
const StaticTag = "static:"

// Data carried to an observer's OnEvent callback. Control-protocol events
// attach the raw/parsed reply payload; runtime events attach a free-form
// struct.
type Data any

// Observer is one registered callback.
type Observer struct {
	Event    Name
	Tag      string
	Executor Executor
	OnEvent  func(Data)
}

// UncaughtHandler receives a panic recovered from an observer callback. It
// may itself panic (propagating to the dispatching goroutine, matching
// spec §4.10) or swallow it.
type UncaughtHandler func(event Name, recovered any)

// Bus is a copy-on-write observer registry: subscription replaces an
// immutable per-event slice, so Dispatch holds the mutex only long enough to
// take a snapshot, never while invoking callbacks, and a concurrent
// Unsubscribe cannot corrupt an in-flight Dispatch's snapshot.
type Bus struct {
	mu       sync.Mutex
	byEvent  map[Name][]*Observer
	onPanic  UncaughtHandler
	execFunc func(Executor, func())
}

// NewBus creates an empty Bus. onPanic may be nil (panics propagate to the
// dispatching goroutine). execFunc overrides how ExecutorDispatched runs a
// callback; nil uses `go fn()`.
func NewBus(onPanic UncaughtHandler, execFunc func(Executor, func())) *Bus {
	b := &Bus{byEvent: make(map[Name][]*Observer), onPanic: onPanic}
	if execFunc != nil {
		b.execFunc = execFunc
	} else {
		b.execFunc = defaultExec
	}
	return b
}

func defaultExec(e Executor, fn func()) {
	if e == ExecutorDispatched {
		go fn()
		return
	}
	fn()
}

// Subscribe registers obs under obs.Event, returning a disposer.
func (b *Bus) Subscribe(obs *Observer) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.byEvent[obs.Event]
	next := make([]*Observer, len(old)+1)
	copy(next, old)
	next[len(old)] = obs
	b.byEvent[obs.Event] = next

	return func() { b.unsubscribeOne(obs) }
}

func (b *Bus) unsubscribeOne(target *Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.byEvent[target.Event]
	next := make([]*Observer, 0, len(old))
	for _, o := range old {
		if o != target {
			next = append(next, o)
		}
	}
	b.byEvent[target.Event] = next
}

// UnsubscribeAll removes every observer tagged tag, across all events,
// except those registered with the StaticTag prefix.
func (b *Bus) UnsubscribeAll(tag string) {
	if tag == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, old := range b.byEvent {
		next := make([]*Observer, 0, len(old))
		for _, o := range old {
			if o.Tag == tag && !isStatic(o.Tag) {
				continue
			}
			next = append(next, o)
		}
		b.byEvent[name] = next
	}
}

func isStatic(tag string) bool {
	return len(tag) >= len(StaticTag) && tag[:len(StaticTag)] == StaticTag
}

// Dispatch delivers data to every observer of name, in registration order,
// over the snapshot taken at call time — a concurrent Subscribe/Unsubscribe
// never affects this dispatch.
func (b *Bus) Dispatch(name Name, data Data) {
	b.mu.Lock()
	snapshot := b.byEvent[name]
	b.mu.Unlock()

	for _, obs := range snapshot {
		o := obs
		b.execFunc(o.Executor, func() {
			defer func() {
				if r := recover(); r != nil {
					if b.onPanic != nil {
						b.onPanic(name, r)
					} else {
						panic(r)
					}
				}
			}()
			o.OnEvent(data)
		})
	}
}

// Close removes every observer from every event category.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byEvent = make(map[Name][]*Observer)
}
