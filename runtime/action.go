package runtime

import (
	"context"
	"sync"
)

// ActionKind distinguishes the three actions ActionProcessor serializes.
type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionStop
	ActionRestart
)

func (k ActionKind) String() string {
	switch k {
	case ActionStop:
		return "Stop"
	case ActionRestart:
		return "Restart"
	default:
		return "Start"
	}
}

// Handle is the job returned by Start/Stop/Restart: a caller awaits it via
// Wait or Done, and a second caller requesting the same kind of action
// while one is already running receives this same Handle (spec §4.11's
// coalescing rule).
type Handle struct {
	Kind ActionKind
	done chan struct{}
	err  error
}

// Done returns a channel closed when the action completes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the action's result. Valid only after Done closes.
func (h *Handle) Err() error { return h.err }

// Wait blocks until the action completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActionProcessor implements Start/Stop/Restart atop a Runtime, per spec
// §4.11: exactly one action in flight at a time, second-enqueue-of-the-
// same-kind coalescing, a Stop issued while Starting cooperatively cancels
// the startup and awaits its teardown before running its own Stop body,
// and Restart runs its Stop/Start legs under one shared outer job so
// cancelling the restart cancels whichever leg is active.
type ActionProcessor struct {
	mu            sync.Mutex
	current       *Handle
	currentCancel context.CancelFunc
	rt            *Runtime
}

func newActionProcessor(rt *Runtime) *ActionProcessor {
	return &ActionProcessor{rt: rt}
}

// Start launches the Runtime's startup sequence.
func (a *ActionProcessor) Start(ctx context.Context) *Handle {
	return a.enqueue(ctx, ActionStart, a.rt.doStart)
}

// Stop launches the Runtime's shutdown sequence. If a Start is currently
// in flight, it is cancelled first and its teardown awaited before Stop's
// own body runs.
func (a *ActionProcessor) Stop(ctx context.Context) *Handle {
	a.mu.Lock()
	if a.current != nil && a.current.Kind == ActionStart {
		cancelStarting := a.currentCancel
		starting := a.current
		a.mu.Unlock()
		cancelStarting()
		<-starting.done
	} else {
		a.mu.Unlock()
	}
	return a.enqueue(ctx, ActionStop, a.rt.doStop)
}

// Restart runs Stop then Start as one job: cancelling ctx cancels whichever
// leg is currently running.
func (a *ActionProcessor) Restart(ctx context.Context) *Handle {
	return a.enqueue(ctx, ActionRestart, func(c context.Context) error {
		if err := a.rt.doStop(c); err != nil {
			return err
		}
		err := a.rt.doStart(c)
		if err == nil {
			a.rt.metrics.ProcessRestarted()
		}
		return err
	})
}

func (a *ActionProcessor) enqueue(ctx context.Context, kind ActionKind, fn func(context.Context) error) *Handle {
	a.mu.Lock()
	if a.current != nil && a.current.Kind == kind {
		h := a.current
		a.mu.Unlock()
		return h
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{Kind: kind, done: make(chan struct{})}
	prev := a.current
	a.current = h
	a.currentCancel = cancel
	a.mu.Unlock()

	go func() {
		defer cancel()
		if prev != nil {
			// an action of another kind is still running; run after it
			<-prev.done
		}
		h.err = fn(runCtx)
		close(h.done)

		a.mu.Lock()
		if a.current == h {
			a.current = nil
			a.currentCancel = nil
		}
		a.mu.Unlock()
	}()
	return h
}
