package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(Environment{WorkDir: t.TempDir(), CacheDir: t.TempDir()})
	t.Cleanup(func() { rt.bus.Close() })
	return rt
}

func TestActionProcessorRunsFnToCompletion(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	h := a.enqueue(context.Background(), ActionStart, func(context.Context) error { return nil })
	require.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, ActionStart, h.Kind)
}

func TestActionProcessorPropagatesError(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	boom := errors.New("boom")
	h := a.enqueue(context.Background(), ActionStart, func(context.Context) error { return boom })
	err := h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, h.Err(), boom)
}

func TestActionProcessorCoalescesSameKind(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	release := make(chan struct{})
	started := make(chan struct{})
	h1 := a.enqueue(context.Background(), ActionStart, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	h2 := a.enqueue(context.Background(), ActionStart, func(context.Context) error {
		t.Fatal("second enqueue of the same kind must not run its own fn")
		return nil
	})
	assert.Same(t, h1, h2, "a second enqueue of the same kind while one is in flight returns the existing Handle")

	close(release)
	require.NoError(t, h1.Wait(context.Background()))
}

func TestActionProcessorAllowsNewJobAfterPriorSettles(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	h1 := a.enqueue(context.Background(), ActionStart, func(context.Context) error { return nil })
	require.NoError(t, h1.Wait(context.Background()))

	ran := false
	h2 := a.enqueue(context.Background(), ActionStart, func(context.Context) error { ran = true; return nil })
	require.NoError(t, h2.Wait(context.Background()))
	assert.True(t, ran)
	assert.NotSame(t, h1, h2)
}

func TestActionProcessorStopCancelsInFlightStart(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	h1 := a.enqueue(context.Background(), ActionStart, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	<-started

	stopDone := make(chan *Handle, 1)
	go func() { stopDone <- a.Stop(context.Background()) }()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight Start")
	}
	require.Error(t, h1.Wait(context.Background()))

	h2 := <-stopDone
	// doStop is a no-op returning nil immediately when the Runtime is
	// still Off, which it is here since the fake Start body never
	// transitioned the state manager.
	assert.NoError(t, h2.Wait(context.Background()))
}

func TestHandleWaitRespectsContext(t *testing.T) {
	rt := newTestRuntime(t)
	a := newActionProcessor(rt)

	block := make(chan struct{})
	h := a.enqueue(context.Background(), ActionStart, func(context.Context) error {
		<-block
		return nil
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
