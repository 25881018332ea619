package control

import (
	"context"
	"sync"
	"sync/atomic"
)

// JobState is a Job's position in its lifecycle. Transitions are strictly
// forward: Enqueued -> {Executing, Error, Cancelled} and
// Executing -> {Success, Error, Cancelled}.
type JobState int32

const (
	JobEnqueued JobState = iota
	JobExecuting
	JobSuccess
	JobError
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobExecuting:
		return "Executing"
	case JobSuccess:
		return "Success"
	case JobError:
		return "Error"
	case JobCancelled:
		return "Cancelled"
	default:
		return "Enqueued"
	}
}

// Job is one command's passage through the CommandQueue: its current
// state, its eventual result, and any completion callbacks. A Job is safe
// for concurrent use.
type Job struct {
	ID  string
	Cmd Cmd

	ctx    context.Context
	cancel context.CancelFunc

	state  atomic.Int32
	result any
	err    error

	settleOnce sync.Once
	settled    chan struct{}

	wireOnce sync.Once
	wireDone chan struct{}

	mu        sync.Mutex
	callbacks []func(*Job)
}

func newJob(parent context.Context, id string, cmd Cmd) *Job {
	ctx, cancel := context.WithCancel(parent)
	j := &Job{
		ID:       id,
		Cmd:      cmd,
		ctx:      ctx,
		cancel:   cancel,
		settled:  make(chan struct{}),
		wireDone: make(chan struct{}),
	}
	return j
}

// State returns the job's current state.
func (j *Job) State() JobState { return JobState(j.state.Load()) }

// Result returns the job's terminal value and error. Valid only after
// Wait/Done closes, or a completion callback fires.
func (j *Job) Result() (any, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Done returns a channel closed exactly once, when the job reaches a
// terminal user-visible state (Success, Error, or Cancelled). For an
// Executing job that is Cancelled, this closes immediately even though the
// underlying wire exchange may still be running.
func (j *Job) Done() <-chan struct{} { return j.settled }

// Wait blocks until the job settles or ctx is done, returning the job's
// result/error or ctx.Err().
func (j *Job) Wait(ctx context.Context) (any, error) {
	select {
	case <-j.settled:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnCompletion registers fn to run when the job settles. If the job has
// already settled, fn runs synchronously before OnCompletion returns.
func (j *Job) OnCompletion(fn func(*Job)) {
	j.mu.Lock()
	if j.State() != JobEnqueued && j.State() != JobExecuting {
		j.mu.Unlock()
		fn(j)
		return
	}
	j.callbacks = append(j.callbacks, fn)
	j.mu.Unlock()
}

// Cancel requests cancellation, per spec §4.7. If the job is still
// Enqueued, it settles immediately as Cancelled and never touches the
// wire. If it is Executing, the waiter settles immediately as Cancelled
// but the in-flight wire exchange is left to finish — its reply, when it
// arrives, is discarded. A job that has already settled is unaffected.
func (j *Job) Cancel(reason string) {
	switch j.State() {
	case JobEnqueued, JobExecuting:
		j.cancel()
		j.settle(JobCancelled, nil, &CancellationError{Reason: reason})
	}
}

func (j *Job) setExecuting() bool {
	return j.state.CompareAndSwap(int32(JobEnqueued), int32(JobExecuting))
}

// settle transitions the job to a terminal state exactly once; subsequent
// calls are no-ops (the first settlement — typically a cancellation racing
// the wire reply — wins).
func (j *Job) settle(state JobState, result any, err error) {
	j.settleOnce.Do(func() {
		j.state.Store(int32(state))
		j.mu.Lock()
		j.result = result
		j.err = err
		cbs := j.callbacks
		j.callbacks = nil
		j.mu.Unlock()
		close(j.settled)
		for _, cb := range cbs {
			cb(j)
		}
	})
}

// markWireDone signals that the wire exchange for this job (if any) has
// fully completed — either a reply was read, or the job was skipped
// because it cancelled before execution. The queue's processor waits on
// this before dequeuing the next job.
func (j *Job) markWireDone() {
	j.wireOnce.Do(func() { close(j.wireDone) })
}

func (j *Job) wireDoneChan() <-chan struct{} { return j.wireDone }

// resolveFromReply is called by the Connection's reader goroutine when a
// synchronous reply matching this job arrives. If the job already settled
// (cancelled while executing), the reply is parsed only to keep command
// side effects consistent with ParseReply's contract, then discarded.
func (j *Job) resolveFromReply(r Reply) {
	val, err := j.Cmd.ParseReply(r)
	select {
	case <-j.settled:
		// already cancelled; discard
	default:
		if err != nil {
			j.settle(JobError, nil, err)
		} else {
			j.settle(JobSuccess, val, nil)
		}
	}
}
