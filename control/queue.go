package control

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Interceptor inspects or rewrites a Cmd before it is sent, keyed by the
// Cmd's concrete type (RegisterInterceptor). Returning an error fails the
// job without ever touching the wire.
type Interceptor func(job *Job, cmd Cmd) (Cmd, error)

// Sender writes a job's wire bytes and blocks until its reply has been
// fully read (or ctx is done). Connection supplies this; Queue never
// touches the socket directly, keeping the two components independently
// testable.
type Sender func(ctx context.Context, job *Job) error

// Queue is the single-writer command queue spec §4.7 describes: commands
// enqueued from any number of goroutines are executed strictly one at a
// time, in FIFO order, by one processor goroutine started lazily on first
// use. Enqueuing a privileged halting SIGNAL (HALT or SHUTDOWN) transfers
// every not-yet-executing job to a cancellation queue, drained as soon as
// the halting command completes.
type Queue struct {
	mu        sync.Mutex
	pending   []*Job
	cancelled []*Job
	running   bool
	destroyed bool

	send Sender

	interceptors map[reflect.Type][]Interceptor
}

// NewQueue builds a Queue that uses send to execute each dequeued job.
func NewQueue(send Sender) *Queue {
	return &Queue{send: send, interceptors: make(map[reflect.Type][]Interceptor)}
}

// RegisterInterceptor adds fn for every Cmd whose concrete type matches
// sample's (sample is used only for its type, e.g. &SetConfCmd{}).
func (q *Queue) RegisterInterceptor(sample Cmd, fn Interceptor) {
	t := reflect.TypeOf(sample)
	q.mu.Lock()
	q.interceptors[t] = append(q.interceptors[t], fn)
	q.mu.Unlock()
}

func (q *Queue) interceptorsFor(cmd Cmd) []Interceptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.interceptors[reflect.TypeOf(cmd)]
}

func isHaltingSignal(cmd Cmd) bool {
	s, ok := cmd.(*SignalCmd)
	return ok && haltingSignals[strings.ToUpper(s.Name)]
}

// Enqueue appends cmd as a new Job and returns it immediately; the caller
// uses Job.Wait/Job.Done/Job.OnCompletion to observe its outcome. If cmd is
// a halting SIGNAL, every currently-Enqueued job is transferred to the
// cancellation queue first, per spec §4.7 invariant 4.
func (q *Queue) Enqueue(ctx context.Context, cmd Cmd) *Job {
	q.mu.Lock()
	job := newJob(ctx, uuid.NewString(), cmd)

	if q.destroyed {
		q.mu.Unlock()
		job.settle(JobCancelled, nil, &InterruptedError{})
		job.markWireDone()
		return job
	}

	if isHaltingSignal(cmd) {
		q.cancelled = append(q.cancelled, q.pending...)
		q.pending = nil
	}
	q.pending = append(q.pending, job)

	start := !q.running
	if start {
		q.running = true
	}
	q.mu.Unlock()

	if start {
		go q.run()
	}
	return job
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			if !q.drainCancelledLocked() {
				q.running = false
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			continue
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.executeJob(job)

		q.mu.Lock()
		q.drainCancelledLocked()
		q.mu.Unlock()
	}
}

// drainCancelledLocked settles and wire-completes every job currently on
// the cancellation queue. Caller holds q.mu; it is released and
// re-acquired around the actual settlement calls since those may invoke
// user callbacks.
func (q *Queue) drainCancelledLocked() bool {
	if len(q.cancelled) == 0 {
		return false
	}
	jobs := q.cancelled
	q.cancelled = nil
	q.mu.Unlock()
	for _, j := range jobs {
		j.settle(JobCancelled, nil, &CancellationError{Reason: "superseded by a halting SIGNAL"})
		j.markWireDone()
	}
	q.mu.Lock()
	return true
}

func (q *Queue) executeJob(job *Job) {
	cmd := job.Cmd
	for _, ic := range q.interceptorsFor(cmd) {
		newCmd, err := ic(job, cmd)
		if err != nil {
			job.settle(JobError, nil, err)
			job.markWireDone()
			return
		}
		cmd = newCmd
	}
	job.Cmd = cmd

	if job.State() == JobCancelled {
		// cancelled while still sitting in q.pending, before dequeue
		job.markWireDone()
		return
	}

	if !job.setExecuting() {
		// settled some other way between dequeue and here
		job.markWireDone()
		return
	}

	if err := q.send(job.ctx, job); err != nil {
		job.settle(JobError, nil, err)
		job.markWireDone()
		return
	}

	// q.send only returns nil once the Connection's reader has observed
	// this job's wireDone close (see Connection.send); resolveFromReply
	// has already settled the job by then, unless it was cancelled mid
	// flight, which is a no-op here.
}

// Destroy settles every pending and cancellation-queued job with an
// InterruptedError and stops accepting new work. It does not touch a job
// currently Executing; that job still completes (or fails) through the
// normal wire path.
func (q *Queue) Destroy() {
	q.mu.Lock()
	q.destroyed = true
	jobs := append(q.pending, q.cancelled...)
	q.pending = nil
	q.cancelled = nil
	q.mu.Unlock()

	for _, j := range jobs {
		j.settle(JobCancelled, nil, &InterruptedError{})
		j.markWireDone()
	}
}
