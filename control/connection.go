package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/torctl/torctl/event"

	"golang.org/x/net/proxy"
)

// ConnState mirrors the control connection's own lifecycle, distinct from
// the daemon's bootstrap StateManager (state.Manager): a connection can be
// Ready while tor is still bootstrapping.
type ConnState int32

const (
	ConnConnecting ConnState = iota
	ConnReady
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnReady:
		return "Ready"
	case ConnClosed:
		return "Closed"
	default:
		return "Connecting"
	}
}

// Connection owns one control-protocol socket: the reply parser, the
// single-writer CommandQueue, and the EventBus that 6xx frames are routed
// into. It is the component spec §4.5/§4.6 name "ControlConnection".
type Connection struct {
	conn   net.Conn
	parser *Parser
	writer *bufio.Writer

	events *event.Bus
	Queue  *Queue

	mu         sync.Mutex
	state      ConnState
	currentJob *Job
	closeErr   error
	closeOnce  sync.Once
	closed     chan struct{}
}

// Dial connects to addr ("host:port" or a filesystem path for a unix
// socket, disambiguated by network) and wraps it as a not-yet-authenticated
// Connection. network is "tcp" or "unix", matching net.Dial's vocabulary —
// this core does not hide that choice behind its own tagged union, unlike
// the torrc-level address.SocketAddress, because net.Dial already is the
// idiomatic Go vocabulary for it.
func Dial(ctx context.Context, network, addr string, bus *event.Bus) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s %s: %w", network, addr, err)
	}
	return newConnection(conn, bus), nil
}

// Dialer returns a proxy.Dialer that routes outbound TCP connections
// through tor's SOCKS port, for callers that want to issue application
// traffic over the same tor instance this Connection controls. Grounded on
// the teacher's bulb.Conn.Dialer, generalized from its single-package
// x/net/proxy to x/net/proxy.SOCKS5 called directly.
func Dialer(socksAddr string, auth *proxy.Auth) (proxy.Dialer, error) {
	return proxy.SOCKS5("tcp", socksAddr, auth, proxy.Direct)
}

func newConnection(conn net.Conn, bus *event.Bus) *Connection {
	c := &Connection{
		conn:   conn,
		parser: NewParser(bufio.NewReader(conn)),
		writer: bufio.NewWriter(conn),
		events: bus,
		state:  ConnConnecting,
		closed: make(chan struct{}),
	}
	c.Queue = NewQueue(c.send)
	go c.readLoop()
	return c
}

// Authenticate sends AUTHENTICATE and, on success, marks the connection
// Ready. token and password follow AuthenticateCmd's fields; pass
// token="" to authenticate by password (or by the null string, for
// NullAuthentication deployments).
func (c *Connection) Authenticate(ctx context.Context, token, password string) error {
	job := c.Queue.Enqueue(ctx, &AuthenticateCmd{Token: token, Password: password})
	_, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state = ConnReady
	c.mu.Unlock()
	return nil
}

// Enqueue submits cmd to the command queue and returns its Job.
func (c *Connection) Enqueue(ctx context.Context, cmd Cmd) *Job {
	return c.Queue.Enqueue(ctx, cmd)
}

// Do enqueues cmd and blocks for its result, a convenience wrapper over
// Enqueue+Job.Wait for callers that don't need cancellation of the waiter
// independent of ctx.
func (c *Connection) Do(ctx context.Context, cmd Cmd) (any, error) {
	job := c.Queue.Enqueue(ctx, cmd)
	return job.Wait(ctx)
}

// Events returns the EventBus 6xx frames are dispatched into.
func (c *Connection) Events() *event.Bus { return c.events }

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed when the connection has fully shut down
// (socket closed, reader goroutine exited).
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Close tears down the connection: the socket is closed, the reader
// goroutine exits, the in-flight job is resolved with a
// ConnectionClosedError, and every queued job is cancelled with an
// InterruptedError (see Queue.Destroy).
func (c *Connection) Close() error {
	return c.fail(nil)
}

// send writes job's wire bytes and blocks until the Connection's reader
// goroutine has fully consumed its reply (closing job's wireDone) or the
// connection closes. If ctx is cancelled first, send still waits for that
// reply to be consumed, then returns ctx.Err(). It is Queue's Sender for
// this connection.
func (c *Connection) send(ctx context.Context, job *Job) error {
	c.mu.Lock()
	if c.state == ConnClosed {
		c.mu.Unlock()
		return &ConnectionClosedError{Cause: c.closeErr}
	}
	c.currentJob = job
	c.mu.Unlock()

	_, werr := c.conn.Write(job.Cmd.WireBytes())
	if werr == nil {
		werr = c.writer.Flush()
	}
	if werr != nil {
		c.mu.Lock()
		c.currentJob = nil
		c.mu.Unlock()
		return werr
	}

	select {
	case <-job.wireDoneChan():
		return nil
	case <-ctx.Done():
		// The request is already on the wire: wait for the reader to consume
		// its reply so it cannot be attributed to the next job.
		select {
		case <-job.wireDoneChan():
		case <-c.closed:
		}
		return ctx.Err()
	case <-c.closed:
		return &ConnectionClosedError{Cause: c.closeErr}
	}
}

func (c *Connection) readLoop() {
	for {
		reply, err := c.parser.ReadReply()
		if err != nil {
			c.fail(err)
			return
		}

		if reply.IsAsync() {
			c.events.Dispatch(event.Name(asyncEventName(reply)), reply)
			continue
		}

		c.mu.Lock()
		job := c.currentJob
		c.currentJob = nil
		c.mu.Unlock()

		if job == nil {
			c.fail(&ProtocolError{Detail: "unsolicited synchronous reply with no command in flight"})
			return
		}
		job.resolveFromReply(reply)
		job.markWireDone()
	}
}

// asyncEventName extracts the SETEVENTS-style event keyword from a 650
// reply's first word (e.g. "650 NOTICE ..." -> "NOTICE").
func asyncEventName(r Reply) string {
	payload := r.Final
	for i, c := range payload {
		if c == ' ' {
			return payload[:i]
		}
	}
	return payload
}

// fail transitions the connection to Closed, closing the socket, resolving
// the currently executing job with a ConnectionClosedError, and destroying
// the queue, which cancels every pending or cancellation-queued job with an
// InterruptedError. Calling fail(nil) is a clean, caller-requested Close.
func (c *Connection) fail(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = ConnClosed
		c.closeErr = cause
		job := c.currentJob
		c.currentJob = nil
		c.mu.Unlock()

		err = c.conn.Close()
		close(c.closed)

		if job != nil {
			job.settle(JobError, nil, &ConnectionClosedError{Cause: cause})
			job.markWireDone()
		}
		c.Queue.Destroy()
	})
	return err
}
