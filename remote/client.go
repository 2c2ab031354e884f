// Package remote is the client side of the command channel: a persistent
// connection to a running simulation that survives server restarts.
package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// ErrorMarker starts every failure reply from the server.
const ErrorMarker = "ERR - "

var (
	// ErrCommunication reports a socket fault. The connection has been
	// discarded and the next call reconnects.
	ErrCommunication = errors.New("remote: communication failure")
	// ErrProtocol reports a malformed request or an error reply.
	ErrProtocol = errors.New("remote: protocol failure")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("remote: client closed")
)

// CommandError is a command the server refused.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string { return "remote: command failed: " + e.Message }

func (e *CommandError) Is(target error) bool { return target == ErrProtocol }

// StatusObserver hears about connect and disconnect transitions. It is
// called with the client's lock held and must not call back into the client.
type StatusObserver interface {
	ConnectionStatus(connected bool)
}

// StatusFunc adapts a function to StatusObserver.
type StatusFunc func(connected bool)

func (f StatusFunc) ConnectionStatus(connected bool) { f(connected) }

type Options struct {
	DialTimeout       time.Duration // default 2s
	ReplyTimeout      time.Duration // default 5s
	ReconnectInterval time.Duration // default 1s
	HealthInterval    time.Duration // default 5s
	// Clock drives Run's waits. Socket deadlines always use wall time.
	Clock    clock.Clock
	Logger   *zerolog.Logger
	Observer StatusObserver
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 2 * time.Second
	}
	if o.ReplyTimeout <= 0 {
		o.ReplyTimeout = 5 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = time.Second
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// probeWait is how long Probe waits for the peer to say something.
const probeWait = time.Millisecond

// Client sends command lines over one connection at a time. It is safe for
// concurrent use; calls are serialized.
type Client struct {
	addr string
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	conn    net.Conn
	rd      *bufio.Reader
	pending int // replies owed for lines sent without waiting
	closed  bool
}

// New returns a disconnected client for addr. Nothing is dialled until the
// first Do, Connect or Run.
func New(addr string, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		addr: addr,
		opts: opts,
		log:  opts.Logger.With().Str("addr", addr).Logger(),
	}
}

func (c *Client) Addr() string { return c.addr }

// Connected reports whether a connection is currently held. It does not
// touch the network; see Probe.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the server unless already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	c.conn, c.rd, c.pending = conn, bufio.NewReader(conn), 0
	c.log.Info().Msg("connected to simulation")
	if c.opts.Observer != nil {
		c.opts.Observer.ConnectionStatus(true)
	}
	return nil
}

func (c *Client) dropLocked(cause error) {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn, c.rd, c.pending = nil, nil, 0
	c.log.Warn().Err(cause).Msg("disconnected from simulation")
	if c.opts.Observer != nil {
		c.opts.Observer.ConnectionStatus(false)
	}
}

// Probe checks a held connection without consuming protocol data: it peeks
// with a very short deadline. A timeout means the peer is alive and quiet;
// EOF or any other error drops the connection.
func (c *Client) Probe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeLocked()
}

func (c *Client) probeLocked() bool {
	if c.conn == nil {
		return false
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(probeWait)); err != nil {
		c.dropLocked(err)
		return false
	}
	_, err := c.rd.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})
	var ne net.Error
	if err == nil || (errors.As(err, &ne) && ne.Timeout()) {
		return true
	}
	c.dropLocked(err)
	return false
}

// Do sends one command line. With expectReply it waits for the reply line;
// otherwise the reply is skipped before the next command is sent.
//
// A reply starting with ErrorMarker returns a *CommandError. A timeout or
// socket fault discards the connection and returns ErrCommunication; the
// next call starts from a fresh connection.
func (c *Client) Do(ctx context.Context, line string, expectReply bool) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("%w: command must be a single non-empty line", ErrProtocol)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.probeLocked() {
		c.log.Debug().Msg("stale connection, reconnecting")
	}
	if err := c.connectLocked(ctx); err != nil {
		return "", err
	}

	conn := c.conn
	if err := conn.SetDeadline(time.Now().Add(c.opts.ReplyTimeout)); err != nil {
		c.dropLocked(err)
		return "", fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	for c.pending > 0 {
		if _, err := c.readLine(); err != nil {
			return "", c.fail(ctx, err)
		}
		c.pending--
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return "", c.fail(ctx, err)
	}
	c.log.Debug().Str("command", line).Msg("sent")
	if !expectReply {
		c.pending++
		_ = conn.SetDeadline(time.Time{})
		return "", nil
	}

	reply, err := c.readLine()
	if err != nil {
		return "", c.fail(ctx, err)
	}
	_ = conn.SetDeadline(time.Time{})
	if msg, ok := strings.CutPrefix(reply, ErrorMarker); ok {
		return "", &CommandError{Message: msg}
	}
	return reply, nil
}

func (c *Client) readLine() (string, error) {
	s, err := c.rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (c *Client) fail(ctx context.Context, err error) error {
	c.dropLocked(err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, ctxErr)
	}
	return fmt.Errorf("%w: %w", ErrCommunication, err)
}

// Run keeps the connection up until ctx is done or the client is closed.
// While disconnected it retries every ReconnectInterval; while connected it
// probes every HealthInterval.
func (c *Client) Run(ctx context.Context) error {
	for {
		wait := c.opts.HealthInterval
		if c.Connected() {
			if !c.Probe() {
				wait = c.opts.ReconnectInterval
			}
		} else if err := c.Connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			c.log.Debug().Err(err).Msg("reconnect failed")
			wait = c.opts.ReconnectInterval
		}

		t := c.opts.Clock.Timer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Close drops the connection. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.dropLocked(ErrClosed)
	return nil
}
