package rcon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dayzctl/dayzctl/internal/metrics"
)

// Typed failures surfaced to callers. Wrapped errors carry context; use
// errors.Is for classification.
var (
	ErrNotConnected     = errors.New("rcon: not connected")
	ErrAuthTimeout      = errors.New("rcon: authentication timed out")
	ErrAuthFailed       = errors.New("rcon: authentication rejected")
	ErrCommandTimeout   = errors.New("rcon: command timed out")
	ErrConnectionClosed = errors.New("rcon: connection closed")
)

const (
	// DefaultAuthTimeout bounds the wait for the login response.
	DefaultAuthTimeout = 5 * time.Second
	// DefaultCommandTimeout bounds the wait for a command response.
	DefaultCommandTimeout = 10 * time.Second

	// headerLen is the size of the request-id prefix on every datagram.
	headerLen = 4
	// maxDatagram is the largest response we accept in one read.
	maxDatagram = 4096

	loginPrefix = "#login "
	okMarker    = "OK"
)

// Status is a point-in-time snapshot of the session.
type Status struct {
	Connected   bool   `json:"connected"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	HasPassword bool   `json:"has_password"`
}

type pendingCall struct {
	ch chan callResult
}

type callResult struct {
	text string
	err  error
}

// Client maintains an authenticated UDP session to the server's remote
// console. Every outbound datagram is [4-byte big-endian request id][payload];
// responses are correlated purely by that id, so out-of-order delivery is
// tolerated and unmatched ids are dropped as unsolicited.
type Client struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	connected bool
	host      string
	port      int
	password  string
	nextID    uint32
	pending   map[uint32]pendingCall
	closing   bool

	authTimeout time.Duration
	cmdTimeout  time.Duration
	log         *slog.Logger
}

// Option tweaks client construction.
type Option func(*Client)

// WithAuthTimeout overrides the authentication timeout.
func WithAuthTimeout(d time.Duration) Option {
	return func(c *Client) { c.authTimeout = d }
}

// WithCommandTimeout overrides the per-command timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) { c.cmdTimeout = d }
}

// New creates a disconnected client.
func New(log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		pending:     make(map[uint32]pendingCall),
		authTimeout: DefaultAuthTimeout,
		cmdTimeout:  DefaultCommandTimeout,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect opens the UDP socket and performs the login handshake. An already
// connected client is disconnected first, so reconnect is idempotent. On any
// failure the socket is torn down before the error is returned; a failed
// handshake never leaves a half-open session.
func (c *Client) Connect(host string, port int, password string) error {
	c.Disconnect()

	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("rcon: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("rcon: dial %s:%d: %w", host, port, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.host = host
	c.port = port
	c.password = password
	c.closing = false
	c.mu.Unlock()

	go c.readLoop(conn)

	// The session is not connected until the login round-trip succeeds, but
	// the pending map is live so the read loop can correlate the response.
	resp, err := c.roundTrip([]byte(loginPrefix+password), c.authTimeout, ErrAuthTimeout)
	if err != nil {
		c.teardown(err)
		return err
	}
	if !strings.Contains(resp, okMarker) {
		c.teardown(ErrAuthFailed)
		return fmt.Errorf("%w: %q", ErrAuthFailed, strings.TrimSpace(resp))
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.log.Info("rcon connected", "host", host, "port", port)
	return nil
}

// Disconnect closes the socket and rejects every still-pending request with
// ErrConnectionClosed. Safe to call when not connected.
func (c *Client) Disconnect() {
	c.teardown(ErrConnectionClosed)
}

// SendCommand sends commandText under a fresh request id and waits for the
// correlated response or the command timeout.
func (c *Client) SendCommand(commandText string) (string, error) {
	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	c.mu.Unlock()

	resp, err := c.roundTrip([]byte(commandText), c.cmdTimeout, ErrCommandTimeout)
	switch {
	case err == nil:
		metrics.IncRconCommand("ok")
	case errors.Is(err, ErrCommandTimeout):
		metrics.IncRconCommand("timeout")
	default:
		metrics.IncRconCommand("error")
	}
	return resp, err
}

// GetStatus is a pure read of the session state.
func (c *Client) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Connected:   c.connected,
		Host:        c.host,
		Port:        c.port,
		HasPassword: c.password != "",
	}
}

// roundTrip registers a pending entry, sends the datagram and waits for the
// matching response. The stale entry is removed on timeout so a late reply
// is treated as unsolicited rather than cross-matched.
func (c *Client) roundTrip(payload []byte, timeout time.Duration, timeoutErr error) (string, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	c.nextID++ // wraps modulo 2^32
	id := c.nextID
	call := pendingCall{ch: make(chan callResult, 1)}
	c.pending[id] = call
	c.mu.Unlock()

	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(buf[:headerLen], id)
	copy(buf[headerLen:], payload)

	if _, err := conn.Write(buf); err != nil {
		c.removePending(id)
		return "", fmt.Errorf("rcon: send request %d: %w", id, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-call.ch:
		return res.text, res.err
	case <-timer.C:
		c.removePending(id)
		return "", timeoutErr
	}
}

// readLoop decodes inbound datagrams and dispatches them to the matching
// pending entry. A read error while the session is live is fatal: it flips
// connected to false and rejects all pending requests.
func (c *Client) readLoop(conn *net.UDPConn) {
	buf := make([]byte, maxDatagram)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			c.mu.Lock()
			intentional := c.closing || c.conn != conn
			c.mu.Unlock()
			if !intentional {
				c.log.Warn("rcon socket error", "error", err)
				c.teardown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			}
			return
		}
		if n < headerLen {
			c.log.Debug("rcon short datagram dropped", "len", n)
			continue
		}
		id := binary.BigEndian.Uint32(buf[:headerLen])
		text := string(buf[headerLen:n])

		c.mu.Lock()
		call, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()

		if !ok {
			c.log.Debug("rcon unsolicited response dropped", "id", id)
			continue
		}
		call.ch <- callResult{text: text}
	}
}

// teardown closes the socket, clears the connected flag and rejects every
// pending request with cause. No pending callback is silently dropped.
func (c *Client) teardown(cause error) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.closing = true
	rejected := c.pending
	c.pending = make(map[uint32]pendingCall)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, call := range rejected {
		call.ch <- callResult{err: cause}
	}
}

func (c *Client) removePending(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
