package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citygrid/trafficsim/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	controlChSize = 16
	ackChSize     = 16
	maxReconnect  = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
	ackTimeout    = 10 * time.Second
)

// connection owns one WebSocket and its single writer. Run control messages
// (start_run, end_run) are queued in order. Snapshots are not queued: a
// slow consumer only ever receives the newest one, so the stream never
// falls behind the simulation.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	closed bool

	control chan []byte
	latest  []byte        // newest unsent snapshot, guarded by mu
	wake    chan struct{} // signals that latest was replaced
	ackCh   chan streaming.AckMessage
	done    chan struct{}

	endpoint string        // url with the secret query parameter
	gone     chan struct{} // closed when the live connection breaks

	// start_run message replayed after a reconnect
	startMsg []byte

	superseded atomic.Uint64
	logger     *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		control: make(chan []byte, controlChSize),
		wake:    make(chan struct{}, 1),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// dial connects and starts the read and write loops. The secret travels as
// a query parameter.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("websocket url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	c.endpoint = u.String()

	conn, _, err := ws.DefaultDialer.Dial(c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", u.Host, err)
	}
	c.attach(conn)
	return nil
}

// attach installs conn as the live connection and starts its loops. The
// loops of a connection stop when reconnect closes its gone channel.
func (c *connection) attach(conn *ws.Conn) {
	gone := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.gone = gone
	c.mu.Unlock()
	go c.writeLoop(conn, gone)
	go c.readLoop(conn)
}

func (c *connection) current() *ws.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// writeLoop is the only writer on conn. A control message first flushes the
// pending snapshot so that end_run always follows the final tick.
func (c *connection) writeLoop(conn *ws.Conn, gone <-chan struct{}) {
	if c.hasLatest() {
		c.nudge()
	}
	for {
		select {
		case <-c.done:
			return
		case <-gone:
			return
		case data := <-c.control:
			if !c.flushLatest(conn) || !c.write(conn, data) {
				return
			}
		case <-c.wake:
			if !c.flushLatest(conn) {
				return
			}
		}
	}
}

// flushLatest writes the pending snapshot. A snapshot that fails to send is
// put back unless a newer one has arrived meanwhile.
func (c *connection) flushLatest(conn *ws.Conn) bool {
	c.mu.Lock()
	data := c.latest
	c.latest = nil
	c.mu.Unlock()
	if data == nil {
		return true
	}
	if c.write(conn, data) {
		return true
	}
	c.mu.Lock()
	if c.latest == nil {
		c.latest = data
	}
	c.mu.Unlock()
	return false
}

// write sends one frame. On failure it starts a reconnect and reports false,
// which ends the write loop of conn.
func (c *connection) write(conn *ws.Conn, data []byte) bool {
	if err := writeFrame(conn, data); err != nil {
		c.logger.Warn("Snapshot stream write failed", "error", err)
		go c.reconnect(conn)
		return false
	}
	return true
}

// readLoop routes acks to ackCh and ignores everything else.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("Snapshot stream read failed", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring non-ack message", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces broken with a new connection, retrying with doubling
// waits. The read and write loops both call it when broken fails, so only the
// first caller for a given connection does the work. The start_run header is
// replayed before the loops restart so the consumer can attach the snapshots
// that follow.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.gone)
	c.mu.Unlock()
	_ = broken.Close()

	wait := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt, wait = attempt+1, min(wait*2, maxBackoff) {
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		conn, _, err := ws.DefaultDialer.Dial(c.endpoint, nil)
		if err != nil {
			c.logger.Warn("Snapshot stream redial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		header := c.startMsg
		c.mu.Unlock()
		if header != nil {
			if err := writeFrame(conn, header); err != nil {
				c.logger.Warn("Replaying start_run failed", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.attach(conn)
		c.logger.Info("Snapshot stream reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("Snapshot stream gave up reconnecting", "attempts", maxReconnect)
}

// sendSnapshot replaces the pending snapshot with data.
func (c *connection) sendSnapshot(data []byte) {
	c.mu.Lock()
	if c.latest != nil {
		c.superseded.Add(1)
	}
	c.latest = data
	c.mu.Unlock()
	c.nudge()
}

func (c *connection) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *connection) hasLatest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest != nil
}

// sendControl queues a run control message. It only drops when the
// writer is gone and the queue is full.
func (c *connection) sendControl(data []byte) {
	select {
	case c.control <- data:
	default:
		c.logger.Warn("WebSocket control queue full, dropping message")
	}
}

// sendAndWait queues a control message and blocks until the server acks
// ackFor or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.sendControl(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	// WriteControl may run alongside the write loop
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
