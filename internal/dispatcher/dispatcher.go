package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one message routed to the sinks of a run, such as a tick snapshot.
type Event struct {
	Command   string
	Tick      uint64
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrStale is returned for an event on an ordered route whose tick is not
	// newer than the last accepted one.
	ErrStale = errors.New("stale tick")
	// ErrQueueFull is returned when a non-blocking buffered route is full.
	ErrQueueFull = errors.New("queue full")
)

// Option configures a route.
type Option func(*routeConfig)

type routeConfig struct {
	bufferSize int
	blocking   bool
	logged     bool
	ordered    bool
}

// Buffered runs the handler on its own goroutine behind a queue of the given size.
func Buffered(size int) Option {
	return func(c *routeConfig) { c.bufferSize = size }
}

// Blocking makes a buffered route wait for room instead of dropping.
func Blocking() Option {
	return func(c *routeConfig) { c.blocking = true }
}

// Logged adds debug logging around each event.
func Logged() Option {
	return func(c *routeConfig) { c.logged = true }
}

// Ordered rejects events whose tick does not advance past the last accepted one.
func Ordered() Option {
	return func(c *routeConfig) { c.ordered = true }
}

// RouteStats are the counters of one route.
type RouteStats struct {
	Accepted  uint64
	Processed uint64
	Dropped   uint64
	Stale     uint64
	Queued    int
	LastTick  uint64
}

type route struct {
	command string
	handle  HandlerFunc
	cfg     routeConfig
	attrs   metric.MeasurementOption

	queue chan Event

	tickMu   sync.Mutex
	hasTick  bool
	lastTick uint64

	accepted  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	stale     atomic.Uint64
}

// admit records e's tick on ordered routes.
func (r *route) admit(e Event) error {
	if !r.cfg.ordered {
		return nil
	}
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	if r.hasTick && e.Tick <= r.lastTick {
		r.stale.Add(1)
		return fmt.Errorf("%s: tick %d after %d: %w", r.command, e.Tick, r.lastTick, ErrStale)
	}
	r.hasTick = true
	r.lastTick = e.Tick
	return nil
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *instruments

	// mu guards routes and closed. Senders on buffered routes hold the read
	// lock so Close cannot close a queue under them.
	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[string]*route),
	}
	inst, err := newInstruments(meter(), d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = inst
	return d, nil
}

// Register adds a route for command. Registering the same command twice
// replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{
		command: command,
		attrs:   metric.WithAttributes(attribute.String("command", command)),
	}
	for _, opt := range opts {
		opt(&r.cfg)
	}

	handle := h
	if r.cfg.logged {
		handle = d.logged(command, handle)
	}
	r.handle = handle

	if r.cfg.bufferSize > 0 {
		r.queue = make(chan Event, r.cfg.bufferSize)
		d.workers.Add(1)
		go d.drain(r)
	}

	d.mu.Lock()
	d.routes[command] = r
	d.mu.Unlock()
}

// Dispatch routes an event to its handler. Buffered routes return "queued".
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.routes[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if d.closed && r.queue != nil {
		return nil, ErrClosed
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := r.admit(e); err != nil {
		return nil, err
	}
	r.accepted.Add(1)

	if r.queue == nil {
		res, err := r.handle(e)
		d.done(r)
		return res, err
	}

	if r.cfg.blocking {
		r.queue <- e
		return "queued", nil
	}
	select {
	case r.queue <- e:
		return "queued", nil
	default:
		r.dropped.Add(1)
		d.metrics.dropped.Add(context.Background(), 1, r.attrs)
		return nil, fmt.Errorf("%s: %w", e.Command, ErrQueueFull)
	}
}

func (d *Dispatcher) drain(r *route) {
	defer d.workers.Done()
	for e := range r.queue {
		if _, err := r.handle(e); err != nil {
			d.logger.Error("buffered handler failed", "command", r.command, "tick", e.Tick, "error", err)
		}
		d.done(r)
	}
}

func (d *Dispatcher) done(r *route) {
	r.processed.Add(1)
	d.metrics.processed.Add(context.Background(), 1, r.attrs)
}

// Close stops accepting buffered events and waits until every queue has
// drained. Synchronous routes keep working.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

// HasHandler reports whether command has a route.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Stats returns the counters of command's route.
func (d *Dispatcher) Stats(command string) (RouteStats, bool) {
	d.mu.RLock()
	r, ok := d.routes[command]
	d.mu.RUnlock()
	if !ok {
		return RouteStats{}, false
	}
	r.tickMu.Lock()
	last := r.lastTick
	r.tickMu.Unlock()
	return RouteStats{
		Accepted:  r.accepted.Load(),
		Processed: r.processed.Load(),
		Dropped:   r.dropped.Load(),
		Stale:     r.stale.Load(),
		Queued:    len(r.queue),
		LastTick:  last,
	}, true
}

func (d *Dispatcher) queueDepths(observe func(command string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, r := range d.routes {
		if r.queue != nil {
			observe(cmd, len(r.queue))
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "tick", e.Tick)

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "tick", e.Tick, "duration", time.Since(start), "error", err)
			return result, err
		}
		// lag is how far behind the simulation clock the sink is running
		d.logger.Debug("event complete", "command", command, "tick", e.Tick,
			"duration", time.Since(start), "lag", time.Since(e.Timestamp))
		return result, nil
	}
}
