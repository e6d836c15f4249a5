package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/citygrid/trafficsim/internal/dispatcher"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Commands routed through the dispatcher.
const (
	CommandStartRun = ":RUN:START:"
	CommandSnapshot = ":SNAPSHOT:"
)

// SnapshotBuffer is the queue length of the snapshot handler.
const SnapshotBuffer = 256

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Run start - sync (the run must exist before its snapshots)
	d.Register(CommandStartRun, m.handleStartRun, dispatcher.Logged())

	// Snapshots - buffered, never dropped so the last step always lands,
	// and a tick that does not advance is refused
	d.Register(CommandSnapshot, m.handleSnapshot,
		dispatcher.Buffered(SnapshotBuffer), dispatcher.Blocking(), dispatcher.Ordered(), dispatcher.Logged())
}

func (m *Manager) handleStartRun(e dispatcher.Event) (any, error) {
	r, ok := e.Payload.(core.Run)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrUnexpectedPayload, e.Payload)
	}

	if err := m.backend.StartRun(r); err != nil {
		return nil, fmt.Errorf("failed to start run %s: %w", r.ID, err)
	}
	m.deps.RunContext.SetRun(r)
	m.deps.Logger.Info("Run started", "run", r.ID, "seed", r.Seed, "vehicles", r.Vehicles)
	return nil, nil
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(core.Snapshot)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrUnexpectedPayload, e.Payload)
	}

	start := time.Now()
	var errs []error
	if err := m.backend.PublishSnapshot(s); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if m.deps.Influx != nil {
		if err := m.deps.Influx.WriteSnapshot(s); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	m.lastWrite.Store(int64(time.Since(start)))
	m.deps.RunContext.Observe(s)

	return nil, errors.Join(errs...)
}

// Publisher hands snapshots to the dispatcher.
type Publisher struct {
	d *dispatcher.Dispatcher
}

// NewPublisher creates a Publisher for d.
func NewPublisher(d *dispatcher.Dispatcher) *Publisher {
	return &Publisher{d: d}
}

// StartRun dispatches the run header synchronously.
func (p *Publisher) StartRun(r core.Run) error {
	_, err := p.d.Dispatch(dispatcher.Event{Command: CommandStartRun, Payload: r, Timestamp: r.StartTime})
	return err
}

// Publish queues one snapshot.
func (p *Publisher) Publish(s core.Snapshot) error {
	_, err := p.d.Dispatch(dispatcher.Event{Command: CommandSnapshot, Tick: s.Tick, Payload: s, Timestamp: s.Time})
	return err
}
