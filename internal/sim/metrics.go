package sim

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/citygrid/trafficsim/internal/sim"

type metrics struct {
	ticks   metric.Int64Counter
	moves   metric.Int64Counter
	blocked metric.Int64Counter
	runAttr metric.MeasurementOption

	arrived metric.Registration
	release sync.Once
}

// newMetrics registers the simulation instruments on the global meter
// (no-op if not configured).
func newMetrics(s *Simulation) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{
		runAttr: metric.WithAttributes(attribute.String("run", s.run.ID)),
	}

	var err error
	out.ticks, err = m.Int64Counter("sim.ticks",
		metric.WithDescription("Ticks played"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	out.moves, err = m.Int64Counter("sim.moves",
		metric.WithDescription("Vehicle moves"))
	if err != nil {
		return nil, fmt.Errorf("creating moves counter: %w", err)
	}
	out.blocked, err = m.Int64Counter("sim.blocked",
		metric.WithDescription("Vehicle turns without a legal move"))
	if err != nil {
		return nil, fmt.Errorf("creating blocked counter: %w", err)
	}

	arrived, err := m.Int64ObservableGauge("sim.vehicles.arrived",
		metric.WithDescription("Vehicles that reached their target"))
	if err != nil {
		return nil, fmt.Errorf("creating arrived gauge: %w", err)
	}
	out.arrived, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(arrived, int64(s.Arrived()), out.runAttr)
			return nil
		},
		arrived,
	)
	if err != nil {
		return nil, fmt.Errorf("registering arrived callback: %w", err)
	}
	return out, nil
}

// unregister drops the arrived callback so the meter stops holding the
// simulation. Safe to call more than once.
func (m *metrics) unregister() error {
	var err error
	m.release.Do(func() {
		err = m.arrived.Unregister()
	})
	return err
}

func (m *metrics) record(res StepResult) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1, m.runAttr)
	m.moves.Add(ctx, int64(res.Moved), m.runAttr)
	m.blocked.Add(ctx, int64(res.Waiting), m.runAttr)
}
