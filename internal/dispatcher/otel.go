package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/citygrid/trafficsim/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

func newInstruments(m metric.Meter, depths func(func(string, int))) (*instruments, error) {
	var (
		inst instruments
		err  error
	)

	inst.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered route"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(cmd string, n int) {
			o.ObserveInt64(inst.queueSize, int64(n), metric.WithAttributes(attribute.String("command", cmd)))
		})
		return nil
	}, inst.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	inst.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Events handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	inst.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Events dropped on a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return &inst, nil
}
