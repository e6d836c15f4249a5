package sim

import (
	"context"
	"time"

	"github.com/citygrid/trafficsim/pkg/core"
)

// Run steps the simulation until every vehicle arrived, ctx is done, or
// maxTicks ticks have been played (zero means no limit). interval paces the
// loop; zero runs as fast as possible.
func (s *Simulation) Run(ctx context.Context, maxTicks uint64, interval time.Duration) (core.RunSummary, error) {
	started := time.Now()

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	var err error
	for s.Running() {
		if maxTicks > 0 && s.Tick() >= maxTicks {
			err = ErrTickLimit
			break
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			break
		}
		s.Step()
	}

	return s.Summary(time.Since(started)), err
}

// Summary reports the run totals so far.
func (s *Simulation) Summary(elapsed time.Duration) core.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.RunSummary{
		Run:      s.run,
		Ticks:    s.tick,
		Arrived:  s.arrived,
		Finished: !s.running,
		Duration: elapsed,
	}
}
