package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/citygrid/trafficsim/internal/api"
	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/internal/server"
	"github.com/citygrid/trafficsim/internal/sim"
	"github.com/spf13/viper"
)

// loadLayout reads the configured layout file, or builds the default city
// with the configured signal timings.
func loadLayout(cfg config.SimConfig) (*layout.Layout, error) {
	if cfg.LayoutFile != "" {
		return layout.Load(cfg.LayoutFile)
	}
	l := layout.Default()
	for i := range l.Semaphores {
		s := &l.Semaphores[i]
		if cfg.GreenDuration > 0 {
			s.GreenDuration = cfg.GreenDuration
		}
		if cfg.RedDuration > 0 {
			s.RedDuration = cfg.RedDuration
		}
		s.YellowDuration = cfg.YellowDuration
	}
	return l, nil
}

// newSimulation builds a simulation whose snapshots feed p.
func (a *app) newSimulation(p *pipeline) (*sim.Simulation, error) {
	cfg := config.GetSimConfig()
	l, err := loadLayout(cfg)
	if err != nil {
		return nil, err
	}

	runID := fmt.Sprintf("%s_%d", a.sessionStart.Format("20060102_150405"), cfg.Seed)
	s, err := sim.New(l, sim.Config{
		RunID:    runID,
		Seed:     cfg.Seed,
		Vehicles: cfg.Vehicles,
	}, sim.WithLogger(a.logger), sim.WithPublisher(p.publisher))
	if err != nil {
		return nil, err
	}

	if err := p.publisher.StartRun(s.Info()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return s, nil
}

func runCommand(ctx context.Context, a *app) error {
	p, err := a.startPipeline(ctx)
	if err != nil {
		return err
	}

	s, err := a.newSimulation(p)
	if err != nil {
		_ = p.backend.Close()
		p.dispatcher.Close()
		p.monitor.Stop()
		return err
	}
	defer s.Close()

	cfg := config.GetSimConfig()
	summary, runErr := s.Run(ctx, cfg.MaxTicks, cfg.TickInterval)
	switch {
	case runErr == nil:
	case errors.Is(runErr, sim.ErrTickLimit):
		a.logger.Warn("Tick limit reached before every vehicle arrived",
			"maxTicks", cfg.MaxTicks, "arrived", summary.Arrived)
		runErr = nil
	case errors.Is(runErr, context.Canceled):
		a.logger.Info("Run interrupted", "tick", summary.Ticks)
		runErr = nil
	}

	if err := p.finish(summary); err != nil && runErr == nil {
		runErr = err
	}
	if err := s.Verify(); err != nil {
		a.logger.Error("Grid invariant violated at end of run", "error", err)
	}
	return runErr
}

func serveCommand(ctx context.Context, a *app) error {
	p, err := a.startPipeline(ctx)
	if err != nil {
		return err
	}

	s, err := a.newSimulation(p)
	if err != nil {
		_ = p.backend.Close()
		p.dispatcher.Close()
		p.monitor.Stop()
		return err
	}
	defer s.Close()

	started := time.Now()
	srv := server.New(server.Dependencies{Sim: s, Logger: a.logger})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(config.GetServerConfig().Address)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		serveErr = srv.Shutdown(shutdownCtx)
		cancel()
		<-errCh
	case serveErr = <-errCh:
	}

	if err := p.finish(s.Summary(time.Since(started))); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

func pollCommand(ctx context.Context, a *app) error {
	client := api.New(viper.GetString("api.serverUrl"))
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}

	cfg := config.GetSimConfig()
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for polls := uint64(0); cfg.MaxTicks == 0 || polls < cfg.MaxTicks; polls++ {
		positions, err := client.Positions(ctx)
		if err != nil {
			return ignoreCanceled(ctx, err)
		}
		status, err := client.Status(ctx)
		if err != nil {
			return ignoreCanceled(ctx, err)
		}
		a.logger.Info("Positions",
			"tick", status.Ticks, "arrived", status.Arrived, "positions", positions)
		if status.Finished {
			a.logger.Info("Run finished", "run", status.Run.ID, "ticks", status.Ticks)
			return logVehicles(ctx, a, client)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	a.logger.Warn("Poll limit reached", "polls", cfg.MaxTicks)
	return logVehicles(ctx, a, client)
}

// ignoreCanceled drops err once ctx is done, so an interrupted poll exits cleanly.
func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// logVehicles logs how many vehicles the server reports in each state.
func logVehicles(ctx context.Context, a *app, client *api.Client) error {
	vehicles, err := client.Vehicles(ctx)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, v := range vehicles {
		counts[v.State.String()]++
	}
	a.logger.Info("Vehicle states", "vehicles", len(vehicles), "states", counts)
	return nil
}
