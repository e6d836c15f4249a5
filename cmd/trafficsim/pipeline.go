package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/dispatcher"
	"github.com/citygrid/trafficsim/internal/influx"
	"github.com/citygrid/trafficsim/internal/logging"
	"github.com/citygrid/trafficsim/internal/monitor"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/internal/worker"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/spf13/viper"
)

// pipeline carries every snapshot from the simulation to the sinks.
type pipeline struct {
	app        *app
	dispatcher *dispatcher.Dispatcher
	backend    storage.Backend
	influx     *influx.Manager
	manager    *worker.Manager
	monitor    *monitor.Service
	publisher  *worker.Publisher
}

func (a *app) startPipeline(ctx context.Context) (*pipeline, error) {
	p := &pipeline{app: a}

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	p.dispatcher = d

	backend, err := createStorageBackend(config.GetStorageConfig(), a.logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	if err := backend.Init(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	p.backend = backend

	deps := worker.Dependencies{
		Logger:     a.logger,
		RunContext: a.runContext,
	}

	influxCfg := config.GetInfluxConfig()
	backupPath := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("influx_%s.lp.gz", a.sessionStart.Format("20060102_150405")))
	im := influx.NewManager(influxCfg, backupPath, a.zlog)
	switch err := im.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		a.logger.Debug("InfluxDB disabled")
	case err != nil:
		a.logger.Error("Failed to set up InfluxDB", "error", err)
		_ = im.Close()
	default:
		p.influx = im
		deps.Influx = im
	}

	p.manager = worker.NewManager(deps, backend)
	p.manager.RegisterHandlers(d)
	p.publisher = worker.NewPublisher(d)

	p.monitor = monitor.NewService(monitor.Dependencies{
		Logger:     a.logger,
		RunContext: a.runContext,
		Writer:     p.manager,
		StatusDir:  viper.GetString("logsDir"),
	})
	if err := p.monitor.Start(); err != nil {
		a.logger.Warn("Failed to start status monitor", "error", err)
	}

	return p, nil
}

// finish drains the queued snapshots, ends the run on the backend and
// releases every sink.
func (p *pipeline) finish(summary core.RunSummary) error {
	logger := p.app.logger

	p.dispatcher.Close()
	err := p.manager.EndRun(summary)
	if err != nil {
		logger.Error("Failed to end run", "error", err)
	}

	p.monitor.Stop()
	if p.influx != nil {
		if cerr := p.influx.Close(); cerr != nil {
			logger.Warn("Failed to close InfluxDB", "error", cerr)
		}
	}
	if cerr := p.backend.Close(); cerr != nil {
		logger.Warn("Failed to close storage backend", "error", cerr)
	}

	logger.Info("Run finished",
		"ticks", summary.Ticks,
		"arrived", summary.Arrived,
		"finished", summary.Finished,
		"duration", summary.Duration.Round(time.Millisecond),
		"lastWrite", p.manager.GetLastWriteDuration())
	return err
}
