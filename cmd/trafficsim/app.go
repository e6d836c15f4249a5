package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/logging"
	intOtel "github.com/citygrid/trafficsim/internal/otel"
	"github.com/citygrid/trafficsim/internal/run"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// app holds the process-wide services shared by every command.
type app struct {
	sessionStart time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	zlog        zerolog.Logger

	otelProvider *intOtel.Provider
	logFile      *os.File
	logFilePath  string
	closers      []io.Closer

	runContext *run.Context
}

// newApp loads the config, lets fs override it and sets up logging.
func newApp(configDir string, fs *pflag.FlagSet) (*app, error) {
	a := &app{
		sessionStart: time.Now(),
		slogManager:  logging.NewSlogManager(),
		runContext:   run.NewContext(),
	}

	// console logging until the log file is open
	a.slogManager.Setup(logging.Options{Level: "info"})
	a.logger = a.slogManager.Logger()

	configErr := config.Load(configDir)
	if err := config.BindFlags(fs); err != nil {
		return nil, err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	}

	if err := a.setupLogging(); err != nil {
		return nil, err
	}
	if configErr == nil {
		a.logger.Info("Loaded config", "dir", configDir)
	}
	return a, nil
}

func (a *app) setupLogging() error {
	logsDir := viper.GetString("logsDir")
	level := viper.GetString("logLevel")

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	a.logFilePath = logging.LogFilePath(logsDir, AppName, a.sessionStart)
	// keep the previous file of the same second around
	if _, err := os.Stat(a.logFilePath); err == nil {
		_ = os.Rename(a.logFilePath, a.logFilePath+".old")
	}
	f, err := os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    f,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,

			MetricWriter:   f,
			MetricInterval: otelCfg.MetricInterval,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otelProvider.SetGlobal()
		}
	}

	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		h, closer, err := logging.NewGelfHandler(graylogCfg.Address, level)
		if err != nil {
			a.logger.Error("Failed to set up Graylog output", "error", err)
		} else {
			a.slogManager.AddHandler(h)
			a.closers = append(a.closers, closer)
		}
	}

	var logProvider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		logProvider = a.otelProvider.LoggerProvider()
	}
	a.slogManager.SetRunAttrs(a.runContext.LogAttrs)
	a.slogManager.Setup(logging.Options{
		File:     f,
		Level:    level,
		Format:   viper.GetString("logFormat"),
		Provider: logProvider,
	})
	a.logger = a.slogManager.Logger()
	slog.SetDefault(a.logger)

	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zlevel).With().Timestamp().Str("app", AppName).Logger()

	a.logger.Info("Logging to file", "path", a.logFilePath, "version", CurrentVersion)
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
