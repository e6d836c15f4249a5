package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/internal/storage/memory"
	pgstorage "github.com/citygrid/trafficsim/internal/storage/postgres"
	sqlitestorage "github.com/citygrid/trafficsim/internal/storage/sqlite"
	wsstorage "github.com/citygrid/trafficsim/internal/storage/websocket"
	"github.com/spf13/viper"
)

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	projector := geo.NewProjector(config.GetGeoConfig())

	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Config:    config.GetDBConfig(),
			Logger:    logger,
			Projector: projector,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, projector, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "websocket":
		wsURL := storageCfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(viper.GetString("api.serverUrl")) + "/api"
		}
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.WebSocket.Secret,
		}, logger), nil

	case "none":
		logger.Info("Storage disabled")
		return storage.Nop{}, nil

	case "", "memory":
		logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
