// Package websocket streams every snapshot to a live consumer.
package websocket

import (
	"log/slog"

	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/citygrid/trafficsim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run data over WebSocket.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// StartRun sends the run header and waits for server ack.
// The header is replayed after a reconnect.
func (b *Backend) StartRun(run core.Run) error {
	data, err := streaming.Marshal(streaming.TypeStartRun, run)
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.startMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// PublishSnapshot hands s to the writer without waiting. If the previous
// snapshot has not been written yet, s replaces it.
func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	data, err := streaming.Marshal(streaming.TypeSnapshot, s)
	if err != nil {
		return err
	}
	b.conn.sendSnapshot(data)
	return nil
}

// EndRun sends the summary and waits for server ack.
func (b *Backend) EndRun(summary core.RunSummary) error {
	data, err := streaming.Marshal(streaming.TypeEndRun, summary)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)
	}

	// Forget the header regardless of error.
	b.conn.mu.Lock()
	b.conn.startMsg = nil
	b.conn.mu.Unlock()

	return err
}

// Superseded counts snapshots replaced before they were written.
func (b *Backend) Superseded() uint64 {
	return b.conn.superseded.Load()
}
