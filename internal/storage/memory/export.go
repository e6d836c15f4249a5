package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/citygrid/trafficsim/pkg/core"
)

// Trip follows one vehicle from its start lot to its target lot.
type Trip struct {
	Vehicle   int     `json:"vehicle"`
	From      int     `json:"from"`
	To        int     `json:"to"`
	Moves     int     `json:"moves"`               // ticks on which it changed cell
	ArrivedAt *uint64 `json:"arrivedAt,omitempty"` // first tick seen arrived
}

// RunExport is the file written at the end of a run.
type RunExport struct {
	Run       core.Run        `json:"run"`
	Summary   core.RunSummary `json:"summary"`
	Snapshots uint64          `json:"snapshots"`
	Trips     []Trip          `json:"trips"`
	Final     *core.Snapshot  `json:"final"`
}

var fileSafe = strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_")

// exportName is <run id>_<start time>.json, plus .gz when compressing.
func (b *Backend) exportName() string {
	name := fileSafe.Replace(b.run.ID) + "_" + b.run.StartTime.Format("20060102_150405") + ".json"
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

// exportJSON writes the finished run. Callers hold b.mu.
func (b *Backend) exportJSON(summary core.RunSummary) error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, b.exportName())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.CompressOutput {
		gz = gzip.NewWriter(f)
		gz.Name = strings.TrimSuffix(filepath.Base(path), ".gz")
		w = gz
	}

	err = json.NewEncoder(w).Encode(RunExport{
		Run:       *b.run,
		Summary:   summary,
		Snapshots: b.snapshots,
		Trips:     b.tripList(),
		Final:     b.latest,
	})
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("compress export: %w", err)
		}
	}
	b.lastExportPath = path
	return nil
}
