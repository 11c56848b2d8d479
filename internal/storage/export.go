package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/embq/liftkit/internal/metrics"
)

type ExportData struct {
	RunMetadata
	Samples []metrics.Sample `json:"samples"`
}

// ExportJSON writes a stored run, metadata and series together, as one
// JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSeries(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{RunMetadata: *meta, Samples: samples})
}

// ExportJSONFile is ExportJSON into a file path.
func (s *Store) ExportJSONFile(path, runID string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.ExportJSON(file, runID)
}
