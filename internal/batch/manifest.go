package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pbr-autowire/internal/pbr"
)

// ManifestEntry represents one document in the batch report.
type ManifestEntry struct {
	Document    string        `json:"document"`
	Output      string        `json:"output,omitempty"`
	Material    string        `json:"material,omitempty"`
	Action      string        `json:"action,omitempty"`
	Status      string        `json:"status"`
	Wired       []pbr.Channel `json:"wired"`
	Transferred []string      `json:"transferred,omitempty"`
	Skipped     int           `json:"skipped"`
	Failures    []string      `json:"failures,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Manifest is the report written after a batch run.
type Manifest struct {
	Documents int             `json:"documents"`
	OK        int             `json:"ok"`
	Partial   int             `json:"partial"`
	Failed    int             `json:"failed"`
	Entries   []ManifestEntry `json:"entries"`
}

// NewManifest condenses results into a report.
func NewManifest(results []Result) Manifest {
	m := Manifest{Documents: len(results), Entries: make([]ManifestEntry, len(results))}
	for i, r := range results {
		e := ManifestEntry{
			Document: r.Document,
			Output:   r.Output,
			Material: r.Material,
			Action:   r.Action,
			Status:   r.Status,
			Wired:    []pbr.Channel{},
			Error:    r.Error,
		}
		if r.Summary != nil {
			for _, w := range r.Summary.Wired {
				e.Wired = append(e.Wired, w.Channel)
			}
			e.Transferred = r.Summary.Transferred
			e.Skipped = len(r.Summary.Skipped)
			for _, f := range r.Summary.Failures {
				e.Failures = append(e.Failures, fmt.Sprintf("%s: %s", f.Op, f.Error))
			}
		}
		switch r.Status {
		case StatusOK:
			m.OK++
		case StatusPartial:
			m.Partial++
		default:
			m.Failed++
		}
		m.Entries[i] = e
	}
	return m
}

// WriteManifest writes the batch report as indented JSON.
func WriteManifest(path string, results []Result) error {
	data, err := json.MarshalIndent(NewManifest(results), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
