package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/utils"
)

// StreamReport is one publisher's final line in the report.
type StreamReport struct {
	Name          string  `json:"name"`
	Endpoint      string  `json:"endpoint"`
	State         string  `json:"state"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	ErrorCount    int     `json:"errorCount"`
	Resolution    string  `json:"lastKnownResolution"`
}

// Report is the summary of a finished run. It is logged, written to
// the metrics file and, when history is enabled, persisted.
type Report struct {
	ID                  string         `json:"id"`
	StartedAt           time.Time      `json:"startedAt"`
	StopReason          string         `json:"stopReason"`
	TestDurationSeconds float64        `json:"testDurationSeconds"`
	TotalStreams        int            `json:"totalStreams"`
	Streams             []StreamReport `json:"streams"`
}

// WriteFile writes the report as indented JSON, creating the parent
// directory when needed.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
