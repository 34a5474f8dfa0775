package models

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T, file string) {
	t.Helper()
	if err := Init(file); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(Close)
}

func TestSaveAndListRuns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history", "loadtest.db")
	openTestDB(t, file)

	run := &Run{
		ID:              "xK3fQ",
		StartedAt:       time.Now(),
		StopReason:      "duration reached",
		DurationSeconds: 61.2,
		TotalStreams:    2,
	}
	results := []StreamResult{
		{Name: "stream2", Endpoint: "rtsp://x/stream2", State: "stopped", UptimeSeconds: 60.1},
		{Name: "stream1", Endpoint: "rtsp://x/stream1", State: "failed", UptimeSeconds: 12.3, ErrorCount: 10, Resolution: "unknown"},
	}
	if err := SaveRun(run, results); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "xK3fQ" || runs[0].TotalStreams != 2 {
		t.Fatalf("runs = %+v", runs)
	}

	got, err := RunResults("xK3fQ")
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %+v", got)
	}
	// ordered by name
	if got[0].Name != "stream1" || got[1].Name != "stream2" {
		t.Errorf("result order = %q, %q", got[0].Name, got[1].Name)
	}
	if got[0].RunID != "xK3fQ" || got[0].ErrorCount != 10 {
		t.Errorf("results[0] = %+v", got[0])
	}

	// Same run id again must not slip through.
	if err := SaveRun(run, nil); err == nil {
		t.Error("duplicate run id was accepted")
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "loadtest.db")
	openTestDB(t, file)
	if err := SaveRun(&Run{ID: "abc12", StartedAt: time.Now()}, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	Close()

	openTestDB(t, file)
	runs, err := ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "abc12" {
		t.Fatalf("runs after reopen = %+v", runs)
	}
}

func TestClosedDatabaseErrors(t *testing.T) {
	Close()
	if err := SaveRun(&Run{ID: "x"}, nil); err == nil {
		t.Error("SaveRun should fail without Init")
	}
	if _, err := ListRuns(5); err == nil {
		t.Error("ListRuns should fail without Init")
	}
	if _, err := RunResults("x"); err == nil {
		t.Error("RunResults should fail without Init")
	}
}
