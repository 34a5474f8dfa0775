package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Run is one finished load test.
type Run struct {
	ID              string    `gorm:"type:varchar(16);primary_key" json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	StopReason      string    `gorm:"type:varchar(64)" json:"stopReason"`
	DurationSeconds float64   `json:"durationSeconds"`
	TotalStreams    int       `json:"totalStreams"`
}

// StreamResult is one stream's outcome within a run.
type StreamResult struct {
	ID            uint    `gorm:"primary_key;auto_increment" json:"-"`
	RunID         string  `gorm:"type:varchar(16);index" json:"runId"`
	Name          string  `gorm:"type:varchar(64)" json:"name"`
	Endpoint      string  `gorm:"type:varchar(256)" json:"endpoint"`
	State         string  `gorm:"type:varchar(16)" json:"state"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	ErrorCount    int     `json:"errorCount"`
	Resolution    string  `gorm:"type:varchar(16)" json:"lastKnownResolution"`
}

// SaveRun persists a run and its stream results in one transaction.
func SaveRun(run *Run, results []StreamResult) error {
	if SQL == nil {
		return errors.New("history database is not open")
	}
	return SQL.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		for i := range results {
			results[i].RunID = run.ID
		}
		return tx.Create(&results).Error
	})
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(limit int) ([]Run, error) {
	if SQL == nil {
		return nil, errors.New("history database is not open")
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := SQL.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// RunResults returns the stream results of one run.
func RunResults(runID string) ([]StreamResult, error) {
	if SQL == nil {
		return nil, errors.New("history database is not open")
	}
	var out []StreamResult
	err := SQL.Where("run_id = ?", runID).Order("name").Find(&out).Error
	return out, err
}
