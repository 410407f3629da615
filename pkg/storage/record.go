package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/raykavin/calibrator/pkg/core"
)

// NewRecord builds the persisted form of the best configuration of a run
func NewRecord(best core.CandidateConfig, periods []core.Period, iterations int, at time.Time) *core.CalibrationRecord {
	return &core.CalibrationRecord{
		ID:              uuid.NewString(),
		CalibrationDate: at.UTC(),
		Parameters:      best.Parameters,
		Metrics:         best.Metrics.JSONSafe(),
		Score:           best.Score,
		PeriodsUsed: lo.Map(periods, func(p core.Period, _ int) string {
			return p.Name
		}),
		SystemType:          core.SystemTypeAdaptive,
		IterationsPerformed: iterations,
	}
}

// SaveJSON writes the record as an indented JSON document, creating the
// parent directory when needed
func SaveJSON(path string, record *core.CalibrationRecord) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, content, 0o644)
}

// LoadJSON reads a record written by SaveJSON
func LoadJSON(path string) (*core.CalibrationRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var record core.CalibrationRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

func matches(record core.CalibrationRecord, filters []core.RecordFilter) bool {
	for _, filter := range filters {
		if !filter(record) {
			return false
		}
	}
	return true
}
