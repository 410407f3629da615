package core

import "time"

const SystemTypeAdaptive = "ADAPTIVE"

// CalibrationRecord is the persisted result of a calibration run
type CalibrationRecord struct {
	ID                  string       `json:"id" gorm:"primaryKey"`
	CalibrationDate     time.Time    `json:"calibration_date" gorm:"index"`
	Parameters          ParameterSet `json:"parameters" gorm:"serializer:json;type:text"`
	Metrics             Metrics      `json:"metrics" gorm:"serializer:json;type:text"`
	Score               float64      `json:"score"`
	PeriodsUsed         []string     `json:"periods_used" gorm:"serializer:json;type:text"`
	SystemType          string       `json:"system_type"`
	IterationsPerformed int          `json:"iterations_performed"`
}

type RecordFilter func(record CalibrationRecord) bool

// ResultStorage persists calibration records
type ResultStorage interface {
	SaveRecord(record *CalibrationRecord) error
	Records(filters ...RecordFilter) ([]*CalibrationRecord, error)
}

func WithSystemType(systemType string) RecordFilter {
	return func(record CalibrationRecord) bool {
		return record.SystemType == systemType
	}
}

func WithMinScore(score float64) RecordFilter {
	return func(record CalibrationRecord) bool {
		return record.Score >= score
	}
}

func WithCalibratedAfter(t time.Time) RecordFilter {
	return func(record CalibrationRecord) bool {
		return record.CalibrationDate.After(t)
	}
}
