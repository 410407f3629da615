package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
)

const dateIndex = "calibration_date_index"

// BuntStorage implements core.ResultStorage using BuntDB
type BuntStorage struct {
	db  *buntdb.DB
	log logger.Logger
}

// FromMemory creates an in-memory storage
func FromMemory(log logger.Logger) (*BuntStorage, error) {
	return NewBuntStorage(":memory:", log)
}

// FromFile creates a file-based storage
func FromFile(file string, log logger.Logger) (*BuntStorage, error) {
	return NewBuntStorage(file, log)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string, log logger.Logger) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	return withDateIndex(db, log)
}

// withDateIndex indexes db by calibration date. db is closed on failure.
func withDateIndex(db *buntdb.DB, log logger.Logger) (*BuntStorage, error) {
	err := db.CreateIndex(dateIndex, "*", buntdb.IndexJSON("calibration_date"))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create index: %w", err), db.Close())
	}

	return &BuntStorage{
		db:  db,
		log: log,
	}, nil
}

// SaveRecord stores a record under its id, replacing any previous version
func (b *BuntStorage) SaveRecord(record *core.CalibrationRecord) error {
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(record.ID, string(content), nil); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}
		return nil
	})
}

// Records returns the stored records matching every filter, oldest first
func (b *BuntStorage) Records(filters ...core.RecordFilter) ([]*core.CalibrationRecord, error) {
	records := make([]*core.CalibrationRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend(dateIndex, func(key, value string) bool {
			var record core.CalibrationRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				b.log.WithError(err).Warnf("skipping unreadable record %s", key)
				return true
			}

			if matches(record, filters) {
				records = append(records, &record)
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over records: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
