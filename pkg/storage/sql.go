package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/raykavin/calibrator/pkg/core"
)

// SQLStorage implements core.ResultStorage on a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// FromSQLite opens (or creates) a sqlite database file
func FromSQLite(path string) (*SQLStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return FromSQL(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// FromSQL creates a new SQL storage instance for any GORM dialect
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&core.CalibrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{
		db: db,
	}, nil
}

// SaveRecord inserts or replaces a record
func (s *SQLStorage) SaveRecord(record *core.CalibrationRecord) error {
	if result := s.db.Save(record); result.Error != nil {
		return fmt.Errorf("failed to save record: %w", result.Error)
	}
	return nil
}

// Records returns the stored records matching every filter, oldest first
func (s *SQLStorage) Records(filters ...core.RecordFilter) ([]*core.CalibrationRecord, error) {
	var records []*core.CalibrationRecord

	result := s.db.Order("calibration_date asc").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", result.Error)
	}

	return lo.Filter(records, func(record *core.CalibrationRecord, _ int) bool {
		return matches(*record, filters)
	}), nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
