package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxlink/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage archives ticks and instrument metadata in SQLite
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance at the given path
func NewStorage(path string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.TickRecord{}, &domain.InstrumentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Tick Operations
// ======================================================================================

// ArchiveTick persists one tick
func (s *Storage) ArchiveTick(symbol string, t domain.Tick) error {
	rec := domain.NewTickRecord(symbol, t)
	return s.db.Create(rec).Error
}

// RecentTicks returns up to limit of the newest ticks for a symbol,
// oldest first
func (s *Storage) RecentTicks(symbol string, limit int) ([]domain.Tick, error) {
	var recs []domain.TickRecord
	err := s.db.
		Where("symbol = ?", symbol).
		Order("time DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order
	ticks := make([]domain.Tick, len(recs))
	for i, rec := range recs {
		ticks[len(recs)-1-i] = rec.Tick()
	}
	return ticks, nil
}

// CountTicks returns the number of archived ticks for a symbol
func (s *Storage) CountTicks(symbol string) (int64, error) {
	var count int64
	err := s.db.Model(&domain.TickRecord{}).Where("symbol = ?", symbol).Count(&count).Error
	return count, err
}

// PurgeTicksBefore deletes archived ticks older than the cutoff and
// returns how many were removed
func (s *Storage) PurgeTicksBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("time < ?", cutoff).Delete(&domain.TickRecord{})
	return res.RowsAffected, res.Error
}

// ======================================================================================
// Instrument Operations
// ======================================================================================

// UpsertInstrument creates or updates instrument metadata
func (s *Storage) UpsertInstrument(spec domain.InstrumentSpec) error {
	return s.db.Save(domain.NewInstrumentRecord(spec)).Error
}

// GetInstrument retrieves instrument metadata by symbol
func (s *Storage) GetInstrument(symbol string) (*domain.InstrumentSpec, error) {
	var rec domain.InstrumentRecord
	err := s.db.First(&rec, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	spec := rec.Spec()
	return &spec, nil
}

// GetAllInstruments retrieves all stored instrument metadata
func (s *Storage) GetAllInstruments() ([]domain.InstrumentSpec, error) {
	var recs []domain.InstrumentRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}

	specs := make([]domain.InstrumentSpec, len(recs))
	for i := range recs {
		specs[i] = recs[i].Spec()
	}
	return specs, nil
}
