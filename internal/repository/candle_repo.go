package repository

import (
	"context"
	"errors"
	"time"

	"github.com/options-simulator/internal/models"
	"gorm.io/gorm"
)

// CandleRepository handles candle data access
type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new CandleRepository
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// GetByInstrumentAndTime retrieves the candle of an instrument starting at bucket.
// It returns nil without error when no candle exists yet.
func (r *CandleRepository) GetByInstrumentAndTime(ctx context.Context, instrumentID uint, bucket time.Time) (*models.Candle, error) {
	var candle models.Candle
	result := r.db.WithContext(ctx).Where("instrument_id = ? AND open_time = ?", instrumentID, bucket).First(&candle)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &candle, nil
}

// Save creates or updates a candle
func (r *CandleRepository) Save(ctx context.Context, candle *models.Candle) error {
	return r.db.WithContext(ctx).Save(candle).Error
}

// GetLatest retrieves the most recent candles of an instrument, oldest first
func (r *CandleRepository) GetLatest(ctx context.Context, instrumentID uint, limit int) ([]models.Candle, error) {
	var candles []models.Candle
	result := r.db.WithContext(ctx).Where("instrument_id = ?", instrumentID).
		Order("open_time DESC").
		Limit(limit).
		Find(&candles)
	if result.Error != nil {
		return nil, result.Error
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}
