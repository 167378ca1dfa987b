package repository

import (
	"context"
	"errors"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
)

// InstrumentRepository handles instrument data access
type InstrumentRepository struct {
	db *gorm.DB
}

// NewInstrumentRepository creates a new InstrumentRepository
func NewInstrumentRepository(db *gorm.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// Create creates a new instrument
func (r *InstrumentRepository) Create(ctx context.Context, instrument *models.Instrument) error {
	return r.db.WithContext(ctx).Create(instrument).Error
}

// GetByID retrieves an instrument by ID
func (r *InstrumentRepository) GetByID(ctx context.Context, id uint) (*models.Instrument, error) {
	var instrument models.Instrument
	result := r.db.WithContext(ctx).First(&instrument, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, result.Error
	}
	return &instrument, nil
}

// GetBySymbol retrieves an instrument by its symbol
func (r *InstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	var instrument models.Instrument
	result := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&instrument)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, result.Error
	}
	return &instrument, nil
}

// List retrieves all instruments ordered by symbol
func (r *InstrumentRepository) List(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	result := r.db.WithContext(ctx).Order("symbol ASC").Find(&instruments)
	return instruments, result.Error
}

// GetActive retrieves instruments open for trading
func (r *InstrumentRepository) GetActive(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	result := r.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol ASC").Find(&instruments)
	return instruments, result.Error
}

// SymbolExists checks if an instrument with the symbol exists
func (r *InstrumentRepository) SymbolExists(ctx context.Context, symbol string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Instrument{}).Where("symbol = ?", symbol).Count(&count).Error
	return count > 0, err
}

// UpdatePrice stores a new current price for an instrument
func (r *InstrumentRepository) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Instrument{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_price":     price,
		"last_price_update": at,
	}).Error
}

// SetActive toggles whether new trades may reference the instrument
func (r *InstrumentRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.db.WithContext(ctx).Model(&models.Instrument{}).Where("id = ?", id).Update("is_active", active).Error
}
