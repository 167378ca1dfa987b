package repository

import (
	"context"

	"github.com/options-simulator/internal/models"
	"gorm.io/gorm"
)

// BalanceRepository handles the append-only balance record log.
// It offers no update or delete operations.
type BalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new BalanceRepository
func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Append inserts a new balance record
func (r *BalanceRepository) Append(ctx context.Context, record *models.BalanceRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByUserID retrieves all balance records for a user, oldest first
func (r *BalanceRepository) GetByUserID(ctx context.Context, userID uint) ([]models.BalanceRecord, error) {
	var records []models.BalanceRecord
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&records)
	return records, result.Error
}

// GetByUserIDPaginated retrieves balance records with pagination, newest first
func (r *BalanceRepository) GetByUserIDPaginated(ctx context.Context, userID uint, page, pageSize int) ([]models.BalanceRecord, int64, error) {
	var records []models.BalanceRecord
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.BalanceRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&records)

	return records, total, result.Error
}
