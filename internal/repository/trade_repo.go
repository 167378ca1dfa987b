package repository

import (
	"context"
	"errors"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTradeNotFound = errors.New("trade not found")
	// ErrStatusMismatch is returned by UpdateIfStatus when the trade exists
	// but is no longer in the expected status
	ErrStatusMismatch = errors.New("trade status mismatch")
)

// TradeStats holds aggregated trade figures for one user
type TradeStats struct {
	Total         int64           `json:"total"`
	Active        int64           `json:"active"`
	Won           int64           `json:"won"`
	Lost          int64           `json:"lost"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
}

// TradeRepository handles trade data access
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create creates a new trade
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

// GetByID retrieves a trade by ID
func (r *TradeRepository) GetByID(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.WithContext(ctx).First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetByUserIDPaginated retrieves trades of a user, newest first.
// An empty status returns trades in any status.
func (r *TradeRepository) GetByUserIDPaginated(ctx context.Context, userID uint, status models.TradeStatus, page, pageSize int) ([]models.Trade, int64, error) {
	var trades []models.Trade
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Trade{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := query.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&trades)

	return trades, total, result.Error
}

// GetActiveByUserID retrieves active trades of a user, soonest expiration first
func (r *TradeRepository) GetActiveByUserID(ctx context.Context, userID uint) ([]models.Trade, error) {
	var trades []models.Trade
	result := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, models.TradeStatusActive).
		Order("expiration_time ASC").
		Find(&trades)
	return trades, result.Error
}

// GetExpired retrieves active trades whose expiration time is at or before now.
// A non-positive limit returns every match.
func (r *TradeRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	query := r.db.WithContext(ctx).
		Where("status = ? AND expiration_time <= ?", models.TradeStatusActive, now).
		Order("expiration_time ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&trades)
	return trades, result.Error
}

// UpdateIfStatus loads the trade, applies fn and writes it back only while the
// stored status still equals expected. The status predicate is part of the
// UPDATE statement, so of two concurrent callers at most one succeeds; the
// other gets ErrStatusMismatch. Called within Repositories.Transaction the row
// stays locked between the read and the write.
func (r *TradeRepository) UpdateIfStatus(ctx context.Context, id uint, expected models.TradeStatus, fn func(*models.Trade) error) (*models.Trade, error) {
	db := r.db.WithContext(ctx)

	var trade models.Trade
	result := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND status = ?", id, expected).
		First(&trade)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusMismatch
	}

	if err := fn(&trade); err != nil {
		return nil, err
	}

	result = db.Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"exit_price": trade.ExitPrice,
			"profit":     trade.Profit,
			"status":     trade.Status,
			"result":     trade.Result,
			"closed_at":  trade.ClosedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrStatusMismatch
	}

	return &trade, nil
}

// GetStats aggregates the trades of a user
func (r *TradeRepository) GetStats(ctx context.Context, userID uint) (*TradeStats, error) {
	var row struct {
		Total         int64
		Active        int64
		Won           int64
		Lost          int64
		TotalInvested decimal.Decimal
		TotalProfit   decimal.Decimal
	}

	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN result = ? THEN 1 ELSE 0 END), 0) AS won,
			COALESCE(SUM(CASE WHEN status = ? AND result <> ? THEN 1 ELSE 0 END), 0) AS lost,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS total_invested,
			COALESCE(SUM(CASE WHEN status = ? THEN profit ELSE 0 END), 0) AS total_profit`,
			models.TradeStatusActive,
			models.TradeResultWin,
			models.TradeStatusCompleted, models.TradeResultWin,
			models.TradeStatusCompleted,
			models.TradeStatusCompleted,
		).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &TradeStats{
		Total:         row.Total,
		Active:        row.Active,
		Won:           row.Won,
		Lost:          row.Lost,
		TotalInvested: row.TotalInvested,
		TotalProfit:   row.TotalProfit,
	}, nil
}
