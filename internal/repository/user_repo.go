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
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// UserRepository handles user data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetByIDForUpdate retrieves a user by ID holding a row lock until the
// surrounding transaction ends
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ExistsByUsername checks if a username is taken
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail checks if an email is taken
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// AddBalance applies delta to the user's balance in a single statement and
// returns the resulting balance. The update is refused with
// ErrInsufficientFunds when it would leave the balance negative.
func (r *UserRepository) AddBalance(ctx context.Context, id uint, delta decimal.Decimal) (decimal.Decimal, error) {
	db := r.db.WithContext(ctx)

	query := db.Model(&models.User{}).Where("id = ?", id)
	if delta.IsNegative() {
		query = query.Where("balance >= ?", delta.Neg())
	}
	result := query.Updates(map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return decimal.Zero, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, ErrInsufficientFunds
	}

	var user models.User
	if err := db.Select("balance").First(&user, id).Error; err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}
