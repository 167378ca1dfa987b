package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserService handles user registration and deposits
type UserService struct {
	repos           *repository.Repositories
	ledger          *Ledger
	startingBalance decimal.Decimal
	maxDeposit      decimal.Decimal
	logger          *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(repos *repository.Repositories, ledger *Ledger, startingBalance, maxDeposit decimal.Decimal, logger *zap.Logger) *UserService {
	return &UserService{
		repos:           repos,
		ledger:          ledger,
		startingBalance: startingBalance,
		maxDeposit:      maxDeposit,
		logger:          logger.Named("users"),
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=100"`
}

// Register creates a user funded with the starting balance. The user row and
// the initial balance record are written in one transaction.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repos.Users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	exists, err = s.repos.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Balance:  decimal.Zero,
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if !s.startingBalance.IsPositive() {
			return nil
		}
		record, err := s.ledger.Credit(ctx, tx, user.ID, s.startingBalance, "Initial balance", nil)
		if err != nil {
			return err
		}
		user.Balance = record.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Deposit credits virtual funds to a user
func (s *UserService) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*models.BalanceRecord, error) {
	if !amount.IsPositive() || (s.maxDeposit.IsPositive() && amount.GreaterThan(s.maxDeposit)) {
		return nil, ErrInvalidAmount
	}

	var record *models.BalanceRecord
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		record, err = s.ledger.Credit(ctx, tx, userID, amount, "Deposit", nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deposit credited",
		zap.Uint("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("balance", record.BalanceAfter.String()),
	)
	return record, nil
}

// GetBalanceHistory returns the balance records of a user, newest first
func (s *UserService) GetBalanceHistory(ctx context.Context, userID uint, page, pageSize int) ([]models.BalanceRecord, int64, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, 0, err
	}
	return s.repos.Balances.GetByUserIDPaginated(ctx, userID, page, pageSize)
}
