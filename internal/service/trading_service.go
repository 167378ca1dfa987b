package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/options-simulator/internal/config"
	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/pkg/keygen"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource supplies the latest known price of an instrument
type PriceSource interface {
	GetPrice(ctx context.Context, instrumentID uint) (decimal.Decimal, error)
}

// amountScale is the number of fractional digits kept for stakes
const amountScale = 8

// SettlementEvent describes a trade that has just been completed
type SettlementEvent struct {
	Trade    models.Trade    `json:"trade"`
	Credited decimal.Decimal `json:"credited"`
	Balance  decimal.Decimal `json:"balance"`
}

// SettlementListener is notified after a settlement has committed
type SettlementListener interface {
	OnTradeSettled(event SettlementEvent)
}

// TradingService is the trade engine. It is the only writer of trade outcome
// fields and drives every balance change of the trade lifecycle through the Ledger.
type TradingService struct {
	repos    *repository.Repositories
	prices   PriceSource
	ledger   *Ledger
	logger   *zap.Logger
	listener SettlementListener
	now      func() time.Time

	payoutRate  decimal.Decimal
	minAmount   decimal.Decimal
	maxAmount   decimal.Decimal
	minDuration int
	maxDuration int
}

// NewTradingService creates a new TradingService. A nil now uses time.Now.
func NewTradingService(
	repos *repository.Repositories,
	prices PriceSource,
	ledger *Ledger,
	cfg config.TradingConfig,
	logger *zap.Logger,
	now func() time.Time,
) *TradingService {
	if now == nil {
		now = time.Now
	}
	return &TradingService{
		repos:       repos,
		prices:      prices,
		ledger:      ledger,
		logger:      logger.Named("trading"),
		now:         now,
		payoutRate:  decimal.NewFromFloat(cfg.PayoutRate),
		minAmount:   decimal.NewFromFloat(cfg.MinAmount),
		maxAmount:   decimal.NewFromFloat(cfg.MaxAmount),
		minDuration: cfg.MinDurationMinutes,
		maxDuration: cfg.MaxDurationMinutes,
	}
}

// SetSettlementListener sets the receiver of settlement events
func (s *TradingService) SetSettlementListener(l SettlementListener) {
	s.listener = l
}

// PayoutRate returns the fraction of the stake paid as profit on a win
func (s *TradingService) PayoutRate() decimal.Decimal {
	return s.payoutRate
}

// OpenTradeRequest represents a request to open a trade.
// The instrument is resolved by InstrumentID when set, by Symbol otherwise.
type OpenTradeRequest struct {
	UserID          uint             `json:"-"`
	InstrumentID    uint             `json:"instrument_id"`
	Symbol          string           `json:"symbol"`
	Direction       models.TradeType `json:"direction"`
	Amount          decimal.Decimal  `json:"amount"`
	DurationMinutes int              `json:"duration_minutes"`
}

// OpenTradeResult is the outcome of a successful OpenTrade
type OpenTradeResult struct {
	Trade      *models.Trade   `json:"trade"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// OpenTrade snapshots the instrument price, debits the stake and persists an
// active trade. The debit, its balance record and the trade row commit together.
func (s *TradingService) OpenTrade(ctx context.Context, req *OpenTradeRequest) (*OpenTradeResult, error) {
	if err := s.validateOpen(req); err != nil {
		return nil, err
	}

	inst, err := s.resolveInstrument(ctx, req.InstrumentID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive {
		return nil, ErrInstrumentInactive
	}

	entryPrice, err := s.prices.GetPrice(ctx, inst.ID)
	if err != nil {
		if errors.Is(err, ErrInstrumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	createdAt := s.now().UTC()
	reference, err := keygen.TradeReference(createdAt)
	if err != nil {
		return nil, err
	}

	trade := &models.Trade{
		Reference:       reference,
		UserID:          req.UserID,
		InstrumentID:    inst.ID,
		Symbol:          inst.Symbol,
		Type:            req.Direction,
		Amount:          req.Amount,
		EntryPrice:      entryPrice,
		Status:          models.TradeStatusActive,
		Result:          models.TradeResultPending,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       createdAt,
		ExpirationTime:  createdAt.Add(time.Duration(req.DurationMinutes) * time.Minute),
	}

	var newBalance decimal.Decimal
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		user, err := tx.Users.GetByIDForUpdate(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Balance.LessThan(req.Amount) {
			return ErrInsufficientBalance
		}

		if err := tx.Trades.Create(ctx, trade); err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}

		reason := fmt.Sprintf("Trade opened: %s %s", trade.Symbol, trade.Type)
		record, err := s.ledger.Debit(ctx, tx, req.UserID, req.Amount, reason, &trade.ID)
		if err != nil {
			return err
		}
		newBalance = record.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trade opened",
		zap.Uint("trade_id", trade.ID),
		zap.Uint("user_id", trade.UserID),
		zap.String("symbol", trade.Symbol),
		zap.String("direction", string(trade.Type)),
		zap.String("amount", trade.Amount.String()),
		zap.String("entry_price", trade.EntryPrice.String()),
		zap.Time("expires_at", trade.ExpirationTime),
	)

	return &OpenTradeResult{Trade: trade, NewBalance: newBalance}, nil
}

func (s *TradingService) validateOpen(req *OpenTradeRequest) error {
	if !req.Direction.Valid() {
		return ErrInvalidDirection
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(s.minAmount) || req.Amount.GreaterThan(s.maxAmount) {
		return ErrInvalidAmount
	}
	if !req.Amount.Equal(req.Amount.Truncate(amountScale)) {
		return ErrInvalidAmount
	}
	if req.DurationMinutes < s.minDuration || req.DurationMinutes > s.maxDuration {
		return ErrInvalidDuration
	}
	return nil
}

func (s *TradingService) resolveInstrument(ctx context.Context, id uint, symbol string) (*models.Instrument, error) {
	var (
		inst *models.Instrument
		err  error
	)
	switch {
	case id != 0:
		inst, err = s.repos.Instruments.GetByID(ctx, id)
	case symbol != "":
		inst, err = s.repos.Instruments.GetBySymbol(ctx, strings.ToUpper(symbol))
	default:
		return nil, ErrInstrumentNotFound
	}
	if err != nil {
		if errors.Is(err, repository.ErrInstrumentNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// Settle completes an expired trade against the latest instrument price. A
// trade that does not exist or is no longer active is left alone and nil is
// returned, so concurrent or repeated calls pay out at most once.
func (s *TradingService) Settle(ctx context.Context, tradeID uint) error {
	_, err := s.settle(ctx, tradeID)
	if errors.Is(err, ErrAlreadySettled) || errors.Is(err, ErrTradeNotFound) {
		return nil
	}
	return err
}

func (s *TradingService) settle(ctx context.Context, tradeID uint) (*SettlementEvent, error) {
	trade, err := s.repos.Trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	if !trade.IsActive() {
		return nil, ErrAlreadySettled
	}

	closedAt := s.now().UTC()
	if !trade.IsExpired(closedAt) {
		return nil, ErrNotExpired
	}

	exitPrice, err := s.prices.GetPrice(ctx, trade.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	event := &SettlementEvent{}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		settled, err := tx.Trades.UpdateIfStatus(ctx, tradeID, models.TradeStatusActive, func(t *models.Trade) error {
			s.applyOutcome(t, exitPrice, closedAt)
			return nil
		})
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrStatusMismatch):
				return ErrAlreadySettled
			case errors.Is(err, repository.ErrTradeNotFound):
				return ErrTradeNotFound
			}
			return err
		}
		event.Trade = *settled

		if settled.IsWin() {
			payout := settled.Amount.Add(settled.Profit.Decimal)
			reason := fmt.Sprintf("Trade completed: %s - Profit", settled.Symbol)
			record, err := s.ledger.Credit(ctx, tx, settled.UserID, payout, reason, &settled.ID)
			if err != nil {
				return err
			}
			event.Credited = payout
			event.Balance = record.BalanceAfter
			return nil
		}

		user, err := tx.Users.GetByID(ctx, settled.UserID)
		if err != nil {
			return err
		}
		event.Balance = user.Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			s.logger.Debug("Trade already settled", zap.Uint("trade_id", tradeID))
		}
		return nil, err
	}

	s.logger.Info("Trade settled",
		zap.Uint("trade_id", event.Trade.ID),
		zap.Uint("user_id", event.Trade.UserID),
		zap.String("symbol", event.Trade.Symbol),
		zap.String("result", string(event.Trade.Result)),
		zap.String("entry_price", event.Trade.EntryPrice.String()),
		zap.String("exit_price", exitPrice.String()),
		zap.String("profit", event.Trade.Profit.Decimal.String()),
	)

	if s.listener != nil {
		s.listener.OnTradeSettled(*event)
	}

	return event, nil
}

// applyOutcome fills the settlement fields of an active trade
func (s *TradingService) applyOutcome(t *models.Trade, exitPrice decimal.Decimal, closedAt time.Time) {
	profit := s.CalculatePotentialProfit(t.Amount, t.Type, exitPrice, t.EntryPrice)

	t.ExitPrice = decimal.NewNullDecimal(exitPrice)
	t.Profit = decimal.NewNullDecimal(profit)
	t.Status = models.TradeStatusCompleted
	if IsWinningMove(t.Type, t.EntryPrice, exitPrice) {
		t.Result = models.TradeResultWin
	} else {
		t.Result = models.TradeResultLoss
	}
	if closedAt.Before(t.CreatedAt) {
		closedAt = t.CreatedAt
	}
	t.ClosedAt = &closedAt
}

// CalculatePotentialProfit returns the profit the trade would earn if it
// settled at currentPrice
func (s *TradingService) CalculatePotentialProfit(amount decimal.Decimal, direction models.TradeType, currentPrice, entryPrice decimal.Decimal) decimal.Decimal {
	return PotentialProfit(amount, s.payoutRate, direction, currentPrice, entryPrice)
}

// CloseTrade settles a single trade on request. It is only allowed once the
// trade has expired and goes through the same guard as the expiration sweep.
// Closing a completed trade returns its result unchanged.
func (s *TradingService) CloseTrade(ctx context.Context, tradeID uint) (*TradeResultView, error) {
	if _, err := s.settle(ctx, tradeID); err != nil && !errors.Is(err, ErrAlreadySettled) {
		return nil, err
	}
	return s.GetTradeResult(ctx, tradeID)
}

// ActiveTradeView is an active trade with its live valuation
type ActiveTradeView struct {
	ID                   uint                `json:"id"`
	Reference            string              `json:"reference"`
	InstrumentID         uint                `json:"instrument_id"`
	Symbol               string              `json:"symbol"`
	Direction            models.TradeType    `json:"direction"`
	Amount               decimal.Decimal     `json:"amount"`
	EntryPrice           decimal.Decimal     `json:"entry_price"`
	CurrentPrice         decimal.NullDecimal `json:"current_price"`
	PotentialProfit      decimal.Decimal     `json:"potential_profit"`
	CreatedAt            time.Time           `json:"created_at"`
	ExpirationTime       time.Time           `json:"expiration_time"`
	TimeRemainingSeconds int64               `json:"time_remaining_seconds"`
}

// GetActiveTrades returns the active trades of a user, soonest expiration first
func (s *TradingService) GetActiveTrades(ctx context.Context, userID uint) ([]ActiveTradeView, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	trades, err := s.repos.Trades.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	views := make([]ActiveTradeView, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		view := ActiveTradeView{
			ID:                   t.ID,
			Reference:            t.Reference,
			InstrumentID:         t.InstrumentID,
			Symbol:               t.Symbol,
			Direction:            t.Type,
			Amount:               t.Amount,
			EntryPrice:           t.EntryPrice,
			PotentialProfit:      decimal.Zero,
			CreatedAt:            t.CreatedAt,
			ExpirationTime:       t.ExpirationTime,
			TimeRemainingSeconds: int64(t.TimeRemaining(now) / time.Second),
		}
		if price, err := s.prices.GetPrice(ctx, t.InstrumentID); err == nil {
			view.CurrentPrice = decimal.NewNullDecimal(price)
			view.PotentialProfit = s.CalculatePotentialProfit(t.Amount, t.Type, price, t.EntryPrice)
		}
		views = append(views, view)
	}

	return views, nil
}

// TradeResultView is the settlement state of a trade
type TradeResultView struct {
	ID             uint                `json:"id"`
	Reference      string              `json:"reference"`
	UserID         uint                `json:"user_id"`
	Symbol         string              `json:"symbol"`
	Direction      models.TradeType    `json:"direction"`
	Amount         decimal.Decimal     `json:"amount"`
	Status         models.TradeStatus  `json:"status"`
	Result         models.TradeResult  `json:"result"`
	IsWin          bool                `json:"is_win"`
	Profit         decimal.NullDecimal `json:"profit"`
	EntryPrice     decimal.Decimal     `json:"entry_price"`
	ExitPrice      decimal.NullDecimal `json:"exit_price"`
	CreatedAt      time.Time           `json:"created_at"`
	ExpirationTime time.Time           `json:"expiration_time"`
	ClosedAt       *time.Time          `json:"closed_at"`
}

// GetTradeResult returns the current state of a trade. Active trades report
// status active until the sweeper settles them.
func (s *TradingService) GetTradeResult(ctx context.Context, tradeID uint) (*TradeResultView, error) {
	trade, err := s.repos.Trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return &TradeResultView{
		ID:             trade.ID,
		Reference:      trade.Reference,
		UserID:         trade.UserID,
		Symbol:         trade.Symbol,
		Direction:      trade.Type,
		Amount:         trade.Amount,
		Status:         trade.Status,
		Result:         trade.Result,
		IsWin:          trade.IsWin(),
		Profit:         trade.Profit,
		EntryPrice:     trade.EntryPrice,
		ExitPrice:      trade.ExitPrice,
		CreatedAt:      trade.CreatedAt,
		ExpirationTime: trade.ExpirationTime,
		ClosedAt:       trade.ClosedAt,
	}, nil
}

// ProfitPreview values a trade against the current price
type ProfitPreview struct {
	TradeID              uint             `json:"trade_id"`
	Symbol               string           `json:"symbol"`
	Direction            models.TradeType `json:"direction"`
	Amount               decimal.Decimal  `json:"amount"`
	EntryPrice           decimal.Decimal  `json:"entry_price"`
	CurrentPrice         decimal.Decimal  `json:"current_price"`
	PotentialProfit      decimal.Decimal  `json:"potential_profit"`
	Winning              bool             `json:"winning"`
	TimeRemainingSeconds int64            `json:"time_remaining_seconds"`
	Settled              bool             `json:"settled"`
}

// PreviewProfit returns what an active trade would earn if it settled now.
// For a completed trade the stored exit price and profit are reported.
func (s *TradingService) PreviewProfit(ctx context.Context, tradeID uint) (*ProfitPreview, error) {
	trade, err := s.repos.Trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	preview := &ProfitPreview{
		TradeID:    trade.ID,
		Symbol:     trade.Symbol,
		Direction:  trade.Type,
		Amount:     trade.Amount,
		EntryPrice: trade.EntryPrice,
	}

	if !trade.IsActive() {
		preview.Settled = true
		preview.CurrentPrice = trade.ExitPrice.Decimal
		preview.PotentialProfit = trade.Profit.Decimal
		preview.Winning = trade.IsWin()
		return preview, nil
	}

	price, err := s.prices.GetPrice(ctx, trade.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	preview.CurrentPrice = price
	preview.PotentialProfit = s.CalculatePotentialProfit(trade.Amount, trade.Type, price, trade.EntryPrice)
	preview.Winning = preview.PotentialProfit.IsPositive()
	preview.TimeRemainingSeconds = int64(trade.TimeRemaining(s.now().UTC()) / time.Second)

	return preview, nil
}

// GetUserBalance returns the balance of a user
func (s *TradingService) GetUserBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// GetTradeHistory returns the trades of a user, newest first. An empty status returns all.
func (s *TradingService) GetTradeHistory(ctx context.Context, userID uint, status models.TradeStatus, page, pageSize int) ([]models.Trade, int64, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, 0, err
	}
	return s.repos.Trades.GetByUserIDPaginated(ctx, userID, status, page, pageSize)
}

// TradeStatsView summarises the trading activity of a user
type TradeStatsView struct {
	TotalTrades   int64           `json:"total_trades"`
	ActiveTrades  int64           `json:"active_trades"`
	WonTrades     int64           `json:"won_trades"`
	LostTrades    int64           `json:"lost_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
}

// GetStats returns the trading statistics of a user. Win rate is a
// percentage of completed trades.
func (s *TradingService) GetStats(ctx context.Context, userID uint) (*TradeStatsView, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	stats, err := s.repos.Trades.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &TradeStatsView{
		TotalTrades:   stats.Total,
		ActiveTrades:  stats.Active,
		WonTrades:     stats.Won,
		LostTrades:    stats.Lost,
		WinRate:       decimal.Zero,
		TotalInvested: stats.TotalInvested,
		TotalProfit:   stats.TotalProfit,
	}
	if completed := stats.Won + stats.Lost; completed > 0 {
		view.WinRate = decimal.NewFromInt(stats.Won * 100).Div(decimal.NewFromInt(completed)).Round(2)
	}
	return view, nil
}

func (s *TradingService) ensureUser(ctx context.Context, userID uint) error {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
