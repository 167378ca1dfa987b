package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	priceKeyPrefix     = "price:"
	priceUpdateChannel = "price_updates"
)

// DefaultInstruments are inserted on startup when their symbol is missing
var DefaultInstruments = []models.Instrument{
	{Symbol: "EURUSD", Name: "Euro / US Dollar", Description: "Major currency pair", CurrentPrice: decimal.RequireFromString("1.0850"), IsActive: true},
	{Symbol: "GBPUSD", Name: "British Pound / US Dollar", Description: "Major currency pair", CurrentPrice: decimal.RequireFromString("1.2650"), IsActive: true},
	{Symbol: "USDJPY", Name: "US Dollar / Japanese Yen", Description: "Major currency pair", CurrentPrice: decimal.RequireFromString("148.50"), IsActive: true},
	{Symbol: "BTCUSD", Name: "Bitcoin / US Dollar", Description: "Cryptocurrency", CurrentPrice: decimal.RequireFromString("45000"), IsActive: true},
	{Symbol: "ETHUSD", Name: "Ethereum / US Dollar", Description: "Cryptocurrency", CurrentPrice: decimal.RequireFromString("2500"), IsActive: true},
	{Symbol: "XAUUSD", Name: "Gold / US Dollar", Description: "Precious metal", CurrentPrice: decimal.RequireFromString("1980"), IsActive: true},
}

// Quote is the latest known price of an instrument
type Quote struct {
	InstrumentID uint            `json:"instrument_id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PriceListener is notified after every stored price change
type PriceListener interface {
	OnPriceUpdate(quote Quote)
}

// PriceService is the instrument price store. Prices live in memory for
// lock-free reads by the trade engine, are persisted on the instrument row
// and, when redis is configured, mirrored to a hash per symbol and published
// on the price_updates channel.
type PriceService struct {
	repos          *repository.Repositories
	redis          *redis.Client
	candleInterval time.Duration
	logger         *zap.Logger

	quotes    map[uint]Quote
	quotesMux sync.RWMutex
	listener  PriceListener
}

// NewPriceService creates a new PriceService. redisClient may be nil.
func NewPriceService(repos *repository.Repositories, redisClient *redis.Client, candleInterval time.Duration, logger *zap.Logger) *PriceService {
	if candleInterval <= 0 {
		candleInterval = time.Minute
	}
	return &PriceService{
		repos:          repos,
		redis:          redisClient,
		candleInterval: candleInterval,
		logger:         logger.Named("price"),
		quotes:         make(map[uint]Quote),
	}
}

// SetListener sets the receiver of price updates
func (s *PriceService) SetListener(l PriceListener) {
	s.quotesMux.Lock()
	defer s.quotesMux.Unlock()
	s.listener = l
}

// SeedDefaults inserts the default instruments that do not exist yet and
// returns how many were created
func (s *PriceService) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, def := range DefaultInstruments {
		exists, err := s.repos.Instruments.SymbolExists(ctx, def.Symbol)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		inst := def
		now := time.Now()
		inst.LastPriceUpdate = &now
		if err := s.repos.Instruments.Create(ctx, &inst); err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", def.Symbol, err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info("Seeded default instruments", zap.Int("count", created))
	}
	return created, nil
}

// Load fills the in-memory store from the instrument table
func (s *PriceService) Load(ctx context.Context) error {
	instruments, err := s.repos.Instruments.List(ctx)
	if err != nil {
		return err
	}

	s.quotesMux.Lock()
	for _, inst := range instruments {
		s.quotes[inst.ID] = quoteOf(&inst)
	}
	s.quotesMux.Unlock()

	s.logger.Info("Loaded instrument prices", zap.Int("count", len(instruments)))
	return nil
}

// GetPrice returns the latest price of an instrument
func (s *PriceService) GetPrice(ctx context.Context, instrumentID uint) (decimal.Decimal, error) {
	s.quotesMux.RLock()
	quote, ok := s.quotes[instrumentID]
	s.quotesMux.RUnlock()
	if ok && quote.Price.IsPositive() {
		return quote.Price, nil
	}

	inst, err := s.repos.Instruments.GetByID(ctx, instrumentID)
	if err != nil {
		if errors.Is(err, repository.ErrInstrumentNotFound) {
			return decimal.Zero, ErrInstrumentNotFound
		}
		return decimal.Zero, err
	}
	if !inst.CurrentPrice.IsPositive() {
		return decimal.Zero, ErrPriceUnavailable
	}

	s.quotesMux.Lock()
	s.quotes[inst.ID] = quoteOf(inst)
	s.quotesMux.Unlock()

	return inst.CurrentPrice, nil
}

// GetQuote returns the in-memory quote of an instrument
func (s *PriceService) GetQuote(instrumentID uint) (Quote, bool) {
	s.quotesMux.RLock()
	defer s.quotesMux.RUnlock()
	quote, ok := s.quotes[instrumentID]
	return quote, ok
}

// GetAllPrices returns every known quote ordered by symbol
func (s *PriceService) GetAllPrices() []Quote {
	s.quotesMux.RLock()
	result := make([]Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		result = append(result, quote)
	}
	s.quotesMux.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

// Update stores a new price for the instrument. The instrument row and the
// candle of the current interval are written in one transaction, then the
// in-memory quote, the redis mirror and the listener are updated.
func (s *PriceService) Update(ctx context.Context, inst *models.Instrument, price decimal.Decimal, at time.Time) error {
	if !price.IsPositive() {
		return ErrPriceUnavailable
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Instruments.UpdatePrice(ctx, inst.ID, price, at); err != nil {
			return err
		}
		return s.recordCandle(ctx, tx, inst.ID, price, at)
	})
	if err != nil {
		return fmt.Errorf("failed to store price for %s: %w", inst.Symbol, err)
	}

	inst.CurrentPrice = price
	inst.LastPriceUpdate = &at
	quote := Quote{InstrumentID: inst.ID, Symbol: inst.Symbol, Price: price, UpdatedAt: at}

	s.quotesMux.Lock()
	s.quotes[inst.ID] = quote
	listener := s.listener
	s.quotesMux.Unlock()

	s.mirror(ctx, quote)

	if listener != nil {
		listener.OnPriceUpdate(quote)
	}
	return nil
}

func (s *PriceService) recordCandle(ctx context.Context, tx *repository.Repositories, instrumentID uint, price decimal.Decimal, at time.Time) error {
	bucket := at.UTC().Truncate(s.candleInterval)

	candle, err := tx.Candles.GetByInstrumentAndTime(ctx, instrumentID, bucket)
	if err != nil {
		return err
	}
	if candle == nil {
		candle = &models.Candle{
			InstrumentID:    instrumentID,
			Time:            bucket,
			IntervalSeconds: int(s.candleInterval / time.Second),
			Open:            price,
			High:            price,
			Low:             price,
		}
	}
	candle.Apply(price)

	return tx.Candles.Save(ctx, candle)
}

// mirror writes the quote to redis. Failures are logged, the database stays authoritative.
func (s *PriceService) mirror(ctx context.Context, quote Quote) {
	if s.redis == nil {
		return
	}

	key := priceKeyPrefix + quote.Symbol
	err := s.redis.HSet(ctx, key, map[string]interface{}{
		"instrument_id": quote.InstrumentID,
		"price":         quote.Price.String(),
		"timestamp":     quote.UpdatedAt.UnixMilli(),
	}).Err()
	if err != nil {
		s.logger.Warn("Failed to mirror price to redis", zap.String("symbol", quote.Symbol), zap.Error(err))
		return
	}

	if err := s.redis.Publish(ctx, priceUpdateChannel, fmt.Sprintf("%s:%s", quote.Symbol, quote.Price.String())).Err(); err != nil {
		s.logger.Warn("Failed to publish price update", zap.String("symbol", quote.Symbol), zap.Error(err))
	}
}

// ListInstruments returns all instruments
func (s *PriceService) ListInstruments(ctx context.Context) ([]models.Instrument, error) {
	return s.repos.Instruments.List(ctx)
}

// ActiveInstruments returns instruments open for trading
func (s *PriceService) ActiveInstruments(ctx context.Context) ([]models.Instrument, error) {
	return s.repos.Instruments.GetActive(ctx)
}

// GetInstrument returns an instrument by symbol
func (s *PriceService) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	inst, err := s.repos.Instruments.GetBySymbol(ctx, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrInstrumentNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return inst, nil
}

// GetCandles returns up to limit of the latest candles of an instrument, oldest first
func (s *PriceService) GetCandles(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	inst, err := s.GetInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repos.Candles.GetLatest(ctx, inst.ID, limit)
}

func quoteOf(inst *models.Instrument) Quote {
	quote := Quote{InstrumentID: inst.ID, Symbol: inst.Symbol, Price: inst.CurrentPrice}
	if inst.LastPriceUpdate != nil {
		quote.UpdatedAt = *inst.LastPriceUpdate
	} else {
		quote.UpdatedAt = inst.UpdatedAt
	}
	return quote
}
