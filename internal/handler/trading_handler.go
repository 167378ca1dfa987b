package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/models"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/pkg/response"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradingHandler handles trade API requests. It only calls into the trade
// engine; settlement happens in the service.
type TradingHandler struct {
	tradingService *service.TradingService
	logger         *zap.Logger
}

// NewTradingHandler creates a new TradingHandler
func NewTradingHandler(tradingService *service.TradingService, logger *zap.Logger) *TradingHandler {
	return &TradingHandler{
		tradingService: tradingService,
		logger:         logger.Named("trading_handler"),
	}
}

// OpenTradeRequest is the body of an open trade request.
// Either instrument_id or symbol identifies the instrument.
type OpenTradeRequest struct {
	InstrumentID    uint            `json:"instrument_id"`
	Symbol          string          `json:"symbol"`
	Direction       string          `json:"direction" binding:"required,oneof=buy sell BUY SELL"`
	Amount          decimal.Decimal `json:"amount"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,gt=0"`
}

// OpenTradeResponse is returned for a newly opened trade
type OpenTradeResponse struct {
	TradeID        uint            `json:"trade_id"`
	Reference      string          `json:"reference"`
	Symbol         string          `json:"symbol"`
	Direction      string          `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	ExpirationTime time.Time       `json:"expiration_time"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// OpenTrade opens a timed trade for a user
// POST /api/v1/users/:user_id/trades
func (h *TradingHandler) OpenTrade(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req OpenTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.InstrumentID == 0 && req.Symbol == "" {
		response.BadRequest(c, "symbol or instrument_id is required")
		return
	}

	result, err := h.tradingService.OpenTrade(c.Request.Context(), &service.OpenTradeRequest{
		UserID:          userID,
		InstrumentID:    req.InstrumentID,
		Symbol:          req.Symbol,
		Direction:       models.TradeType(strings.ToLower(req.Direction)),
		Amount:          req.Amount,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	trade := result.Trade
	response.Created(c, OpenTradeResponse{
		TradeID:        trade.ID,
		Reference:      trade.Reference,
		Symbol:         trade.Symbol,
		Direction:      string(trade.Type),
		Amount:         trade.Amount,
		EntryPrice:     trade.EntryPrice,
		ExpirationTime: trade.ExpirationTime,
		NewBalance:     result.NewBalance,
	})
}

// GetActiveTrades returns the active trades of a user
// GET /api/v1/users/:user_id/trades/active
func (h *TradingHandler) GetActiveTrades(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	trades, err := h.tradingService.GetActiveTrades(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, trades)
}

// GetTradeHistory returns the trades of a user, optionally filtered by status
// GET /api/v1/users/:user_id/trades?status=active|completed&page=1&page_size=20
func (h *TradingHandler) GetTradeHistory(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	status := models.TradeStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", models.TradeStatusActive, models.TradeStatusCompleted:
	default:
		response.BadRequest(c, "status must be active or completed")
		return
	}

	page, pageSize := response.ParsePage(c, 20, 100)
	trades, total, err := h.tradingService.GetTradeHistory(c.Request.Context(), userID, status, page, pageSize)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.SuccessPaginated(c, trades, total, page, pageSize)
}

// GetStats returns the trading statistics of a user
// GET /api/v1/users/:user_id/stats
func (h *TradingHandler) GetStats(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	stats, err := h.tradingService.GetStats(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, stats)
}

// GetBalance returns the balance of a user
// GET /api/v1/users/:user_id/balance
func (h *TradingHandler) GetBalance(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	balance, err := h.tradingService.GetUserBalance(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// GetTradeResult returns the settlement state of a trade
// GET /api/v1/trades/:trade_id
func (h *TradingHandler) GetTradeResult(c *gin.Context) {
	tradeID, err := parseID(c, "trade_id")
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	result, err := h.tradingService.GetTradeResult(c.Request.Context(), tradeID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, result)
}

// CloseTrade settles an expired trade without waiting for the sweeper
// POST /api/v1/trades/:trade_id/close
func (h *TradingHandler) CloseTrade(c *gin.Context) {
	tradeID, err := parseID(c, "trade_id")
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	result, err := h.tradingService.CloseTrade(c.Request.Context(), tradeID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, result)
}

// PreviewTrade values a trade against the current price
// GET /api/v1/trades/:trade_id/preview
func (h *TradingHandler) PreviewTrade(c *gin.Context) {
	tradeID, err := parseID(c, "trade_id")
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	preview, err := h.tradingService.PreviewProfit(c.Request.Context(), tradeID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, preview)
}

// RegisterRoutes registers trading routes. openLimiter guards trade creation.
func (h *TradingHandler) RegisterRoutes(rg *gin.RouterGroup, openLimiter gin.HandlerFunc) {
	users := rg.Group("/users/:user_id")
	{
		users.POST("/trades", openLimiter, h.OpenTrade)
		users.GET("/trades", h.GetTradeHistory)
		users.GET("/trades/active", h.GetActiveTrades)
		users.GET("/balance", h.GetBalance)
		users.GET("/stats", h.GetStats)
	}

	trades := rg.Group("/trades")
	{
		trades.GET("/:trade_id", h.GetTradeResult)
		trades.POST("/:trade_id/close", h.CloseTrade)
		trades.GET("/:trade_id/preview", h.PreviewTrade)
	}
}
