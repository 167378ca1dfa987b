package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/pkg/response"
	"go.uber.org/zap"
)

// InstrumentHandler handles instrument and price requests
type InstrumentHandler struct {
	priceService *service.PriceService
	logger       *zap.Logger
}

// NewInstrumentHandler creates a new InstrumentHandler
func NewInstrumentHandler(priceService *service.PriceService, logger *zap.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		priceService: priceService,
		logger:       logger.Named("instrument_handler"),
	}
}

// ListInstruments returns every instrument with its current price
// GET /api/v1/instruments
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	instruments, err := h.priceService.ListInstruments(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, instruments)
}

// GetInstrument returns one instrument
// GET /api/v1/instruments/:symbol
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	inst, err := h.priceService.GetInstrument(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, inst)
}

// GetCandles returns the latest candles of an instrument
// GET /api/v1/instruments/:symbol/candles?limit=100
func (h *InstrumentHandler) GetCandles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	candles, err := h.priceService.GetCandles(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, candles)
}

// GetPrices returns the in-memory quote of every instrument
// GET /api/v1/prices
func (h *InstrumentHandler) GetPrices(c *gin.Context) {
	response.Success(c, h.priceService.GetAllPrices())
}

// RegisterRoutes registers instrument routes
func (h *InstrumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	instruments := rg.Group("/instruments")
	{
		instruments.GET("", h.ListInstruments)
		instruments.GET("/:symbol", h.GetInstrument)
		instruments.GET("/:symbol/candles", h.GetCandles)
	}
	rg.GET("/prices", h.GetPrices)
}
