package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/pkg/response"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserHandler handles user registration, deposits and balance history
type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.Named("user_handler"),
	}
}

// Register creates a user funded with the starting balance
// POST /api/v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Created(c, user)
}

// GetUser returns a user
// GET /api/v1/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, user)
}

// Deposit credits virtual funds
// POST /api/v1/users/:user_id/deposit
func (h *UserHandler) Deposit(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	record, err := h.userService.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"amount":  record.Amount,
		"balance": record.BalanceAfter,
	})
}

// GetBalanceHistory returns the balance records of a user, newest first
// GET /api/v1/users/:user_id/balance/history?page=1&page_size=20
func (h *UserHandler) GetBalanceHistory(c *gin.Context) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	page, pageSize := response.ParsePage(c, 20, 100)
	records, total, err := h.userService.GetBalanceHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	response.SuccessPaginated(c, records, total, page, pageSize)
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users", h.Register)
	users := rg.Group("/users/:user_id")
	{
		users.GET("", h.GetUser)
		users.POST("/deposit", h.Deposit)
		users.GET("/balance/history", h.GetBalanceHistory)
	}
}
