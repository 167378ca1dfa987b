package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/pkg/response"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid id")

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// handleError maps service errors onto API responses. Unknown errors are
// logged and reported as internal errors without their details.
func handleError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		response.Error(c, 400, -2001, "insufficient balance")
	case errors.Is(err, service.ErrInstrumentInactive):
		response.Error(c, 400, -2002, "instrument is not available for trading")
	case errors.Is(err, service.ErrNotExpired):
		response.Error(c, 400, -2003, "trade has not expired yet")
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, err.Error())
	case service.IsInvalidArgument(err):
		response.BadRequest(c, err.Error())
	case service.IsNotFound(err):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrPriceUnavailable):
		response.Error(c, 503, -1006, "price not available")
	default:
		_ = c.Error(err)
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.InternalError(c, "internal error")
	}
}
