package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/middleware"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/internal/stream"
	"go.uber.org/zap"
)

// Services are the collaborators the HTTP layer calls into
type Services struct {
	Trading *service.TradingService
	Users   *service.UserService
	Prices  *service.PriceService
	Hub     *stream.Hub
}

// BuildInfo is reported by the health endpoint
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NewRouter creates the gin engine with every API route registered.
// A nil openLimiter disables rate limiting of trade creation.
func NewRouter(svc Services, openLimiter *middleware.RateLimiter, build BuildInfo, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())

	limit := func(c *gin.Context) { c.Next() }
	if openLimiter != nil {
		limit = openLimiter.Middleware()
	}

	health := func(c *gin.Context) {
		body := gin.H{
			"status":     "ok",
			"version":    build.Version,
			"commit":     build.Commit,
			"build_time": build.BuildTime,
			"time":       time.Now().Unix(),
		}
		if svc.Trading != nil {
			body["payout_rate"] = svc.Trading.PayoutRate()
		}
		c.JSON(http.StatusOK, body)
	}
	router.GET("/health", health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", health)

		NewUserHandler(svc.Users, logger).RegisterRoutes(v1)
		NewTradingHandler(svc.Trading, logger).RegisterRoutes(v1, limit)
		NewInstrumentHandler(svc.Prices, logger).RegisterRoutes(v1)

		if svc.Hub != nil {
			v1.GET("/stream", func(c *gin.Context) {
				svc.Hub.ServeWS(c.Writer, c.Request)
			})
		}
	}

	return router
}
