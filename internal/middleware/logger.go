package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every request once it has been served.
// Responses with status >= 400 are logged at error level.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		startTime := time.Now()

		// Build full URL
		fullURL := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			fullURL = fullURL + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("url", fullURL),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if statusCode >= 400 {
			logger.Error("Request", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}
