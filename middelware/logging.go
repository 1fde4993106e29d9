package middelware

import (
	"net/http"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware provides request logging
type LoggingMiddleware struct {
	logger logger.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: log,
	}
}

// StructuredLogger provides structured logging for requests
func (m *LoggingMiddleware) StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"query":      raw,
			"status":     c.Writer.Status(),
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if userID, ok := c.Get(ContextUserID); ok {
			fields["user_id"] = userID
		}
		if tenantID, ok := c.Get(ContextTenantID); ok {
			fields["tenant_id"] = tenantID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := m.logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("HTTP request completed with error")
		case c.Writer.Status() >= 400:
			entry.Warn("HTTP request completed with client error")
		default:
			entry.Info("HTTP request completed")
		}
	}
}

// Recovery middleware with logging
func (m *LoggingMiddleware) Recovery() gin.HandlerFunc {
	return gin.RecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, recovered interface{}) {
		m.logger.Errorf("Panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse(http.StatusInternalServerError, "An unexpected error occurred", &models.APIError{
			Type: "InternalError",
		}))
	})
}
