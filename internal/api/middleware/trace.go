package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/shared/id"
)

// TraceHeader carries the request ID across the daemon boundary.
// Callers may supply their own; otherwise one is generated per request.
const TraceHeader = "X-Request-ID"

// traceKey is the gin context key holding the request ID.
const traceKey = "request_id"

// RequestID returns the ID assigned to the current request. Empty when
// the Trace middleware is not installed.
func RequestID(c *gin.Context) string {
	return c.GetString(traceKey)
}

// Trace tags every request with an ID, echoes it in the response, and
// writes one access log line after the handler runs. Successful requests
// log at debug so a polling client does not flood the daemon log.
func Trace(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(TraceHeader)
		if reqID == "" {
			reqID = id.NewRequestID().String()
		}
		c.Set(traceKey, reqID)
		c.Header(TraceHeader, reqID)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500 || len(c.Errors) > 0:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= 400:
			logger.Info("Request rejected", fields...)
		default:
			logger.Debug("Request completed", fields...)
		}
	}
}
