package resources

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIdHeader = "X-Request-ID"

// RequestLogger attaches a request scoped logger to the request context, so handlers reach it
// through log.Ctx, and logs the outcome of every request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestId := c.GetHeader(RequestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}

		c.Header(RequestIdHeader, requestId)

		logger := log.Ctx(c.Request.Context()).With().
			Str("request_id", requestId).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		logger.Info().
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	}
}
