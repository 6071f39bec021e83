package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs one line per request. Probe endpoints are logged at
// debug so they do not drown out real traffic.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"http_method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		}
		switch c.Request.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			s.logger.Debug("request", attrs...)
		default:
			s.logger.Info("request", attrs...)
		}
	}
}
