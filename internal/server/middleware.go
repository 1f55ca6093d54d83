package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vsporte/fhm-matches/internal/logger"
)

// requestLogger logs one line per request
func requestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Warn("request failed", fields)
			return
		}
		l.Info("request", fields)
	}
}

func recovery(l *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		l.Error("panic serving request", logger.Fields{"path": c.Request.URL.Path, "panic": rec}, nil)
		fail(c, http.StatusInternalServerError, "internal error")
	})
}

// cors allows any origin
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
