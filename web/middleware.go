package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler = gin.HandlerFunc
type Router = gin.IRouter

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
)

// RequestID reuses the caller's X-Request-ID or mints a uuid.
func RequestID() Handler {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Set(RequestIDKey, id)
		c.Next()
	}
}

// AccessLog logs one line per request after it completes: info for 2xx/3xx,
// warn for 4xx, error for 5xx.
func AccessLog(l *slog.Logger) Handler {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		l.LogAttrs(c.Request.Context(), level, "http_access",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("ip", c.ClientIP()),
			slog.String("req_id", c.GetString(RequestIDKey)),
		)
	}
}

// Problem writes an RFC 7807 body with the request id as instance.
func Problem(c *gin.Context, status int, detail string) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, gin.H{
		"type":     "about:blank",
		"title":    http.StatusText(status),
		"status":   status,
		"detail":   detail,
		"instance": c.GetString(RequestIDKey),
	})
}

// RecoveryProblem turns a handler panic into a 500 problem response.
func RecoveryProblem(l *slog.Logger) Handler {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.Error("panic in handler", "error", rec, "req_id", c.GetString(RequestIDKey))
				Problem(c, http.StatusInternalServerError, "unexpected server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
