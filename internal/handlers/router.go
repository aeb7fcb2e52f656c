package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Registrar is implemented by every handler in this package.
type Registrar interface {
	Register(r gin.IRouter)
}

// NewRouter builds the gin engine shared by the services: recovery, access log, X-User-Id and /health.
func NewRouter(service string, logger *zap.Logger, handlers ...Registrar) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger), UserContext())

	r.GET("/health", Health(service))
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
