package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/securitylog"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

func newRouter(
	cfg *config.ServerConfig,
	log *zap.Logger,
	security *securitylog.Log,
	middleware []gin.HandlerFunc,
	routes ...RouteRegistrar,
) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxy); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(requestLogger(log), recovery(log, security))
	r.Use(middleware...)

	r.NoRoute(func(c *gin.Context) {
		security.HTTPError("Page not found", c.ClientIP())
		c.JSON(http.StatusNotFound, gin.H{"message": "Page not found"})
	})

	for _, rr := range routes {
		rr.RegisterRoutes(r)
	}
	return r, nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}

func recovery(log *zap.Logger, security *securitylog.Log) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic while serving request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		security.HTTPError("Internal server error", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	})
}
