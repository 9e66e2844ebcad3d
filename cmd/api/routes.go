package main

import (
	"database/sql"
	"net/http"
	"time"

	"token-service/internal/config"
	"token-service/internal/grant"
	"token-service/internal/httpapi"
	"token-service/internal/ratelimit"
	"token-service/internal/session"
	"token-service/internal/token"
	"token-service/pkg/utils"

	"github.com/gin-gonic/gin"
)

type registerDeps struct {
	signer  *token.Signer
	grants  *grant.Service
	limiter ratelimit.Limiter
	limits  config.RateLimitConfig
	db      *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := httpapi.Handlers{
		Grants:  deps.grants,
		Limiter: deps.limiter,
		Limits:  deps.limits,
	}
	h.Register(r.Group("/v1"), session.RequireSession(deps.signer))
}
