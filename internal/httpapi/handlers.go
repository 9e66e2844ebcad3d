package httpapi

import (
	"errors"
	"net/http"

	"token-service/internal/claims"
	"token-service/internal/config"
	"token-service/internal/grant"
	"token-service/internal/ratelimit"
	"token-service/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Rate limits are enforced here, before any service call, so a limited
// request performs zero store writes.

type Handlers struct {
	Grants  *grant.Service
	Limiter ratelimit.Limiter
	Limits  config.RateLimitConfig
}

// Register wires the token endpoints onto the /v1 group. Refresh is
// deliberately outside the session middleware: possession of the
// refresh secret is the credential.
func (h Handlers) Register(v1 gin.IRouter, sessionMW gin.HandlerFunc) {
	v1.POST("/tokens/refresh", h.RefreshToken)

	authed := v1.Group("/tokens")
	authed.Use(sessionMW)
	{
		authed.POST("", h.IssueToken)
		authed.POST("/revoke", h.RevokeToken)
		authed.GET("", h.ListTokens)
	}
}

// --- Issue ---

type issueRequest struct {
	DisplayName   string   `json:"display_name"`
	Scopes        []string `json:"scopes"`
	WorkspaceID   string   `json:"workspace_id"`
	ExpiresInDays int      `json:"expires_in_days"`
}

func (h Handlers) IssueToken(c *gin.Context) {
	caller, ok := h.sessionCaller(c)
	if !ok {
		return
	}
	if !h.allow(c, ratelimit.OpIssue, caller.UserID, h.Limits.IssueLimit) {
		return
	}

	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Grants.Issue(c.Request.Context(), caller, grant.IssueRequest{
		DisplayName:   req.DisplayName,
		Scopes:        req.Scopes,
		WorkspaceID:   req.WorkspaceID,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshSecret,
		"token_type":    res.TokenType,
		"expires_in":    res.ExpiresIn,
		"scope":         res.Scope,
		"audience":      res.Audience,
		"token_id":      res.InstanceID,
		"grant_id":      res.GrantID,
	})
}

// --- Refresh ---

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) RefreshToken(c *gin.Context) {
	// Unauthenticated endpoint: the window keys on source IP.
	if !h.allow(c, ratelimit.OpRefresh, c.ClientIP(), h.Limits.RefreshLimit) {
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	res, err := h.Grants.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": res.AccessToken,
		"token_type":   res.TokenType,
		"expires_in":   res.ExpiresIn,
		"scope":        res.Scope,
		"audience":     res.Audience,
	})
}

// --- Revoke ---

type revokeRequest struct {
	TokenID      string `json:"token_id"`
	RefreshToken string `json:"refresh_token"`
	GrantID      string `json:"grant_id"`
	Reason       string `json:"reason"`
}

func (h Handlers) RevokeToken(c *gin.Context) {
	caller, ok := h.sessionCaller(c)
	if !ok {
		return
	}
	if !h.allow(c, ratelimit.OpRevoke, caller.UserID, h.Limits.RevokeLimit) {
		return
	}

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Grants.Revoke(c.Request.Context(), caller, grant.RevokeSelector{
		InstanceID:    req.TokenID,
		RefreshSecret: req.RefreshToken,
		GrantID:       req.GrantID,
	}, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "token revoked",
		"token_id": res.InstanceID,
	})
}

// --- List ---

func (h Handlers) ListTokens(c *gin.Context) {
	caller, ok := h.sessionCaller(c)
	if !ok {
		return
	}
	if !h.allow(c, ratelimit.OpList, caller.UserID, h.Limits.ListLimit) {
		return
	}

	out, err := h.Grants.List(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

// --- plumbing ---

func (h Handlers) sessionCaller(c *gin.Context) (grant.Caller, bool) {
	userID, err := session.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return grant.Caller{}, false
	}
	return grant.Caller{
		UserID:         userID,
		OrganizationID: session.OrganizationID(c.Request.Context()),
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	}, true
}

// allow aborts with 429 when the window is exhausted, and fails closed
// with 503 when the limiter backend is unreachable.
func (h Handlers) allow(c *gin.Context, op, who string, limit int) bool {
	ok, err := h.Limiter.Allow(c.Request.Context(), ratelimit.Key(op, who), limit, h.Limits.Window)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
		return false
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return false
	}
	return true
}

// writeError maps service sentinels to HTTP statuses. Messages stay
// generic: no internal ids, and no expired/revoked/never-existed
// distinction for refresh secrets.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grant.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, grant.ErrInvalidGrant):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_grant"})
	case errors.Is(err, grant.ErrAlreadyRevoked):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "already revoked"})
	case errors.Is(err, grant.ErrNotFound), errors.Is(err, claims.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, claims.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
