package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"token-service/internal/audit"
	"token-service/internal/claims"
	"token-service/internal/config"
	"token-service/internal/grant"
	"token-service/internal/ratelimit"
	"token-service/internal/session"
	"token-service/internal/token"
	"token-service/internal/tokenstore"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSigningSecret = "secret"

type apiEnv struct {
	router *gin.Engine
	ledger *grant.MemoryLedger
	store  *tokenstore.MemoryStore
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := claims.NewMemoryDirectory()
	dir.Users["user-1"] = claims.User{ID: "user-1", Email: "one@example.com"}
	dir.Users["user-2"] = claims.User{ID: "user-2", Email: "two@example.com"}
	dir.OrgMembers["user-1|org-1"] = claims.RoleAdmin
	dir.OrgMembers["user-2|org-1"] = claims.RoleMember

	signer, err := token.NewSigner(config.TokenConfig{
		SigningSecret: testSigningSecret,
		Issuer:        "issuer",
		Audience:      "integrations-api",
		AccessTTL:     time.Hour,
	})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	env := &apiEnv{
		ledger: grant.NewMemoryLedger(),
		store:  tokenstore.NewMemoryStore(),
	}

	svc := grant.NewService(
		claims.NewResolver(dir, "integrations-api"),
		signer,
		env.store,
		env.store,
		env.ledger,
		audit.NewService(audit.NewMemoryRepo()),
		grant.ServiceConfig{},
	)

	h := Handlers{
		Grants:  svc,
		Limiter: ratelimit.NewMemoryLimiter(),
		Limits: config.RateLimitConfig{
			Window:       time.Minute,
			IssueLimit:   3,
			RefreshLimit: 3,
			RevokeLimit:  10,
			ListLimit:    10,
		},
	}

	r := gin.New()
	h.Register(r.Group("/v1"), session.RequireSession(signer))
	env.router = r
	return env
}

func sessionToken(t *testing.T, userID, email, orgID string) string {
	t.Helper()
	now := time.Now()
	c := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "issuer",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        "session-" + userID,
		},
		Email:          email,
		OrganizationID: orgID,
		TokenType:      token.TokenTypeSession,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("sign session token: %v", err)
	}
	return signed
}

func (e *apiEnv) do(t *testing.T, method, path, sessionTok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionTok != "" {
		req.Header.Set("Authorization", "Bearer "+sessionTok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, w.Body.String())
	}
	return out
}

func (e *apiEnv) issue(t *testing.T, sess string, body any) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/tokens", sess, body)
	if w.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody(t, w)
}

func TestIssueEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")

	res := env.issue(t, sess, gin.H{"display_name": "CI", "scopes": []string{"read", "write"}})

	if res["token_type"] != "Bearer" {
		t.Fatalf("token_type = %v", res["token_type"])
	}
	if res["expires_in"] != float64(3600) {
		t.Fatalf("expires_in = %v", res["expires_in"])
	}
	if res["scope"] != "read write" {
		t.Fatalf("scope = %v", res["scope"])
	}
	rt, _ := res["refresh_token"].(string)
	if !token.HasRefreshPrefix(rt) {
		t.Fatalf("refresh_token = %q", rt)
	}
	if res["access_token"] == "" || res["token_id"] == "" || res["grant_id"] == "" {
		t.Fatalf("incomplete response: %v", res)
	}
}

func TestIssueEndpoint_RequiresSession(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tokens", "", gin.H{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIssueEndpoint_ValidationError(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")

	w := env.do(t, http.MethodPost, "/v1/tokens", sess, gin.H{"expires_in_days": 9999})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestIssueEndpoint_RateLimited(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")

	for i := 0; i < 3; i++ {
		env.issue(t, sess, gin.H{})
	}
	w := env.do(t, http.MethodPost, "/v1/tokens", sess, gin.H{})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}

	// The limited request must not have touched the ledger.
	grants, _ := env.ledger.ListActiveByUser(context.Background(), "user-1")
	if len(grants) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(grants))
	}
}

func TestRefreshEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")
	issued := env.issue(t, sess, gin.H{})

	// No session header: possession of the secret is the credential.
	w := env.do(t, http.MethodPost, "/v1/tokens/refresh", "", gin.H{"refresh_token": issued["refresh_token"]})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody(t, w)
	if res["access_token"] == issued["access_token"] {
		t.Fatalf("refresh must mint a new credential")
	}
	if _, ok := res["refresh_token"]; ok {
		t.Fatalf("refresh response must not echo the secret")
	}
	if _, ok := res["token_id"]; ok {
		t.Fatalf("refresh response must not expose a token id")
	}
}

func TestRefreshEndpoint_InvalidGrant(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tokens/refresh", "", gin.H{"refresh_token": "rts_fabricated"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	res := decodeBody(t, w)
	if res["error"] != "invalid_grant" {
		t.Fatalf("error = %v", res["error"])
	}
}

func TestRefreshEndpoint_RateLimitedPerIP(t *testing.T) {
	env := newAPIEnv(t)

	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/v1/tokens/refresh", "", gin.H{"refresh_token": "rts_fabricated"})
	}
	w := env.do(t, http.MethodPost, "/v1/tokens/refresh", "", gin.H{"refresh_token": "rts_fabricated"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRevokeEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")
	issued := env.issue(t, sess, gin.H{})

	w := env.do(t, http.MethodPost, "/v1/tokens/revoke", sess, gin.H{"token_id": issued["token_id"], "reason": "rotation"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody(t, w)
	if res["token_id"] != issued["token_id"] {
		t.Fatalf("token_id = %v", res["token_id"])
	}

	// Second attempt conflicts: revocation is not idempotent.
	w = env.do(t, http.MethodPost, "/v1/tokens/revoke", sess, gin.H{"token_id": issued["token_id"]})
	if w.Code != http.StatusConflict {
		t.Fatalf("second revoke status = %d", w.Code)
	}
}

func TestRevokeEndpoint_SelectorValidation(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")

	w := env.do(t, http.MethodPost, "/v1/tokens/revoke", sess, gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty selector status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/v1/tokens/revoke", sess, gin.H{"token_id": "a", "grant_id": "b"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double selector status = %d", w.Code)
	}
}

func TestRevokeEndpoint_ForeignGrantIsNotFound(t *testing.T) {
	env := newAPIEnv(t)
	owner := sessionToken(t, "user-1", "one@example.com", "org-1")
	other := sessionToken(t, "user-2", "two@example.com", "org-1")
	issued := env.issue(t, owner, gin.H{})

	w := env.do(t, http.MethodPost, "/v1/tokens/revoke", other, gin.H{"token_id": issued["token_id"]})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestListEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	sess := sessionToken(t, "user-1", "one@example.com", "org-1")
	for i := 0; i < 2; i++ {
		env.issue(t, sess, gin.H{"display_name": fmt.Sprintf("token-%d", i)})
	}

	w := env.do(t, http.MethodGet, "/v1/tokens", sess, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody(t, w)
	tokens, ok := res["tokens"].([]any)
	if !ok || len(tokens) != 2 {
		t.Fatalf("tokens = %v", res["tokens"])
	}
	first, _ := tokens[0].(map[string]any)
	if _, leaked := first["instance_id"]; leaked {
		t.Fatalf("listing must not expose instance ids: %v", first)
	}
	if _, leaked := first["current_instance_id"]; leaked {
		t.Fatalf("listing must not expose instance ids: %v", first)
	}
}
