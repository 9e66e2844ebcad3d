package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"token-service/internal/audit"
	"token-service/internal/claims"
	"token-service/internal/token"
	"token-service/internal/tokenstore"
	"token-service/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultDisplayName = "Access Token"
	maxDisplayNameLen  = 100
	maxReasonLen       = 500
)

var defaultScopes = []string{"read", "execute"}

// Service orchestrates issuance, refresh, revocation and listing of
// delegated access grants.
//
// Consistency contract: the ledger is the authoritative record; the
// expiring store holds capability tokens. Issue writes the secret first
// and rolls it back if the ledger create fails; Revoke writes the
// ledger first and only then touches the expiring store. Divergence is
// cleaned up by the periodic Reconcile sweep, never by cross-store
// locking.
type Service struct {
	resolver *claims.Resolver
	signer   *token.Signer
	secrets  tokenstore.RefreshStore
	registry tokenstore.RevocationRegistry
	ledger   Ledger
	audit    *audit.Service

	defaultGrantDays int
	maxGrantDays     int

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type ServiceConfig struct {
	DefaultGrantDays int
	MaxGrantDays     int
}

func NewService(
	resolver *claims.Resolver,
	signer *token.Signer,
	secrets tokenstore.RefreshStore,
	registry tokenstore.RevocationRegistry,
	ledger Ledger,
	auditSvc *audit.Service,
	cfg ServiceConfig,
) *Service {
	if cfg.DefaultGrantDays <= 0 {
		cfg.DefaultGrantDays = 30
	}
	if cfg.MaxGrantDays <= 0 {
		cfg.MaxGrantDays = 365
	}
	return &Service{
		resolver:         resolver,
		signer:           signer,
		secrets:          secrets,
		registry:         registry,
		ledger:           ledger,
		audit:            auditSvc,
		defaultGrantDays: cfg.DefaultGrantDays,
		maxGrantDays:     cfg.MaxGrantDays,
		clock:            time.Now,
	}
}

// Caller is the authenticated identity performing an operation.
type Caller struct {
	UserID         string
	OrganizationID string
	IPAddress      string
	UserAgent      string
}

/* ===================== ISSUE ===================== */

type IssueRequest struct {
	DisplayName   string
	Scopes        []string
	WorkspaceID   string
	ExpiresInDays int
}

type IssueResult struct {
	AccessToken   string
	RefreshSecret string
	TokenType     string
	ExpiresIn     int64
	Scope         string
	Audience      string
	InstanceID    string
	GrantID       string
}

// Issue mints an access credential plus a paired refresh secret, and
// records the grant. Exactly one Grant row is created per call.
func (s *Service) Issue(ctx context.Context, caller Caller, req IssueRequest) (IssueResult, error) {
	if caller.UserID == "" {
		return IssueResult{}, ErrInvalidArgument
	}
	req, err := s.normalizeIssue(req)
	if err != nil {
		return IssueResult{}, err
	}

	cs, err := s.resolver.Resolve(ctx, caller.UserID, caller.OrganizationID, req.WorkspaceID)
	if err != nil {
		return IssueResult{}, err
	}
	cs.Scopes = req.Scopes

	now := s.clock().UTC()
	signed, minted, err := s.signer.Mint(now, cs)
	if err != nil {
		return IssueResult{}, fmt.Errorf("mint: %w", err)
	}

	secret, err := token.NewRefreshSecret()
	if err != nil {
		return IssueResult{}, err
	}

	outerTTL := time.Duration(req.ExpiresInDays) * 24 * time.Hour
	outerExpiresAt := now.Add(outerTTL)

	if err := s.secrets.Put(ctx, secret, tokenstore.Entry{
		Claims:     cs,
		InstanceID: minted.InstanceID,
		CreatedAt:  now,
	}, outerTTL); err != nil {
		return IssueResult{}, fmt.Errorf("store refresh secret: %w", err)
	}

	g := Grant{
		ID:                uuid.NewString(),
		UserID:            caller.UserID,
		OrganizationID:    cs.OrganizationID,
		WorkspaceID:       cs.WorkspaceID,
		DisplayName:       req.DisplayName,
		InstanceID:        minted.InstanceID,
		CurrentInstanceID: minted.InstanceID,
		Audience:          cs.Audience,
		Scopes:            cs.Scopes,
		IsActive:          true,
		ExpiresAt:         outerExpiresAt,
		Metadata: Metadata{
			IPAddress:  caller.IPAddress,
			UserAgent:  caller.UserAgent,
			CreatedVia: "api",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Create(ctx, g); err != nil {
		// The secret is already live; a grant-less secret is a detectable
		// inconsistency. Roll it back and fail loudly rather than return
		// a token whose grant record does not exist.
		if delErr := s.secrets.Delete(ctx, secret); delErr != nil {
			logger.From(ctx).Error("orphaned refresh secret after ledger failure",
				"grant_id", g.ID, "instance_id", minted.InstanceID, "err", delErr)
		}
		return IssueResult{}, fmt.Errorf("record grant: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.LogIssued(ctx, caller.UserID, caller.IPAddress, g.ID, minted.InstanceID); err != nil {
			logger.From(ctx).Error("audit append failed", "err", err)
		}
	}

	return IssueResult{
		AccessToken:   signed,
		RefreshSecret: secret,
		TokenType:     "Bearer",
		ExpiresIn:     int64(s.signer.AccessTTL().Seconds()),
		Scope:         strings.Join(cs.Scopes, " "),
		Audience:      cs.Audience,
		InstanceID:    minted.InstanceID,
		GrantID:       g.ID,
	}, nil
}

func (s *Service) normalizeIssue(req IssueRequest) (IssueRequest, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		req.DisplayName = defaultDisplayName
	}
	if len(req.DisplayName) > maxDisplayNameLen {
		return IssueRequest{}, ErrInvalidArgument
	}

	if len(req.Scopes) == 0 {
		req.Scopes = append([]string(nil), defaultScopes...)
	}
	for _, sc := range req.Scopes {
		if strings.TrimSpace(sc) == "" || strings.ContainsAny(sc, " \t\n") {
			return IssueRequest{}, ErrInvalidArgument
		}
	}

	if req.ExpiresInDays == 0 {
		req.ExpiresInDays = s.defaultGrantDays
	}
	if req.ExpiresInDays < 1 || req.ExpiresInDays > s.maxGrantDays {
		return IssueRequest{}, ErrInvalidArgument
	}
	return req, nil
}

/* ===================== REFRESH ===================== */

type RefreshResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Scope       string
	Audience    string
	InstanceID  string
}

// Refresh exchanges a refresh secret for a new access credential with a
// fresh instance id. The store read is non-destructive; the secret is
// not rotated. A miss is the normal "expired or revoked" outcome and is
// indistinguishable from a secret that never existed.
func (s *Service) Refresh(ctx context.Context, secret, sourceIP string) (RefreshResult, error) {
	if !token.HasRefreshPrefix(secret) {
		return RefreshResult{}, ErrInvalidGrant
	}

	entry, err := s.secrets.Get(ctx, secret)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return RefreshResult{}, ErrInvalidGrant
		}
		return RefreshResult{}, fmt.Errorf("refresh lookup: %w", err)
	}

	now := s.clock().UTC()
	signed, minted, err := s.signer.Mint(now, entry.Claims)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("mint: %w", err)
	}

	// Rotate the grant's active instance id so a later revocation covers
	// this credential, not just the original minting's.
	grantID := ""
	if err := s.ledger.RecordRefresh(ctx, entry.InstanceID, minted.InstanceID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			// No active grant owns this secret: the ledger is authoritative,
			// so a secret that outlived its grant must not mint credentials.
			// Remove it now rather than waiting for the reconcile sweep.
			if delErr := s.secrets.Delete(ctx, secret); delErr != nil {
				logger.From(ctx).Error("stale refresh secret delete failed",
					"instance_id", entry.InstanceID, "err", delErr)
			}
			return RefreshResult{}, ErrInvalidGrant
		}
		// Transient ledger failure: the refresh still succeeds, but the
		// rotation gap is logged for reconciliation rather than hidden.
		logger.From(ctx).Error("instance id rotation not recorded",
			"original_instance_id", entry.InstanceID, "err", err)
	} else if g, err := s.ledger.FindActiveByInstanceID(ctx, minted.InstanceID); err == nil {
		grantID = g.ID
	}

	if s.audit != nil {
		if err := s.audit.LogRefreshed(ctx, sourceIP, grantID, minted.InstanceID); err != nil {
			logger.From(ctx).Error("audit append failed", "err", err)
		}
	}

	return RefreshResult{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.signer.AccessTTL().Seconds()),
		Scope:       strings.Join(entry.Claims.Scopes, " "),
		Audience:    entry.Claims.Audience,
		InstanceID:  minted.InstanceID,
	}, nil
}

/* ===================== REVOKE ===================== */

// RevokeSelector names the target grant by exactly one of its handles.
type RevokeSelector struct {
	InstanceID    string
	RefreshSecret string
	GrantID       string
}

type RevokeResult struct {
	GrantID    string
	InstanceID string
}

// Revoke marks the grant terminal, writes revocation markers for its
// instance ids scoped to the remaining outer lifetime, and deletes the
// refresh secret when it is reachable. Revoking by grant id, instance
// id, or refresh secret are equivalent: all resolve to the same grant.
func (s *Service) Revoke(ctx context.Context, caller Caller, sel RevokeSelector, reason string) (RevokeResult, error) {
	if caller.UserID == "" {
		return RevokeResult{}, ErrInvalidArgument
	}
	if len(reason) > maxReasonLen {
		return RevokeResult{}, ErrInvalidArgument
	}
	if countSelectors(sel) != 1 {
		return RevokeResult{}, ErrInvalidArgument
	}

	g, secret, err := s.resolveTarget(ctx, caller.UserID, sel)
	if err != nil {
		return RevokeResult{}, err
	}

	now := s.clock().UTC()
	g, err = s.ledger.Revoke(ctx, caller.UserID, g.ID, caller.UserID, reason, now)
	if err != nil {
		// The ledger write is the durability boundary; nothing below
		// runs when it fails, including the secret deletion.
		return RevokeResult{}, err
	}

	// Deny-list the remaining validity window. A marker with ttl <= 0 is
	// skipped: the credential is already rejected on expiry alone.
	ttl := g.ExpiresAt.Sub(now)
	if err := s.registry.MarkRevoked(ctx, g.InstanceID, ttl); err != nil {
		return RevokeResult{}, fmt.Errorf("revocation marker: %w", err)
	}
	if g.CurrentInstanceID != "" && g.CurrentInstanceID != g.InstanceID {
		if err := s.registry.MarkRevoked(ctx, g.CurrentInstanceID, ttl); err != nil {
			return RevokeResult{}, fmt.Errorf("revocation marker: %w", err)
		}
	}

	if secret != "" {
		if err := s.secrets.Delete(ctx, secret); err != nil {
			logger.From(ctx).Error("refresh secret delete failed after revoke",
				"grant_id", g.ID, "err", err)
		}
	}

	if s.audit != nil {
		if err := s.audit.LogRevoked(ctx, caller.UserID, caller.IPAddress, g.ID, g.InstanceID, reason); err != nil {
			logger.From(ctx).Error("audit append failed", "err", err)
		}
	}

	return RevokeResult{GrantID: g.ID, InstanceID: g.InstanceID}, nil
}

// resolveTarget maps the selector to a grant, always scoped to the
// caller. The returned secret is non-empty when the selector made the
// refresh secret reachable.
func (s *Service) resolveTarget(ctx context.Context, userID string, sel RevokeSelector) (Grant, string, error) {
	switch {
	case sel.GrantID != "":
		g, err := s.ledger.FindByID(ctx, userID, sel.GrantID)
		return g, "", err
	case sel.InstanceID != "":
		g, err := s.ledger.FindByInstanceID(ctx, userID, sel.InstanceID)
		return g, "", err
	default:
		entry, err := s.secrets.Get(ctx, sel.RefreshSecret)
		if err != nil {
			if errors.Is(err, tokenstore.ErrNotFound) {
				// Generic: do not reveal whether the secret ever existed.
				return Grant{}, "", ErrNotFound
			}
			return Grant{}, "", fmt.Errorf("revoke lookup: %w", err)
		}
		g, err := s.ledger.FindByInstanceID(ctx, userID, entry.InstanceID)
		return g, sel.RefreshSecret, err
	}
}

func countSelectors(sel RevokeSelector) int {
	n := 0
	if sel.InstanceID != "" {
		n++
	}
	if sel.RefreshSecret != "" {
		n++
	}
	if sel.GrantID != "" {
		n++
	}
	return n
}

/* ===================== LIST ===================== */

// List returns sanitized summaries of the caller's active grants,
// newest first.
func (s *Service) List(ctx context.Context, caller Caller) ([]Summary, error) {
	if caller.UserID == "" {
		return nil, ErrInvalidArgument
	}
	grants, err := s.ledger.ListActiveByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.Summary())
	}
	return out, nil
}

/* ===================== RECONCILE ===================== */

// Reconcile deletes refresh secrets whose owning grant is revoked or
// missing. The ledger wins on divergence; the sweep runs periodically
// instead of synchronous cross-store locking.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	removed := 0
	err := s.secrets.Scan(ctx, func(secret string, e tokenstore.Entry) error {
		_, err := s.ledger.FindActiveByInstanceID(ctx, e.InstanceID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.secrets.Delete(ctx, secret); err != nil {
			return err
		}
		logger.From(ctx).Info("orphaned refresh secret removed", "instance_id", e.InstanceID)
		removed++
		return nil
	})
	return removed, err
}

// RunReconciler runs Reconcile on a fixed interval until ctx is done.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.Reconcile(ctx); err != nil {
				logger.From(ctx).Error("reconcile sweep failed", "err", err)
			} else if n > 0 {
				logger.From(ctx).Info("reconcile sweep", "removed", n)
			}
		}
	}
}
