package grant

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("grant: invalid argument")
	// ErrNotFound also covers grants owned by another caller; callers
	// must not be able to confirm a foreign grant's existence.
	ErrNotFound = errors.New("grant: not found")
	// ErrInvalidGrant covers missing and expired refresh secrets alike,
	// deliberately indistinguishable from "never existed".
	ErrInvalidGrant = errors.New("grant: invalid grant")
	// ErrAlreadyRevoked signals an explicit double-revocation attempt.
	// Revocation is intentionally not idempotent.
	ErrAlreadyRevoked = errors.New("grant: already revoked")
)

// Ledger is the durable, queryable record of every issued grant and the
// source of truth for "is this grant still active". Writes here are the
// durability boundary: downstream effects must not proceed when a
// ledger write fails.
type Ledger interface {
	// Create appends a new row. Issuance never updates an existing one.
	Create(ctx context.Context, g Grant) error

	// ListActiveByUser returns active grants only, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]Grant, error)

	// FindByID and FindByInstanceID are scoped to the owning caller:
	// a grant belonging to another identity is ErrNotFound even when
	// the selector technically matches.
	FindByID(ctx context.Context, userID, grantID string) (Grant, error)
	FindByInstanceID(ctx context.Context, userID, instanceID string) (Grant, error)

	// FindActiveByInstanceID is the unscoped lookup used by refresh
	// bookkeeping and the reconciliation sweep, where possession of the
	// secret is the credential.
	FindActiveByInstanceID(ctx context.Context, instanceID string) (Grant, error)

	// Revoke marks the grant terminal. The UPDATE ... WHERE is_active
	// predicate is the atomicity boundary for concurrent revokes:
	// exactly one wins, the loser observes ErrAlreadyRevoked.
	Revoke(ctx context.Context, userID, grantID, revokedBy, reason string, now time.Time) (Grant, error)

	// RecordRefresh rotates the active instance id and bumps usage
	// bookkeeping on the grant owning originalInstanceID.
	RecordRefresh(ctx context.Context, originalInstanceID, newInstanceID string, now time.Time) error
}
