package tokenstore

import (
	"context"
	"errors"
	"time"

	"token-service/internal/claims"
)

var (
	// ErrNotFound is the normal "secret expired or deleted" outcome for
	// Get; callers must not distinguish it from "never existed".
	ErrNotFound = errors.New("tokenstore: not found")

	// ErrSecretExists flags an attempted overwrite of a live secret.
	// Secrets carry enough entropy that collision means a programming error.
	ErrSecretExists = errors.New("tokenstore: secret already exists")
)

// Entry is the snapshot needed to mint a replacement access credential
// from a refresh secret.
type Entry struct {
	Claims     claims.ClaimSet `json:"claims"`
	InstanceID string          `json:"instance_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RefreshStore maps opaque refresh secrets to claim snapshots.
// Entries self-expire at the grant's configured outer lifetime.
type RefreshStore interface {
	// Put stores the mapping. Overwriting an existing key returns
	// ErrSecretExists.
	Put(ctx context.Context, secret string, e Entry, ttl time.Duration) error
	// Get reads the mapping without consuming it; refresh is
	// non-destructive. A miss returns ErrNotFound.
	Get(ctx context.Context, secret string) (Entry, error)
	// Delete is idempotent; deleting a missing key is not an error.
	Delete(ctx context.Context, secret string) error
	// Scan visits every live entry. Used by the reconciliation sweep.
	Scan(ctx context.Context, fn func(secret string, e Entry) error) error
}

// RevocationRegistry is the expiring deny-list of instance ids that
// resource servers consult before honoring an otherwise-valid credential.
type RevocationRegistry interface {
	// MarkRevoked writes a marker lasting ttl. Callers skip the write
	// when ttl <= 0: the credential is already rejected on expiry alone.
	MarkRevoked(ctx context.Context, instanceID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, instanceID string) (bool, error)
}
