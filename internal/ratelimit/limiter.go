package ratelimit

import (
	"context"
	"time"
)

// Operation kinds tracked independently per caller.
const (
	OpIssue   = "issue"
	OpRefresh = "refresh"
	OpRevoke  = "revoke"
	OpList    = "list"
)

// Limiter guards token operations against abuse with fixed-window
// counters. Keys combine the operation kind with the caller identity
// (or source IP for unauthenticated refresh).
type Limiter interface {
	// Allow returns false when the counter for key has reached limit
	// within the current window. The check-and-increment is atomic.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Key builds the per-operation per-caller counter key.
func Key(op, caller string) string {
	return "ratelimit:" + op + ":" + caller
}
