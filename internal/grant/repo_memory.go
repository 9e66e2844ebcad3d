package grant

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-memory Ledger for tests and early development.
// It enforces the same caller scoping and active/terminal semantics as
// the Postgres implementation.
type MemoryLedger struct {
	mu sync.Mutex

	grants map[string]Grant
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{grants: map[string]Grant{}}
}

func (l *MemoryLedger) Create(ctx context.Context, g Grant) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grants[g.ID] = g
	return nil
}

func (l *MemoryLedger) ListActiveByUser(ctx context.Context, userID string) ([]Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Grant, 0)
	for _, g := range l.grants {
		if g.UserID == userID && g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *MemoryLedger) FindByID(ctx context.Context, userID, grantID string) (Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.grants[grantID]
	if !ok || g.UserID != userID {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (l *MemoryLedger) FindByInstanceID(ctx context.Context, userID, instanceID string) (Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.grants {
		if g.UserID == userID && (g.InstanceID == instanceID || g.CurrentInstanceID == instanceID) {
			return g, nil
		}
	}
	return Grant{}, ErrNotFound
}

func (l *MemoryLedger) FindActiveByInstanceID(ctx context.Context, instanceID string) (Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.grants {
		if g.IsActive && (g.InstanceID == instanceID || g.CurrentInstanceID == instanceID) {
			return g, nil
		}
	}
	return Grant{}, ErrNotFound
}

func (l *MemoryLedger) Revoke(ctx context.Context, userID, grantID, revokedBy, reason string, now time.Time) (Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.grants[grantID]
	if !ok || g.UserID != userID {
		return Grant{}, ErrNotFound
	}
	if !g.IsActive {
		return Grant{}, ErrAlreadyRevoked
	}
	revokedAt := now
	g.IsActive = false
	g.RevokedAt = &revokedAt
	g.RevokedBy = revokedBy
	g.RevokeReason = reason
	g.UpdatedAt = now
	l.grants[grantID] = g
	return g, nil
}

func (l *MemoryLedger) RecordRefresh(ctx context.Context, originalInstanceID, newInstanceID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, g := range l.grants {
		if g.IsActive && (g.InstanceID == originalInstanceID || g.CurrentInstanceID == originalInstanceID) {
			lastUsed := now
			g.CurrentInstanceID = newInstanceID
			g.LastUsedAt = &lastUsed
			g.UsageCount++
			g.UpdatedAt = now
			l.grants[id] = g
			return nil
		}
	}
	return ErrNotFound
}
