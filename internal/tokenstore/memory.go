package tokenstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-memory RefreshStore + RevocationRegistry for
// tests and early development. TTLs are honored against an injectable
// clock so expiry behavior is deterministic.
type MemoryStore struct {
	mu sync.Mutex

	Clock func() time.Time

	entries map[string]memoryEntry
	revoked map[string]time.Time // instance id -> marker expiry
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Clock:   time.Now,
		entries: map[string]memoryEntry{},
		revoked: map[string]time.Time{},
	}
}

func (s *MemoryStore) Put(ctx context.Context, secret string, e Entry, ttl time.Duration) error {
	if secret == "" {
		return errors.New("tokenstore: secret is required")
	}
	if ttl <= 0 {
		return errors.New("tokenstore: ttl must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Clock()
	if existing, ok := s.entries[secret]; ok && existing.expiresAt.After(now) {
		return ErrSecretExists
	}
	s.entries[secret] = memoryEntry{entry: e, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, secret string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[secret]
	if !ok || !m.expiresAt.After(s.Clock()) {
		return Entry{}, ErrNotFound
	}
	return m.entry, nil
}

func (s *MemoryStore) Delete(ctx context.Context, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, secret)
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, fn func(secret string, e Entry) error) error {
	s.mu.Lock()
	now := s.Clock()
	live := map[string]Entry{}
	for secret, m := range s.entries {
		if m.expiresAt.After(now) {
			live[secret] = m.entry
		}
	}
	s.mu.Unlock()

	for secret, e := range live {
		if err := fn(secret, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) MarkRevoked(ctx context.Context, instanceID string, ttl time.Duration) error {
	if instanceID == "" {
		return errors.New("tokenstore: instance id is required")
	}
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[instanceID] = s.Clock().Add(ttl)
	return nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, instanceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[instanceID]
	return ok && exp.After(s.Clock()), nil
}
