package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix = "refresh:"
	revokedKeyPrefix = "revoked:"
)

// RedisStore implements RefreshStore and RevocationRegistry on a single
// Redis namespace. Exact-key lookups only; no secondary indexes.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

/* ===================== refresh secrets ===================== */

func (s *RedisStore) Put(ctx context.Context, secret string, e Entry, ttl time.Duration) error {
	if secret == "" {
		return errors.New("tokenstore: secret is required")
	}
	if ttl <= 0 {
		return errors.New("tokenstore: ttl must be > 0")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode refresh entry: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, refreshKeyPrefix+secret, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store refresh secret: %w", err)
	}
	if !ok {
		return ErrSecretExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, secret string) (Entry, error) {
	raw, err := s.rdb.Get(ctx, refreshKeyPrefix+secret).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		// Store timeouts surface as errors, never as not-found.
		return Entry{}, fmt.Errorf("read refresh secret: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode refresh entry: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Delete(ctx context.Context, secret string) error {
	if err := s.rdb.Del(ctx, refreshKeyPrefix+secret).Err(); err != nil {
		return fmt.Errorf("delete refresh secret: %w", err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, fn func(secret string, e Entry) error) error {
	iter := s.rdb.Scan(ctx, 0, refreshKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		secret := key[len(refreshKeyPrefix):]

		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired between SCAN and GET.
				continue
			}
			return fmt.Errorf("scan read %s: %w", key, err)
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("scan decode %s: %w", key, err)
		}
		if err := fn(secret, e); err != nil {
			return err
		}
	}
	return iter.Err()
}

/* ===================== revocation markers ===================== */

func (s *RedisStore) MarkRevoked(ctx context.Context, instanceID string, ttl time.Duration) error {
	if instanceID == "" {
		return errors.New("tokenstore: instance id is required")
	}
	if ttl <= 0 {
		// Nothing left to revoke; the credential fails on expiry alone.
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKeyPrefix+instanceID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark revoked: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, instanceID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+instanceID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked: %w", err)
	}
	return n > 0, nil
}
