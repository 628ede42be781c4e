// Package cache holds short-lived reconcile results for the HTTP API.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResultKey is the cache key for one creator's reconciled view on a chain.
func ResultKey(chain, creator string) string {
	return "pollkeeper:result:" + strings.ToLower(strings.TrimSpace(chain)) + ":" + strings.ToLower(strings.TrimSpace(creator))
}

func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	if s == nil {
		return out, false, nil
	}
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// A stale encoding is a miss, not a failure.
		_ = s.Delete(ctx, key)
		return out, false, nil
	}
	return out, true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}
