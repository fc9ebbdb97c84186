// Package store provides key/value persistence for copy-trading state.
//
// Values are JSON documents addressed by string keys. Backends only move
// bytes; Load and Save handle encoding and the "missing key means default"
// convention.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"copytrader/internal/config"
	apperrors "copytrader/internal/errors"
)

// KV is the persistence collaborator used by the trading service.
type KV interface {
	// Get returns the stored bytes, or apperrors.ErrDataNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Load decodes the value at key into a T. A missing key yields def.
func Load[T any](ctx context.Context, kv KV, key string, def T) (T, error) {
	raw, err := kv.Get(ctx, key)
	if apperrors.Is(err, apperrors.ErrDataNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, apperrors.NewStoreError("json", "decode", key, err)
	}
	return v, nil
}

// Save encodes value as JSON and stores it at key.
func Save[T any](ctx context.Context, kv KV, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewStoreError("json", "encode", key, err)
	}
	return kv.Put(ctx, key, raw)
}

// Key helpers for the layout shared by every backend.

// UserStateKey addresses a user's book.
func UserStateKey(userID string) string {
	return "user:" + userID + ":state"
}

// UserNotificationsKey addresses a user's notification inbox.
func UserNotificationsKey(userID string) string {
	return "user:" + userID + ":notifications"
}

// UsersKey addresses the index of known user IDs.
const UsersKey = "users"

// UserIDFromStateKey extracts the user ID from a state key.
func UserIDFromStateKey(key string) (string, bool) {
	if !strings.HasPrefix(key, "user:") || !strings.HasSuffix(key, ":state") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, "user:"), ":state")
	return id, id != ""
}

// Open builds the backend selected by cfg.
func Open(cfg config.StoreConfig) (KV, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
