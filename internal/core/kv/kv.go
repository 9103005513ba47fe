// Package kv defines a small persistent key-value contract with optional
// expiry. Values are JSON encoded.
package kv

import (
	"context"
	"time"
)

// KV is a persistent key-value store. Get on a missing or expired key
// returns an error wrapping sql.ErrNoRows.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context) ([]string, error)
}
