package kv

import (
	"context"
	"log/slog"
	"time"
)

// TieredKV layers an in-process cache over an optional durable tier.
//
// Consistency note: the cache is the most recent writer and reads always
// prefer it. Writes to the durable tier are fire-and-forget; a durable write
// failure is logged and otherwise ignored, so after a crash the durable tier
// may lag by the last few writes. This trade is intentional: conversation
// state is short-lived and losing a turn beats blocking one.
type TieredKV struct {
	cache   KV
	durable KV
}

// NewTiered creates a two-tier KV. durable may be nil, in which case the
// cache serves everything.
func NewTiered(cache, durable KV) *TieredKV {
	return &TieredKV{cache: cache, durable: durable}
}

func (t *TieredKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := t.cache.Get(ctx, key)
	if err == nil && found {
		return val, true, nil
	}
	if t.durable == nil {
		return val, found, err
	}

	val, found, err = t.durable.Get(ctx, key)
	if err != nil {
		slog.Warn("durable tier read failed", "key", key, "error", err)
		return nil, false, nil
	}
	return val, found, nil
}

func (t *TieredKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.cache.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	t.writeThrough(key, value, ttl)
	return nil
}

func (t *TieredKV) Delete(ctx context.Context, key string) error {
	if err := t.cache.Delete(ctx, key); err != nil {
		return err
	}
	if t.durable != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
			defer cancel()
			if err := t.durable.Delete(ctx, key); err != nil {
				slog.Warn("durable tier delete failed", "key", key, "error", err)
			}
		}()
	}
	return nil
}

func (t *TieredKV) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	// Read through before mutating: after a restart the cache is empty while
	// the durable tier still holds the value, and applying fn to a miss
	// would recreate the key from scratch and write the empty result back
	// over the durable copy.
	if t.durable != nil {
		if _, found, err := t.cache.Get(ctx, key); err == nil && !found {
			if val, ok, derr := t.durable.Get(ctx, key); derr != nil {
				slog.Warn("durable tier read failed", "key", key, "error", derr)
			} else if ok {
				err := t.cache.Update(ctx, key, ttl, func(current []byte, found bool) ([]byte, error) {
					if found {
						return current, nil
					}
					return val, nil
				})
				if err != nil {
					return err
				}
			}
		}
	}

	var result []byte
	deleted := false
	err := t.cache.Update(ctx, key, ttl, func(current []byte, found bool) ([]byte, error) {
		next, err := fn(current, found)
		if err != nil {
			return nil, err
		}
		if next == nil {
			deleted = true
			return nil, nil
		}
		result = next
		return next, nil
	})
	if err != nil {
		return err
	}
	if deleted {
		return t.Delete(ctx, key)
	}
	t.writeThrough(key, result, ttl)
	return nil
}

func (t *TieredKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	return t.cache.Keys(ctx, prefix)
}

func (t *TieredKV) Close() error {
	if t.durable != nil {
		if err := t.durable.Close(); err != nil {
			slog.Warn("durable tier close failed", "error", err)
		}
	}
	return t.cache.Close()
}

const durableWriteTimeout = 5 * time.Second

func (t *TieredKV) writeThrough(key string, value []byte, ttl time.Duration) {
	if t.durable == nil || value == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
		defer cancel()
		if err := t.durable.Set(ctx, key, value, ttl); err != nil {
			slog.Warn("durable tier write failed", "key", key, "error", err)
		}
	}()
}
