package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/geowhisper/towers/internal/core/ports"
)

// maxUpdateAttempts bounds optimistic retries when another writer touches
// the key between WATCH and EXEC.
const maxUpdateAttempts = 8

// SessionStore implements ports.KeyValueStore and ports.AtomicUpdater on Valkey. Every write resets
// the key's TTL, so idle sessions expire on their own.
type SessionStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewSessionStore creates a session store sharing client. A zero ttl keeps
// keys forever.
func NewSessionStore(client valkey.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Get returns the value of key, or ports.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		return "", mapErr(err)
	}
	return v, nil
}

// Set stores value under key.
func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	if s.ttl <= 0 {
		return s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Build()).Error()
	}
	return s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Ex(s.ttl).Build()).Error()
}

// Update runs fn as a WATCH/MULTI/EXEC transaction on a dedicated
// connection. A concurrent write to key aborts EXEC and fn runs again on the
// fresh value.
func (s *SessionStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	for range maxUpdateAttempts {
		var conflict bool
		err := s.client.Dedicated(func(c valkey.DedicatedClient) error {
			if err := c.Do(ctx, c.B().Watch().Key(key).Build()).Error(); err != nil {
				return err
			}

			cur, err := c.Do(ctx, c.B().Get().Key(key).Build()).ToString()
			found := err == nil
			if valkey.IsValkeyNil(err) {
				err = nil
			}
			if err != nil {
				_ = c.Do(ctx, c.B().Unwatch().Build()).Error()
				return err
			}

			next, write, err := fn(cur, found)
			if err != nil || !write {
				_ = c.Do(ctx, c.B().Unwatch().Build()).Error()
				return err
			}

			set := c.B().Set().Key(key).Value(next).Build()
			if s.ttl > 0 {
				set = c.B().Set().Key(key).Value(next).Ex(s.ttl).Build()
			}
			resps := c.DoMulti(ctx, c.B().Multi().Build(), set, c.B().Exec().Build())
			for _, r := range resps[:2] {
				if err := r.Error(); err != nil {
					return fmt.Errorf("%w: %w", ports.ErrWriteFailed, err)
				}
			}
			if err := resps[2].Error(); err != nil {
				if valkey.IsValkeyNil(err) {
					conflict = true
					return nil
				}
				return fmt.Errorf("%w: %w", ports.ErrWriteFailed, err)
			}
			return nil
		})
		if err != nil || !conflict {
			return err
		}
	}
	return fmt.Errorf("update %s: %w", key, ports.ErrUpdateConflict)
}
