package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldreport/reporting-api/internal/core/ports"
)

const defaultIdempotencyTTL = 24 * time.Hour

// pendingMarker is the value of a claimed key whose report does not exist yet.
const pendingMarker = "pending"

// claimAttempts bounds the retries when a held key expires between SETNX and GET.
const claimAttempts = 3

// releaseScript deletes a key only while it still holds the pending marker,
// so a late Release cannot drop a completed mapping.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore maps a client-supplied Idempotency-Key to the report it created.
// Key format: idem:report:<user_id>:<key>. The value is "pending" until the
// report is stored, then the report id.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. A non-positive ttl falls back to 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim sets the key to the pending marker with SETNX. Only one caller can win.
func (s *IdempotencyStore) Claim(ctx context.Context, userID, key string) (bool, string, error) {
	k := s.key(userID, key)
	for i := 0; i < claimAttempts; i++ {
		won, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return false, "", fmt.Errorf("idempotency claim: %w", err)
		}
		if won {
			return true, "", nil
		}

		held, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, "", fmt.Errorf("idempotency claim: %w", err)
		}
		return false, reportIDFrom(held), nil
	}
	return false, "", errors.New("idempotency claim: key kept expiring")
}

// Complete replaces the pending marker with reportID and restarts the TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key, reportID string) error {
	if err := s.client.Set(ctx, s.key(userID, key), reportID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release drops a claim that is still pending.
func (s *IdempotencyStore) Release(ctx context.Context, userID, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(userID, key)}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(userID, key string) string {
	return fmt.Sprintf("idem:report:%s:%s", userID, key)
}

func reportIDFrom(held string) string {
	if held == pendingMarker {
		return ""
	}
	return held
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)
