package store

import (
	"context"
	"fmt"
	"time"
)

const leaseKey = "ontolink:run-lease"

// AcquireLease takes the discovery run lease if no other process holds it.
// Returns false when a run is already active somewhere. The TTL bounds how
// long a crashed holder can block the next run.
func (s *CounterStore) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, leaseKey, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease drops the lease if this holder still owns it. A lease that
// expired and was re-taken by another process is left alone.
func (s *CounterStore) ReleaseLease(ctx context.Context, holder string) error {
	current, err := s.client.Get(ctx, leaseKey).Result()
	if err != nil {
		return nil // already expired
	}
	if current != holder {
		return nil
	}
	return s.client.Del(ctx, leaseKey).Err()
}
