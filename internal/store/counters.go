// Package store holds the low-latency heuristic counter rows and the
// scheduler's run lease in Redis.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schemamesh/ontolink/internal/core/model"
)

const counterKeyPrefix = "ontolink:counter:"

// CounterStore persists per-candidate HeuristicCounter rows as Redis hashes.
// Counts survive process restarts so discovery cycles accumulate evidence
// instead of starting over.
type CounterStore struct {
	client *redis.Client
}

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

func NewCounterStore(opts Options) (*CounterStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CounterStore{client: client}, nil
}

func (s *CounterStore) Close() error {
	return s.client.Close()
}

func counterKey(candidateID string) string {
	return counterKeyPrefix + candidateID
}

// Ensure creates a zeroed counter row for a candidate if none exists.
// Existing rows are left untouched.
func (s *CounterStore) Ensure(ctx context.Context, candidateID string) error {
	key := counterKey(candidateID)
	if err := s.client.HSetNX(ctx, key, "count", 0).Err(); err != nil {
		return fmt.Errorf("failed to ensure counter for %s: %w", candidateID, err)
	}
	if err := s.client.HSetNX(ctx, key, "comparisons", 0).Err(); err != nil {
		return err
	}
	if err := s.client.HSetNX(ctx, key, "score", "0").Err(); err != nil {
		return err
	}
	return nil
}

// observeScript folds one observation into the counter hash in a single
// server-side step: both increments, the EMA score update, and the last_seen
// stamp commit together. A sampling pass with nothing to compare records
// last_seen without moving the score. The first real observation sets the
// score directly; later ones decay the previous value.
var observeScript = redis.NewScript(`
local key = KEYS[1]
local matched = tonumber(ARGV[1])
local compared = tonumber(ARGV[2])
local alpha = tonumber(ARGV[3])

local count = redis.call("HINCRBY", key, "count", matched)
local comparisons = redis.call("HINCRBY", key, "comparisons", compared)
local score = tonumber(redis.call("HGET", key, "score")) or 0

if compared > 0 then
	local observed = matched / compared
	if comparisons > compared then
		score = alpha * observed + (1 - alpha) * score
	else
		score = observed
	end
	redis.call("HSET", key, "score", tostring(score))
end
redis.call("HSET", key, "last_seen", ARGV[4])
return {count, comparisons, tostring(score)}
`)

// Observe folds one deep-match pass into the counter. Atomic on the server,
// so concurrent writers serialize in arrival order instead of clobbering
// each other's score read-modify-write.
func (s *CounterStore) Observe(ctx context.Context, candidateID string, matched, compared int64, alpha float64) (model.Heuristic, error) {
	now := time.Now().UTC()
	res, err := observeScript.Run(ctx, s.client,
		[]string{counterKey(candidateID)},
		matched, compared, alpha, now.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return model.Heuristic{}, fmt.Errorf("failed to record observation for %s: %w", candidateID, err)
	}

	row, ok := res.([]interface{})
	if !ok || len(row) != 3 {
		return model.Heuristic{}, fmt.Errorf("unexpected counter reply for %s: %v", candidateID, res)
	}

	h := model.Heuristic{LastSeen: now}
	h.MatchCount, _ = row[0].(int64)
	h.Comparisons, _ = row[1].(int64)
	if str, ok := row[2].(string); ok {
		h.Score, _ = strconv.ParseFloat(str, 64)
	}
	return h, nil
}

// Get loads a counter row. A missing row comes back zeroed, not as an error.
func (s *CounterStore) Get(ctx context.Context, candidateID string) (model.Heuristic, error) {
	fields, err := s.client.HGetAll(ctx, counterKey(candidateID)).Result()
	if err != nil {
		return model.Heuristic{}, fmt.Errorf("failed to load counter for %s: %w", candidateID, err)
	}

	var h model.Heuristic
	if v, ok := fields["count"]; ok {
		h.MatchCount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["comparisons"]; ok {
		h.Comparisons, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["score"]; ok {
		h.Score, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := fields["last_seen"]; ok {
		h.LastSeen, _ = time.Parse(time.RFC3339Nano, v)
	}
	return h, nil
}
