package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nlowell/chainsignal/internal/signal"
)

const (
	signalKeyPrefix = "chainsignal:signal:"
	signalIndexKey  = "chainsignal:signals"
)

// Redis is a Store backed by a shared Redis instance, for deployments
// where several replicas serve the same signal set.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. A zero ttl keeps signals until they
// are deleted explicitly.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

// Put writes the signal under its own key and records the ID in the
// membership index.
func (r *Redis) Put(ctx context.Context, sig *signal.Signal) error {
	if sig == nil || sig.ID == "" {
		return ErrEmptyID
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encoding signal %s: %w", sig.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, signalKeyPrefix+sig.ID, payload, r.ttl)
	pipe.SAdd(ctx, signalIndexKey, sig.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing signal %s: %w", sig.ID, err)
	}
	return nil
}

// Get fetches and decodes a single signal.
func (r *Redis) Get(ctx context.Context, id string) (*signal.Signal, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	payload, err := r.client.Get(ctx, signalKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching signal %s: %w", id, err)
	}

	var sig signal.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return nil, fmt.Errorf("decoding signal %s: %w", id, err)
	}
	return &sig, nil
}

// List resolves the membership index with a single MGET. IDs whose keys
// have expired are pruned from the index as a side effect.
func (r *Redis) List(ctx context.Context) ([]*signal.Signal, error) {
	ids, err := r.client.SMembers(ctx, signalIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reading signal index: %w", err)
	}
	if len(ids) == 0 {
		return []*signal.Signal{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = signalKeyPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching signals: %w", err)
	}

	out := make([]*signal.Signal, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var sig signal.Signal
		if err := json.Unmarshal([]byte(raw), &sig); err != nil {
			continue
		}
		out = append(out, &sig)
	}

	if len(stale) > 0 {
		r.client.SRem(ctx, signalIndexKey, stale...)
	}
	return out, nil
}

// Delete removes the signal key and its index entry.
func (r *Redis) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	deleted, err := r.client.Del(ctx, signalKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("deleting signal %s: %w", id, err)
	}
	r.client.SRem(ctx, signalIndexKey, id)

	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the index cardinality. It may briefly overcount while
// expired entries await pruning by List.
func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, signalIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting signals: %w", err)
	}
	return int(n), nil
}

// Ping checks connectivity to the backend.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
