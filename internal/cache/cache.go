// Package cache provides the static feature cache: a TTL-bounded mapping from
// lawyer ID to the case-independent feature subset {T,G,Q,R}.
//
// T is cached even though it depends on the case area — a deliberate staleness
// trade-off justified by the Bayesian smoothing and the low per-lawyer area
// churn. Writers of lawyer state (KPI sync, profile edits, review submission)
// must invalidate the lawyer's entry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// DefaultTTL bounds the lifetime of a cached static feature record.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "match:cache:"

// Store is the capability set the ranker needs. A miss is not an error; the
// second return of Get distinguishes the two.
type Store interface {
	Get(ctx context.Context, lawyerID string) (model.StaticFeatures, bool, error)
	Put(ctx context.Context, lawyerID string, f model.StaticFeatures, ttl time.Duration) error
	Invalidate(ctx context.Context, lawyerID string) error
}

// Redis is the production adapter backed by go-redis.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the cached static features for a lawyer, if present.
func (r *Redis) Get(ctx context.Context, lawyerID string) (model.StaticFeatures, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+lawyerID).Bytes()
	if err == redis.Nil {
		return model.StaticFeatures{}, false, nil
	}
	if err != nil {
		return model.StaticFeatures{}, false, fmt.Errorf("cache: get %s: %w", lawyerID, err)
	}
	var f model.StaticFeatures
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.StaticFeatures{}, false, fmt.Errorf("cache: decode %s: %w", lawyerID, err)
	}
	return f, true, nil
}

// Put writes the static features with a TTL. Overwrite is permitted.
func (r *Redis) Put(ctx context.Context, lawyerID string, f model.StaticFeatures, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", lawyerID, err)
	}
	if err := r.client.Set(ctx, keyPrefix+lawyerID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %w", lawyerID, err)
	}
	return nil
}

// Invalidate drops the lawyer's entry. Idempotent.
func (r *Redis) Invalidate(ctx context.Context, lawyerID string) error {
	if err := r.client.Del(ctx, keyPrefix+lawyerID).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", lawyerID, err)
	}
	return nil
}

// Memory is an in-process adapter for tests and single-node deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	features model.StaticFeatures
	expires  time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// SetClock overrides the time source, for TTL tests.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) Get(_ context.Context, lawyerID string) (model.StaticFeatures, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[lawyerID]
	if !ok || m.now().After(e.expires) {
		delete(m.entries, lawyerID)
		return model.StaticFeatures{}, false, nil
	}
	return e.features, true, nil
}

func (m *Memory) Put(_ context.Context, lawyerID string, f model.StaticFeatures, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[lawyerID] = memoryEntry{features: f, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, lawyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, lawyerID)
	return nil
}

// Noop caches nothing: every read misses, every write succeeds. Used when no
// Redis is configured; ranking then recomputes all features per request.
type Noop struct{}

func (Noop) Get(context.Context, string) (model.StaticFeatures, bool, error) {
	return model.StaticFeatures{}, false, nil
}

func (Noop) Put(context.Context, string, model.StaticFeatures, time.Duration) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }
