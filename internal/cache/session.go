// Package cache provides agent session memory backed by Redis.
// When Redis becomes unreachable it switches, once and for the rest of the
// process lifetime, to an in-process map.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"

	"go.uber.org/zap"
)

// DefaultTTL is the expiry applied to saved entries when none is given
const DefaultTTL = time.Hour

// Backend names reported by Mode
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrCacheMiss is returned by a Store when a key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Store is the external key-value service used while memory is healthy
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CorruptEntryError reports a stored value that is not valid JSON
type CorruptEntryError struct {
	Key string
	Err error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("session memory: malformed value at %s: %v", e.Key, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }

// SessionMemory stores JSON values namespaced by agent and session.
//
// The in-process fallback keeps entries until the process exits. It does not
// enforce TTLs and never evicts, so memory grows with the number of distinct
// keys written after the downgrade.
type SessionMemory struct {
	store Store

	mu         sync.RWMutex
	degraded   bool
	degradedAt time.Time
	local      map[string]string

	now func() time.Time
	log *zap.Logger
}

// Option configures a SessionMemory
type Option func(*SessionMemory)

// WithClock overrides the clock used to stamp the downgrade
func WithClock(now func() time.Time) Option {
	return func(m *SessionMemory) { m.now = now }
}

// NewSessionMemory creates session memory over store. A nil store starts
// directly in memory mode.
func NewSessionMemory(store Store, opts ...Option) *SessionMemory {
	m := &SessionMemory{
		store: store,
		local: make(map[string]string),
		now:   time.Now,
		log:   logging.Named("memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if store == nil {
		m.degraded = true
		m.degradedAt = m.now()
	}
	return m
}

// Key builds the namespaced key for an entry
func Key(agentName, sessionID, key string) string {
	return fmt.Sprintf("agent:%s:%s:%s", agentName, sessionID, key)
}

// Save serializes value and writes it under (agentName, sessionID, key).
// A non-positive ttl uses DefaultTTL.
func (m *SessionMemory) Save(ctx context.Context, agentName, sessionID, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session memory: encode %s: %w", key, err)
	}
	fullKey := Key(agentName, sessionID, key)

	if !m.isDegraded() {
		err := m.store.Set(ctx, fullKey, string(data), ttl)
		if err == nil {
			metrics.Get().RecordMemoryOperation("save", BackendRedis, "ok")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.degrade(err)
	}

	m.mu.Lock()
	m.local[fullKey] = string(data)
	m.mu.Unlock()
	metrics.Get().RecordMemoryOperation("save", BackendMemory, "ok")
	return nil
}

// Load reads the entry and decodes it into dest. It reports false when the
// entry was never written or has expired.
func (m *SessionMemory) Load(ctx context.Context, agentName, sessionID, key string, dest interface{}) (bool, error) {
	fullKey := Key(agentName, sessionID, key)

	raw, found, err := m.get(ctx, fullKey)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, &CorruptEntryError{Key: fullKey, Err: err}
	}
	return true, nil
}

// LoadValue is Load decoding into a generic JSON value
func (m *SessionMemory) LoadValue(ctx context.Context, agentName, sessionID, key string) (interface{}, bool, error) {
	var v interface{}
	found, err := m.Load(ctx, agentName, sessionID, key, &v)
	if err != nil || !found {
		return nil, found, err
	}
	return v, true, nil
}

func (m *SessionMemory) get(ctx context.Context, fullKey string) (string, bool, error) {
	if !m.isDegraded() {
		raw, err := m.store.Get(ctx, fullKey)
		switch {
		case err == nil:
			metrics.Get().RecordMemoryOperation("load", BackendRedis, "hit")
			return raw, true, nil
		case errors.Is(err, ErrCacheMiss):
			metrics.Get().RecordMemoryOperation("load", BackendRedis, "miss")
			return "", false, nil
		case ctx.Err() != nil:
			return "", false, ctx.Err()
		default:
			m.degrade(err)
		}
	}

	m.mu.RLock()
	raw, ok := m.local[fullKey]
	m.mu.RUnlock()

	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.Get().RecordMemoryOperation("load", BackendMemory, result)
	return raw, ok, nil
}

func (m *SessionMemory) isDegraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// degrade switches to the in-process map. The switch is never reversed.
func (m *SessionMemory) degrade(cause error) {
	m.mu.Lock()
	if m.degraded {
		m.mu.Unlock()
		return
	}
	m.degraded = true
	m.degradedAt = m.now()
	m.mu.Unlock()

	metrics.Get().RecordMemoryDegradation()
	m.log.Warn("session store unavailable, using in-process memory for the rest of this process",
		zap.Error(cause))
}

// Mode reports the backend currently serving requests
func (m *SessionMemory) Mode() string {
	if m.isDegraded() {
		return BackendMemory
	}
	return BackendRedis
}

// DegradedAt returns when memory switched to the in-process map, or the zero time
func (m *SessionMemory) DegradedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degradedAt
}
