// Package cache provides Redis-backed persistence for scanner state
// that must survive restarts, with an in-memory fallback so scanning
// continues when Redis is unavailable.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// cooldownKey holds the serialized VWAP cooldown tracker state.
	// One key; cooldowns are day-scoped and small.
	cooldownKey = "scanner:cooldown:state"

	// cooldownTTL outlives any trading day so a same-day restart can
	// recover, while stale state ages out over the weekend.
	cooldownTTL = 24 * time.Hour
)

// CooldownStore persists serialized cooldown tracker state in Redis
// with an in-memory fallback when Redis is unavailable.
type CooldownStore struct {
	client *redis.Client
	logger zerolog.Logger

	mu             sync.RWMutex
	fallback       []byte
	redisAvailable atomic.Bool
}

// NewCooldownStore creates a cooldown store. If client is nil, the
// store operates in memory-only mode.
func NewCooldownStore(client *redis.Client, logger zerolog.Logger) *CooldownStore {
	s := &CooldownStore{
		client: client,
		logger: logger.With().Str("component", "CooldownStore").Logger(),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory fallback")
			s.redisAvailable.Store(false)
		} else {
			s.logger.Info().Msg("Redis connected")
			s.redisAvailable.Store(true)
		}
	} else {
		s.logger.Info().Msg("No Redis client provided, memory-only mode")
		s.redisAvailable.Store(false)
	}
	return s
}

// Save persists the serialized cooldown state. Redis failures fall back
// to the in-memory copy and do not surface as errors.
func (s *CooldownStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.fallback = append([]byte(nil), data...)
	s.mu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Set(ctx, cooldownKey, data, cooldownTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis save failed, state held in memory only")
			s.redisAvailable.Store(false)
			return nil
		}
	}
	return nil
}

// Load returns the most recent cooldown state, preferring Redis. A nil
// result with nil error means no state exists.
func (s *CooldownStore) Load(ctx context.Context) ([]byte, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, cooldownKey).Bytes()
		if err == nil {
			return data, nil
		}
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("Redis load failed, trying in-memory fallback")
			s.redisAvailable.Store(false)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fallback == nil {
		return nil, nil
	}
	return append([]byte(nil), s.fallback...), nil
}

// Clear drops persisted cooldown state (daily reset)
func (s *CooldownStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.fallback = nil
	s.mu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Del(ctx, cooldownKey).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis clear failed")
			s.redisAvailable.Store(false)
		}
	}
}

// Available reports whether Redis is currently reachable
func (s *CooldownStore) Available() bool {
	return s.redisAvailable.Load()
}
