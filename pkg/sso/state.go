package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultStateTTL is how long an issued state value stays redeemable
	DefaultStateTTL = 10 * time.Minute

	// DefaultStateCapacity bounds the in-memory store
	DefaultStateCapacity = 10000

	stateBytes     = 32
	redisKeyPrefix = "homegate:oauth_state:"
)

// StateStore persists CSRF state values between the authorization redirect
// and the callback. A state is single use, expires, and is bound to the
// provider it was issued for.
type StateStore interface {
	// Issue creates and records a fresh state for provider
	Issue(ctx context.Context, provider string) (string, error)

	// Consume redeems state for provider, returning ErrInvalidState when it
	// is unknown, expired, already used or issued for another provider
	Consume(ctx context.Context, state, provider string) error
}

// NewState returns 32 random bytes encoded as unpadded base64url
func NewState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MemoryStateStore keeps states in an expiring LRU. It is suitable for a
// single replica; use RedisStateStore when running several.
type MemoryStateStore struct {
	mu     sync.Mutex
	states *expirable.LRU[string, string]
}

// NewMemoryStateStore creates an in-memory store
func NewMemoryStateStore(capacity int, ttl time.Duration) *MemoryStateStore {
	if capacity <= 0 {
		capacity = DefaultStateCapacity
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{states: expirable.NewLRU[string, string](capacity, nil, ttl)}
}

// Issue creates and records a fresh state for provider
func (s *MemoryStateStore) Issue(_ context.Context, provider string) (string, error) {
	state, err := NewState()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.states.Add(state, provider)
	s.mu.Unlock()
	return state, nil
}

// Consume redeems state for provider
func (s *MemoryStateStore) Consume(_ context.Context, state, provider string) error {
	if state == "" {
		return ErrInvalidState
	}

	s.mu.Lock()
	issuedFor, ok := s.states.Get(state)
	if ok {
		s.states.Remove(state)
	}
	s.mu.Unlock()

	if !ok || issuedFor != provider {
		return ErrInvalidState
	}
	return nil
}

// RedisStateStore keeps states in redis with a TTL, so every replica can
// redeem a state issued by any other
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a redis backed store
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

// Issue creates and records a fresh state for provider
func (s *RedisStateStore) Issue(ctx context.Context, provider string) (string, error) {
	state, err := NewState()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+state, provider, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

// Consume redeems state for provider with GETDEL, so two concurrent
// callbacks cannot both succeed
func (s *RedisStateStore) Consume(ctx context.Context, state, provider string) error {
	if state == "" {
		return ErrInvalidState
	}

	issuedFor, err := s.client.GetDel(ctx, redisKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if issuedFor != provider {
		return ErrInvalidState
	}
	return nil
}
