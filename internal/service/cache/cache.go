package cache

import (
	"context"
	"fmt"
	"time"

	drepo "github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
)

// Replay guard backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewReplayGuard returns the guard for backend. BackendNone yields nil.
func NewReplayGuard(backend string, redisCfg RedisConfig) (drepo.ReplayGuard, error) {
	switch backend {
	case BackendNone:
		return nil, nil
	case "", BackendMemory:
		return NewTTLCache(), nil
	case BackendRedis:
		return NewRedisCache(redisCfg), nil
	default:
		return nil, fmt.Errorf("unknown replay guard backend %q", backend)
	}
}

var (
	_ drepo.ReplayGuard = (*TTLCache)(nil)
	_ drepo.ReplayGuard = (*RedisCache)(nil)
)

// Pinger is implemented by backends with a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultTTL bounds how long a used nonce is remembered when none is configured.
const DefaultTTL = 10 * time.Minute
