package genlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benjask5360/tuckandtale/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyGenerateLock    = "story:generate:lock:%s"
	keyGenerateAttempt = "story:generate:attempt:%s"
)

// GenerationGuard serializes duplicate generation requests from the same
// user (the double-click case) and bounds per-user attempt rate. Disabled
// deployments get a nil guard whose methods allow everything.
type GenerationGuard struct {
	enabled bool

	locker *Locker
	bucket *TokenBucket

	lockTTL time.Duration
	rate    float64
	burst   int
}

func NewGenerationGuard(cfg config.Config) (*GenerationGuard, error) {
	lockCfg := cfg.GenLock
	if !lockCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(lockCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("genlock redis addr is required")
	}
	if lockCfg.TTLSeconds <= 0 {
		return nil, errors.New("genlock ttl must be positive")
	}
	if lockCfg.AttemptRate <= 0 || lockCfg.AttemptBurst <= 0 {
		return nil, errors.New("genlock attempt rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(lockCfg.RedisPassword),
		DB:       lockCfg.RedisDB,
	})

	return &GenerationGuard{
		enabled: true,
		locker:  NewLocker(client),
		bucket:  NewTokenBucket(client),
		lockTTL: time.Duration(lockCfg.TTLSeconds) * time.Second,
		rate:    lockCfg.AttemptRate,
		burst:   lockCfg.AttemptBurst,
	}, nil
}

func (g *GenerationGuard) Enabled() bool {
	return g != nil && g.enabled
}

// TryLock claims the user's generation slot. The returned token releases it.
func (g *GenerationGuard) TryLock(ctx context.Context, userID string) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyGenerateLock, strings.TrimSpace(userID))
	return g.locker.TryLock(ctx, key, g.lockTTL)
}

func (g *GenerationGuard) Release(ctx context.Context, userID, token string) error {
	if !g.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyGenerateLock, strings.TrimSpace(userID))
	return g.locker.Release(ctx, key, token)
}

// AllowAttempt spends one token from the user's attempt budget.
func (g *GenerationGuard) AllowAttempt(ctx context.Context, userID string) (bool, time.Duration, error) {
	if !g.Enabled() {
		return true, 0, nil
	}
	key := fmt.Sprintf(keyGenerateAttempt, strings.TrimSpace(userID))
	return g.bucket.Allow(ctx, key, g.rate, g.burst)
}
