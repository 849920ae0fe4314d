package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"

	appconfig "github.com/brightpane/brightpane/internal/config"
)

const keyCouponValidate = "coupon:validate:tenant:%s"

// CouponValidateLimiter throttles coupon validation per tenant. A nil
// limiter (Redis unconfigured) allows everything.
type CouponValidateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCouponValidateLimiter(cfg appconfig.Config) *CouponValidateLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.CouponRateLimitPerMin <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &CouponValidateLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(cfg.CouponRateLimitPerMin) / 60,
		burst:  cfg.CouponRateLimitPerMin,
	}
}

func (l *CouponValidateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *CouponValidateLimiter) Allow(ctx context.Context, tenantID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyCouponValidate, tenantID.String())
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
