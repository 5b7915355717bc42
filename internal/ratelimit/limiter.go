// Package ratelimit throttles HTTP callers per client address.
package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "ndp:ratelimit:"

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// New returns a Redis token bucket when Redis is configured and an in-process
// limiter otherwise. A non-positive rate disables limiting.
func New(p Params) Limiter {
	perSecond := float64(p.Cfg.HTTP.RateLimitPerSecond)
	burst := p.Cfg.HTTP.RateLimitBurst
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
	}

	if p.Client != nil {
		return NewTokenBucket(p.Client, perSecond, burst)
	}

	local := NewLocalLimiter(perSecond, burst)
	stop := make(chan struct{})
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						local.Sweep()
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return nil
		},
	})
	return local
}
