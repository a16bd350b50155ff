package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
)

const rateLimitPrefix = "org:ratelimit"

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Store             limiter.Store
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redisstore.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
}

// RateLimit throttles per actor when the actor header was bound, per client
// IP otherwise. It must run after WithActor.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	period := cfg.Period
	if period <= 0 {
		period = time.Second
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	l := limiter.New(store, limiter.Rate{Period: period, Limit: int64(cfg.RequestsPerPeriod)})

	mw := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			if actor, err := composables.UseActor(r.Context()); err == nil {
				return "actor:" + actor.String()
			}
			return "ip:" + l.GetIPKey(r)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RateLimited", "too many requests",
				httpapi.WithRequestID(nil, composables.UseRequestID(r.Context())))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			if logger := composables.UseLogger(r.Context()); logger != nil {
				logger.WithError(err).Error("rate limiter store failed")
			}
			_ = httpapi.WriteError(w, http.StatusInternalServerError, "Internal", "rate limiter unavailable",
				httpapi.WithRequestID(nil, composables.UseRequestID(r.Context())))
		}),
	)
	return mw.Handler
}
