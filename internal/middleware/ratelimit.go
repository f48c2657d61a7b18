package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "salesbridge/internal/errors"
	"salesbridge/internal/httputil"
	"salesbridge/internal/metrics"
	"salesbridge/internal/service"
	"salesbridge/internal/tracing"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// rateCounter counts requests per client key inside a fixed window.
type rateCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// redisCounter shares the window across replicas.
type redisCounter struct {
	client *redis.Client
}

func (c *redisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return incr.Val(), nil
}

// memoryCounter is the single-instance fallback.
type memoryCounter struct {
	cache *gocache.Cache
}

func (c *memoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	if n, err := c.cache.IncrementInt64(key, 1); err == nil {
		return n, nil
	}
	// Cold key. Add is atomic, so when two requests race here only one
	// creates the entry and both increments land on it.
	_ = c.cache.Add(key, int64(0), window)
	return c.cache.IncrementInt64(key, 1)
}

// RateLimiter enforces a fixed-window request limit per client IP.
type RateLimiter struct {
	counter rateCounter
	window  time.Duration
	max     int
	logger  *logrus.Logger
}

// NewRateLimiter builds a limiter backed by Redis when redisURL is set,
// otherwise by an in-process cache.
func NewRateLimiter(redisURL string, windowSec, max int, logger *logrus.Logger) (*RateLimiter, error) {
	window := time.Duration(windowSec) * time.Second

	var counter rateCounter
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		counter = &redisCounter{client: redis.NewClient(opts)}
	} else {
		counter = &memoryCounter{cache: gocache.New(window, 2*window)}
	}

	return &RateLimiter{
		counter: counter,
		window:  window,
		max:     max,
		logger:  logger,
	}, nil
}

// Middleware rejects requests over the limit with 429. Health checks
// are never limited. A counter backend failure lets the request
// through; dropping webhooks over a broken Redis would lose messages.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := httputil.GetClientIP(r)
		key := "ratelimit:" + clientIP + ":" + strconv.FormatInt(time.Now().Unix()/int64(rl.window.Seconds()), 10)

		count, err := rl.counter.Increment(r.Context(), key, rl.window)
		if err != nil {
			rl.logger.WithError(err).Warn("Rate counter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(rl.max) {
			rl.logger.WithFields(logrus.Fields{
				service.LogFieldRemoteIP: clientIP,
				service.LogFieldURL:      r.URL.Path,
				service.LogFieldCount:    count,
			}).Warn("Rate limit exceeded")

			metrics.IncrementCounter("rate_limit_rejections_total", map[string]string{
				"endpoint": r.URL.Path,
			}, "Requests rejected by the rate limiter")

			appErr := apperrors.NewRateLimitError(rl.max, rl.window.String())
			requestID := tracing.GetRequestInfo(r.Context()).RequestID
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.WriteHeader(apperrors.HTTPStatusCode(appErr))
			if err := json.NewEncoder(w).Encode(apperrors.ToHTTPResponse(appErr, requestID)); err != nil {
				rl.logger.WithError(err).Error("Failed to write rate limit response")
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}
