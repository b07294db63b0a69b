package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

// DefaultRatelimitRate applies until a rate is stored
const DefaultRatelimitRate = "5-S"

// RatelimitConfigStore reads and seeds the stored rate
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// rateLimitKey buckets authenticated callers by user and everyone else by client IP
func rateLimitKey(r *http.Request) string {
	if id, ok := request.UserID(r); ok {
		return "user:" + id.String()
	}
	return "ip:" + request.ClientIP(r)
}

// RateLimitReloader applies a ulule/limiter rate loaded from the database and reloads it periodically
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current *stdlibmw.Middleware
	rate    string
}

// NewRateLimitReloader creates a rate limiter backed by store. Limits are enforced once Load succeeds.
func NewRateLimitReloader(store limiter.Store, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware wraps next with the current limit
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			mw := r.current
			r.mu.RUnlock()
			if mw == nil {
				next.ServeHTTP(w, req)
				return
			}
			mw.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Rate returns the formatted rate in effect, or "" before the first load
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// Start runs the reload loop until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Load(ctx)
		}
	}
}

// Load reads the stored rate, seeding the default when none exists.
// A read error keeps the current limit, or installs the default on first load.
func (r *RateLimitReloader) Load(ctx context.Context) {
	rateStr := r.defaultRate

	cfg, err := r.repo.Get(ctx)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		if r.Rate() != "" {
			return
		}
	case cfg.Rate != "":
		rateStr = cfg.Rate
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return
		}
	}

	if r.Rate() == rateStr {
		return
	}

	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(rateLimitKey),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry later", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Error("rate_limiter_store_error", zap.Error(err))
			respondErrorJSON(w, req, http.StatusInternalServerError, "Internal Server Error", "Rate limiter unavailable", r.log)
		}),
	)

	r.mu.Lock()
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()

	r.log.Info("ratelimit_config_applied", zap.String("rate", rateStr))
}
