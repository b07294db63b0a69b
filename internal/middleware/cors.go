package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	// DefaultOrigin is allowed when neither the database nor FRONTEND_URL name an origin
	DefaultOrigin = "http://localhost:3000"
	defaultMaxAge = 86400
)

// CorsConfigSource reads the stored CORS settings
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// corsOptions builds the rs/cors options for a set of origins
func corsOptions(origins []string, allowCredentials bool, maxAge int) cors.Options {
	if len(origins) == 0 {
		origins = []string{DefaultOrigin}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

// CORSReloader serves CORS from settings stored in the database and reloads them periodically.
// FRONTEND_URL origins apply until a row exists.
type CORSReloader struct {
	repo     CorsConfigSource
	fallback []string
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	current *cors.Cors
	origins []string
}

// NewCORSReloader creates a CORS middleware that loads config from the DB and hot-reloads it
func NewCORSReloader(repo CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		repo:     repo,
		fallback: database.AllowedOriginsSlice(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
	r.apply(r.fallback, true, defaultMaxAge)
	return r
}

// Middleware wraps next with the current CORS policy
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.ServeHTTP(w, req, next.ServeHTTP)
		})
	}
}

// Origins returns the currently allowed origins
func (r *CORSReloader) Origins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.origins...)
}

// Start runs the reload loop until ctx is cancelled
func (r *CORSReloader) Start(ctx context.Context) {
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

// Load reads the stored settings. A read error keeps the current policy.
func (r *CORSReloader) Load(ctx context.Context) {
	cfg, err := r.repo.Get(ctx)
	switch {
	case errors.Is(err, database.ErrNotFound):
		r.apply(r.fallback, true, defaultMaxAge)
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_keeping_current", zap.Error(err))
	default:
		r.apply(database.AllowedOriginsSlice(cfg.AllowedOrigins), cfg.AllowCredentials, cfg.MaxAge)
	}
}

func (r *CORSReloader) apply(origins []string, allowCredentials bool, maxAge int) {
	opts := corsOptions(origins, allowCredentials, maxAge)
	c := cors.New(opts)

	r.mu.Lock()
	r.current = c
	r.origins = opts.AllowedOrigins
	r.mu.Unlock()
}
