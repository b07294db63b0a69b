package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/practice-queue/internal/database"
	logpkg "github.com/benvon/practice-queue/internal/logger"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenAuthenticator verifies a bearer token and returns its identity claims
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, error)
}

// bearerToken returns the token of a "Bearer <token>" header value
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Auth creates authentication middleware that validates bearer tokens and
// attaches the matching user, creating it on first sight
func Auth(users database.UserRepositoryInterface, authenticator TokenAuthenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			ctx := r.Context()
			claims, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				logger.Warn("token_verification_failed",
					zap.Error(err),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			user, status, msg := resolveUser(ctx, users, claims, logger)
			if user == nil {
				respondErrorJSON(w, r, status, http.StatusText(status), msg, logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

// resolveUser finds or provisions the user for claims. On failure it returns the response status and message.
func resolveUser(ctx context.Context, users database.UserRepositoryInterface, claims *models.JWTClaims, logger *zap.Logger) (*models.User, int, string) {
	user, err := users.GetByProviderID(ctx, claims.Sub)
	if errors.Is(err, database.ErrNotFound) {
		if claims.Email == "" {
			return nil, http.StatusUnauthorized, "Token has no email claim"
		}
		user = &models.User{
			ID:            uuid.New(),
			Email:         claims.Email,
			ProviderID:    &claims.Sub,
			EmailVerified: claims.EmailVerified,
		}
		if claims.Name != "" {
			name := claims.Name
			user.Name = &name
		}
		if err := users.Create(ctx, user); err != nil {
			logger.Error("failed_to_create_user", zap.Error(err))
			return nil, http.StatusInternalServerError, "Failed to create user"
		}
		logger.Info("user_created",
			zap.String("user_id", user.ID.String()),
			zap.String("email", logpkg.SanitizeEmail(user.Email)),
		)
		return user, 0, ""
	}
	if err != nil {
		logger.Error("failed_to_fetch_user", zap.Error(err))
		return nil, http.StatusInternalServerError, "Database error"
	}

	changed := false
	if claims.Email != "" && user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		name := claims.Name
		user.Name = &name
		changed = true
	}
	if claims.EmailVerified && !user.EmailVerified {
		user.EmailVerified = true
		changed = true
	}
	if changed {
		if err := users.Update(ctx, user); err != nil {
			// Stale profile fields do not block the request.
			logger.Warn("failed_to_update_user_profile",
				zap.Error(err),
				zap.String("user_id", user.ID.String()),
			)
		}
	}
	return user, 0, ""
}
