package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/request"
	"github.com/benvon/practice-queue/internal/services/oidc"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginConfigProvider returns the frontend login settings of a provider
type LoginConfigProvider interface {
	GetLoginConfig(ctx context.Context, providerName string) (*oidc.LoginConfig, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	provider     LoginConfigProvider
	providerName string
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(provider LoginConfigProvider, providerName string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{provider: provider, providerName: providerName, logger: logger}
}

// RegisterPublicRoutes registers routes that need no token.
// The router should already have the /auth prefix.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods(http.MethodGet)
}

// RegisterRoutes registers authenticated routes.
// The router should already have the /auth prefix.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	loginConfig, err := h.provider.GetLoginConfig(r.Context(), h.providerName)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Login provider is not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_get_login_config", zap.Error(err), zap.String("provider", h.providerName))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// MeResponse describes the authenticated user
type MeResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, MeResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		Name:          user.DisplayName(),
		EmailVerified: user.EmailVerified,
	})
}
