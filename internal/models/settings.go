package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig holds the login settings of one identity provider
type OIDCConfig struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
	Issuer   string    `json:"issuer"`
	// Domain is the hosted login domain when it differs from the issuer (Cognito custom domains)
	Domain       *string   `json:"domain,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"-"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsPublicClient reports whether the client authenticates without a secret
func (c *OIDCConfig) IsPublicClient() bool {
	return c.ClientSecret == nil || *c.ClientSecret == ""
}

// CorsConfig holds the browser origins allowed to call the API
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"` // Comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RatelimitConfig holds the per-client API rate in limiter format ("5-S", "100-M")
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
