package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/practice-queue/internal/models"
)

// DefaultScope is requested by the frontend login flow
const DefaultScope = "openid email profile"

// ConfigSource looks up stored provider settings
type ConfigSource interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Provider manages OIDC provider configuration
type Provider struct {
	source     ConfigSource
	httpClient *http.Client
}

// NewProvider creates a new OIDC provider manager
func NewProvider(source ConfigSource) *Provider {
	return &Provider{
		source:     source,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.source.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Endpoints are the URLs a client needs to run the authorization code flow and verify tokens
type Endpoints struct {
	Authorization string
	Token         string
	JWKS          string
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Endpoints resolves the provider's endpoints from its discovery document.
// Missing entries fall back to issuer-relative Cognito-style paths, and a configured
// hosted domain overrides the OAuth2 endpoints of Cognito issuers.
func (p *Provider) Endpoints(ctx context.Context, config *models.OIDCConfig) Endpoints {
	doc := p.discover(ctx, config.Issuer)
	issuer := strings.TrimSuffix(config.Issuer, "/")

	endpoints := Endpoints{
		Authorization: doc.AuthorizationEndpoint,
		Token:         doc.TokenEndpoint,
		JWKS:          doc.JWKSURI,
	}
	if endpoints.Authorization == "" {
		endpoints.Authorization = issuer + "/oauth2/authorize"
	}
	if endpoints.Token == "" {
		endpoints.Token = issuer + "/oauth2/token"
	}
	if endpoints.JWKS == "" {
		endpoints.JWKS = issuer + "/.well-known/jwks.json"
	}
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		endpoints.JWKS = *config.JWKSUrl
	}

	if config.Domain != nil && *config.Domain != "" && strings.Contains(config.Issuer, "cognito-idp.") {
		base := strings.TrimSuffix(*config.Domain, "/")
		if !strings.HasPrefix(base, "https://") {
			base = "https://" + base
		}
		endpoints.Authorization = base + "/oauth2/authorize"
		endpoints.Token = base + "/oauth2/token"
	}

	return endpoints
}

// discover returns an empty document when the issuer does not publish one
func (p *Provider) discover(ctx context.Context, issuer string) discoveryDocument {
	var doc discoveryDocument

	url := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doc
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return doc
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return doc
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return discoveryDocument{}
	}
	return doc
}

// GetLoginConfig returns the configuration needed for frontend OIDC login
func (p *Provider) GetLoginConfig(ctx context.Context, providerName string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	endpoints := p.Endpoints(ctx, config)
	return &LoginConfig{
		AuthorizationEndpoint: endpoints.Authorization,
		TokenEndpoint:         endpoints.Token,
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 DefaultScope,
	}, nil
}

// LoginConfig contains OIDC login configuration for frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
}
