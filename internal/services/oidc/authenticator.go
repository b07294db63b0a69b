package oidc

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/practice-queue/internal/models"
)

// Authenticator verifies bearer tokens issued by one configured provider
type Authenticator struct {
	provider     *Provider
	providerName string
	jwks         *JWKSManager

	mu       sync.RWMutex
	jwksURLs map[string]string // issuer -> discovered JWKS URL
}

// NewAuthenticator creates an authenticator for providerName
func NewAuthenticator(provider *Provider, providerName string, jwks *JWKSManager) *Authenticator {
	return &Authenticator{
		provider:     provider,
		providerName: providerName,
		jwks:         jwks,
		jwksURLs:     make(map[string]string),
	}
}

// Authenticate verifies token and returns its identity claims.
// Provider settings are read on every call so configuration changes apply without a restart.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	config, err := a.provider.GetConfig(ctx, a.providerName)
	if err != nil {
		return nil, err
	}

	claims, err := NewVerifier(a.jwks, config.Issuer).Verify(ctx, token, a.jwksURL(ctx, config))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate token: %w", err)
	}
	return claims, nil
}

func (a *Authenticator) jwksURL(ctx context.Context, config *models.OIDCConfig) string {
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		return *config.JWKSUrl
	}

	a.mu.RLock()
	url, ok := a.jwksURLs[config.Issuer]
	a.mu.RUnlock()
	if ok {
		return url
	}

	url = a.provider.Endpoints(ctx, config).JWKS
	a.mu.Lock()
	a.jwksURLs[config.Issuer] = url
	a.mu.Unlock()
	return url
}
