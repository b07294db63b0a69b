package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/practice-queue/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type mockSource struct {
	config *models.OIDCConfig
	err    error
}

func (m *mockSource) GetByProvider(_ context.Context, _ string) (*models.OIDCConfig, error) {
	return m.config, m.err
}

// testIssuer serves a discovery document and a key set for one signing key
type testIssuer struct {
	server         *httptest.Server
	key            jwk.Key
	discoveryHits  atomic.Int32
	keySetHits     atomic.Int32
	serveDiscovery bool
}

func newSigningKey(t *testing.T, kid string) jwk.Key {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("Failed to wrap RSA key: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("Failed to set kid: %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("Failed to set alg: %v", err)
	}
	return key
}

func newTestIssuer(t *testing.T, serveDiscovery bool) *testIssuer {
	t.Helper()

	ti := &testIssuer{key: newSigningKey(t, "test-kid"), serveDiscovery: serveDiscovery}

	public, err := ti.key.PublicKey()
	if err != nil {
		t.Fatalf("Failed to derive public key: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("Failed to build key set: %v", err)
	}
	setJSON, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Failed to encode key set: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		ti.discoveryHits.Add(1)
		if !ti.serveDiscovery {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": ti.server.URL + "/authorize",
			"token_endpoint":         ti.server.URL + "/token",
			"jwks_uri":               ti.server.URL + "/keys",
		})
	})
	keysHandler := func(w http.ResponseWriter, _ *http.Request) {
		ti.keySetHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(setJSON)
	}
	mux.HandleFunc("/keys", keysHandler)
	mux.HandleFunc("/.well-known/jwks.json", keysHandler)

	ti.server = httptest.NewServer(mux)
	t.Cleanup(ti.server.Close)
	return ti
}

func (ti *testIssuer) config() *models.OIDCConfig {
	return &models.OIDCConfig{
		Provider:    "cognito",
		Issuer:      ti.server.URL,
		ClientID:    "client-123",
		RedirectURI: "http://localhost:3000/callback",
	}
}

func signToken(t *testing.T, key jwk.Key, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()

	tok, err := build(jwt.NewBuilder()).Build()
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return string(signed)
}

func TestAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	ti := newTestIssuer(t, true)
	now := time.Now()
	otherKey := newSigningKey(t, "test-kid")

	tests := []struct {
		name      string
		token     string
		expectErr bool
		validate  func(*testing.T, *models.JWTClaims)
	}{
		{
			name: "valid token",
			token: signToken(t, ti.key, func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer(ti.server.URL).Subject("user-123").Audience([]string{"client-123"}).
					IssuedAt(now).Expiration(now.Add(time.Hour)).
					Claim("email", "learner@example.com").Claim("name", "Ada").Claim("email_verified", "true")
			}),
			validate: func(t *testing.T, c *models.JWTClaims) {
				if c.Sub != "user-123" {
					t.Errorf("Expected sub user-123, got %s", c.Sub)
				}
				if c.Email != "learner@example.com" {
					t.Errorf("Expected email learner@example.com, got %s", c.Email)
				}
				if c.Name != "Ada" {
					t.Errorf("Expected name Ada, got %s", c.Name)
				}
				if !c.EmailVerified {
					t.Error("Expected email_verified to be read from a string claim")
				}
				if c.Aud != "client-123" {
					t.Errorf("Expected aud client-123, got %s", c.Aud)
				}
				if c.Iss != ti.server.URL {
					t.Errorf("Expected iss %s, got %s", ti.server.URL, c.Iss)
				}
			},
		},
		{
			name: "wrong issuer",
			token: signToken(t, ti.key, func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer("https://evil.example.com").Subject("user-123").Expiration(now.Add(time.Hour))
			}),
			expectErr: true,
		},
		{
			name: "expired token",
			token: signToken(t, ti.key, func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer(ti.server.URL).Subject("user-123").
					IssuedAt(now.Add(-2 * time.Hour)).Expiration(now.Add(-time.Hour))
			}),
			expectErr: true,
		},
		{
			name: "signed by an unknown key",
			token: signToken(t, otherKey, func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer(ti.server.URL).Subject("user-123").Expiration(now.Add(time.Hour))
			}),
			expectErr: true,
		},
		{
			name: "missing subject",
			token: signToken(t, ti.key, func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer(ti.server.URL).Expiration(now.Add(time.Hour))
			}),
			expectErr: true,
		},
		{name: "garbage", token: "not-a-jwt", expectErr: true},
	}

	auth := NewAuthenticator(NewProvider(&mockSource{config: ti.config()}), "cognito", NewJWKSManager(time.Hour))

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := auth.Authenticate(context.Background(), tt.token)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("Expected error, got claims %+v", claims)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.validate(t, claims)
		})
	}
}

func TestAuthenticator_CachesDiscoveryAndKeys(t *testing.T) {
	t.Parallel()

	ti := newTestIssuer(t, true)
	auth := NewAuthenticator(NewProvider(&mockSource{config: ti.config()}), "cognito", NewJWKSManager(time.Hour))

	now := time.Now()
	token := signToken(t, ti.key, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer(ti.server.URL).Subject("user-123").Expiration(now.Add(time.Hour))
	})

	for i := 0; i < 3; i++ {
		if _, err := auth.Authenticate(context.Background(), token); err != nil {
			t.Fatalf("Unexpected error on call %d: %v", i, err)
		}
	}
	if got := ti.discoveryHits.Load(); got != 1 {
		t.Errorf("Expected 1 discovery fetch, got %d", got)
	}
	if got := ti.keySetHits.Load(); got != 1 {
		t.Errorf("Expected 1 key set fetch, got %d", got)
	}
}

func TestAuthenticator_ConfigError(t *testing.T) {
	t.Parallel()

	sourceErr := errors.New("no such provider")
	auth := NewAuthenticator(NewProvider(&mockSource{err: sourceErr}), "cognito", NewJWKSManager(0))

	if _, err := auth.Authenticate(context.Background(), "token"); !errors.Is(err, sourceErr) {
		t.Errorf("Expected wrapped source error, got %v", err)
	}
}

func TestProvider_Endpoints(t *testing.T) {
	t.Parallel()

	withDiscovery := newTestIssuer(t, true)
	withoutDiscovery := newTestIssuer(t, false)

	tests := []struct {
		name     string
		config   func() *models.OIDCConfig
		expected func() Endpoints
	}{
		{
			name:   "discovery document",
			config: withDiscovery.config,
			expected: func() Endpoints {
				u := withDiscovery.server.URL
				return Endpoints{Authorization: u + "/authorize", Token: u + "/token", JWKS: u + "/keys"}
			},
		},
		{
			name:   "issuer relative fallback",
			config: withoutDiscovery.config,
			expected: func() Endpoints {
				u := withoutDiscovery.server.URL
				return Endpoints{Authorization: u + "/oauth2/authorize", Token: u + "/oauth2/token", JWKS: u + "/.well-known/jwks.json"}
			},
		},
		{
			name: "configured JWKS URL wins",
			config: func() *models.OIDCConfig {
				c := withDiscovery.config()
				c.JWKSUrl = stringPtr("https://keys.example.com/jwks.json")
				return c
			},
			expected: func() Endpoints {
				u := withDiscovery.server.URL
				return Endpoints{Authorization: u + "/authorize", Token: u + "/token", JWKS: "https://keys.example.com/jwks.json"}
			},
		},
		{
			name: "cognito hosted domain",
			config: func() *models.OIDCConfig {
				return &models.OIDCConfig{
					Issuer: withoutDiscovery.server.URL + "/cognito-idp.us-east-1.amazonaws.com/pool",
					Domain: stringPtr("login.example.com"),
				}
			},
			expected: func() Endpoints {
				return Endpoints{
					Authorization: "https://login.example.com/oauth2/authorize",
					Token:         "https://login.example.com/oauth2/token",
					JWKS:          withoutDiscovery.server.URL + "/cognito-idp.us-east-1.amazonaws.com/pool/.well-known/jwks.json",
				}
			},
		},
	}

	provider := NewProvider(&mockSource{})
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := provider.Endpoints(context.Background(), tt.config())
			if want := tt.expected(); got != want {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestProvider_GetLoginConfig(t *testing.T) {
	t.Parallel()

	ti := newTestIssuer(t, true)
	provider := NewProvider(&mockSource{config: ti.config()})

	login, err := provider.GetLoginConfig(context.Background(), "cognito")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if login.AuthorizationEndpoint != ti.server.URL+"/authorize" {
		t.Errorf("Expected discovered authorization endpoint, got %s", login.AuthorizationEndpoint)
	}
	if login.ClientID != "client-123" {
		t.Errorf("Expected client_id client-123, got %s", login.ClientID)
	}
	if login.Scope != DefaultScope {
		t.Errorf("Expected scope %q, got %q", DefaultScope, login.Scope)
	}
}

func TestJWKSManager_Expiry(t *testing.T) {
	t.Parallel()

	ti := newTestIssuer(t, true)
	m := NewJWKSManager(time.Minute)
	current := time.Now()
	m.now = func() time.Time { return current }

	url := ti.server.URL + "/keys"
	for i := 0; i < 2; i++ {
		if _, err := m.GetJWKS(context.Background(), url); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if got := ti.keySetHits.Load(); got != 1 {
		t.Fatalf("Expected 1 fetch within TTL, got %d", got)
	}

	current = current.Add(2 * time.Minute)
	if _, err := m.GetJWKS(context.Background(), url); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := ti.keySetHits.Load(); got != 2 {
		t.Errorf("Expected a refetch after expiry, got %d fetches", got)
	}

	m.Forget(url)
	if _, err := m.GetJWKS(context.Background(), url); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := ti.keySetHits.Load(); got != 3 {
		t.Errorf("Expected a refetch after Forget, got %d fetches", got)
	}
}
