package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockAuthenticator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (m *mockAuthenticator) Authenticate(_ context.Context, token string) (*models.JWTClaims, error) {
	m.token = token
	return m.claims, m.err
}

type mockUsers struct {
	byProvider map[string]*models.User
	getErr     error
	createErr  error
	updateErr  error
	created    []*models.User
	updated    []*models.User
}

func (m *mockUsers) GetByProviderID(_ context.Context, providerID string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byProvider[providerID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUsers) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (m *mockUsers) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockUsers) Update(_ context.Context, user *models.User) error {
	m.updated = append(m.updated, user)
	return m.updateErr
}

func strPtr(s string) *string { return &s }

func TestAuth(t *testing.T) {
	t.Parallel()

	existingID := uuid.New()
	existing := func() *models.User {
		return &models.User{ID: existingID, Email: "old@example.com", ProviderID: strPtr("sub-1"), Name: strPtr("Ada")}
	}

	tests := []struct {
		name           string
		header         string
		auth           *mockAuthenticator
		users          *mockUsers
		expectedStatus int
		validate       func(*testing.T, *mockUsers, *models.User)
	}{
		{
			name:           "missing header",
			auth:           &mockAuthenticator{},
			users:          &mockUsers{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			header:         "Basic abc",
			auth:           &mockAuthenticator{},
			users:          &mockUsers{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			header:         "Bearer bad",
			auth:           &mockAuthenticator{err: errors.New("signature mismatch")},
			users:          &mockUsers{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "existing user with changed email",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-1", Email: "new@example.com", Name: "Ada"}},
			users:          &mockUsers{byProvider: map[string]*models.User{"sub-1": existing()}},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, users *mockUsers, got *models.User) {
				if got.ID != existingID {
					t.Errorf("Expected user %s, got %s", existingID, got.ID)
				}
				if len(users.updated) != 1 || users.updated[0].Email != "new@example.com" {
					t.Errorf("Expected one update to new@example.com, got %+v", users.updated)
				}
			},
		},
		{
			name:           "existing user unchanged",
			header:         "bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-1", Email: "old@example.com", Name: "Ada"}},
			users:          &mockUsers{byProvider: map[string]*models.User{"sub-1": existing()}},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, users *mockUsers, _ *models.User) {
				if len(users.updated) != 0 {
					t.Errorf("Expected no updates, got %d", len(users.updated))
				}
			},
		},
		{
			name:           "update failure does not block",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-1", Email: "new@example.com"}},
			users:          &mockUsers{byProvider: map[string]*models.User{"sub-1": existing()}, updateErr: errors.New("db down")},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "first sign in creates user",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-2", Email: "grace@example.com", Name: "Grace", EmailVerified: true}},
			users:          &mockUsers{},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, users *mockUsers, got *models.User) {
				if len(users.created) != 1 {
					t.Fatalf("Expected 1 created user, got %d", len(users.created))
				}
				if got.ID == uuid.Nil || got.ID != users.created[0].ID {
					t.Errorf("Expected the created user in context, got %s", got.ID)
				}
				if got.ProviderID == nil || *got.ProviderID != "sub-2" {
					t.Errorf("Expected provider id sub-2, got %v", got.ProviderID)
				}
				if !got.EmailVerified {
					t.Error("Expected email_verified to follow the token")
				}
			},
		},
		{
			name:           "first sign in without email",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-3"}},
			users:          &mockUsers{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "create failure",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-2", Email: "grace@example.com"}},
			users:          &mockUsers{createErr: errors.New("unique violation")},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "lookup failure",
			header:         "Bearer good",
			auth:           &mockAuthenticator{claims: &models.JWTClaims{Sub: "sub-1"}},
			users:          &mockUsers{getErr: errors.New("connection refused")},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen *models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = request.UserFromContext(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/task-queue", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Auth(tt.users, tt.auth, zap.NewNop())(next).ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				if seen != nil {
					t.Error("Expected the inner handler not to run")
				}
				return
			}
			if seen == nil {
				t.Fatal("Expected a user in the request context")
			}
			if tt.auth.token != "good" {
				t.Errorf("Expected token 'good' to be verified, got %q", tt.auth.token)
			}
			if tt.validate != nil {
				tt.validate(t, tt.users, seen)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header   string
		expected string
		ok       bool
	}{
		{header: "Bearer abc.def", expected: "abc.def", ok: true},
		{header: "  bearer   abc  ", expected: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Bearer", ok: false},
		{header: "Token abc", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		got, ok := bearerToken(tt.header)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("bearerToken(%q): expected (%q, %v), got (%q, %v)", tt.header, tt.expected, tt.ok, got, ok)
		}
	}
}
