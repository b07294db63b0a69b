package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
	}{
		{name: "GET request", method: http.MethodGet, path: "/api/v1/task-queue", handlerStatus: http.StatusOK},
		{name: "POST request", method: http.MethodPost, path: "/api/v1/attempts", handlerStatus: http.StatusCreated},
		{name: "404 request", method: http.MethodGet, path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Expected logged status %d, got %v", tt.handlerStatus, fields["status_code"])
			}
			if fields["path"] != tt.path {
				t.Errorf("Expected logged path %s, got %v", tt.path, fields["path"])
			}
		})
	}
}

func TestLogging_ImplicitOK(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test"))
	})

	Logging(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 || entries[0].ContextMap()["status_code"] != int64(http.StatusOK) {
		t.Errorf("Expected a 200 entry for a handler that never calls WriteHeader, got %+v", entries)
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		expectedEvent string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expectedEvent: "security_event"},
		{name: "forbidden", status: http.StatusForbidden, expectedEvent: "security_event"},
		{name: "rate limited", status: http.StatusTooManyRequests, expectedEvent: "rate_limit_violation"},
		{name: "success is not audited", status: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.WarnLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
			Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

			if tt.expectedEvent == "" {
				if logs.Len() != 0 {
					t.Errorf("Expected no audit entries, got %d", logs.Len())
				}
				return
			}
			entries := logs.FilterMessage(tt.expectedEvent).All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 %s entry, got %d", tt.expectedEvent, len(entries))
			}
			if ip := entries[0].ContextMap()["ip"]; ip != "203.0.113.9" {
				t.Errorf("Expected ip 203.0.113.9, got %v", ip)
			}
		})
	}
}
