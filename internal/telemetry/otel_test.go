package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{
			name: "insecure local collector",
			opts: Options{ServiceName: "test-service", Endpoint: "localhost:4318", Insecure: true, SamplerRatio: 1},
		},
		{
			name: "empty service name falls back to default",
			opts: Options{Endpoint: "localhost:4318", SamplerRatio: 0.5},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.opts)
			if err != nil {
				t.Fatalf("InitTracer() error = %v", err)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := Shutdown(shutdownCtx, tp); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio    float64
		contains string
	}{
		{ratio: 1, contains: "AlwaysOnSampler"},
		{ratio: 3, contains: "AlwaysOnSampler"},
		{ratio: 0, contains: "AlwaysOffSampler"},
		{ratio: -1, contains: "AlwaysOffSampler"},
		{ratio: 0.25, contains: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		tt := tt
		desc := Sampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") || !strings.Contains(desc, tt.contains) {
			t.Errorf("Sampler(%v): expected parent-based %s, got %s", tt.ratio, tt.contains, desc)
		}
	}
}

func TestShutdown(t *testing.T) {
	t.Run("shutdown with nil provider", func(t *testing.T) {
		if err := Shutdown(context.Background(), nil); err != nil {
			t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
		}
	})
}
