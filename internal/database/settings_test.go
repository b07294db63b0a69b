package database

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestAllowedOriginsSlice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"only separators", " , ,", nil},
		{"single", "https://practice.example.com", []string{"https://practice.example.com"}},
		{"comma separated", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"duplicates dropped", "x, x, y", []string{"x", "y"}},
		{"trailing slash normalized", "https://a.com/, https://a.com", []string{"https://a.com"}},
		{"whitespace trimmed", "  a  ,  b  ", []string{"a", "b"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := AllowedOriginsSlice(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedOriginsSlice(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestErrNotFound(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("attempt a1: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("Expected wrapped error to match ErrNotFound")
	}
	if !errors.Is(wrapped, sql.ErrNoRows) {
		t.Error("Expected ErrNotFound to match sql.ErrNoRows")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("Expected error for empty database URL")
	}
}

func TestMigrationsCoverAllTables(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"users", "oidc_config", "cors_config", "ratelimit_config", "topics", "problems", "attempts"} {
		if !strings.Contains(migrationsSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("Expected migrations to create table %s", table)
		}
	}
}
