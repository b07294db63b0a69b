package models

import "testing"

func TestParseDifficulty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input     string
		expected  Difficulty
		expectErr bool
	}{
		{input: "easy", expected: DifficultyEasy},
		{input: "Medium", expected: DifficultyMedium},
		{input: " HARD ", expected: DifficultyHard},
		{input: "extreme", expectErr: true},
		{input: "", expectErr: true},
	}
	for _, tt := range tests {
		tt := tt
		got, err := ParseDifficulty(tt.input)
		if (err != nil) != tt.expectErr {
			t.Errorf("ParseDifficulty(%q): expected error %v, got %v", tt.input, tt.expectErr, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDifficulty(%q): expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestUser_DisplayName(t *testing.T) {
	t.Parallel()

	name := "Ada Lovelace"
	blank := "  "
	tests := []struct {
		name     string
		user     User
		expected string
	}{
		{name: "uses name", user: User{Email: "ada@example.com", Name: &name}, expected: "Ada Lovelace"},
		{name: "blank name falls back to email", user: User{Email: "ada@example.com", Name: &blank}, expected: "ada"},
		{name: "no name", user: User{Email: "grace@example.com"}, expected: "grace"},
		{name: "malformed email", user: User{Email: "nobody"}, expected: "nobody"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.user.DisplayName(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestOIDCConfig_IsPublicClient(t *testing.T) {
	t.Parallel()

	empty := ""
	secret := "s3cret"
	if !(&OIDCConfig{}).IsPublicClient() {
		t.Error("Expected nil secret to be a public client")
	}
	if !(&OIDCConfig{ClientSecret: &empty}).IsPublicClient() {
		t.Error("Expected empty secret to be a public client")
	}
	if (&OIDCConfig{ClientSecret: &secret}).IsPublicClient() {
		t.Error("Expected configured secret to be a confidential client")
	}
}
