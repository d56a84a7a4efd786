package auth

import (
	"strings"
	"testing"
)

func TestGenerateAdminToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateAdminToken()
	if err != nil {
		t.Fatalf("GenerateAdminToken failed: %v", err)
	}

	if !strings.HasPrefix(tok.Plaintext, TokenPrefix) {
		t.Errorf("token %q missing prefix %q", tok.Plaintext, TokenPrefix)
	}
	if !ValidateTokenFormat(tok.Plaintext) {
		t.Errorf("generated token %q fails its own format check", tok.Plaintext)
	}

	match, err := VerifyToken(tok.Plaintext, tok.Hash)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if !match {
		t.Error("generated hash should verify the generated token")
	}
}

func TestGenerateAdminToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		tok, err := GenerateAdminToken()
		if err != nil {
			t.Fatalf("GenerateAdminToken failed: %v", err)
		}
		if seen[tok.Plaintext] {
			t.Fatalf("duplicate token %q", tok.Plaintext)
		}
		seen[tok.Plaintext] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  bool
	}{
		{"wla_0123456789abcdef0123456789abcdef", true},
		{"wla_0123456789ABCDEF0123456789abcdef", false},
		{"wla_0123", false},
		{"pk_live_abc123_0123456789abcdef0123456789abcdef", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateTokenFormat(tt.token); got != tt.want {
			t.Errorf("ValidateTokenFormat(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"bearer", "Bearer abc", "abc", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"basic", "Basic abc", "", false},
		{"no token", "Bearer ", "", false},
		{"empty", "", "", false},
		{"no space", "Bearerabc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
