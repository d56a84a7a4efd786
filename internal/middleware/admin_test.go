package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelforge/waitlist/internal/auth"
	"github.com/modelforge/waitlist/internal/testutil"
)

func TestAdminAuth(t *testing.T) {
	t.Parallel()

	const token = "wla_0123456789abcdef0123456789abcdef"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	tests := []struct {
		name       string
		tokenHash  string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"disabled without hash", "", "Bearer " + token, http.StatusForbidden, `{"error":"admin access disabled"}`},
		{"missing header", hash, "", http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"wrong scheme", hash, "Basic " + token, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"wrong token", hash, "Bearer wla_fedcba9876543210fedcba9876543210", http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"malformed hash", "not-a-hash", "Bearer " + token, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"valid token", hash, "Bearer " + token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := AdminAuth(AdminAuthConfig{
				Logger:      testutil.DiscardLogger(),
				TokenHash:   tt.tokenHash,
				MinDuration: -1,
			})(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/signups", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && strings.TrimSpace(w.Body.String()) != tt.wantBody {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 should carry WWW-Authenticate")
			}
		})
	}
}

func TestAdminAuthPadsFailures(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("wla_0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	const pad = 50 * time.Millisecond
	handler := AdminAuth(AdminAuthConfig{
		Logger:      testutil.DiscardLogger(),
		TokenHash:   hash,
		MinDuration: pad,
	})(okHandler())

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/signups", nil))
	if elapsed := time.Since(start); elapsed < pad {
		t.Errorf("failure returned after %v, want at least %v", elapsed, pad)
	}
}
