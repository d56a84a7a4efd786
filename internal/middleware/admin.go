package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelforge/waitlist/internal/auth"
)

// defaultMinAuthDuration pads every admin check so failures and successes
// take the same time.
const defaultMinAuthDuration = 200 * time.Millisecond

// AdminAuthConfig holds configuration for the admin middleware.
type AdminAuthConfig struct {
	Logger *slog.Logger
	// TokenHash is the Argon2id PHC hash of the admin token. Empty disables
	// the protected routes.
	TokenHash   string
	MinDuration time.Duration
}

// AdminAuth guards administrative routes with a bearer token.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration < 0 {
		minDuration = 0
	} else if minDuration == 0 {
		minDuration = defaultMinAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TokenHash == "" {
				writeJSONError(w, http.StatusForbidden, "admin access disabled")
				return
			}

			start := time.Now()
			ok, reason := verifyAdmin(r, cfg.TokenHash)
			if elapsed := time.Since(start); elapsed < minDuration {
				time.Sleep(minDuration - elapsed)
			}

			if !ok {
				cfg.Logger.Warn("admin authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="waitlist"`)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifyAdmin(r *http.Request, hash string) (bool, string) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return false, "missing_token"
	}
	match, err := auth.VerifyToken(token, hash)
	if err != nil {
		return false, "invalid_hash"
	}
	if !match {
		return false, "invalid_token"
	}
	return true, ""
}
