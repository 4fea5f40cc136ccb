package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bixapp/bix/internal/logging"
)

// TokenVerifier resolves a bearer access token to a user id.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// Authenticate requires a valid bearer token and records the caller's user id
// on the request context (see logging.UserIDFromContext).
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("rejected access token", "error", err)
				writeError(w, http.StatusUnauthorized, "session expired, sign in again")
				return
			}

			ctx := logging.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
