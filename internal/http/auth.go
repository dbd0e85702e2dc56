package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"tally/internal/core"
)

type contextKey string

const (
	userKey      contextKey = "user"
	requestIDKey contextKey = "request_id"
)

// requireAuth validates the bearer token and resolves the caller to a
// local user. The token subject is the identity provider's stable
// user ID; first contact creates the local row.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			slog.WarnContext(r.Context(), "Rejected invalid token", "error", err)
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			writeJSONError(w, http.StatusUnauthorized, "token has no subject")
			return
		}

		user, err := s.store.FindOrCreateUser(r.Context(), subject)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to resolve user", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

// userFrom returns the authenticated user placed by requireAuth.
func userFrom(r *http.Request) *core.User {
	user, _ := r.Context().Value(userKey).(*core.User)
	return user
}
