package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerAuth is middleware that validates Bearer token authentication.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, reason := bearerToken(r.Header.Get("Authorization"))
		if reason != "" {
			s.unauthorized(w, reason)
			return
		}

		if !constantTimeEqual(token, s.config.Token) {
			s.unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header value. An empty
// reason means the token parsed.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing Authorization header"
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", "invalid Authorization header format"
	}

	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", "missing token"
	}
	return token, ""
}

func (s *Server) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	s.writeError(w, http.StatusUnauthorized, message)
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
