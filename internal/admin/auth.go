package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier mints and validates the HS256 bearer tokens that protect
// the API routes.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier over the configured admin secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Mint signs a token for subject valid for ttl.
func (v *TokenVerifier) Mint(subject string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("admin auth secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": "coldkeep",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses a token and returns its subject.
func (v *TokenVerifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("admin auth secret not configured")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

type contextKey string

const subjectContextKey contextKey = "admin-subject"

// subjectFromContext returns the token subject stored by requireAuth, or ""
// for unauthenticated routes.
func subjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectContextKey).(string)
	return s
}

// requireAuth rejects requests without a valid bearer token and stashes the
// token subject on the request context for handlers and audit logging.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			s.audit.LogAuth("", "denied", "missing authorization header", r.RemoteAddr)
			s.jsonError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.audit.LogAuth("", "denied", "invalid authorization header", r.RemoteAddr)
			s.jsonError(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		subject, err := s.verifier.Verify(parts[1])
		if err != nil {
			s.audit.LogAuth("", "denied", "invalid token", r.RemoteAddr)
			s.jsonError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
