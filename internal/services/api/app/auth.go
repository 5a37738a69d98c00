package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/civicledger/civicledger/internal/platform/requestctx"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates operator bearer tokens for guarded routes.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier from a shared HMAC secret.
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("operator token secret is required")
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

// VerifySubject parses a bearer token and returns its subject claim. Only
// HMAC-signed tokens are accepted; anything else is rejected before the
// claims are read.
func (v *TokenVerifier) VerifySubject(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", fmt.Errorf("parse operator token: %w", err)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("operator token has no subject")
	}
	return subject, nil
}

// requireOperator guards a route behind bearer-token auth. The verified
// subject is attached to the request context so downstream handlers and logs
// can attribute the access.
func (h *Handler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "operator auth is not configured"})
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		subject, err := h.auth.VerifySubject(strings.TrimSpace(token))
		if err != nil {
			h.logf("api: rejected operator token: %v", err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithSubject(r.Context(), subject)))
	})
}
