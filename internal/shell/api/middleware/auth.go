// Package middleware provides HTTP middleware for the polls API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Admin Auth Configuration
// =============================================================================

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token.
	// If empty, admin routes are open.
	TokenHash string

	// Logger for auth middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Admin Auth Middleware
// =============================================================================

// AdminAuth guards write routes with a single shared bearer token.
type AdminAuth struct {
	hash   []byte
	logger *slog.Logger
}

// NewAdminAuth creates the middleware. It returns an error when the
// configured hash is not a bcrypt hash.
func NewAdminAuth(cfg AdminAuthConfig) (*AdminAuth, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &AdminAuth{logger: cfg.Logger}
	if cfg.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.TokenHash)); err != nil {
			return nil, err
		}
		a.hash = []byte(cfg.TokenHash)
	}
	return a, nil
}

// Enabled reports whether a token is required.
func (a *AdminAuth) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Handler returns the middleware handler function.
func (a *AdminAuth) Handler(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			a.logger.Warn("missing admin token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="polls"`)
			writeJSONError(w, http.StatusUnauthorized, "authentication required", "unauthorized")
			return
		}
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
			a.logger.Warn("invalid admin token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "invalid admin token", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashToken returns the bcrypt hash to put in configuration for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// =============================================================================
// JSON Error Response
// =============================================================================

// errorResponse mirrors the API error shape.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
