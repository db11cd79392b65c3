package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionCookie carries the access token of browser sessions
const SessionCookie = "merpwms_session"

// Claims identifies the caller of a request
type Claims struct {
	UserID string
	Login  string
	Role   string
}

// IsAdmin reports whether the caller has the administrator role
func (c Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// ClaimsFrom returns the caller stored by Auth
func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(UserContextKey).(Claims)
	return c, ok
}

// WithClaims stores the caller in ctx
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, c)
}

// Auth verifies session tokens
type Auth struct {
	secret string
}

// NewAuth creates the authentication middleware
func NewAuth(secret string) *Auth {
	return &Auth{secret: secret}
}

func (a *Auth) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects requests without a valid session token. The token is
// read from a Bearer header or the session cookie.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := a.token(r)
		if tokenString == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ValidateSessionToken(tokenString, a.secret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		c := Claims{}
		c.UserID, _ = claims["id"].(string)
		c.Login, _ = claims["login"].(string)
		c.Role, _ = claims["role"].(string)
		if c.UserID == "" {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

// RequireAdmin lets only administrators through. It must run after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		if !ok || !c.IsAdmin() {
			http.Error(w, "Administrator role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
