package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/utils"
)

const secret = "test-secret"

func protected(t *testing.T) http.Handler {
	t.Helper()
	auth := NewAuth(secret)
	return auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		require.True(t, ok)
		w.Write([]byte(c.Login))
	}))
}

func TestAuthMiddleware(t *testing.T) {
	access, refresh, err := utils.GenerateTokens(&models.UserAuth{ID: "u1", Login: "demo", Role: models.RoleUser}, secret)
	require.NoError(t, err)
	pending, err := utils.GeneratePendingToken("u1", "", secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: access}) }, http.StatusOK},
		{"bad scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+access) }, http.StatusUnauthorized},
		{"pending token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pending) }, http.StatusUnauthorized},
		{"refresh token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+refresh) }, http.StatusUnauthorized},
		{"refresh cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: refresh}) }, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer x.y.z") }, http.StatusUnauthorized},
	}

	h := protected(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "demo", rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), Claims{UserID: "u1", Role: models.RoleUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), Claims{UserID: "u2", Role: models.RoleAdmin})))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
