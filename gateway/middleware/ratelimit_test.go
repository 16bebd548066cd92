package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: true, MaxRequests: 2, WindowSeconds: 60})

	require.True(t, rl.Allow("agent:a"))
	require.True(t, rl.Allow("agent:a"))
	require.False(t, rl.Allow("agent:a"))
	require.True(t, rl.Allow("agent:b"))
}

func TestRateLimiterMiddlewareDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: false, MaxRequests: 1, WindowSeconds: 60})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterMiddlewareThrottles(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: true, MaxRequests: 1, WindowSeconds: 60})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthenticatorRoundTrip(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: "0123456789abcdef0123456789abcdef", Issuer: "sardis"}, nil)
	token, err := auth.Issue("agent_1", []string{"payments", "wallets"}, time.Hour)
	require.NoError(t, err)

	var gotAgent string
	var gotScopes []string
	handler := auth.Middleware("payments")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = AgentID(r.Context())
		gotScopes = Scopes(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "agent_1", gotAgent)
	require.Equal(t, []string{"payments", "wallets"}, gotScopes)
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: "0123456789abcdef0123456789abcdef"}, nil)
	handler := auth.Middleware("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewAuthenticator(AuthConfig{Secret: "a completely different secret!!"}, nil)
	token, err := other.Issue("agent_1", []string{"admin"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err = auth.Issue("agent_1", []string{"payments"}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
