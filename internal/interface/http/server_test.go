package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/infrastructure/service"
	"github.com/rianlab/rianhub/internal/interface/http/handlers"
)

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	cfg := DefaultConfig()
	// No limiter goroutine in tests.
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, deps)
}

func doRequest(s *Server, method, path string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestRootAndHealthRoutes(t *testing.T) {
	s := newTestServer(t, Dependencies{HealthChecker: handlers.NewNoopHealthChecker()})

	rec := doRequest(s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var root struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "RianHub API", root.Name)

	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/ready").Code)
	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/live").Code)
}

type activitySpy struct {
	recorded chan string
}

func (a *activitySpy) Record(ctx context.Context, learnerID string) {
	a.recorded <- learnerID
}

func TestAuthenticatedRequestsRecordActivity(t *testing.T) {
	issuer, err := service.NewJWTIssuer(service.DefaultJWTConfig("test-secret"))
	require.NoError(t, err)
	spy := &activitySpy{recorded: make(chan string, 1)}
	s := newTestServer(t, Dependencies{Tokens: issuer, Activity: spy})

	token, _, err := issuer.Issue("learner-1", "learner")
	require.NoError(t, err)
	doRequest(s, http.MethodGet, "/api/v1/me", withBearer(token))

	select {
	case id := <-spy.recorded:
		assert.Equal(t, "learner-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("activity was never recorded")
	}

	// Anonymous requests never mark activity.
	doRequest(s, http.MethodGet, "/api/v1/leaderboard")
	select {
	case id := <-spy.recorded:
		t.Fatalf("unexpected activity for %q", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	rec := doRequest(s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnwiredRouteReturns501(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	rec := doRequest(s, http.MethodGet, "/api/v1/courses")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	issuer, err := service.NewJWTIssuer(service.DefaultJWTConfig("test-secret"))
	require.NoError(t, err)
	s := newTestServer(t, Dependencies{Tokens: issuer})

	rec := doRequest(s, http.MethodGet, "/api/v1/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = doRequest(s, http.MethodGet, "/api/v1/me", withBearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := issuer.Issue("learner-1", "learner")
	require.NoError(t, err)

	// A valid token moves past auth; the unwired handler answers 501.
	rec = doRequest(s, http.MethodGet, "/api/v1/me", withBearer(token))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{"unauthorized", shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", shared.ErrCourseNotFound, http.StatusNotFound, "not_found"},
		{"conflict", shared.ErrLearnerAlreadyExists, http.StatusConflict, "conflict"},
		{"invalid state", shared.ErrStateTransition, http.StatusConflict, "invalid_state"},
		{"expired", shared.ErrExpired, http.StatusGone, "expired"},
		{"rate limited", shared.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"external", shared.ErrExternalService, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)

			var resp JSONResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil)
	req.Header.Set("Origin", "https://app.rianhub.app")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
