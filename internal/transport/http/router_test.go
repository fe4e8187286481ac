package http

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attendance-notifier/internal/application/delivery"
	"github.com/attendance-notifier/internal/application/user"
	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/domain"
	jwtinfra "github.com/attendance-notifier/internal/infrastructure/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUsers implements only Get; other methods panic if reached.
type stubUsers struct{ user.Service }

func (stubUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	return &domain.User{UserID: userID}, nil
}

type stubPipeline struct{ sweeps int }

func (p *stubPipeline) ProcessDue(context.Context) (delivery.Report, error) {
	p.sweeps++
	return delivery.Report{}, nil
}

func (p *stubPipeline) Cleanup(context.Context, int) (delivery.CleanupReport, error) {
	return delivery.CleanupReport{}, nil
}

type routerFixture struct {
	handler  http.Handler
	provider *jwtinfra.Provider
	pipeline *stubPipeline
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))

	p := &stubPipeline{}
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	h := NewRouter(t.Context(), cfg, &Deps{
		Users:    stubUsers{},
		Pipeline: p,
		Verifier: provider,
		Gatherer: reg,
	})
	return &routerFixture{handler: h, provider: provider, pipeline: p}
}

func (f *routerFixture) do(t *testing.T, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := f.provider.Sign("u1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PublicRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodGet, "/v1/health-check/ping", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "router_test_total")
}

func TestRouter_RequiresBearer(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodGet, "/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/users/me", domain.RoleUser)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"u1"`)
}

func TestRouter_AdminJobs(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/admin/jobs/process-due", domain.RoleUser)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, f.pipeline.sweeps)

	rr = f.do(t, http.MethodPost, "/v1/admin/jobs/process-due", domain.RoleAdmin)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, f.pipeline.sweeps)
}
