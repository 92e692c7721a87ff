package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheck struct {
	name string
	err  error
}

func (s stubCheck) Name() string { return s.name }
func (s stubCheck) Health(context.Context) error { return s.err }

func TestAdminRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "circulation_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAdminRouter(reg, AdminConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz all healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewAdminRouter(reg, AdminConfig{Checks: []Checker{stubCheck{name: "postgres"}, stubCheck{name: "redis"}}})
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","redis":"ok"}}`, rec.Body.String())
	})

	t.Run("readyz with failing dependency", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewAdminRouter(reg, AdminConfig{Checks: []Checker{
			stubCheck{name: "postgres"},
			stubCheck{name: "redis", err: errors.New("connection refused")},
		}})
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAdminRouter(reg, AdminConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "circulation_test_total 1")
	})
}

type stubFirer struct {
	n     int
	err   error
	calls int
}

func (s *stubFirer) Fire(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

func TestAdminTaskTrigger(t *testing.T) {
	reg := prometheus.NewRegistry()
	recalc := &stubFirer{n: 3}
	reap := &stubFirer{n: 1, err: errors.New("queue full")}
	h := NewAdminRouter(reg, AdminConfig{
		Token: "s3cret",
		Triggers: map[string]Firer{
			"recalculate-hold-queue": recalc,
			"remove-expired-holds":   reap,
		},
	})

	run := func(task, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/tasks/"+task+"/run", nil)
		if token != "" {
			req.Header.Set(AdminTokenHeader, token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		rec := run("recalculate-hold-queue", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, recalc.calls)
	})

	t.Run("wrong token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, run("recalculate-hold-queue", "guess").Code)
	})

	t.Run("fires trigger", func(t *testing.T) {
		rec := run("recalculate-hold-queue", "s3cret")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"task":"recalculate-hold-queue","enqueued":3}`, rec.Body.String())
		assert.Equal(t, 1, recalc.calls)
	})

	t.Run("partial run", func(t *testing.T) {
		rec := run("remove-expired-holds", "s3cret")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "queue full")
	})

	t.Run("unknown task", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, run("rebuild-search", "s3cret").Code)
	})

	t.Run("disabled without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAdminRouter(reg, AdminConfig{Triggers: map[string]Firer{"recalculate-hold-queue": recalc}}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/recalculate-hold-queue/run", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminTaskRunsAreRateLimited(t *testing.T) {
	h := NewAdminRouter(prometheus.NewRegistry(), AdminConfig{
		Token:             "s3cret",
		Triggers:          map[string]Firer{"remove-expired-holds": &stubFirer{}},
		TaskRunsPerMinute: 2,
	})
	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/tasks/remove-expired-holds/run", nil)
		req.Header.Set(AdminTokenHeader, "s3cret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
}

func TestServiceStopsOnCancel(t *testing.T) {
	svc := NewService("admin", New("127.0.0.1:0", http.NotFoundHandler()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()
	err := <-done
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "admin", svc.String())
}
