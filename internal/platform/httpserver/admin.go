package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const checkTimeout = 2 * time.Second

// Checker reports the health of one dependency.
type Checker interface {
	Name() string
	Health(ctx context.Context) error
}

// Firer runs one pass of a periodic task on demand and reports how many
// tasks it queued.
type Firer interface {
	Fire(ctx context.Context) (int, error)
}

// AdminConfig configures the admin router. The task endpoints are only
// mounted when Token is set. TaskRunsPerMinute limits them per client IP;
// zero disables the limit.
type AdminConfig struct {
	Checks            []Checker
	Token             string
	Triggers          map[string]Firer
	TaskRunsPerMinute int
	Logger            *slog.Logger
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type fired struct {
	Task     string `json:"task"`
	Enqueued int    `json:"enqueued"`
	Error    string `json:"error,omitempty"`
}

// NewAdminRouter serves liveness, readiness over cfg.Checks, the metrics in
// gatherer and, behind the admin token, on-demand task runs.
func NewAdminRouter(gatherer prometheus.Gatherer, cfg AdminConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
		defer cancel()

		body := readiness{Status: "ok", Checks: make(map[string]string, len(cfg.Checks))}
		status := http.StatusOK
		for _, c := range cfg.Checks {
			if err := c.Health(ctx); err != nil {
				body.Checks[c.Name()] = err.Error()
				body.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[c.Name()] = "ok"
		}
		writeJSON(w, status, body)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.Token != "" {
		r.Group(func(r chi.Router) {
			if cfg.TaskRunsPerMinute > 0 {
				r.Use(httprate.LimitByIP(cfg.TaskRunsPerMinute, time.Minute))
			}
			r.Use(RequireAdminToken(cfg.Token, cfg.Logger))
			r.Post("/tasks/{task}/run", func(w http.ResponseWriter, req *http.Request) {
				task := chi.URLParam(req, "task")
				trigger, ok := cfg.Triggers[task]
				if !ok {
					writeJSON(w, http.StatusNotFound, fired{Task: task, Error: "unknown task"})
					return
				}
				n, err := trigger.Fire(req.Context())
				if err != nil {
					cfg.Logger.WarnContext(req.Context(), "on-demand task run incomplete",
						"task", task,
						"enqueued", n,
						"request_id", chimiddleware.GetReqID(req.Context()),
						"error", err,
					)
					writeJSON(w, http.StatusServiceUnavailable, fired{Task: task, Enqueued: n, Error: err.Error()})
					return
				}
				writeJSON(w, http.StatusAccepted, fired{Task: task, Enqueued: n})
			})
		})
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoniter.ConfigFastest.NewEncoder(w).Encode(body)
}
