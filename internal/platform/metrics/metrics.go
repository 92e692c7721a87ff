package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide registry every component registers into.
type Metrics struct {
	Registry  *prometheus.Registry
	BuildInfo *prometheus.GaugeVec
}

// New creates a registry with Go runtime and process collectors and a build
// info gauge set to 1.
func New(service, environment string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		Registry: reg,
		BuildInfo: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "circulation_worker_info",
			Help: "Static information about the running worker",
		}, []string{"service", "environment"}),
	}
	m.BuildInfo.WithLabelValues(service, environment).Set(1)
	return m
}
