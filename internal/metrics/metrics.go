// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo is stamped into sitrep_build_info.
type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Build BuildInfo
}

// Provider is a private registry with the runtime collectors and build info
// already registered. Domain collectors join through Registerer.
type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitrep_build_info",
			Help: "Build of the running sitrep binary (always 1).",
		},
		[]string{"version", "revision", "branch", "build_date", "go_version"},
	)
	reg.MustRegister(build)
	b := cfg.Build
	if b.Version == "" {
		b.Version = "dev"
	}
	build.WithLabelValues(b.Version, b.Revision, b.Branch, b.BuildDate, runtime.Version()).Set(1)

	return &Provider{reg: reg}
}

// Handler serves the registry; collection errors are reported in the
// response instead of failing the scrape.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// Gatherer is used by tests to read back collected series.
func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }
