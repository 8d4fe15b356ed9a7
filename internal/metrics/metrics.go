// Package metrics exposes limiter activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/formguard/internal/ratelimit"
)

const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
)

// Collector implements ratelimit.Observer on a private registry. Labels never
// carry the storage key, which embeds visitor ids.
type Collector struct {
	reg         *prometheus.Registry
	handler     http.Handler
	attempts    *prometheus.CounterVec
	exceeded    prometheus.Counter
	diagnostics *prometheus.CounterVec
}

// New returns a collector with Go and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		reg: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formguard_attempts_total",
			Help: "Attempts recorded by result",
		}, []string{"result"}),
		exceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formguard_limit_exceeded_total",
			Help: "Times an attempt budget was exhausted",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formguard_diagnostics_total",
			Help: "Limiter diagnostics by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(c.attempts, c.exceeded, c.diagnostics)

	// Pre-create label series so they scrape as zero.
	c.attempts.WithLabelValues(ResultAllowed)
	c.attempts.WithLabelValues(ResultDenied)

	c.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return c.handler
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) AttemptRecorded(_ string, allowed bool) {
	result := ResultDenied
	if allowed {
		result = ResultAllowed
	}

	c.attempts.WithLabelValues(result).Inc()
}

func (c *Collector) LimitExceeded(_ string) {
	c.exceeded.Inc()
}

func (c *Collector) Diagnostic(_ string, err error) {
	c.diagnostics.WithLabelValues(ratelimit.Kind(err)).Inc()
}

var _ ratelimit.Observer = (*Collector)(nil)
