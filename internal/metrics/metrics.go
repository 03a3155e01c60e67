// Package metrics exposes the engine's Prometheus instrumentation (spec
// §4.10): query counters by transport and RCODE, a histogram of resolver
// iteration counts, a cache-size gauge, and RRL action counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the engine records, bound to its own
// prometheus.Registerer so multiple engines in one process (tests) don't
// collide on the global default registry.
type Registry struct {
	reg *prometheus.Registry

	Queries            *prometheus.CounterVec
	ResolverIterations prometheus.Histogram
	CacheSize          prometheus.Gauge
	RRLActions         *prometheus.CounterVec
}

// New creates a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dnscored",
			Name:      "queries_total",
			Help:      "Total DNS queries handled, partitioned by transport and response RCODE.",
		}, []string{"transport", "rcode"}),

		ResolverIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dnscored",
			Name:      "resolver_iterations",
			Help:      "Outer iterations consumed per recursive resolution (spec-capped at 32).",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
		}),

		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dnscored",
			Name:      "cache_entries",
			Help:      "Current number of entries held in the resolver response cache.",
		}),

		RRLActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dnscored",
			Name:      "rrl_actions_total",
			Help:      "Response Rate Limiting actions taken, partitioned by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(r.Queries, r.ResolverIterations, r.CacheSize, r.RRLActions)
	return r
}

// ObserveIterations records a completed recursive resolution's iteration
// count. Suitable for use as a resolver.Config.OnIterations hook.
func (r *Registry) ObserveIterations(n int) {
	r.ResolverIterations.Observe(float64(n))
}

// RecordQuery increments the query counter for the given transport and
// RCODE.
func (r *Registry) RecordQuery(transportName string, rcode uint8) {
	r.Queries.WithLabelValues(transportName, rcodeLabel(rcode)).Inc()
}

// RecordRRLAction increments the counter for an RRL disposition.
func (r *Registry) RecordRRLAction(action string) {
	r.RRLActions.WithLabelValues(action).Inc()
}

// SetCacheSize updates the cache-size gauge.
func (r *Registry) SetCacheSize(n int) {
	r.CacheSize.Set(float64(n))
}

func rcodeLabel(rcode uint8) string {
	switch rcode {
	case 0:
		return "noerror"
	case 1:
		return "formerr"
	case 2:
		return "servfail"
	case 3:
		return "nxdomain"
	case 4:
		return "notimp"
	case 5:
		return "refused"
	default:
		return "other"
	}
}

// Handler returns the net/http handler serving this registry's metrics in
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve starts a plain net/http server exposing /metrics on addr, the same
// way the teacher's gRPC command wires a dedicated metrics listener
// alongside the main service. It runs until ctx is canceled or the listener
// fails.
func Serve(ctx context.Context, addr string, r *Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
