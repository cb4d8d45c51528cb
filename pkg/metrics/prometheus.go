package metrics

import (
	"fmt"
	"net/http"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fixinject"

// promMirror duplicates the engine's counters into a Prometheus
// registry so a scraper sees the same numbers the snapshot logger does.
type promMirror struct {
	registry *prometheus.Registry
	messages prometheus.Counter
	errors   prometheus.Counter
	bytes    prometheus.Counter
	latency  prometheus.Histogram
}

func newPromMirror(reg *prometheus.Registry) *promMirror {
	m := &promMirror{
		registry: reg,
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_injected_total",
			Help:      "Total messages injected",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inject_errors_total",
			Help:      "Total failed injections",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_injected_total",
			Help:      "Total bytes written to the target socket",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inject_latency_seconds",
			Help:      "Per-message injection latency",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	reg.MustRegister(m.messages, m.errors, m.bytes, m.latency)
	return m
}

// StartServer exposes the mirrored registry on /metrics. It is a no-op
// when the engine carries no Prometheus mirror.
func (p *Performance) StartServer(port int, logger log.Logger) {
	if p.mirror == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.mirror.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("prometheus metrics available", "endpoint", fmt.Sprintf("http://localhost%s/metrics", addr))
}
