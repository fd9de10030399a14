package echoapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/roster/core/roster"
)

const metricsNamespace = "roster"

// metrics owns a private registry so that several servers (tests) can coexist.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func newMetrics(svc *roster.Service) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, kind := range roster.Kinds {
		kind := kind
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "records",
			Help:        "Records currently stored, by kind.",
			ConstLabels: prometheus.Labels{"kind": string(kind)},
		}, func() float64 {
			counts, err := svc.Counts(context.Background())
			if err != nil {
				return 0
			}
			switch kind {
			case roster.KindStudent:
				return float64(counts.Students)
			case roster.KindInstructor:
				return float64(counts.Instructors)
			}
			return float64(counts.Courses)
		}))
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
