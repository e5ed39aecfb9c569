package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace          = "hubmirror"
	promRouteSubsystem     = "route"
	promProxySubsystem     = "backend"
	promStreamingSubsystem = "streaming"
	promServeSubsystem     = "serve"
	promCustomSubsystem    = "custom"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	routeLookupM          prometheus.Histogram
	routeErrorsM          prometheus.Counter
	proxyBackendM         *prometheus.HistogramVec
	proxyBackendErrorsM   *prometheus.CounterVec
	proxyStreamingErrorsM *prometheus.CounterVec
	serveRouteM           *prometheus.HistogramVec
	serveHostM            *prometheus.HistogramVec
	customHistogramM      *prometheus.HistogramVec
	customCounterM        *prometheus.CounterVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	p := &Prometheus{
		routeLookupM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "lookup_duration_seconds",
			Help:      "Duration in seconds of a route lookup.",
			Buckets:   buckets,
		}),
		routeErrorsM: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "error_total",
			Help:      "The total of route lookup errors.",
		}),
		proxyBackendM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promProxySubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of a proxy backend.",
			Buckets:   buckets,
		}, []string{"route"}),
		proxyBackendErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promProxySubsystem,
			Name:      "error_total",
			Help:      "Total number of backend route errors.",
		}, []string{"route"}),
		proxyStreamingErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promStreamingSubsystem,
			Name:      "error_total",
			Help:      "Total number of streaming route errors.",
		}, []string{"route"}),
		serveRouteM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "route_duration_seconds",
			Help:      "Duration in seconds of serving a route.",
			Buckets:   buckets,
		}, []string{"code", "method", "route"}),
		serveHostM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "host_duration_seconds",
			Help:      "Duration in seconds of serving a host.",
			Buckets:   buckets,
		}, []string{"code", "method", "host"}),
		customHistogramM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promCustomSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of custom metrics.",
			Buckets:   buckets,
		}, []string{"key"}),
		customCounterM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promCustomSubsystem,
			Name:      "total",
			Help:      "Total number of custom metrics.",
		}, []string{"key"}),

		registry: opts.PrometheusRegistry,
		opts:     opts,
	}

	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}

	p.registerMetrics()
	return p
}

// sinceS returns the seconds passed since the start time until now.
func (p *Prometheus) sinceS(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(
		p.routeLookupM,
		p.routeErrorsM,
		p.proxyBackendM,
		p.proxyBackendErrorsM,
		p.proxyStreamingErrorsM,
		p.serveRouteM,
		p.serveHostM,
		p.customHistogramM,
		p.customCounterM,
	)

	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, p.getHandler())
}

// MeasureSince satisfies Metrics interface.
func (p *Prometheus) MeasureSince(key string, start time.Time) {
	p.customHistogramM.WithLabelValues(key).Observe(p.sinceS(start))
}

// IncCounter satisfies Metrics interface.
func (p *Prometheus) IncCounter(key string) {
	p.customCounterM.WithLabelValues(key).Inc()
}

// IncCounterBy satisfies Metrics interface.
func (p *Prometheus) IncCounterBy(key string, value int64) {
	p.customCounterM.WithLabelValues(key).Add(float64(value))
}

// MeasureRouteLookup satisfies Metrics interface.
func (p *Prometheus) MeasureRouteLookup(start time.Time) {
	p.routeLookupM.Observe(p.sinceS(start))
}

// MeasureBackend satisfies Metrics interface.
func (p *Prometheus) MeasureBackend(routeID string, start time.Time) {
	p.proxyBackendM.WithLabelValues(routeID).Observe(p.sinceS(start))
}

// MeasureServe satisfies Metrics interface.
func (p *Prometheus) MeasureServe(routeID, host, method string, code int, start time.Time) {
	method = measuredMethod(method)
	t := p.sinceS(start)
	p.serveRouteM.WithLabelValues(fmt.Sprint(code), method, routeID).Observe(t)
	if p.opts.EnableServeHostMetrics {
		p.serveHostM.WithLabelValues(fmt.Sprint(code), method, hostForKey(host)).Observe(t)
	}
}

// IncRoutingFailures satisfies Metrics interface.
func (p *Prometheus) IncRoutingFailures() {
	p.routeErrorsM.Inc()
}

// IncErrorsBackend satisfies Metrics interface.
func (p *Prometheus) IncErrorsBackend(routeID string) {
	p.proxyBackendErrorsM.WithLabelValues(routeID).Inc()
}

// IncErrorsStreaming satisfies Metrics interface.
func (p *Prometheus) IncErrorsStreaming(routeID string) {
	p.proxyStreamingErrorsM.WithLabelValues(routeID).Inc()
}
