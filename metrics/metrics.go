package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the generic interface that the proxy and the filters report
// to.
type Metrics interface {
	// Filters Metrics
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)

	// Proxy Metrics
	MeasureRouteLookup(start time.Time)
	MeasureBackend(routeID string, start time.Time)
	MeasureServe(routeID, host, method string, code int, start time.Time)
	IncRoutingFailures()
	IncErrorsBackend(routeID string)
	IncErrorsStreaming(routeID string)

	RegisterHandler(path string, handler *http.ServeMux)
}

// Options for initializing metrics collection.
type Options struct {
	// Common prefix for the keys of the different collected metrics,
	// used as the Prometheus namespace.
	Prefix string

	// If set, Go runtime and process metrics are collected in addition
	// to the http traffic metrics.
	EnableRuntimeMetrics bool

	// If set, the serve duration is recorded per host.
	EnableServeHostMetrics bool

	// Histogram buckets used for the duration metrics, defaults to
	// prometheus.DefBuckets.
	HistogramBuckets []float64

	// PrometheusRegistry is the Prometheus registry used for the metrics
	// collection. When not set, a new registry is created.
	PrometheusRegistry *prometheus.Registry
}

// Void discards every metric.
var Void Metrics = void{}

type void struct{}

func (void) MeasureSince(string, time.Time)                      {}
func (void) IncCounter(string)                                   {}
func (void) IncCounterBy(string, int64)                          {}
func (void) MeasureRouteLookup(time.Time)                        {}
func (void) MeasureBackend(string, time.Time)                    {}
func (void) MeasureServe(string, string, string, int, time.Time) {}
func (void) IncRoutingFailures()                                 {}
func (void) IncErrorsBackend(string)                             {}
func (void) IncErrorsStreaming(string)                           {}
func (void) RegisterHandler(string, *http.ServeMux)              {}
