package proxy

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/logging"
	"github.com/zalando/hubmirror/metrics"
	"github.com/zalando/hubmirror/routing"
)

type context struct {
	responseWriter     flushedResponseWriter
	request            *http.Request
	response           *http.Response
	route              *routing.Route
	servedWithResponse bool
	stateBag           map[string]any
	outgoingHost       string
	startServe         time.Time
	metrics            metrics.Metrics
	metricsPrefix      string
	log                logging.Logger
}

type filterMetrics struct {
	prefix string
	impl   metrics.Metrics
}

func defaultBody() io.ReadCloser {
	return io.NopCloser(&bytes.Buffer{})
}

func defaultResponse(r *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     make(http.Header),
		Body:       defaultBody(),
		Request:    r,
	}
}

func newContext(w flushedResponseWriter, r *http.Request, m metrics.Metrics, l logging.Logger) *context {
	return &context{
		responseWriter: w,
		request:        r,
		stateBag:       make(map[string]any),
		outgoingHost:   r.Host,
		startServe:     time.Now(),
		metrics:        m,
		log:            l,
	}
}

func (c *context) applyRoute(route *routing.Route, preserveHost bool) {
	c.route = route
	if preserveHost {
		c.outgoingHost = c.request.Host
	} else {
		c.outgoingHost = route.Host
	}
}

func (c *context) ensureDefaultResponse() {
	if c.response == nil {
		c.response = defaultResponse(c.request)
		return
	}

	if c.response.Header == nil {
		c.response.Header = make(http.Header)
	}

	if c.response.Body == nil {
		c.response.Body = defaultBody()
	}
}

func (c *context) shunted() bool {
	return c.servedWithResponse
}

func (c *context) setMetricsPrefix(filterName string) {
	c.metricsPrefix = filterName + "."
}

func (c *context) routeID() string {
	if c.route == nil {
		return unknownRouteID
	}

	return c.route.Id
}

func (c *context) ResponseWriter() http.ResponseWriter { return c.responseWriter }
func (c *context) Request() *http.Request              { return c.request }
func (c *context) Response() *http.Response            { return c.response }
func (c *context) Served() bool                        { return c.servedWithResponse }
func (c *context) StateBag() map[string]any            { return c.stateBag }
func (c *context) OutgoingHost() string                { return c.outgoingHost }
func (c *context) SetOutgoingHost(h string)            { c.outgoingHost = h }
func (c *context) Logger() filters.FilterContextLogger { return c.log }

// Metrics returns the metrics of the filter currently executed. The
// returned object keeps the prefix of that filter, so it can be used
// after the filter returned, e.g. by a streaming body.
func (c *context) Metrics() filters.Metrics {
	return &filterMetrics{prefix: c.metricsPrefix, impl: c.metrics}
}

func (c *context) Serve(r *http.Response) {
	r.Request = c.Request()

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	if r.Body == nil {
		r.Body = defaultBody()
	}

	c.servedWithResponse = true
	c.response = r
}

func (m *filterMetrics) MeasureSince(key string, start time.Time) {
	m.impl.MeasureSince(m.prefix+key, start)
}

func (m *filterMetrics) IncCounter(key string) {
	m.impl.IncCounter(m.prefix + key)
}

func (m *filterMetrics) IncCounterBy(key string, value int64) {
	m.impl.IncCounterBy(m.prefix+key, value)
}
