package proxy

import (
	stdlibcontext "context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/zalando/hubmirror/circuit"
	"github.com/zalando/hubmirror/logging"
	"github.com/zalando/hubmirror/metrics"
	hmnet "github.com/zalando/hubmirror/net"
	"github.com/zalando/hubmirror/routing"
)

const (
	proxyBufferSize          = 8192
	unknownRouteID           = "_unknownroute_"
	unknownRouteBackend      = "<unknown>"
	statusClientClosed       = 499
	defaultHTTPStatusNoRoute = http.StatusNotFound
)

// Flags control the behavior of the proxy.
type Flags uint

const (
	FlagsNone Flags = 0

	// PreserveHost indicates whether the outgoing request to the
	// backend should use by default the 'Host' header of the incoming
	// request, or the host part of the backend address, in case filters
	// don't change it.
	PreserveHost Flags = 1 << iota

	// HopHeadersRemoval indicates whether the Hop Headers should be
	// removed in compliance with RFC 2616.
	HopHeadersRemoval
)

// Params are Proxy initialization options.
type Params struct {
	// The routing table of the proxy.
	Routing *routing.Routing

	// Control flags. See the Flags values.
	Flags Flags

	// The transport used for the backend requests. When nil, a
	// transport with the default options is used, and closed by Close.
	Transport http.RoundTripper

	// And optional list of circuit breaker configurations. When nil,
	// the breakers are disabled.
	CircuitBreakers *circuit.Registry

	// Default status code returned when no route matches. Defaults to
	// 404.
	DefaultHTTPStatus int

	// When set, the access log is not printed.
	AccessLogDisabled bool

	// Metrics collector, defaults to metrics.Void.
	Metrics metrics.Metrics

	// Logger used by the proxy and passed to the filters, defaults to
	// the application log.
	Log logging.Logger
}

// Proxy instances implement the mirror proxying functionality. For
// initializing, see the WithParams constructor and Params.
type Proxy struct {
	routing           *routing.Routing
	flags             Flags
	roundTripper      http.RoundTripper
	ownTransport      *hmnet.Transport
	breakers          *circuit.Registry
	defaultHTTPStatus int
	accessLogDisabled bool
	metrics           metrics.Metrics
	log               logging.Logger
}

// proxyError is used to wrap errors during proxying and to indicate
// the required status code for the response sent from the main
// ServeHTTP method.
type proxyError struct {
	err              error
	code             int
	dialingFailed    bool
	additionalHeader http.Header
}

type flushedResponseWriter interface {
	http.ResponseWriter
	http.Flusher
}

var (
	errRouteLookup        = errors.New("route lookup failed")
	errRouteLookupFailed  = &proxyError{err: errRouteLookup}
	errCircuitBreakerOpen = &proxyError{
		err:              errors.New("circuit breaker open"),
		code:             http.StatusServiceUnavailable,
		additionalHeader: http.Header{"X-Circuit-Open": []string{"true"}},
	}

	hopHeaders = map[string]bool{
		"Te":                  true,
		"Connection":          true,
		"Proxy-Connection":    true,
		"Keep-Alive":          true,
		"Proxy-Authenticate":  true,
		"Proxy-Authorization": true,
		"Trailer":             true,
		"Transfer-Encoding":   true,
		"Upgrade":             true,
	}
)

// When set, the proxy will set the Host header value of the outgoing
// requests to the one of the incoming request.
func (f Flags) PreserveHost() bool { return f&PreserveHost != 0 }

// When set, the proxy will remove the Hop Headers
func (f Flags) HopHeadersRemoval() bool { return f&HopHeadersRemoval != 0 }

func (e *proxyError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("dialing failed %v: %v", e.dialingFailed, e.err)
	}

	code := e.code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return fmt.Sprintf("proxy error: %d", code)
}

func (e *proxyError) Unwrap() error { return e.err }

func copyHeader(to, from http.Header) {
	for k, v := range from {
		to[http.CanonicalHeaderKey(k)] = v
	}
}

func cloneHeaderExcluding(h http.Header, excludeList map[string]bool) http.Header {
	hh := make(http.Header)
	for k, v := range h {
		if !excludeList[k] {
			hh[http.CanonicalHeaderKey(k)] = v
		}
	}

	return hh
}

// copies a stream with flushing on every successful read operation
// (similar to io.Copy but with flushing)
func copyStream(to flushedResponseWriter, from io.Reader) error {
	b := make([]byte, proxyBufferSize)

	for {
		l, rerr := from.Read(b)
		if rerr != nil && rerr != io.EOF {
			return rerr
		}

		if l > 0 {
			_, werr := to.Write(b[:l])
			if werr != nil {
				return werr
			}

			to.Flush()
		}

		if rerr == io.EOF {
			return nil
		}
	}
}

// creates an outgoing http request to be forwarded to the route backend
// based on the augmented incoming request
func mapRequest(r *http.Request, rt *routing.Route, host string, removeHopHeaders bool) (*http.Request, error) {
	u := *r.URL
	u.Scheme = rt.Scheme
	u.Host = rt.Host

	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}

	rr, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	rr.ContentLength = r.ContentLength
	if removeHopHeaders {
		rr.Header = cloneHeaderExcluding(r.Header, hopHeaders)
	} else {
		rr.Header = cloneHeaderExcluding(r.Header, nil)
	}

	rr.Host = host
	return rr, nil
}

// WithParams returns an initialized Proxy.
func WithParams(p Params) *Proxy {
	if p.DefaultHTTPStatus <= 0 || p.DefaultHTTPStatus > http.StatusNetworkAuthenticationRequired {
		p.DefaultHTTPStatus = defaultHTTPStatusNoRoute
	}

	if p.Metrics == nil {
		p.Metrics = metrics.Void
	}

	if p.Log == nil {
		p.Log = logging.New()
	}

	proxy := &Proxy{
		routing:           p.Routing,
		flags:             p.Flags,
		roundTripper:      p.Transport,
		breakers:          p.CircuitBreakers,
		defaultHTTPStatus: p.DefaultHTTPStatus,
		accessLogDisabled: p.AccessLogDisabled,
		metrics:           p.Metrics,
		log:               p.Log,
	}

	if proxy.roundTripper == nil {
		proxy.ownTransport = hmnet.NewTransport(hmnet.Options{})
		proxy.roundTripper = proxy.ownTransport
	}

	return proxy
}

func tryCatch(p func(), onErr func(err any, stack string)) {
	defer func() {
		if err := recover(); err != nil {
			buf := make([]byte, 1024)
			l := runtime.Stack(buf, false)
			onErr(err, string(buf[:l]))
		}
	}()

	p()
}

// applies filters to a request
func (p *Proxy) applyFiltersToRequest(f []*routing.RouteFilter, ctx *context) []*routing.RouteFilter {
	var filters = make([]*routing.RouteFilter, 0, len(f))
	for _, fi := range f {
		tryCatch(func() {
			ctx.setMetricsPrefix(fi.Name)
			fi.Request(ctx)
		}, func(err any, stack string) {
			p.log.Errorf("error while processing filter during request: %s: %v (%s)", fi.Name, err, stack)
		})

		filters = append(filters, fi)
		if ctx.shunted() {
			break
		}
	}

	return filters
}

// applies filters to a response in reverse order
func (p *Proxy) applyFiltersToResponse(filters []*routing.RouteFilter, ctx *context) {
	last := len(filters) - 1
	for i := range filters {
		fi := filters[last-i]
		tryCatch(func() {
			ctx.setMetricsPrefix(fi.Name)
			fi.Response(ctx)
		}, func(err any, stack string) {
			p.log.Errorf("error while processing filters during response: %s: %v (%s)", fi.Name, err, stack)
		})
	}
}

// send a premature error response
func (p *Proxy) sendError(c *context, id string, code int) {
	http.Error(c.responseWriter, http.StatusText(code), code)
	p.metrics.MeasureServe(id, c.request.Host, c.request.Method, code, c.startServe)
}

func (p *Proxy) checkBreaker(c *context) (func(bool), bool) {
	b := p.breakers.Get(c.route.Host)
	if b == nil {
		return nil, true
	}

	return b.Allow()
}

func (p *Proxy) makeBackendRequest(ctx *context) (*http.Response, *proxyError) {
	req, err := mapRequest(ctx.request, ctx.route, ctx.outgoingHost, p.flags.HopHeadersRemoval())
	if err != nil {
		p.log.Errorf("could not map backend request, caused by: %v", err)
		return nil, &proxyError{err: err}
	}

	response, err := p.roundTripper.RoundTrip(req)
	if err == nil {
		return response, nil
	}

	if cerr := req.Context().Err(); cerr != nil {
		// deadline exceeded or canceled in stdlib, proxy client closed request
		return nil, &proxyError{err: cerr, code: statusClientClosed}
	}

	var operr *net.OpError
	if errors.As(err, &operr) && operr.Op == "dial" {
		p.log.Errorf("Failed to dial backend %s: %v", ctx.route.Backend, err)
		return nil, &proxyError{
			err:           err,
			code:          http.StatusBadGateway,
			dialingFailed: true,
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		p.log.Errorf("net.Error during backend roundtrip to %s: timeout=%v: %v", ctx.route.Backend, nerr.Timeout(), err)
		if nerr.Timeout() {
			return nil, &proxyError{err: err, code: http.StatusGatewayTimeout}
		}

		return nil, &proxyError{err: err, code: http.StatusServiceUnavailable}
	}

	if errors.Is(err, stdlibcontext.DeadlineExceeded) {
		return nil, &proxyError{err: err, code: http.StatusGatewayTimeout}
	}

	p.log.Errorf("Unexpected error from Go stdlib net/http package during roundtrip: %v", err)
	return nil, &proxyError{err: err, code: http.StatusBadGateway}
}

func (p *Proxy) do(ctx *context) error {
	lookupStart := time.Now()
	route := p.routing.Route(ctx.request)
	p.metrics.MeasureRouteLookup(lookupStart)
	if route == nil {
		p.metrics.IncRoutingFailures()
		p.log.Debugf("could not find a route for %v", ctx.request.URL)
		return errRouteLookupFailed
	}

	ctx.applyRoute(route, p.flags.PreserveHost())

	processedFilters := p.applyFiltersToRequest(ctx.route.Filters, ctx)

	if ctx.shunted() || ctx.route.Shunt {
		ctx.ensureDefaultResponse()
	} else {
		done, allow := p.checkBreaker(ctx)
		if !allow {
			return errCircuitBreakerOpen
		}

		backendStart := time.Now()
		rsp, perr := p.makeBackendRequest(ctx)
		if perr != nil {
			if done != nil {
				done(false)
			}

			p.metrics.IncErrorsBackend(ctx.route.Id)
			return perr
		}

		if done != nil {
			done(rsp.StatusCode < http.StatusInternalServerError)
		}

		ctx.response = rsp
		p.metrics.MeasureBackend(ctx.route.Id, backendStart)
	}

	p.applyFiltersToResponse(processedFilters, ctx)
	return nil
}

func (p *Proxy) serveResponse(ctx *context) {
	copyHeader(ctx.responseWriter.Header(), ctx.response.Header)

	if err := ctx.Request().Context().Err(); err != nil {
		// deadline exceeded or canceled in stdlib, client closed request
		p.log.Infof("Client request: %v", err)
		ctx.response.StatusCode = statusClientClosed
	}

	ctx.responseWriter.WriteHeader(ctx.response.StatusCode)
	ctx.responseWriter.Flush()
	if err := copyStream(ctx.responseWriter, ctx.response.Body); err != nil {
		p.metrics.IncErrorsStreaming(ctx.route.Id)
		p.log.Errorf("error while copying the response stream: %v", err)
	}
}

func (p *Proxy) errorResponse(ctx *context, err error) {
	id := ctx.routeID()
	backend := unknownRouteBackend
	if ctx.route != nil {
		backend = ctx.route.Backend
	}

	code := http.StatusInternalServerError
	perr, ok := err.(*proxyError)
	if ok && perr.code != 0 {
		code = perr.code
	}

	if ok && len(perr.additionalHeader) > 0 {
		copyHeader(ctx.responseWriter.Header(), perr.additionalHeader)
	}

	switch {
	case err == errRouteLookupFailed:
		code = p.defaultHTTPStatus
	case code == statusClientClosed:
		p.log.Infof("client canceled the request, route %s with backend %s", id, backend)
	default:
		p.log.Errorf("error while proxying, route %s with backend %s, status code %d: %v", id, backend, code, err)
	}

	p.sendError(ctx, id, code)
}

// http.Handler implementation
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lw := logging.NewLoggingWriter(w)
	ctx := newContext(lw, r, p.metrics, p.log)

	defer func() {
		if p.accessLogDisabled {
			return
		}

		logging.LogAccess(&logging.AccessEntry{
			Request:      r,
			ResponseSize: lw.GetBytes(),
			StatusCode:   lw.GetCode(),
			RequestTime:  ctx.startServe,
			Duration:     time.Since(ctx.startServe),
		})
	}()

	defer func() {
		if ctx.response != nil && ctx.response.Body != nil {
			if err := ctx.response.Body.Close(); err != nil {
				p.log.Errorf("error during closing the response body: %v", err)
			}
		}
	}()

	if err := p.do(ctx); err != nil {
		p.errorResponse(ctx, err)
		return
	}

	p.serveResponse(ctx)
	p.metrics.MeasureServe(
		ctx.route.Id,
		r.Host,
		r.Method,
		ctx.response.StatusCode,
		ctx.startServe,
	)
}

// Close closes the idle connections of the default transport. A
// transport passed in the Params is owned by the caller.
func (p *Proxy) Close() error {
	if p.ownTransport != nil {
		p.ownTransport.Close()
	}

	return nil
}
