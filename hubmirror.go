package hubmirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zalando/hubmirror/circuit"
	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/logging"
	"github.com/zalando/hubmirror/metrics"
	"github.com/zalando/hubmirror/mirror"
	hmnet "github.com/zalando/hubmirror/net"
	"github.com/zalando/hubmirror/proxy"
	"github.com/zalando/hubmirror/rewrite"
	"github.com/zalando/hubmirror/routing"
)

const (
	defaultAddress         = ":8080"
	defaultShutdownTimeout = 30 * time.Second

	metricsPath = "/metrics"
	healthPath  = "/healthz"
)

// Options to start the mirror.
type Options struct {

	// Network address that the mirror should listen on.
	Address string

	// Network address of the /metrics and /healthz endpoints. When
	// empty, the support listener is not started.
	SupportListener string

	// Flags controlling the proxy behavior.
	ProxyFlags proxy.Flags

	// Status code returned when no route matches. Defaults to 404.
	DefaultHTTPStatus int

	// The mirror domains.
	Mirror mirror.Options

	// Filters left out from the mirror routes, e.g. htmlRewrite to serve
	// the upstream documents unchanged.
	DisabledFilters []string

	// Options of the HTML rewriting on the main site.
	Rewrite rewrite.Options

	// Outbound proxy used for every backend connection. When nil, the
	// backends are connected directly.
	OutboundProxy *url.URL

	// Disables the verification of the backend certificates.
	InsecureSkipVerify bool

	// Minimum TLS version accepted from the backends.
	MinTLSVersion uint16

	// Backend connection settings, see net.Options.
	DisableKeepAlives     bool
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	BackendTimeout        time.Duration
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration

	// Enables the circuit breakers. When set, or when breaker settings
	// are provided, every backend host gets a breaker.
	EnableBreakers bool

	// Global and host specific circuit breaker settings.
	BreakerSettings []circuit.BreakerSettings

	// Application log settings, see logging.Options.
	ApplicationLogLevel       log.Level
	ApplicationLogPrefix      string
	ApplicationLogOutput      io.Writer
	ApplicationLogJSONEnabled bool

	// Access log settings, see logging.Options.
	AccessLogDisabled    bool
	AccessLogJSONEnabled bool
	AccessLogOutput      io.Writer

	// Metrics settings, see metrics.Options.
	MetricsPrefix          string
	EnableRuntimeMetrics   bool
	EnableServeHostMetrics bool
	HistogramMetricBuckets []float64

	// Settings of the http.Server of the proxy.
	ReadTimeoutServer       time.Duration
	ReadHeaderTimeoutServer time.Duration
	WriteTimeoutServer      time.Duration
	IdleTimeoutServer       time.Duration
	MaxHeaderBytes          int

	// Period waiting after SIGTERM before the listeners are shut down,
	// so that the load balancers can take the instance out of rotation.
	WaitForHealthcheckInterval time.Duration
}

func (o *Options) transportOptions() hmnet.Options {
	return hmnet.Options{
		Proxy:                 o.OutboundProxy,
		InsecureSkipVerify:    o.InsecureSkipVerify,
		MinTLSVersion:         o.MinTLSVersion,
		DisableKeepAlives:     o.DisableKeepAlives,
		MaxIdleConns:          o.MaxIdleConns,
		MaxIdleConnsPerHost:   o.MaxIdleConnsPerHost,
		MaxConnsPerHost:       o.MaxConnsPerHost,
		Timeout:               o.BackendTimeout,
		DialTimeout:           o.DialTimeout,
		TLSHandshakeTimeout:   o.TLSHandshakeTimeout,
		IdleConnTimeout:       o.IdleConnTimeout,
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
	}
}

func (o *Options) breakers() *circuit.Registry {
	if !o.EnableBreakers && len(o.BreakerSettings) == 0 {
		return nil
	}

	return circuit.NewRegistry(o.BreakerSettings...)
}

func initLog(o Options) {
	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      o.ApplicationLogOutput,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           o.AccessLogOutput,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	})
}

func disableFilters(routes []*eskip.Route, names []string) []*eskip.Route {
	if len(names) == 0 {
		return routes
	}

	for _, r := range routes {
		r.Filters = slices.DeleteFunc(r.Filters, func(f *eskip.Filter) bool {
			return slices.Contains(names, f.Name)
		})
	}

	return routes
}

// creates the routing of the mirror. When the domains are not
// configured, the routing is empty, and every request gets the default
// status.
func createRouting(o Options, l logging.Logger) (*routing.Routing, *mirror.Domains) {
	d := mirror.NewDomains(o.Mirror, l)
	if !d.Configured() {
		l.Error("the mirror domains are not configured, no routes are served")
	}

	if len(o.DisabledFilters) > 0 {
		l.Infof("disabled filters: %s", strings.Join(o.DisabledFilters, ", "))
	}

	rt := routing.New(routing.Options{FilterRegistry: mirror.FilterRegistry(o.Rewrite)})
	rt.Update(disableFilters(d.Routes(), o.DisabledFilters))
	return rt, d
}

func supportServer(address string, m *metrics.Prometheus) *http.Server {
	mux := http.NewServeMux()
	m.RegisterHandler(metricsPath, mux)
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})

	return &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(s *http.Server, name string) func() error {
	return func() error {
		log.Infof("%s listener on %v", name, s.Addr)
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}

func shutdown(servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			log.Errorf("Failed to gracefully shutdown %s: %v", s.Addr, err)
		}
	}
}

func run(o Options, sig <-chan os.Signal) error {
	initLog(o)
	l := logging.New()

	if o.Address == "" {
		o.Address = defaultAddress
	}

	mtr := metrics.NewPrometheus(metrics.Options{
		Prefix:                 o.MetricsPrefix,
		EnableRuntimeMetrics:   o.EnableRuntimeMetrics,
		EnableServeHostMetrics: o.EnableServeHostMetrics,
		HistogramBuckets:       o.HistogramMetricBuckets,
	})

	rt, _ := createRouting(o, l)

	tr := hmnet.NewTransport(o.transportOptions())
	defer tr.Close()

	p := proxy.WithParams(proxy.Params{
		Routing:           rt,
		Flags:             o.ProxyFlags,
		Transport:         tr,
		CircuitBreakers:   o.breakers(),
		DefaultHTTPStatus: o.DefaultHTTPStatus,
		AccessLogDisabled: o.AccessLogDisabled,
		Metrics:           mtr,
		Log:               l,
	})
	defer p.Close()

	servers := []*http.Server{{
		Addr:              o.Address,
		Handler:           p,
		ReadTimeout:       o.ReadTimeoutServer,
		ReadHeaderTimeout: o.ReadHeaderTimeoutServer,
		WriteTimeout:      o.WriteTimeoutServer,
		IdleTimeout:       o.IdleTimeoutServer,
		MaxHeaderBytes:    o.MaxHeaderBytes,
	}}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(listenAndServe(servers[0], "proxy"))

	if o.SupportListener != "" {
		s := supportServer(o.SupportListener, mtr)
		servers = append(servers, s)
		g.Go(listenAndServe(s, "support"))
	}

	g.Go(func() error {
		select {
		case <-sig:
			log.Infof("Got shutdown signal, wait %v for health check", o.WaitForHealthcheckInterval)
			time.Sleep(o.WaitForHealthcheckInterval)
			log.Info("Start shutdown")
		case <-ctx.Done():
		}

		shutdown(servers...)
		return nil
	})

	return g.Wait()
}

// Run starts the mirror with the provided options. It blocks until the
// listeners fail, or until a SIGTERM is received and the listeners were
// gracefully shut down.
func Run(o Options) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)
	defer signal.Stop(sigs)

	return run(o, sigs)
}
