package config

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/hubmirror"
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/mirror"
	"github.com/zalando/hubmirror/proxy"
	"github.com/zalando/hubmirror/rewrite"
)

const (
	defaultMinTLSVersion = "1.2"

	// the outbound proxy, when neither the flag nor the config file sets it
	proxyEnv = "HUBMIRROR_PROXY"

	enableBreakersUsage = `enable breakers to be set from the command line or the config file`
	proxyUsage          = `outbound proxy URL used for every backend request when -use-proxy is set, defaults to the ` + proxyEnv + ` environment variable`
	useProxyUsage       = `connect the backends through the outbound proxy`
	scriptPolicyUsage   = `handling of the script bodies in the rewritten HTML documents: skip, the bodies are passed through, or scan, the bodies are processed like markup`
)

var errProxyNotSet = errors.New("use-proxy is set, but no outbound proxy is configured")

// the filters that the mirror routes work without
var disableableFilters = []string{
	filters.SetRequestHeaderName,
	filters.DropRequestHeaderName,
	filters.DropResponseHeaderName,
	filters.DecompressName,
	filters.StripCookieDomainName,
	filters.RewriteHeaderPrefixName,
	filters.HTMLRewriteName,
}

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address           string `yaml:"address"`
	SupportListener   string `yaml:"support-listener"`
	ProxyPreserveHost bool   `yaml:"proxy-preserve-host"`
	RemoveHopHeaders  bool   `yaml:"remove-hop-headers"`
	DefaultHTTPStatus int    `yaml:"default-http-status"`

	// mirror:
	HomeDomain       string    `yaml:"home-domain"`
	BlackholeDomain  string    `yaml:"blackhole-domain"`
	AssetsDomain     string    `yaml:"assets-domain"`
	AvatarsDomain    string    `yaml:"avatars-domain"`
	RawDomain        string    `yaml:"raw-domain"`
	CamoDomain       string    `yaml:"camo-domain"`
	CodeloadDomain   string    `yaml:"codeload-domain"`
	ReleasesDomain   string    `yaml:"releases-domain"`
	UserImagesDomain string    `yaml:"user-images-domain"`
	ObjectsDomain    string    `yaml:"objects-domain"`
	DisabledFilters  *listFlag `yaml:"disabled-filters"`

	// html rewrite:
	HTMLScriptPolicyString string               `yaml:"html-script-policy"`
	HTMLScriptPolicy       rewrite.ScriptPolicy `yaml:"-"`
	RewriteBufferSize      int                  `yaml:"rewrite-buffer-size"`
	RewriteReadSize        int                  `yaml:"rewrite-read-size"`

	// backend connections:
	UseProxy              bool          `yaml:"use-proxy"`
	Proxy                 string        `yaml:"proxy"`
	Insecure              bool          `yaml:"insecure"`
	TLSMinVersion         string        `yaml:"tls-min-version"`
	DisableKeepAlives     bool          `yaml:"disable-keepalives"`
	MaxIdleConns          int           `yaml:"max-idle-connection-backend"`
	MaxIdleConnsPerHost   int           `yaml:"idle-conns-num"`
	MaxConnsPerHost       int           `yaml:"max-conns-per-host"`
	BackendTimeout        time.Duration `yaml:"timeout-backend"`
	DialTimeout           time.Duration `yaml:"dial-timeout-backend"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls-timeout-backend"`
	IdleConnTimeout       time.Duration `yaml:"close-idle-conns-period"`
	ResponseHeaderTimeout time.Duration `yaml:"response-header-timeout-backend"`
	EnableBreakers        bool          `yaml:"enable-breakers"`
	Breakers              breakerFlags  `yaml:"breaker"`
	proxyURL              *url.URL

	// logging:
	ApplicationLogLevel       log.Level `yaml:"-"`
	ApplicationLogLevelString string    `yaml:"application-log-level"`
	ApplicationLogPrefix      string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool      `yaml:"application-log-json-enabled"`
	AccessLogDisabled         bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled      bool      `yaml:"access-log-json-enabled"`

	// metrics:
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	EnableRuntimeMetrics         bool      `yaml:"runtime-metrics"`
	EnableServeHostMetrics       bool      `yaml:"serve-host-metrics"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`

	// server:
	ReadTimeoutServer       time.Duration `yaml:"read-timeout-server"`
	ReadHeaderTimeoutServer time.Duration `yaml:"read-header-timeout-server"`
	WriteTimeoutServer      time.Duration `yaml:"write-timeout-server"`
	IdleTimeoutServer       time.Duration `yaml:"idle-timeout-server"`
	MaxHeaderBytes          int           `yaml:"max-header-bytes"`
	WaitForHealthcheck      time.Duration `yaml:"wait-for-healthcheck-interval"`
}

func NewConfig() *Config {
	cfg := new(Config)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", ":8080", "network address that the mirror should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", ":9911", "network address used for exposing the /metrics endpoint. An empty value disables support endpoint.")
	flag.BoolVar(&cfg.ProxyPreserveHost, "proxy-preserve-host", false, "flag indicating to preserve the incoming request 'Host' header in the outgoing requests")
	flag.BoolVar(&cfg.RemoveHopHeaders, "remove-hop-headers", true, "enables removal of Hop-Headers according to RFC-2616")
	flag.IntVar(&cfg.DefaultHTTPStatus, "default-http-status", http.StatusNotFound, "default HTTP status used when no route is found for a request")

	// mirror:
	flag.StringVar(&cfg.HomeDomain, "home-domain", "", "absolute URL of the mirror of github.com, e.g. https://hub.example.org")
	flag.StringVar(&cfg.BlackholeDomain, "blackhole-domain", "", "absolute URL answering every request with 204, replaces api.github.com and the collector")
	flag.StringVar(&cfg.AssetsDomain, "assets-domain", "", "absolute URL of the mirror of github.githubassets.com")
	flag.StringVar(&cfg.AvatarsDomain, "avatars-domain", "", "absolute URL of the mirror of avatars.githubusercontent.com")
	flag.StringVar(&cfg.RawDomain, "raw-domain", "", "absolute URL of the mirror of raw.githubusercontent.com")
	flag.StringVar(&cfg.CamoDomain, "camo-domain", "", "absolute URL of the mirror of camo.githubusercontent.com")
	flag.StringVar(&cfg.CodeloadDomain, "codeload-domain", "", "absolute URL of the mirror of codeload.github.com")
	flag.StringVar(&cfg.ReleasesDomain, "releases-domain", "", "absolute URL of the mirror of github-releases.githubusercontent.com")
	flag.StringVar(&cfg.UserImagesDomain, "user-images-domain", "", "absolute URL of the mirror of user-images.githubusercontent.com")
	flag.StringVar(&cfg.ObjectsDomain, "objects-domain", "", "absolute URL of the mirror of objects.githubusercontent.com")
	cfg.DisabledFilters = commaListFlag(disableableFilters...)
	flag.Var(cfg.DisabledFilters, "disabled-filters", "comma separated list of filters left out from the mirror routes, e.g. htmlRewrite")

	// html rewrite:
	flag.StringVar(&cfg.HTMLScriptPolicyString, "html-script-policy", "skip", scriptPolicyUsage)
	flag.IntVar(&cfg.RewriteBufferSize, "rewrite-buffer-size", rewrite.DefaultBufferSize, "size of the output buffer of the HTML rewriting, the rewritten document is flushed when it is full")
	flag.IntVar(&cfg.RewriteReadSize, "rewrite-read-size", rewrite.DefaultReadSize, "size of the reads from the backend response during the HTML rewriting")

	// backend connections:
	flag.BoolVar(&cfg.UseProxy, "use-proxy", false, useProxyUsage)
	flag.StringVar(&cfg.Proxy, "proxy", "", proxyUsage)
	flag.BoolVar(&cfg.Insecure, "insecure", false, "flag indicating to ignore the verification of the TLS certificates of the backend services")
	flag.StringVar(&cfg.TLSMinVersion, "tls-min-version", defaultMinTLSVersion, "minimal TLS Version to be used towards the backends")
	flag.BoolVar(&cfg.DisableKeepAlives, "disable-keepalives", false, "forces backend to always create a new connection")
	flag.IntVar(&cfg.MaxIdleConns, "max-idle-connection-backend", 0, "sets the maximum idle connections for all backend connections")
	flag.IntVar(&cfg.MaxIdleConnsPerHost, "idle-conns-num", 64, "maximum idle connections per backend host")
	flag.IntVar(&cfg.MaxConnsPerHost, "max-conns-per-host", 0, "sets the maximum connections per backend host, 0 means no limit")
	flag.DurationVar(&cfg.BackendTimeout, "timeout-backend", 60*time.Second, "sets the default for the backend timeouts, that are not set")
	flag.DurationVar(&cfg.DialTimeout, "dial-timeout-backend", 10*time.Second, "sets the TCP connect timeout of the backend connections")
	flag.DurationVar(&cfg.TLSHandshakeTimeout, "tls-timeout-backend", 60*time.Second, "sets the TLS handshake timeout for backend connections")
	flag.DurationVar(&cfg.IdleConnTimeout, "close-idle-conns-period", 20*time.Second, "sets the time interval of closing all idle connections. Not closing when 0")
	flag.DurationVar(&cfg.ResponseHeaderTimeout, "response-header-timeout-backend", 60*time.Second, "sets the HTTP response header timeout for backend connections")
	flag.BoolVar(&cfg.EnableBreakers, "enable-breakers", false, enableBreakersUsage)
	flag.Var(&cfg.Breakers, "breaker", breakerUsage)

	// logging:
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", "INFO", "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")

	// metrics:
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", "hubmirror", "the namespace of the collected metrics")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", true, "enables Go runtime and process metrics")
	flag.BoolVar(&cfg.EnableServeHostMetrics, "serve-host-metrics", false, "enables reporting total serve time metrics for each host")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for the duration histograms, a comma separated list of numbers in seconds")

	// server:
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", 5*time.Minute, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.ReadHeaderTimeoutServer, "read-header-timeout-server", 60*time.Second, "set ReadHeaderTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", 0, "set WriteTimeout for http server connections, 0 means no limit so that large downloads are not cut")
	flag.DurationVar(&cfg.IdleTimeoutServer, "idle-timeout-server", 60*time.Second, "set IdleTimeout for http server connections")
	flag.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", http.DefaultMaxHeaderBytes, "set MaxHeaderBytes for http server connections")
	flag.DurationVar(&cfg.WaitForHealthcheck, "wait-for-healthcheck-interval", 0, "period waiting before shutting down the listeners on SIGTERM")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	_, err = rewrite.ParseScriptPolicy(c.HTMLScriptPolicyString)
	if err != nil {
		return err
	}

	if c.RewriteBufferSize <= 0 || c.RewriteReadSize <= 0 {
		return fmt.Errorf("invalid rewrite buffer sizes: %d, %d", c.RewriteBufferSize, c.RewriteReadSize)
	}

	_, err = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	return err
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		// the breakers set on the command line take precedence
		fileBreakers := c.Breakers
		c.Breakers = nil
		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}

		c.Breakers = append(c.Breakers, fileBreakers...)
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.HTMLScriptPolicy, _ = rewrite.ParseScriptPolicy(c.HTMLScriptPolicyString)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)

	c.parseEnv()
	return c.parseProxy()
}

func (c *Config) ToOptions() hubmirror.Options {
	var flags proxy.Flags
	if c.ProxyPreserveHost {
		flags |= proxy.PreserveHost
	}

	if c.RemoveHopHeaders {
		flags |= proxy.HopHeadersRemoval
	}

	options := hubmirror.Options{
		// generic:
		Address:           c.Address,
		SupportListener:   c.SupportListener,
		ProxyFlags:        flags,
		DefaultHTTPStatus: c.DefaultHTTPStatus,

		// mirror:
		Mirror: mirror.Options{
			HomeDomain:       c.HomeDomain,
			BlackholeDomain:  c.BlackholeDomain,
			AssetsDomain:     c.AssetsDomain,
			AvatarsDomain:    c.AvatarsDomain,
			RawDomain:        c.RawDomain,
			CamoDomain:       c.CamoDomain,
			CodeloadDomain:   c.CodeloadDomain,
			ReleasesDomain:   c.ReleasesDomain,
			UserImagesDomain: c.UserImagesDomain,
			ObjectsDomain:    c.ObjectsDomain,
		},
		DisabledFilters: c.DisabledFilters.list(),

		// html rewrite:
		Rewrite: rewrite.Options{
			BufferSize:   c.RewriteBufferSize,
			ReadSize:     c.RewriteReadSize,
			ScriptPolicy: c.HTMLScriptPolicy,
		},

		// backend connections:
		OutboundProxy:         c.proxyURL,
		InsecureSkipVerify:    c.Insecure,
		MinTLSVersion:         c.getMinTLSVersion(),
		DisableKeepAlives:     c.DisableKeepAlives,
		MaxIdleConns:          c.MaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		MaxConnsPerHost:       c.MaxConnsPerHost,
		BackendTimeout:        c.BackendTimeout,
		DialTimeout:           c.DialTimeout,
		TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
		IdleConnTimeout:       c.IdleConnTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		EnableBreakers:        c.EnableBreakers,
		BreakerSettings:       c.Breakers,

		// logging:
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,

		// metrics:
		MetricsPrefix:          c.MetricsPrefix,
		EnableRuntimeMetrics:   c.EnableRuntimeMetrics,
		EnableServeHostMetrics: c.EnableServeHostMetrics,
		HistogramMetricBuckets: c.HistogramMetricBuckets,

		// server:
		ReadTimeoutServer:          c.ReadTimeoutServer,
		ReadHeaderTimeoutServer:    c.ReadHeaderTimeoutServer,
		WriteTimeoutServer:         c.WriteTimeoutServer,
		IdleTimeoutServer:          c.IdleTimeoutServer,
		MaxHeaderBytes:             c.MaxHeaderBytes,
		WaitForHealthcheckInterval: c.WaitForHealthcheck,
	}

	return options
}

func (c *Config) getMinTLSVersion() uint16 {
	tlsVersionTable := map[string]uint16{
		"1.3": tls.VersionTLS13,
		"13":  tls.VersionTLS13,
		"1.2": tls.VersionTLS12,
		"12":  tls.VersionTLS12,
		"1.1": tls.VersionTLS11,
		"11":  tls.VersionTLS11,
		"1.0": tls.VersionTLS10,
		"10":  tls.VersionTLS10,
	}
	if v, ok := tlsVersionTable[c.TLSMinVersion]; ok {
		return v
	}
	log.Infof("No valid minimal TLS version configured (set to '%s'), fall back to default: %s", c.TLSMinVersion, defaultMinTLSVersion)
	return tlsVersionTable[defaultMinTLSVersion]
}

func (c *Config) parseHistogramBuckets(bucketString string, defaultBuckets []float64) ([]float64, error) {
	if bucketString == "" {
		return defaultBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(bucketString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}

func (c *Config) parseEnv() {
	// Set the outbound proxy from environment variable if not set earlier (flag or configuration file)
	if c.Proxy == "" {
		c.Proxy = os.Getenv(proxyEnv)
	}
}

func (c *Config) parseProxy() error {
	c.proxyURL = nil
	if !c.UseProxy {
		return nil
	}

	if c.Proxy == "" {
		return errProxyNotSet
	}

	u, err := url.Parse(c.Proxy)
	if err != nil {
		return fmt.Errorf("invalid outbound proxy: %w", err)
	}

	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid outbound proxy: %s", c.Proxy)
	}

	c.proxyURL = u
	return nil
}
