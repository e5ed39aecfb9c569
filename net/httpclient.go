/*
Package net provides the outgoing HTTP transport of the proxy.

The transport never decompresses response bodies on its own, and it
never follows redirects, since the proxy forwards every backend response
as is, including the Location header rewritten by the filters. Idle
connections are closed periodically until Close is called.
*/
package net

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Options are mostly passed to the http.Transport of the same
// name. Options.Timeout can be used as default for all timeouts, that
// are not set.
type Options struct {
	// Proxy is the outbound proxy used for every backend connection.
	// When nil, the backends are connected directly.
	Proxy *url.URL
	// InsecureSkipVerify disables the verification of the backend
	// certificates.
	InsecureSkipVerify bool
	// MinTLSVersion is the minimum TLS version accepted from the
	// backends, e.g. tls.VersionTLS12.
	MinTLSVersion uint16
	// DisableKeepAlives see https://golang.org/pkg/net/http/#Transport.DisableKeepAlives
	DisableKeepAlives bool
	// MaxIdleConns see https://golang.org/pkg/net/http/#Transport.MaxIdleConns
	MaxIdleConns int
	// MaxIdleConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxIdleConnsPerHost
	MaxIdleConnsPerHost int
	// MaxConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxConnsPerHost
	MaxConnsPerHost int
	// Timeout sets all Timeouts, that are set to 0 to the given
	// value. Basically it's the default timeout value.
	Timeout time.Duration
	// DialTimeout limits establishing the TCP connection, if not set
	// or set to 0, its using Options.Timeout.
	DialTimeout time.Duration
	// TLSHandshakeTimeout see
	// https://golang.org/pkg/net/http/#Transport.TLSHandshakeTimeout,
	// if not set or set to 0, its using Options.Timeout.
	TLSHandshakeTimeout time.Duration
	// IdleConnTimeout see
	// https://golang.org/pkg/net/http/#Transport.IdleConnTimeout,
	// if not set or set to 0, its using Options.Timeout.
	IdleConnTimeout time.Duration
	// ResponseHeaderTimeout see
	// https://golang.org/pkg/net/http/#Transport.ResponseHeaderTimeout,
	// if not set or set to 0, its using Options.Timeout.
	ResponseHeaderTimeout time.Duration
}

// Transport is an http.RoundTripper connecting to the backends.
type Transport struct {
	tr   *http.Transport
	quit chan struct{}
	once sync.Once
}

func NewTransport(options Options) *Transport {
	if options.DialTimeout == 0 {
		options.DialTimeout = options.Timeout
	}
	if options.TLSHandshakeTimeout == 0 {
		options.TLSHandshakeTimeout = options.Timeout
	}
	if options.IdleConnTimeout == 0 {
		options.IdleConnTimeout = options.Timeout
	}
	if options.ResponseHeaderTimeout == 0 {
		options.ResponseHeaderTimeout = options.Timeout
	}

	htransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   options.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		DisableKeepAlives:     options.DisableKeepAlives,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          options.MaxIdleConns,
		MaxIdleConnsPerHost:   options.MaxIdleConnsPerHost,
		MaxConnsPerHost:       options.MaxConnsPerHost,
		ResponseHeaderTimeout: options.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   options.TLSHandshakeTimeout,
		IdleConnTimeout:       options.IdleConnTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: options.InsecureSkipVerify,
			MinVersion:         options.MinTLSVersion,
		},
	}

	if options.Proxy != nil {
		htransport.Proxy = http.ProxyURL(options.Proxy)
	}

	t := &Transport{
		tr:   htransport,
		quit: make(chan struct{}),
	}

	if options.IdleConnTimeout > 0 {
		go t.closeIdleConns(options.IdleConnTimeout)
	}

	return t
}

func (t *Transport) closeIdleConns(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.tr.CloseIdleConnections()
		case <-t.quit:
			return
		}
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.tr.RoundTrip(req)
}

// Close stops closing the idle connections periodically, and closes the
// currently idle ones.
func (t *Transport) Close() {
	t.once.Do(func() {
		close(t.quit)
		t.tr.CloseIdleConnections()
	})
}
