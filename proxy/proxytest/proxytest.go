// Package proxytest starts a proxy with a fixed routing table for tests.
package proxytest

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/logging/loggingtest"
	"github.com/zalando/hubmirror/proxy"
	"github.com/zalando/hubmirror/routing"
)

type TestProxy struct {
	URL string
	Log *loggingtest.Logger

	routing *routing.Routing
	proxy   *proxy.Proxy
	server  *httptest.Server
}

type TestClient struct {
	*http.Client
}

type Config struct {
	Registry    filters.Registry
	ProxyParams proxy.Params
	Routes      []*eskip.Route
}

func WithParams(fr filters.Registry, proxyParams proxy.Params, routes ...*eskip.Route) *TestProxy {
	return Config{
		Registry:    fr,
		ProxyParams: proxyParams,
		Routes:      routes,
	}.Create()
}

func New(fr filters.Registry, routes ...*eskip.Route) *TestProxy {
	return WithParams(fr, proxy.Params{}, routes...)
}

func (c Config) Create() *TestProxy {
	tl := loggingtest.New()
	rt := routing.New(routing.Options{FilterRegistry: c.Registry})
	rt.Update(c.Routes)

	c.ProxyParams.Routing = rt
	if c.ProxyParams.Log == nil {
		c.ProxyParams.Log = tl
	}

	c.ProxyParams.AccessLogDisabled = true
	pr := proxy.WithParams(c.ProxyParams)
	tsp := httptest.NewServer(pr)

	return &TestProxy{
		URL:     tsp.URL,
		Log:     tl,
		routing: rt,
		proxy:   pr,
		server:  tsp,
	}
}

// Client returns a client that doesn't follow the redirects.
func (p *TestProxy) Client() *TestClient {
	client := p.server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &TestClient{client}
}

func (p *TestProxy) Close() error {
	p.server.Close()
	return p.proxy.Close()
}

// GetBody issues a GET to the specified URL, reads and closes response body and
// returns response, response body bytes and error if any.
func (c *TestClient) GetBody(url string) (rsp *http.Response, body []byte, err error) {
	return c.GetBodyWithHost(url, "")
}

// GetBodyWithHost is like GetBody, but sends the request with the given
// Host header, when not empty.
func (c *TestClient) GetBodyWithHost(url, host string) (rsp *http.Response, body []byte, err error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, nil, err
	}

	if host != "" {
		req.Host = host
	}

	rsp, err = c.Do(req)
	if err != nil {
		return
	}
	defer rsp.Body.Close()

	body, err = io.ReadAll(rsp.Body)
	return
}
