package hubmirror

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/hubmirror/circuit"
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/logging/loggingtest"
	"github.com/zalando/hubmirror/mirror"
)

const (
	listenDelay   = 15 * time.Millisecond
	listenTimeout = 9 * listenDelay
)

func testDomains() mirror.Options {
	return mirror.Options{
		HomeDomain:       "http://mirror.test",
		BlackholeDomain:  "http://blackhole.mirror.test",
		AssetsDomain:     "http://assets.mirror.test",
		AvatarsDomain:    "http://avatars.mirror.test",
		RawDomain:        "http://raw.mirror.test",
		CamoDomain:       "http://camo.mirror.test",
		CodeloadDomain:   "http://codeload.mirror.test",
		ReleasesDomain:   "http://releases.mirror.test",
		UserImagesDomain: "http://user-images.mirror.test",
		ObjectsDomain:    "http://objects.mirror.test",
	}
}

func findAddress() (string, error) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return "", err
	}

	defer l.Close()
	return l.Addr().String(), nil
}

func waitConn(req func() (*http.Response, error)) (*http.Response, error) {
	to := time.After(listenTimeout)
	for {
		rsp, err := req()
		if err == nil {
			return rsp, nil
		}

		select {
		case <-to:
			return nil, err
		default:
			time.Sleep(listenDelay)
		}
	}
}

func getWithHost(address, path, host string) (*http.Response, string, error) {
	rsp, err := waitConn(func() (*http.Response, error) {
		req, err := http.NewRequest("GET", "http://"+address+path, nil)
		if err != nil {
			return nil, err
		}

		req.Host = host
		return http.DefaultClient.Do(req)
	})
	if err != nil {
		return nil, "", err
	}

	defer rsp.Body.Close()
	b, err := io.ReadAll(rsp.Body)
	return rsp, string(b), err
}

func TestBreakers(t *testing.T) {
	o := Options{}
	assert.Nil(t, o.breakers())

	o.EnableBreakers = true
	assert.NotNil(t, o.breakers())

	o = Options{BreakerSettings: []circuit.BreakerSettings{{Host: "github.com", Failures: 3}}}
	assert.NotNil(t, o.breakers())
}

func TestTransportOptions(t *testing.T) {
	u := &url.URL{Scheme: "http", Host: "proxy.test:3128"}
	o := Options{
		OutboundProxy:         u,
		InsecureSkipVerify:    true,
		MaxConnsPerHost:       12,
		BackendTimeout:        time.Minute,
		ResponseHeaderTimeout: time.Second,
	}

	to := o.transportOptions()
	assert.Equal(t, u, to.Proxy)
	assert.True(t, to.InsecureSkipVerify)
	assert.Equal(t, 12, to.MaxConnsPerHost)
	assert.Equal(t, time.Minute, to.Timeout)
	assert.Equal(t, time.Second, to.ResponseHeaderTimeout)
}

func TestCreateRouting(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		l := loggingtest.New()
		rt, d := createRouting(Options{Mirror: testDomains()}, l)
		require.True(t, d.Configured())
		assert.NotNil(t, rt.Get(mirror.MainRouteID))
		assert.NotNil(t, rt.Get(mirror.BlackholeRouteID))
		assert.Zero(t, l.Count("not configured"))
	})

	t.Run("not configured", func(t *testing.T) {
		o := testDomains()
		o.CamoDomain = "camo.mirror.test"

		l := loggingtest.New()
		rt, d := createRouting(Options{Mirror: o}, l)
		assert.False(t, d.Configured())
		assert.Nil(t, rt.Get(mirror.MainRouteID))
		assert.Equal(t, 1, l.Count("CamoDomain is incorrectly configured."))
		assert.Equal(t, 1, l.Count("no routes are served"))
	})
}

func TestDisabledFilters(t *testing.T) {
	o := Options{
		Mirror:          testDomains(),
		DisabledFilters: []string{filters.HTMLRewriteName, filters.DecompressName},
	}

	l := loggingtest.New()
	rt, _ := createRouting(o, l)
	assert.Equal(t, 1, l.Count("disabled filters: htmlRewrite, decompress"))

	r := rt.Get(mirror.MainRouteID)
	require.NotNil(t, r)
	for _, f := range r.Filters {
		assert.NotEqual(t, filters.HTMLRewriteName, f.Name)
		assert.NotEqual(t, filters.DecompressName, f.Name)
	}

	rt, _ = createRouting(Options{Mirror: testDomains()}, loggingtest.New())
	var names []string
	for _, f := range rt.Get(mirror.MainRouteID).Filters {
		names = append(names, f.Name)
	}

	assert.Contains(t, names, filters.HTMLRewriteName)
}

func TestRun(t *testing.T) {
	address, err := findAddress()
	require.NoError(t, err)

	supportAddress, err := findAddress()
	require.NoError(t, err)

	sigs := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- run(Options{
			Address:              address,
			SupportListener:      supportAddress,
			Mirror:               testDomains(),
			AccessLogDisabled:    true,
			ApplicationLogOutput: io.Discard,
		}, sigs)
	}()

	for _, tt := range []struct {
		host, path string
		status     int
		body       string
	}{
		{"blackhole.mirror.test", "/collect", http.StatusNoContent, ""},
		{"mirror.test", "/robots.txt", http.StatusOK, "User-agent: *\nDisallow: /"},
		{"unknown.test", "/", http.StatusNotFound, ""},
	} {
		rsp, body, err := getWithHost(address, tt.path, tt.host)
		require.NoError(t, err)
		assert.Equal(t, tt.status, rsp.StatusCode, tt.host+tt.path)
		if tt.status != http.StatusNotFound {
			assert.Equal(t, tt.body, body, tt.host+tt.path)
		}
	}

	rsp, body, err := getWithHost(supportAddress, healthPath, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "ok\n", body)

	rsp, body, err = getWithHost(supportAddress, metricsPath, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Contains(t, body, "hubmirror_route_lookup_duration_seconds")
	assert.Contains(t, body, "hubmirror_route_error_total")

	sigs <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for the shutdown")
	}

	_, err = http.Get("http://" + address)
	assert.Error(t, err)
}

func TestRunListenerFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	supportAddress, err := findAddress()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- run(Options{
			Address:              l.Addr().String(),
			SupportListener:      supportAddress,
			AccessLogDisabled:    true,
			ApplicationLogOutput: io.Discard,
		}, nil)
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for the listener failure")
	}
}
