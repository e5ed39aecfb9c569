package net

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportOptions(t *testing.T) {
	proxy, err := url.Parse("http://proxy.example.org:3128")
	require.NoError(t, err)

	rt := NewTransport(Options{
		Proxy:              proxy,
		InsecureSkipVerify: true,
		MinTLSVersion:      tls.VersionTLS12,
		MaxConnsPerHost:    16,
		MaxIdleConns:       64,
		Timeout:            3 * time.Second,
		IdleConnTimeout:    time.Minute,
	})
	defer rt.Close()

	tr := rt.tr
	assert.True(t, tr.DisableCompression)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.Equal(t, 16, tr.MaxConnsPerHost)
	assert.Equal(t, 64, tr.MaxIdleConns)
	assert.Equal(t, 3*time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, time.Minute, tr.IdleConnTimeout)

	req := httptest.NewRequest("GET", "https://github.com/", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, proxy, u)
}

func TestTransportNoProxy(t *testing.T) {
	rt := NewTransport(Options{})
	defer rt.Close()
	assert.Nil(t, rt.tr.Proxy)
}

func TestTransportRoundTrip(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "" {
			t.Errorf("unexpected Accept-Encoding: %s", r.Header.Get("Accept-Encoding"))
		}

		http.Redirect(w, r, "https://github.com/login", http.StatusFound)
	}))
	defer s.Close()

	rt := NewTransport(Options{IdleConnTimeout: 10 * time.Millisecond})
	defer rt.Close()

	req, err := http.NewRequest("GET", s.URL, nil)
	require.NoError(t, err)

	rsp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer rsp.Body.Close()
	io.Copy(io.Discard, rsp.Body)

	assert.Equal(t, http.StatusFound, rsp.StatusCode)
	assert.Equal(t, "https://github.com/login", rsp.Header.Get("Location"))

	// idle connections are closed in the background
	time.Sleep(30 * time.Millisecond)
}

func TestTransportCloseTwice(t *testing.T) {
	rt := NewTransport(Options{IdleConnTimeout: time.Second})
	rt.Close()
	rt.Close()
}
