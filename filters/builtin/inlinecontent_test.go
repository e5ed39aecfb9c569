package builtin

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/proxy/proxytest"
)

func TestInlineContentArgs(t *testing.T) {
	for _, tt := range []struct {
		title string
		args  []any
	}{
		{title: "no args"},
		{title: "too many args", args: []any{"foo", "text/plain", "bar"}},
		{title: "non-string content", args: []any{42}},
		{title: "non-string content type", args: []any{"foo", 42}},
	} {
		t.Run(tt.title, func(t *testing.T) {
			_, err := NewInlineContent().CreateFilter(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestInlineContent(t *testing.T) {
	for _, tt := range []struct {
		title       string
		args        []any
		content     string
		contentType string
	}{{
		title:       "robots",
		args:        []any{"User-agent: *\nDisallow: /"},
		content:     "User-agent: *\nDisallow: /",
		contentType: "text/plain; charset=utf-8",
	}, {
		title:       "detect html",
		args:        []any{"<!doctype html><html>Hello</html>"},
		content:     "<!doctype html><html>Hello</html>",
		contentType: "text/html; charset=utf-8",
	}, {
		title:       "explicit content type",
		args:        []any{`{"foo": 42}`, "application/json"},
		content:     `{"foo": 42}`,
		contentType: "application/json",
	}} {
		t.Run(tt.title, func(t *testing.T) {
			fr := make(filters.Registry)
			fr.Register(NewInlineContent())
			p := proxytest.New(fr, &eskip.Route{
				Filters: []*eskip.Filter{{Name: filters.InlineContentName, Args: tt.args}},
				Shunt:   true,
			})
			defer p.Close()

			rsp, body, err := p.Client().GetBody(p.URL)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rsp.StatusCode)
			assert.Equal(t, tt.content, string(body))
			assert.Equal(t, tt.contentType, rsp.Header.Get("Content-Type"))
			assert.Equal(t, int64(len(tt.content)), rsp.ContentLength)
		})
	}
}
