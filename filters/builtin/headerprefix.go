package builtin

import (
	"net/http"
	"strings"

	"github.com/zalando/hubmirror/filters"
)

type headerPrefix struct {
	from, to string
}

type rewriteHeaderPrefix struct {
	header   string
	prefixes []headerPrefix
}

// NewRewriteHeaderPrefix creates a filter specification for the
// rewriteHeaderPrefix() filter. It rewrites the prefix of a response
// header, typically Location, when the header has exactly one value:
//
//	rewriteHeaderPrefix("Location", "https://github.com", "https://mirror.example.org")
//
// Any number of prefix and replacement pairs can follow the header name.
// The first matching prefix is used.
func NewRewriteHeaderPrefix() filters.Spec {
	return &rewriteHeaderPrefix{}
}

func (*rewriteHeaderPrefix) Name() string { return filters.RewriteHeaderPrefixName }

func (*rewriteHeaderPrefix) CreateFilter(args []any) (filters.Filter, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return nil, filters.ErrInvalidFilterParameters
	}

	s, err := filters.StringArgs(args, 3)
	if err != nil {
		return nil, err
	}

	f := &rewriteHeaderPrefix{header: http.CanonicalHeaderKey(s[0])}
	for i := 1; i < len(s); i += 2 {
		if s[i] == "" {
			return nil, filters.ErrInvalidFilterParameters
		}

		f.prefixes = append(f.prefixes, headerPrefix{from: s[i], to: s[i+1]})
	}

	return f, nil
}

func (*rewriteHeaderPrefix) Request(filters.FilterContext) {}

func (f *rewriteHeaderPrefix) Response(ctx filters.FilterContext) {
	h := ctx.Response().Header
	values := h[f.header]
	if len(values) != 1 {
		return
	}

	for _, p := range f.prefixes {
		if strings.HasPrefix(values[0], p.from) {
			h.Set(f.header, p.to+values[0][len(p.from):])
			return
		}
	}
}
