/*
Package cookie implements filters that adapt the cookies set by a backend
to the host they are served from.

The stripCookieDomain filter removes the Domain attribute bound to a
backend domain from every Set-Cookie header of the response, so that the
browser assigns the cookie to the host the response was served from:

	stripCookieDomain("github.com")

The attribute " Domain=github.com;" is matched case-insensitively, the
legacy form " domain=.github.com;" as is.
*/
package cookie

import (
	"strings"

	"github.com/zalando/hubmirror/filters"
)

const SetCookieHttpHeader = "Set-Cookie"

type spec struct{}

type filter struct {
	domainAttr       string
	legacyDomainAttr string
}

// NewStripDomain creates a filter spec for removing the Domain attribute
// from the cookies of a response.
// Name: stripCookieDomain
func NewStripDomain() filters.Spec {
	return spec{}
}

func (spec) Name() string { return filters.StripCookieDomainName }

func (spec) CreateFilter(args []any) (filters.Filter, error) {
	if len(args) != 1 {
		return nil, filters.ErrInvalidFilterParameters
	}

	domain, ok := args[0].(string)
	if !ok || domain == "" {
		return nil, filters.ErrInvalidFilterParameters
	}

	return &filter{
		domainAttr:       " Domain=" + domain + ";",
		legacyDomainAttr: " domain=." + domain + ";",
	}, nil
}

func (*filter) Request(filters.FilterContext) {}

func (f *filter) Response(ctx filters.FilterContext) {
	values := ctx.Response().Header.Values(SetCookieHttpHeader)
	if len(values) == 0 {
		return
	}

	stripped := make([]string, len(values))
	for i, v := range values {
		v = replaceAllFold(v, f.domainAttr)
		stripped[i] = strings.ReplaceAll(v, f.legacyDomainAttr, "")
	}

	ctx.Response().Header[SetCookieHttpHeader] = stripped
}

// replaceAllFold removes every ASCII case-insensitive occurrence of old.
func replaceAllFold(s, old string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && equalFoldASCII(s[i:i+len(old)], old) {
			i += len(old)
			continue
		}

		b.WriteByte(s[i])
		i++
	}

	return b.String()
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}

	return true
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}

	return c
}
