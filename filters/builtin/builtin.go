/*
Package builtin provides the generic set of filters used by the mirror
routes.
*/
package builtin

import (
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/filters/cookie"
)

// MakeRegistry returns a Registry object initialized with the default set
// of filter specifications found in the filters package, except for the
// ones that need configuration.
func MakeRegistry() filters.Registry {
	r := make(filters.Registry)
	for _, s := range []filters.Spec{
		NewSetRequestHeader(),
		NewDropRequestHeader(),
		NewDropResponseHeader(),
		NewRewriteHeaderPrefix(),
		NewStatus(),
		NewInlineContent(),
		NewDecompress(),
		cookie.NewStripDomain(),
	} {
		r.Register(s)
	}

	return r
}
