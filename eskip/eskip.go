// Package eskip defines the route definitions used to configure the
// routing table: the hosts and paths a route matches, the filters it
// applies and its backend.
package eskip

// A Filter object represents a parsed, in-memory filter expression.
type Filter struct {

	// name of the filter specification
	Name string `json:"name"`

	// filter args applied within a particular route
	Args []any `json:"args"`
}

// A Route object represents a route definition.
type Route struct {

	// id of the route definition.
	// E.g. route1: ...
	Id string

	// exact hosts to be matched, optionally with a port.
	// E.g. Host("mirror.example.org")
	Hosts []string

	// exact path to be matched.
	// E.g. Path("/robots.txt")
	Path string

	// set of filters in a particular route.
	// E.g. setRequestHeader("Referer", "https://github.com")
	Filters []*Filter

	// indicates that the route has a shunt backend
	// (<shunt>, no forwarding to a backend)
	Shunt bool

	// the address of a backend.
	// E.g. "https://github.com"
	Backend string
}
