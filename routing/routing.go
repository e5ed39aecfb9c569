package routing

import (
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/filters"
)

// Options for initialization for routing.
type Options struct {

	// Registry containing the available filter
	// specifications that are used during processing
	// the filter chains in the route definitions.
	FilterRegistry filters.Registry
}

// RouteFilter contains extensions to generic filter interface, serving
// mainly logging/monitoring purpose.
type RouteFilter struct {
	filters.Filter
	Name string
}

// Route object with preprocessed filter instances.
type Route struct {

	// Fields from the static route definition.
	eskip.Route

	// The backend scheme and host.
	Scheme, Host string

	// The preprocessed filter instances.
	Filters []*RouteFilter
}

// Routing ('router') instance providing live
// updatable request matching.
type Routing struct {
	options Options
	matcher atomic.Pointer[matcher]
}

// New initializes a routing instance with an empty table.
func New(o Options) *Routing {
	r := &Routing{options: o}
	r.matcher.Store(newMatcher(nil))
	return r
}

// Update replaces the routing table. Invalid route definitions are logged
// and skipped. It returns the number of valid routes.
func (r *Routing) Update(defs []*eskip.Route) int {
	routes := processRouteDefs(r.options.FilterRegistry, defs)
	r.matcher.Store(newMatcher(routes))
	log.Infof("route settings applied, %d routes", len(routes))
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("route definitions:\n%s", eskip.String(defs...))
	}

	return len(routes)
}

// Route matches a request in the current routing table.
func (r *Routing) Route(req *http.Request) *Route {
	return r.matcher.Load().match(req)
}

// Get returns the route with the given id, if present.
func (r *Routing) Get(id string) *Route {
	return r.matcher.Load().byId[id]
}
