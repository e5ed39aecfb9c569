package routing

import (
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/filters"
)

func splitBackend(r *eskip.Route) (string, string, error) {
	if r.Shunt {
		return "", "", nil
	}

	bu, err := url.ParseRequestURI(r.Backend)
	if err != nil {
		return "", "", err
	}

	if bu.Scheme == "" || bu.Host == "" {
		return "", "", fmt.Errorf("invalid backend address: %s", r.Backend)
	}

	return bu.Scheme, bu.Host, nil
}

func createFilter(fr filters.Registry, def *eskip.Filter) (filters.Filter, error) {
	spec, ok := fr[def.Name]
	if !ok {
		return nil, fmt.Errorf("filter not found: '%s'", def.Name)
	}

	return spec.CreateFilter(def.Args)
}

func createFilters(fr filters.Registry, defs []*eskip.Filter) ([]*RouteFilter, error) {
	var fs []*RouteFilter
	for _, def := range defs {
		f, err := createFilter(fr, def)
		if err != nil {
			return nil, fmt.Errorf("failed to create filter %s: %w", def.Name, err)
		}

		fs = append(fs, &RouteFilter{Filter: f, Name: def.Name})
	}

	return fs, nil
}

func processRouteDef(fr filters.Registry, def *eskip.Route) (*Route, error) {
	scheme, host, err := splitBackend(def)
	if err != nil {
		return nil, err
	}

	fs, err := createFilters(fr, def.Filters)
	if err != nil {
		return nil, err
	}

	return &Route{Route: *def, Scheme: scheme, Host: host, Filters: fs}, nil
}

func processRouteDefs(fr filters.Registry, defs []*eskip.Route) []*Route {
	var routes []*Route
	for _, def := range defs {
		route, err := processRouteDef(fr, def)
		if err != nil {
			log.Errorf("failed to process route %s: %v", def.Id, err)
			continue
		}

		routes = append(routes, route)
	}

	return routes
}
