package routing

import (
	"net"
	"net/http"
	"strings"
)

type pathRoutes struct {
	byPath map[string]*Route
	any    *Route
}

type matcher struct {
	byHost map[string]*pathRoutes
	all    pathRoutes
	byId   map[string]*Route
}

func (pr *pathRoutes) add(r *Route) {
	if r.Path == "" {
		if pr.any == nil {
			pr.any = r
		}

		return
	}

	if pr.byPath == nil {
		pr.byPath = make(map[string]*Route)
	}

	if _, exists := pr.byPath[r.Path]; !exists {
		pr.byPath[r.Path] = r
	}
}

// newMatcher indexes the routes by host and path. When two routes have the
// same conditions, the first one wins.
func newMatcher(routes []*Route) *matcher {
	m := &matcher{
		byHost: make(map[string]*pathRoutes),
		byId:   make(map[string]*Route),
	}

	for _, r := range routes {
		if r.Id != "" {
			m.byId[r.Id] = r
		}

		if len(r.Hosts) == 0 {
			m.all.add(r)
			continue
		}

		for _, h := range r.Hosts {
			h = strings.ToLower(h)
			pr, ok := m.byHost[h]
			if !ok {
				pr = &pathRoutes{}
				m.byHost[h] = pr
			}

			pr.add(r)
		}
	}

	return m
}

func (m *matcher) hostRoutes(host string) *pathRoutes {
	host = strings.ToLower(host)
	if pr, ok := m.byHost[host]; ok {
		return pr
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return m.byHost[h]
	}

	return nil
}

func (m *matcher) match(req *http.Request) *Route {
	path := req.URL.Path
	hr := m.hostRoutes(req.Host)
	if hr != nil {
		if r := hr.byPath[path]; r != nil {
			return r
		}
	}

	if r := m.all.byPath[path]; r != nil {
		return r
	}

	if hr != nil && hr.any != nil {
		return hr.any
	}

	return m.all.any
}
