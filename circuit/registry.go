package circuit

import (
	"sync"
	"time"
)

const DefaultIdleTTL = time.Hour

// Registry objects hold the active circuit breakers per backend host,
// apply the default settings and recycle the idle breakers.
type Registry struct {
	mu       sync.Mutex
	defaults BreakerSettings
	hosts    map[string]BreakerSettings
	active   map[string]*Breaker
}

// NewRegistry initializes a registry with the provided settings. Settings
// with an empty Host field are considered as defaults. Settings with the
// same Host field are merged together, the first one taking precedence.
func NewRegistry(settings ...BreakerSettings) *Registry {
	var defaults BreakerSettings
	for _, s := range settings {
		if s.Host == "" {
			defaults = defaults.mergeSettings(s)
		}
	}

	if defaults.IdleTTL <= 0 {
		defaults.IdleTTL = DefaultIdleTTL
	}

	hosts := make(map[string]BreakerSettings)
	for _, s := range settings {
		if s.Host == "" {
			continue
		}

		if hs, ok := hosts[s.Host]; ok {
			hosts[s.Host] = hs.mergeSettings(s)
		} else {
			hosts[s.Host] = s.mergeSettings(defaults)
		}
	}

	return &Registry{
		defaults: defaults,
		hosts:    hosts,
		active:   make(map[string]*Breaker),
	}
}

func (r *Registry) settings(host string) BreakerSettings {
	if s, ok := r.hosts[host]; ok {
		return s
	}

	s := r.defaults
	s.Host = host
	return s
}

func (r *Registry) dropIdle(now time.Time) {
	for h, b := range r.active {
		if b.idle(now) {
			delete(r.active, h)
		}
	}
}

// Get returns the circuit breaker of a backend host. The settings of the
// host are merged with the defaults, and the matching circuit breaker is
// returned if it exists, or a new one is created if not. It returns nil
// when the breaker of the host is disabled.
func (r *Registry) Get(host string) *Breaker {
	// no shared global breakers
	if r == nil || host == "" {
		return nil
	}

	s := r.settings(host)
	if s.Failures <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	b, ok := r.active[host]
	if !ok || b.idle(now) {
		r.dropIdle(now)
		b = newBreaker(s)
		r.active[host] = b
	}

	b.ts = now
	return b
}
