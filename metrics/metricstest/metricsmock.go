// Package metricstest provides a Metrics implementation recording every
// reported value, for tests.
package metricstest

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	KeyRouteLookup     = "routelookup"
	KeyBackend         = "backend.%s"
	KeyServe           = "serve.%s.%s.%d"
	KeyRoutingFailures = "errors.routing"
	KeyErrorsBackend   = "errors.backend.%s"
	KeyErrorsStreaming = "errors.streaming.%s"
)

type MockMetrics struct {
	Prefix string

	mu sync.Mutex

	// Metrics gathering
	counters map[string]int64
	measures map[string][]time.Duration
	Now      time.Time
}

//
// Public thread safe access to metrics
//

func (m *MockMetrics) WithCounters(f func(counters map[string]int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	f(m.counters)
}

func (m *MockMetrics) WithMeasures(f func(measures map[string][]time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measures == nil {
		m.measures = make(map[string][]time.Duration)
	}
	f(m.measures)
}

// Counter returns the current value of a counter.
func (m *MockMetrics) Counter(key string) (v int64) {
	m.WithCounters(func(counters map[string]int64) { v = counters[key] })
	return
}

// Measures returns how many times a duration was recorded with key.
func (m *MockMetrics) Measures(key string) (n int) {
	m.WithMeasures(func(measures map[string][]time.Duration) { n = len(measures[key]) })
	return
}

func (m *MockMetrics) since(start time.Time) time.Duration {
	now := m.Now
	if now.IsZero() {
		now = time.Now()
	}

	return now.Sub(start)
}

func (m *MockMetrics) measure(key string, start time.Time) {
	d := m.since(start)
	m.WithMeasures(func(measures map[string][]time.Duration) {
		measures[key] = append(measures[key], d)
	})
}

func (m *MockMetrics) add(key string, value int64) {
	m.WithCounters(func(counters map[string]int64) {
		counters[key] += value
	})
}

//
// Interface Metrics
//

func (m *MockMetrics) MeasureSince(key string, start time.Time) {
	m.measure(m.Prefix+key, start)
}

func (m *MockMetrics) IncCounter(key string) {
	m.add(m.Prefix+key, 1)
}

func (m *MockMetrics) IncCounterBy(key string, value int64) {
	m.add(m.Prefix+key, value)
}

func (m *MockMetrics) MeasureRouteLookup(start time.Time) {
	m.measure(KeyRouteLookup, start)
}

func (m *MockMetrics) MeasureBackend(routeID string, start time.Time) {
	m.measure(fmt.Sprintf(KeyBackend, routeID), start)
}

func (m *MockMetrics) MeasureServe(routeID, host, method string, code int, start time.Time) {
	m.measure(fmt.Sprintf(KeyServe, routeID, method, code), start)
}

func (m *MockMetrics) IncRoutingFailures() {
	m.add(KeyRoutingFailures, 1)
}

func (m *MockMetrics) IncErrorsBackend(routeID string) {
	m.add(fmt.Sprintf(KeyErrorsBackend, routeID), 1)
}

func (m *MockMetrics) IncErrorsStreaming(routeID string) {
	m.add(fmt.Sprintf(KeyErrorsStreaming, routeID), 1)
}

func (*MockMetrics) RegisterHandler(path string, handler *http.ServeMux) {
	handler.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
