// Package filtertest implements mock versions of the Filter, Spec and
// FilterContext interfaces used during tests.
package filtertest

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/zalando/hubmirror/filters"
)

// Filter is a noop filter, used for testing.
type Filter struct {
	FilterName string
	Args       []any
}

// Context is a simple implementation of the FilterContext interface.
type Context struct {
	FResponseWriter     http.ResponseWriter
	FRequest            *http.Request
	FResponse           *http.Response
	FServed             bool
	FServedWithResponse bool
	FStateBag           map[string]any
	FOutgoingHost       string
	FMetrics            *Metrics
	FLog                []string

	mu sync.Mutex
}

// Metrics records the reported values.
type Metrics struct {
	Counters map[string]int64
	Measures map[string]int

	mu sync.Mutex
}

func (spec *Filter) Name() string                    { return spec.FilterName }
func (f *Filter) Request(ctx filters.FilterContext)  {}
func (f *Filter) Response(ctx filters.FilterContext) {}

func (spec *Filter) CreateFilter(config []any) (filters.Filter, error) {
	return &Filter{spec.FilterName, config}, nil
}

func (fc *Context) ResponseWriter() http.ResponseWriter { return fc.FResponseWriter }
func (fc *Context) Request() *http.Request              { return fc.FRequest }
func (fc *Context) Response() *http.Response            { return fc.FResponse }
func (fc *Context) Served() bool                        { return fc.FServed }
func (fc *Context) OutgoingHost() string                { return fc.FOutgoingHost }
func (fc *Context) SetOutgoingHost(h string)            { fc.FOutgoingHost = h }
func (fc *Context) Logger() filters.FilterContextLogger { return fc }

func (fc *Context) StateBag() map[string]any {
	if fc.FStateBag == nil {
		fc.FStateBag = make(map[string]any)
	}

	return fc.FStateBag
}

func (fc *Context) Serve(resp *http.Response) {
	fc.FServedWithResponse = true
	fc.FServed = true
	fc.FResponse = resp
}

func (fc *Context) Metrics() filters.Metrics {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.FMetrics == nil {
		fc.FMetrics = &Metrics{}
	}

	return fc.FMetrics
}

func (fc *Context) logf(level, msg string, args ...any) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.FLog = append(fc.FLog, level+": "+fmt.Sprintf(msg, args...))
}

// Log returns a copy of the entries logged so far, safe to call while
// filters log from other goroutines.
func (fc *Context) Log() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return slices.Clone(fc.FLog)
}

func (fc *Context) Debugf(msg string, args ...any) { fc.logf("debug", msg, args...) }
func (fc *Context) Infof(msg string, args ...any)  { fc.logf("info", msg, args...) }
func (fc *Context) Warnf(msg string, args ...any)  { fc.logf("warning", msg, args...) }
func (fc *Context) Errorf(msg string, args ...any) { fc.logf("error", msg, args...) }

func (m *Metrics) MeasureSince(key string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Measures == nil {
		m.Measures = make(map[string]int)
	}

	m.Measures[key]++
}

func (m *Metrics) IncCounter(key string) { m.IncCounterBy(key, 1) }

func (m *Metrics) IncCounterBy(key string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Counters == nil {
		m.Counters = make(map[string]int64)
	}

	m.Counters[key] += value
}

// Counter returns the current value of a counter.
func (m *Metrics) Counter(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[key]
}
