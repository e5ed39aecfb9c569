package filters

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	SetRequestHeaderName    = "setRequestHeader"
	DropRequestHeaderName   = "dropRequestHeader"
	DropResponseHeaderName  = "dropResponseHeader"
	StatusName              = "status"
	InlineContentName       = "inlineContent"
	DecompressName          = "decompress"
	StripCookieDomainName   = "stripCookieDomain"
	RewriteHeaderPrefixName = "rewriteHeaderPrefix"
	HTMLRewriteName         = "htmlRewrite"
)

// ErrInvalidFilterParameters is used in case of invalid filter parameters.
var ErrInvalidFilterParameters = errors.New("invalid filter parameters")

// FilterContext object providing state and information that is unique to a
// request.
type FilterContext interface {

	// The response writer object belonging to the incoming request.
	ResponseWriter() http.ResponseWriter

	// The incoming request object. It is forwarded to the backend after
	// the request filters were executed.
	Request() *http.Request

	// The response object. It is returned to the client after the
	// response filters were executed. Nil during request processing.
	Response() *http.Response

	// Tells whether the request was served by a filter.
	Served() bool

	// Serve the request with the provided response. It can be used by
	// filters in the request phase, when the request doesn't need to be
	// forwarded to the backend.
	Serve(*http.Response)

	// Provides state bag storage for filters to communicate with each
	// other during the processing of a single request.
	StateBag() map[string]any

	// The host header used by the outgoing request.
	OutgoingHost() string

	// Sets the host header of the outgoing request.
	SetOutgoingHost(string)

	// Allows filters to report metrics.
	Metrics() Metrics

	// Logger with the request context.
	Logger() FilterContextLogger
}

// Metrics provides the possibility to report metrics from filters. The
// keys are prefixed with the name of the filter.
type Metrics interface {
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)
}

// FilterContextLogger is the logger available to filters.
type FilterContextLogger interface {
	Debugf(msg string, args ...any)
	Infof(msg string, args ...any)
	Warnf(msg string, args ...any)
	Errorf(msg string, args ...any)
}

// Filters are created by the Spec components, optionally using filter
// specific settings. Filter instances are route specific, not request
// specific, so any state stored with a filter is shared between all
// requests.
type Filter interface {

	// The request method is called on a filter on incoming requests.
	// At this stage, FilterContext.Response() returns nil.
	Request(FilterContext)

	// The response method is called on a filter after the response was
	// received from the backend, in reverse order.
	Response(FilterContext)
}

// Spec objects are specifications for filters. When initializing the
// routes, the Filter instances are created using the Spec objects found
// in the registry.
type Spec interface {

	// Name gives the name of the Spec. It is used to identify filters
	// in a route definition.
	Name() string

	// CreateFilter creates a Filter instance. Called with the
	// parameters in the route definition.
	CreateFilter(config []any) (Filter, error)
}

// Registry used to lookup Spec objects while initializing routes.
type Registry map[string]Spec

// Register a filter specification.
func (r Registry) Register(s Spec) {
	r[s.Name()] = s
}

// CreateFilter creates a filter instance with the specification
// registered under name.
func (r Registry) CreateFilter(name string, args ...any) (Filter, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("filter %q not found", name)
	}

	f, err := s.CreateFilter(args)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter %q: %w", name, err)
	}

	return f, nil
}
