package builtin

import "github.com/zalando/hubmirror/filters"

type statusSpec struct{}

type statusFilter struct {
	code int
}

// NewStatus creates a filter specification for the status() filter. It
// sets the status code of the response. Used on shunt routes:
//
//	status(204)
func NewStatus() filters.Spec { return new(statusSpec) }

func (s *statusSpec) Name() string { return filters.StatusName }

func (s *statusSpec) CreateFilter(args []any) (filters.Filter, error) {
	if len(args) != 1 {
		return nil, filters.ErrInvalidFilterParameters
	}

	c, err := filters.IntArg(args[0])
	if err != nil || c < 100 || c > 599 {
		return nil, filters.ErrInvalidFilterParameters
	}

	return &statusFilter{c}, nil
}

func (f *statusFilter) Request(filters.FilterContext) {}

func (f *statusFilter) Response(ctx filters.FilterContext) {
	ctx.Response().StatusCode = f.code
}
