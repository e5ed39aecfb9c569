package builtin

import (
	"strings"

	"github.com/zalando/hubmirror/filters"
)

type headerType int

const (
	setRequestHeader headerType = iota
	dropRequestHeader
	dropResponseHeader
)

// common structure for the header specifications and filters
type headerFilter struct {
	typ        headerType
	name       string
	key, value string
}

// Returns a filter specification that is used to set headers for requests.
// Instances expect two parameters: the header name and the header value.
// Name: "setRequestHeader".
//
// When the header name is Host, the outgoing host is set, too.
func NewSetRequestHeader() filters.Spec {
	return &headerFilter{typ: setRequestHeader, name: filters.SetRequestHeaderName}
}

// Returns a filter specification that is used to remove headers from
// requests. Instances expect one parameter: the header name.
// Name: "dropRequestHeader".
func NewDropRequestHeader() filters.Spec {
	return &headerFilter{typ: dropRequestHeader, name: filters.DropRequestHeaderName}
}

// Returns a filter specification that is used to remove headers from
// responses. Instances expect one parameter: the header name.
// Name: "dropResponseHeader".
func NewDropResponseHeader() filters.Spec {
	return &headerFilter{typ: dropResponseHeader, name: filters.DropResponseHeaderName}
}

func (spec *headerFilter) Name() string { return spec.name }

func (spec *headerFilter) CreateFilter(config []any) (filters.Filter, error) {
	expected := 1
	if spec.typ == setRequestHeader {
		expected = 2
	}

	if len(config) != expected {
		return nil, filters.ErrInvalidFilterParameters
	}

	args, err := filters.StringArgs(config, expected)
	if err != nil {
		return nil, err
	}

	f := &headerFilter{typ: spec.typ, name: spec.name, key: args[0]}
	if expected == 2 {
		f.value = args[1]
	}

	return f, nil
}

func (f *headerFilter) Request(ctx filters.FilterContext) {
	switch f.typ {
	case setRequestHeader:
		ctx.Request().Header.Set(f.key, f.value)
		if strings.ToLower(f.key) == "host" {
			ctx.SetOutgoingHost(f.value)
		}
	case dropRequestHeader:
		ctx.Request().Header.Del(f.key)
	}
}

func (f *headerFilter) Response(ctx filters.FilterContext) {
	if f.typ == dropResponseHeader {
		ctx.Response().Header.Del(f.key)
	}
}
