package eskip

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
)

func escape(s string, chars string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	for i := 0; i < len(chars); i++ {
		c := chars[i : i+1]
		s = strings.ReplaceAll(s, c, "\\"+c)
	}

	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func appendFmt(s []string, format string, args ...any) []string {
	return append(s, fmt.Sprintf(format, args...))
}

func appendFmtEscape(s []string, format string, escapeChars string, args ...any) []string {
	eargs := make([]any, len(args))
	for i, arg := range args {
		eargs[i] = escape(fmt.Sprintf("%v", arg), escapeChars)
	}

	return appendFmt(s, format, eargs...)
}

func argsString(args []any) string {
	var sargs []string
	for _, a := range args {
		switch v := a.(type) {
		case int:
			sargs = appendFmt(sargs, "%d", a)
		case float64:
			f := "%g"

			// imprecise elimination of 0 decimals
			if math.Floor(v) == v {
				f = "%.0f"
			}

			sargs = appendFmt(sargs, f, a)
		case string:
			sargs = appendFmtEscape(sargs, `"%s"`, `"`, a)
		}
	}

	return strings.Join(sargs, ", ")
}

func (r *Route) predicateString() string {
	var predicates []string
	for _, h := range r.Hosts {
		predicates = appendFmtEscape(predicates, `Host("%s")`, `"`, h)
	}

	if r.Path != "" {
		predicates = appendFmtEscape(predicates, `Path("%s")`, `"`, r.Path)
	}

	if len(predicates) == 0 {
		predicates = append(predicates, "*")
	}

	return strings.Join(predicates, " && ")
}

func (r *Route) filterString() string {
	var sfilters []string
	for _, f := range r.Filters {
		sfilters = appendFmt(sfilters, "%s(%s)", f.Name, argsString(f.Args))
	}

	return strings.Join(sfilters, " -> ")
}

func (r *Route) backendString() string {
	if r.Shunt {
		return "<shunt>"
	}

	return fmt.Sprintf(`"%s"`, r.Backend)
}

// Serializes a route expression. Omits the route id if any.
func (r *Route) String() string {
	s := []string{r.predicateString()}

	fs := r.filterString()
	if fs != "" {
		s = append(s, fs)
	}

	s = append(s, r.backendString())
	return strings.Join(s, " -> ")
}

// String serializes a set of routes. If there's only a single route, and
// its ID is not set, it prints only a route expression. Otherwise it
// prints full route definitions with the IDs, separated by ';'.
func String(routes ...*Route) string {
	var buf bytes.Buffer
	Fprint(&buf, routes...)
	return buf.String()
}

func Fprint(w io.Writer, routes ...*Route) {
	if len(routes) == 1 && routes[0].Id == "" {
		fmt.Fprint(w, routes[0].String())
		return
	}

	for i, r := range routes {
		if i > 0 {
			fmt.Fprint(w, "\n")
		}

		fmt.Fprintf(w, "%s: %s;", r.Id, r.String())
	}
}
