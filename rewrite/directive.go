package rewrite

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrEmptyPattern     = errors.New("empty replace pattern")
	ErrEmptyReplacement = errors.New("empty replacement")
	ErrNoDirectives     = errors.New("no replace directives")
	ErrOddDirectiveArgs = errors.New("replace directives expect pattern and replacement pairs")
)

// Directive replaces every occurrence of Pattern with Replacement.
type Directive struct {
	Pattern     []byte
	Replacement []byte
}

// NewDirective creates a directive. Neither the pattern nor the
// replacement may be empty.
func NewDirective(pattern, replacement string) (Directive, error) {
	if pattern == "" {
		return Directive{}, ErrEmptyPattern
	}

	if replacement == "" {
		return Directive{}, fmt.Errorf("%w for %q", ErrEmptyReplacement, pattern)
	}

	return Directive{Pattern: []byte(pattern), Replacement: []byte(replacement)}, nil
}

func (d Directive) String() string {
	return fmt.Sprintf("%s -> %s", d.Pattern, d.Replacement)
}

// Directives is an ordered, immutable set of replace directives. When two
// patterns match at the same offset, the one listed first wins.
type Directives struct {
	list   []Directive
	maxLen int
}

// NewDirectives creates a directive set from the given directives,
// preserving their order.
func NewDirectives(d ...Directive) (*Directives, error) {
	if len(d) == 0 {
		return nil, ErrNoDirectives
	}

	ds := &Directives{list: make([]Directive, len(d))}
	for i, di := range d {
		if len(di.Pattern) == 0 {
			return nil, ErrEmptyPattern
		}

		if len(di.Replacement) == 0 {
			return nil, fmt.Errorf("%w for %q", ErrEmptyReplacement, di.Pattern)
		}

		ds.list[i] = Directive{
			Pattern:     bytes.Clone(di.Pattern),
			Replacement: bytes.Clone(di.Replacement),
		}

		ds.maxLen = max(ds.maxLen, len(di.Pattern))
	}

	return ds, nil
}

// ParseDirectives creates a directive set from alternating pattern and
// replacement strings.
func ParseDirectives(pairs ...string) (*Directives, error) {
	if len(pairs)%2 != 0 {
		return nil, ErrOddDirectiveArgs
	}

	var d []Directive
	for i := 0; i < len(pairs); i += 2 {
		di, err := NewDirective(pairs[i], pairs[i+1])
		if err != nil {
			return nil, err
		}

		d = append(d, di)
	}

	return NewDirectives(d...)
}

// MaxPatternLen returns the length of the longest pattern. It is the size
// of the window held back when a pattern may continue in the next chunk.
func (ds *Directives) MaxPatternLen() int { return ds.maxLen }

// Len returns the number of directives.
func (ds *Directives) Len() int { return len(ds.list) }

// Directive returns the i-th directive.
func (ds *Directives) Directive(i int) Directive { return ds.list[i] }

// earliest returns the smallest offset at which any pattern matches in b.
// On equal offsets the directive listed first is kept, because a later
// match only replaces the current one when its offset is strictly smaller.
func (ds *Directives) earliest(b []byte) (int, *Directive) {
	var (
		best = -1
		bd   *Directive
	)

	for i := range ds.list {
		idx := bytes.Index(b, ds.list[i].Pattern)
		if idx < 0 {
			continue
		}

		if bd == nil || idx < best {
			best = idx
			bd = &ds.list[i]
		}
	}

	return best, bd
}
