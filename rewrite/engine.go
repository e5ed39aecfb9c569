package rewrite

import (
	"context"
	"fmt"
	"io"
)

// ScriptPolicy selects how the bodies of script elements are treated.
type ScriptPolicy int

const (

	// SkipScriptBodies copies the content between <script ...> and the
	// next </script> verbatim, without looking for tags or attributes.
	SkipScriptBodies ScriptPolicy = iota

	// ScanScriptBodies processes script bodies like any other content,
	// so quoted values after a '<' inside a script can be rewritten.
	// This reproduces the behavior of rewriters that never recognized
	// script tags.
	ScanScriptBodies
)

func (p ScriptPolicy) String() string {
	switch p {
	case SkipScriptBodies:
		return "skip"
	case ScanScriptBodies:
		return "scan"
	default:
		return fmt.Sprintf("ScriptPolicy(%d)", int(p))
	}
}

// ParseScriptPolicy parses "skip" or "scan".
func ParseScriptPolicy(s string) (ScriptPolicy, error) {
	switch s {
	case "", "skip":
		return SkipScriptBodies, nil
	case "scan":
		return ScanScriptBodies, nil
	default:
		return 0, fmt.Errorf("invalid script policy: %q", s)
	}
}

// Options configure a rewrite.
type Options struct {

	// BufferSize is the capacity of the output block. Defaults to
	// DefaultBufferSize.
	BufferSize int

	// ReadSize is the maximum size of a chunk read from the input.
	// Defaults to DefaultReadSize.
	ReadSize int

	ScriptPolicy ScriptPolicy

	// Done, when set, is called by the reader returned from NewReader
	// once the rewrite has finished.
	Done func(Stats, error)
}

// Stats describe a finished rewrite.
type Stats struct {
	BytesIn      int64
	BytesOut     int64
	Replacements int64
}

type state int

const (
	findingNextTag state = iota
	processingTagName
	findingAttributeOrTagEnd
	processingAttribute
	findingScriptTagEnd
	findingXMLTagEnd
)

func (s state) String() string {
	switch s {
	case findingNextTag:
		return "findingNextTag"
	case processingTagName:
		return "processingTagName"
	case findingAttributeOrTagEnd:
		return "findingAttributeOrTagEnd"
	case processingAttribute:
		return "processingAttribute"
	case findingScriptTagEnd:
		return "findingScriptTagEnd"
	case findingXMLTagEnd:
		return "findingXMLTagEnd"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	commentStart = "!--"
	commentEnd   = "-->"
	scriptName   = "script"
	scriptEnd    = "</script>"
)

type engine struct {
	source   *Source
	out      *BufferedSink
	replacer *replacer
	comment  *delimiterScanner
	policy   ScriptPolicy
	scratch  [len(scriptEnd)]byte

	state    state
	inScript bool

	// bytes of the current tag name already written
	nameLen int
}

// Rewrite reads an HTML document from src and writes it to dst, replacing
// the patterns of the directives inside double quoted attribute values.
// dst is always completed, and closed with the error that terminated the
// rewrite, if any. Unterminated markup is not an error, it is copied as
// is.
func Rewrite(ctx context.Context, dst Sink, src io.Reader, d *Directives, o Options) (s Stats, err error) {
	e := &engine{
		source:   NewSource(src, o.ReadSize),
		out:      NewBufferedSink(dst, o.BufferSize),
		replacer: newReplacer(d),
		comment:  newDelimiterScanner(commentEnd),
		policy:   o.ScriptPolicy,
	}

	defer func() {
		e.out.Complete(ctx, err)
		s = Stats{
			BytesIn:      e.source.BytesIn(),
			BytesOut:     e.out.BytesOut(),
			Replacements: e.replacer.replacements,
		}
	}()

	err = e.run(ctx)
	return
}

// Copy rewrites the document read from r into w.
func Copy(ctx context.Context, w io.Writer, r io.Reader, d *Directives, o Options) (Stats, error) {
	return Rewrite(ctx, NewWriterSink(w), r, d, o)
}

func (e *engine) run(ctx context.Context) error {
	for {
		s, done, err := e.source.Read(ctx)
		if err != nil {
			return err
		}

		if done && len(s) == 0 {
			return nil
		}

		consumed, examined, err := e.step(ctx, s, done)
		if err != nil {
			return err
		}

		e.source.Advance(consumed, examined)
	}
}

// step processes the available bytes in the current state. It returns the
// number of bytes consumed, and the number of bytes examined. When fewer
// bytes were examined than available, the next step continues without
// waiting for more input.
func (e *engine) step(ctx context.Context, s Sequence, done bool) (int, int, error) {
	switch e.state {
	case processingTagName:
		return e.tagName(ctx, s, done)
	case findingAttributeOrTagEnd:
		return e.attributeOrTagEnd(ctx, s)
	case processingAttribute:
		return e.attribute(ctx, s, done)
	case findingScriptTagEnd:
		return e.scriptEnd(ctx, s, done)
	case findingXMLTagEnd:
		return e.commentEnd(ctx, s, done)
	default:
		return e.nextTag(ctx, s)
	}
}

// copyThrough writes the first n bytes of s, and consumes them.
func (e *engine) copyThrough(ctx context.Context, s Sequence, n int) (int, int, error) {
	if err := e.out.WriteSequence(ctx, s.Slice(0, n)); err != nil {
		return 0, 0, err
	}

	return n, n, nil
}

func (e *engine) nextTag(ctx context.Context, s Sequence) (int, int, error) {
	i := s.IndexByte('<')
	if i < 0 {
		return e.copyThrough(ctx, s, s.Len())
	}

	e.state = processingTagName
	e.nameLen = 0
	return e.copyThrough(ctx, s, i+1)
}

func (e *engine) tagName(ctx context.Context, s Sequence, done bool) (int, int, error) {
	total := s.Len()
	if e.nameLen == 0 {
		if s.hasPrefixFold(commentStart, e.scratch[:]) {
			e.state = findingXMLTagEnd
			return e.copyThrough(ctx, s, len(commentStart))
		}

		if !done && total < len(commentStart) && s.hasPrefixFold(commentStart[:total], e.scratch[:]) {
			return 0, total, nil
		}
	}

	i := s.IndexAny(" >")
	if i < 0 {
		if done {
			return e.copyThrough(ctx, s, total)
		}

		// a name longer than "script" cannot change the outcome anymore
		if e.nameLen+total > len(scriptName) {
			e.nameLen += total
			return e.copyThrough(ctx, s, total)
		}

		return 0, total, nil
	}

	e.inScript = e.policy == SkipScriptBodies &&
		e.nameLen == 0 &&
		i == len(scriptName) &&
		s.hasPrefixFold(scriptName, e.scratch[:])

	e.state = findingAttributeOrTagEnd
	return e.copyThrough(ctx, s, i)
}

func (e *engine) attributeOrTagEnd(ctx context.Context, s Sequence) (int, int, error) {
	i := s.IndexAny("\">")
	if i < 0 {
		return e.copyThrough(ctx, s, s.Len())
	}

	switch {
	case s.byteAt(i) == '"':
		e.state = processingAttribute
	case e.inScript:
		e.state = findingScriptTagEnd
	default:
		e.state = findingNextTag
	}

	return e.copyThrough(ctx, s, i+1)
}

func (e *engine) attribute(ctx context.Context, s Sequence, done bool) (int, int, error) {
	q := s.IndexByte('"')
	if q < 0 {
		n, err := e.replacer.replace(ctx, s, done, e.out)
		return n, s.Len(), err
	}

	if _, err := e.replacer.replace(ctx, s.Slice(0, q), true, e.out); err != nil {
		return 0, 0, err
	}

	if err := e.out.Write(ctx, []byte{'"'}); err != nil {
		return 0, 0, err
	}

	e.state = findingAttributeOrTagEnd
	return q + 1, q + 1, nil
}

func (e *engine) scriptEnd(ctx context.Context, s Sequence, done bool) (int, int, error) {
	total := s.Len()
	i := s.IndexByte('<')
	if i < 0 {
		return e.copyThrough(ctx, s, total)
	}

	if total-i < len(scriptEnd) {
		if done {
			return e.copyThrough(ctx, s, total)
		}

		n, _, err := e.copyThrough(ctx, s, i)
		return n, total, err
	}

	if s.Slice(i, total).hasPrefixFold(scriptEnd, e.scratch[:]) {
		e.state = findingNextTag
		e.inScript = false
		return e.copyThrough(ctx, s, i+len(scriptEnd))
	}

	// only the '<' is skipped, the next candidate may start right after it
	return e.copyThrough(ctx, s, i+1)
}

func (e *engine) commentEnd(ctx context.Context, s Sequence, done bool) (int, int, error) {
	i, safe := e.comment.scan(s, done)
	if i >= 0 {
		e.state = findingNextTag
		return e.copyThrough(ctx, s, i+len(commentEnd))
	}

	n, _, err := e.copyThrough(ctx, s, safe)
	return n, s.Len(), err
}
