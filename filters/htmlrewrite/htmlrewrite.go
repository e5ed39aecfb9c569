package htmlrewrite

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/rewrite"
)

const (
	htmlMediaType = "text/html"
	utf8Name      = "utf-8"

	// the fallback of the sniffing, used when nothing was declared
	defaultSniffedName = "windows-1252"

	sniffLen = 1024
)

const (
	BytesInKey      = "bytes_in"
	BytesOutKey     = "bytes_out"
	ReplacementsKey = "replacements"
	ErrorsKey       = "errors"
)

type spec struct {
	options rewrite.Options
}

type filter struct {
	directives *rewrite.Directives
	options    rewrite.Options
}

type body struct {
	io.Reader
	io.Closer
}

// New creates the specification of the htmlRewrite() filter. The options
// are applied to every rewrite started by the filters created with the
// returned spec. The Done field of the options is ignored.
func New(o rewrite.Options) filters.Spec {
	o.Done = nil
	return &spec{options: o}
}

func (s *spec) Name() string { return filters.HTMLRewriteName }

func (s *spec) CreateFilter(args []any) (filters.Filter, error) {
	pairs, err := filters.StringPairArgs(args)
	if err != nil {
		return nil, err
	}

	d, err := rewrite.ParseDirectives(pairs...)
	if err != nil {
		return nil, err
	}

	return &filter{directives: d, options: s.options}, nil
}

func (f *filter) Request(filters.FilterContext) {}

func compressed(h http.Header) bool {
	for e := range strings.SplitSeq(h.Get("Content-Encoding"), ",") {
		e = strings.TrimSpace(e)
		if e != "" && !strings.EqualFold(e, "identity") {
			return true
		}
	}

	return false
}

// declared or sniffed encoding of the body. Returns nil when the body is
// UTF-8, or when nothing is declared.
func bodyEncoding(r io.Reader, contentType string, params map[string]string) (encoding.Encoding, io.Reader, error) {
	if label, ok := params["charset"]; ok {
		e, name := charset.Lookup(label)
		if e == nil {
			return nil, r, errors.New("unsupported charset: " + label)
		}

		if name == utf8Name {
			return nil, r, nil
		}

		return e, r, nil
	}

	br := bufio.NewReaderSize(r, sniffLen)

	// errors are returned again by the next read
	head, _ := br.Peek(sniffLen)
	e, name, certain := charset.DetermineEncoding(head, contentType)
	if name == utf8Name || !certain && name == defaultSniffedName {
		return nil, br, nil
	}

	return e, br, nil
}

func (f *filter) done(ctx filters.FilterContext) func(rewrite.Stats, error) {
	m := ctx.Metrics()
	log := ctx.Logger()
	return func(s rewrite.Stats, err error) {
		m.IncCounterBy(BytesInKey, s.BytesIn)
		m.IncCounterBy(BytesOutKey, s.BytesOut)
		m.IncCounterBy(ReplacementsKey, s.Replacements)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, rewrite.ErrClosed) {
			return
		}

		m.IncCounter(ErrorsKey)
		log.Errorf("transform failed: %v", err)
	}
}

func (f *filter) Response(ctx filters.FilterContext) {
	rsp := ctx.Response()
	if rsp.Body == nil || rsp.Body == http.NoBody {
		return
	}

	contentType := rsp.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != htmlMediaType {
		return
	}

	if compressed(rsp.Header) {
		ctx.Logger().Debugf("compressed html response not rewritten: %s", rsp.Header.Get("Content-Encoding"))
		return
	}

	enc, r, err := bodyEncoding(rsp.Body, contentType, params)
	if err != nil {
		ctx.Logger().Warnf("html response not rewritten: %v", err)
		return
	}

	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
		params["charset"] = utf8Name
		rsp.Header.Set("Content-Type", mime.FormatMediaType(mediaType, params))
	}

	rsp.Header.Del("Content-Length")
	rsp.ContentLength = -1

	o := f.options
	o.Done = f.done(ctx)
	rsp.Body = rewrite.NewReader(
		ctx.Request().Context(),
		body{Reader: r, Closer: rsp.Body},
		f.directives,
		o,
	)
}
