package rewrite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	upstream = "https://github.com"
	mirror   = "https://mirror.example"
)

// chunkReader returns the configured chunks one by one.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.chunks) > 0 && r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}

	if len(r.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	return n, nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, nil }

func mirrorDirectives(t testing.TB) *Directives {
	d, err := ParseDirectives(upstream, mirror)
	require.NoError(t, err)
	return d
}

func rewriteWith(t testing.TB, r io.Reader, d *Directives, o Options) string {
	var buf bytes.Buffer
	_, err := Copy(context.Background(), &buf, r, d, o)
	require.NoError(t, err)
	return buf.String()
}

func rewriteChunks(t testing.TB, d *Directives, o Options, chunks ...string) string {
	return rewriteWith(t, &chunkReader{chunks: chunks}, d, o)
}

var rewriteTests = []struct {
	title    string
	input    string
	expected string
}{{
	title:    "empty",
	input:    "",
	expected: "",
}, {
	title:    "attribute",
	input:    `<a href="https://github.com/foo">x</a>`,
	expected: `<a href="https://mirror.example/foo">x</a>`,
}, {
	title:    "multiple attributes",
	input:    `<img src="https://github.com/a.png" alt="https://github.com" class="x">`,
	expected: `<img src="https://mirror.example/a.png" alt="https://mirror.example" class="x">`,
}, {
	title:    "multiple occurrences in one value",
	input:    `<a data-x="https://github.com https://github.com/b">`,
	expected: `<a data-x="https://mirror.example https://mirror.example/b">`,
}, {
	title:    "tag name case is preserved",
	input:    `<A HREF="https://github.com">`,
	expected: `<A HREF="https://mirror.example">`,
}, {
	title:    "text is not rewritten",
	input:    `<p>https://github.com "https://github.com"</p>`,
	expected: `<p>https://github.com "https://github.com"</p>`,
}, {
	title:    "unquoted attribute is not rewritten",
	input:    `<a href=https://github.com>`,
	expected: `<a href=https://github.com>`,
}, {
	title:    "single quoted attribute is not rewritten",
	input:    `<a href='https://github.com'>`,
	expected: `<a href='https://github.com'>`,
}, {
	title:    "script body",
	input:    `<script>var u="https://github.com";</script>`,
	expected: `<script>var u="https://github.com";</script>`,
}, {
	title:    "script body with markup",
	input:    `<script>if (a<b) x="https://github.com"</script><a href="https://github.com">`,
	expected: `<script>if (a<b) x="https://github.com"</script><a href="https://mirror.example">`,
}, {
	title:    "script attributes are rewritten",
	input:    `<script src="https://github.com/x.js">a="https://github.com"</script>`,
	expected: `<script src="https://mirror.example/x.js">a="https://github.com"</script>`,
}, {
	title:    "script tags case insensitive",
	input:    `<SCRIPT>a="https://github.com"</ScRiPt><a href="https://github.com">`,
	expected: `<SCRIPT>a="https://github.com"</ScRiPt><a href="https://mirror.example">`,
}, {
	title:    "script end after a stray '<'",
	input:    `<script><</script><a href="https://github.com">`,
	expected: `<script><</script><a href="https://mirror.example">`,
}, {
	title:    "not a script tag",
	input:    `<scripts>x<a href="https://github.com">`,
	expected: `<scripts>x<a href="https://mirror.example">`,
}, {
	title:    "long tag name",
	input:    `<custom-element-name data-url="https://github.com">`,
	expected: `<custom-element-name data-url="https://mirror.example">`,
}, {
	title:    "comment",
	input:    `<!-- see https://github.com/foo -->`,
	expected: `<!-- see https://github.com/foo -->`,
}, {
	title:    "comment with markup",
	input:    `<!-- <a href="https://github.com"> -- --->"https://github.com"<a href="https://github.com">`,
	expected: `<!-- <a href="https://github.com"> -- --->"https://github.com"<a href="https://mirror.example">`,
}, {
	title:    "empty comment",
	input:    `<!----><b title="https://github.com">`,
	expected: `<!----><b title="https://mirror.example">`,
}, {
	title:    "doctype",
	input:    `<!DOCTYPE html><a href="https://github.com">`,
	expected: `<!DOCTYPE html><a href="https://mirror.example">`,
}, {
	title:    "unterminated tag",
	input:    `<a href`,
	expected: `<a href`,
}, {
	title:    "unterminated attribute",
	input:    `<a href="https://github.com`,
	expected: `<a href="https://mirror.example`,
}, {
	title:    "unterminated comment",
	input:    `<!-- "https://github.com" --`,
	expected: `<!-- "https://github.com" --`,
}, {
	title:    "unterminated script",
	input:    `<script>x="https://github.com"</scr`,
	expected: `<script>x="https://github.com"</scr`,
}, {
	title:    "trailing '<'",
	input:    `text <`,
	expected: `text <`,
}, {
	title: "document",
	input: `<!DOCTYPE html>
<html lang="en">
<head>
<link rel="stylesheet" href="https://github.com/assets/main.css">
<script>window.config = {"url": "https://github.com"};</script>
</head>
<body>
<!-- <img src="https://github.com/x.png"> -->
<a class="nav" href="https://github.com/explore">Explore https://github.com</a>
<form action="https://github.com/search"><input value="https://github.com"></form>
</body>
</html>`,
	expected: `<!DOCTYPE html>
<html lang="en">
<head>
<link rel="stylesheet" href="https://mirror.example/assets/main.css">
<script>window.config = {"url": "https://github.com"};</script>
</head>
<body>
<!-- <img src="https://github.com/x.png"> -->
<a class="nav" href="https://mirror.example/explore">Explore https://github.com</a>
<form action="https://mirror.example/search"><input value="https://mirror.example"></form>
</body>
</html>`,
}}

func TestRewrite(t *testing.T) {
	d := mirrorDirectives(t)
	for _, tt := range rewriteTests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, rewriteChunks(t, d, Options{}, tt.input))
		})
	}
}

func TestRewriteSplitPattern(t *testing.T) {
	d := mirrorDirectives(t)
	output := rewriteChunks(t, d, Options{}, `<a href="https://git`, `hub.com/foo">x</a>`)
	assert.Equal(t, `<a href="https://mirror.example/foo">x</a>`, output)
}

func TestRewriteChunkInvariance(t *testing.T) {
	d := mirrorDirectives(t)
	for _, tt := range rewriteTests {
		t.Run(tt.title, func(t *testing.T) {
			whole := rewriteChunks(t, d, Options{}, tt.input)

			for i := 1; i < len(tt.input); i++ {
				output := rewriteChunks(t, d, Options{}, tt.input[:i], tt.input[i:])
				if output != whole {
					t.Fatalf("split at %d: got %q, expected %q", i, output, whole)
				}
			}

			oneByte := rewriteWith(t, iotest.OneByteReader(strings.NewReader(tt.input)), d, Options{BufferSize: 7})
			assert.Equal(t, whole, oneByte)

			small := rewriteWith(t, strings.NewReader(tt.input), d, Options{ReadSize: 3, BufferSize: 2})
			assert.Equal(t, whole, small)
		})
	}
}

func TestRewriteChunkInvarianceThreeWay(t *testing.T) {
	d := mirrorDirectives(t)
	for _, tt := range rewriteTests {
		if len(tt.input) > 80 {
			continue
		}

		t.Run(tt.title, func(t *testing.T) {
			whole := rewriteChunks(t, d, Options{}, tt.input)
			for _, chunks := range splits(tt.input) {
				output := rewriteChunks(t, d, Options{}, chunks...)
				if output != whole {
					t.Fatalf("chunks %q: got %q, expected %q", chunks, output, whole)
				}
			}
		})
	}
}

func TestRewriteRandomPartitions(t *testing.T) {
	fragments := []string{
		"<", ">", `"`, " ", "<a", " href=", "<!--", "-->", "--", "<script>", "</script>",
		"<SCRIPT type=\"x\">", "https://github.com", "https://git", "hub.com", "ab", "abc", "text",
		"</", "<!", "!--", "=",
	}

	d, err := ParseDirectives(upstream, mirror, "ab", "X", "abc", "Y")
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var doc strings.Builder
		for j := rnd.Intn(40); j >= 0; j-- {
			doc.WriteString(fragments[rnd.Intn(len(fragments))])
		}

		input := doc.String()
		whole := rewriteChunks(t, d, Options{}, input)

		var chunks []string
		for rest := input; len(rest) > 0; {
			n := 1 + rnd.Intn(min(len(rest), 12))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		output := rewriteChunks(t, d, Options{BufferSize: 5}, append([]string(nil), chunks...)...)
		if output != whole {
			t.Fatalf("input %q in chunks %q: got %q, expected %q", input, chunks, output, whole)
		}
	}
}

func TestRewriteTieBreak(t *testing.T) {
	d, err := ParseDirectives("ab", "X", "abc", "Y")
	require.NoError(t, err)
	assert.Equal(t, `<p class="xxXcxx">`, rewriteChunks(t, d, Options{}, `<p class="xxabcxx">`))
}

func TestRewriteIdempotent(t *testing.T) {
	d := mirrorDirectives(t)
	for _, tt := range rewriteTests {
		t.Run(tt.title, func(t *testing.T) {
			once := rewriteChunks(t, d, Options{}, tt.input)
			twice := rewriteChunks(t, d, Options{}, once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestScriptPolicy(t *testing.T) {
	const input = `<script>if (a<b) x="https://github.com"</script>`
	d := mirrorDirectives(t)

	t.Run("skip", func(t *testing.T) {
		assert.Equal(t, input, rewriteChunks(t, d, Options{ScriptPolicy: SkipScriptBodies}, input))
	})

	t.Run("scan", func(t *testing.T) {
		assert.Equal(
			t,
			`<script>if (a<b) x="https://mirror.example"</script>`,
			rewriteChunks(t, d, Options{ScriptPolicy: ScanScriptBodies}, input),
		)
	})

	t.Run("parse", func(t *testing.T) {
		p, err := ParseScriptPolicy("scan")
		require.NoError(t, err)
		assert.Equal(t, ScanScriptBodies, p)

		p, err = ParseScriptPolicy("")
		require.NoError(t, err)
		assert.Equal(t, SkipScriptBodies, p)
		assert.Equal(t, "skip", p.String())

		_, err = ParseScriptPolicy("ignore")
		assert.Error(t, err)
	})
}

func TestRewriteStats(t *testing.T) {
	const input = `<a href="https://github.com/a" title="https://github.com">`
	var buf bytes.Buffer
	s, err := Copy(context.Background(), &buf, strings.NewReader(input), mirrorDirectives(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, Stats{
		BytesIn:      int64(len(input)),
		BytesOut:     int64(buf.Len()),
		Replacements: 2,
	}, s)
}

func TestRewriteReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader(`<p>foo</p><a href="https://github.com`), iotest.ErrReader(readErr))
	sink := &recordingSink{}

	_, err := Rewrite(context.Background(), sink, src, mirrorDirectives(t), Options{})
	assert.Equal(t, readErr, err)
	assert.True(t, sink.closed)
	assert.Equal(t, readErr, sink.cause)
	assert.True(t, strings.HasPrefix(`<p>foo</p><a href="https://github.com`, sink.String()))
}

func TestRewriteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err := Rewrite(ctx, sink, strings.NewReader("<p>foo</p>"), mirrorDirectives(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sink.closed)
	assert.ErrorIs(t, sink.cause, context.Canceled)
}

func TestRewriteNoProgress(t *testing.T) {
	sink := &recordingSink{}
	_, err := Rewrite(context.Background(), sink, emptyReader{}, mirrorDirectives(t), Options{})
	assert.ErrorIs(t, err, io.ErrNoProgress)
	assert.True(t, sink.closed)
}

func BenchmarkRewrite(b *testing.B) {
	var doc strings.Builder
	for doc.Len() < 1<<20 {
		doc.WriteString(rewriteTests[len(rewriteTests)-1].input)
	}

	input := doc.String()
	d := mirrorDirectives(b)
	b.SetBytes(int64(len(input)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Copy(context.Background(), io.Discard, strings.NewReader(input), d, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
