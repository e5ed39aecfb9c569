/*
Package rewrite implements a streaming rewriter for HTML documents that
replaces literal byte patterns inside quoted tag attribute values.

The rewriter never holds the complete document in memory. It pulls chunks
from an io.Reader, classifies the bytes with a small state machine and
writes the result through a BufferedSink, which coalesces small writes
before handing them to the downstream Sink. Delimiters and patterns may be
split across any chunk boundary: the output for a given input is the same
regardless of how the input was delivered.

Only the values of double quoted attributes are subject to replacement.
Comments (<!-- ... -->) are copied verbatim, and, with the default
SkipScriptBodies policy, so are the bodies of script elements.

Example:

	d, err := rewrite.ParseDirectives(
		"https://github.com", "https://mirror.example.org",
	)
	if err != nil {
		return err
	}

	_, err = rewrite.Copy(ctx, w, r, d, rewrite.Options{})

The rewriter is not a general HTML parser. Entities are not decoded,
malformed markup is passed through as is, and patterns are literal byte
strings.
*/
package rewrite
