/*
Package htmlrewrite provides the htmlRewrite() filter, rewriting the quoted
attribute values of HTML responses while the body is streamed.

The filter expects a non-empty, even number of string arguments: pairs of
an original and a replacement text. Within the quoted attribute values of
tags, every occurrence of an original is replaced with its replacement.
When two originals match at the same position, the one listed first wins.
Text outside of tags, comments and, by default, the content of script
elements are passed through unchanged.

Example:

	Host("mirror.example.org")
	-> htmlRewrite("https://github.com", "https://mirror.example.org")
	-> "https://github.com"

Only responses with the text/html media type are rewritten. The
Content-Length header is removed, because the length of the rewritten
body is not known in advance. Bodies in a charset other than UTF-8 are
transcoded to UTF-8 before rewriting, and the charset parameter of the
Content-Type header is set accordingly. Compressed bodies are not
rewritten, the decompress() filter needs to run before, i.e. it needs to
be placed after htmlRewrite() in the route.

The editing happens during streaming, after all response filters were
called. The following counters are reported, prefixed with the name of
the filter: bytes_in, bytes_out, replacements and errors.
*/
package htmlrewrite
