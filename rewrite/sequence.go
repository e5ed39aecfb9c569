package rewrite

import "bytes"

// Sequence is an ordered list of non-contiguous byte runs. A Sequence is a
// view: it is only valid until the next call to Source.Read or
// Source.Advance.
type Sequence [][]byte

// Len returns the total number of bytes in the sequence.
func (s Sequence) Len() int {
	var n int
	for _, r := range s {
		n += len(r)
	}

	return n
}

// First returns the first run, or nil when the sequence is empty.
func (s Sequence) First() []byte {
	if len(s) == 0 {
		return nil
	}

	return s[0]
}

// runAt returns the contiguous remainder of the run containing the byte at
// offset pos.
func (s Sequence) runAt(pos int) []byte {
	for _, r := range s {
		if pos < len(r) {
			return r[pos:]
		}

		pos -= len(r)
	}

	return nil
}

// Slice returns the bytes between start and end.
func (s Sequence) Slice(start, end int) Sequence {
	var out Sequence
	for _, r := range s {
		if end <= 0 {
			break
		}

		if start >= len(r) {
			start -= len(r)
			end -= len(r)
			continue
		}

		part := r[start:min(end, len(r))]
		if len(part) > 0 {
			out = append(out, part)
		}

		start = 0
		end -= len(r)
	}

	return out
}

// IndexByte returns the offset of the first c in the sequence, or -1.
func (s Sequence) IndexByte(c byte) int {
	var offset int
	for _, r := range s {
		if i := bytes.IndexByte(r, c); i >= 0 {
			return offset + i
		}

		offset += len(r)
	}

	return -1
}

// IndexAny returns the offset of the first byte that is any of chars, or
// -1.
func (s Sequence) IndexAny(chars string) int {
	var offset int
	for _, r := range s {
		if i := bytes.IndexAny(r, chars); i >= 0 {
			return offset + i
		}

		offset += len(r)
	}

	return -1
}

// CopyTo copies the sequence into dst and returns the number of bytes
// copied.
func (s Sequence) CopyTo(dst []byte) int {
	var n int
	for _, r := range s {
		if n == len(dst) {
			break
		}

		n += copy(dst[n:], r)
	}

	return n
}

func (s Sequence) byteAt(pos int) byte {
	return s.runAt(pos)[0]
}

// hasPrefixFold reports whether the sequence starts with prefix, using
// ASCII case folding.
func (s Sequence) hasPrefixFold(prefix string, scratch []byte) bool {
	if s.Len() < len(prefix) {
		return false
	}

	n := s.Slice(0, len(prefix)).CopyTo(scratch[:len(prefix)])
	return bytes.EqualFold(scratch[:n], []byte(prefix))
}
