package rewrite

import "bytes"

// delimiterScanner finds a fixed delimiter in a sequence, also when the
// delimiter is split between runs.
type delimiterScanner struct {
	delimiter []byte
	stage     []byte
}

func newDelimiterScanner(delimiter string) *delimiterScanner {
	return &delimiterScanner{
		delimiter: []byte(delimiter),
		stage:     make([]byte, 2*len(delimiter)),
	}
}

// scan returns the offset of the first delimiter in s, or -1. When the
// delimiter was not found, safe is the number of leading bytes that
// cannot be part of a delimiter completed by later data: all of them when
// final is set, otherwise all but the last len(delimiter)-1.
func (sc *delimiterScanner) scan(s Sequence, final bool) (index, safe int) {
	var (
		width = len(sc.delimiter)
		total = s.Len()
		pos   int
	)

	for pos < total {
		window := s.runAt(pos)
		if len(window) < width && pos+len(window) < total {
			n := s.Slice(pos, min(total, pos+len(sc.stage))).CopyTo(sc.stage)
			window = sc.stage[:n]
		}

		if i := bytes.Index(window, sc.delimiter); i >= 0 {
			return pos + i, pos + i
		}

		checked := len(window) - width + 1
		if checked <= 0 {
			break
		}

		pos += checked
	}

	if final {
		return -1, total
	}

	return -1, max(0, total-(width-1))
}
