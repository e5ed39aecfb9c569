package rewrite

import "context"

type replacer struct {
	directives   *Directives
	hold         int
	stage        []byte
	replacements int64
}

func newReplacer(d *Directives) *replacer {
	return &replacer{
		directives: d,
		hold:       d.MaxPatternLen(),
		stage:      make([]byte, 2*d.MaxPatternLen()),
	}
}

// replace writes s to out, substituting the patterns of the directives, and
// returns the number of bytes consumed from s. Unless final is set, the
// trailing bytes that may be the start of a pattern continued by the next
// chunk are not consumed.
//
// A match is only accepted when the searched window extends at least
// hold bytes past it. Then every pattern that could start at or before the
// match is fully visible, and the earliest one wins the same way it would
// if the whole input was available at once.
func (r *replacer) replace(ctx context.Context, s Sequence, final bool, out *BufferedSink) (int, error) {
	var (
		total = s.Len()
		pos   int
	)

	for pos < total {
		window := s.runAt(pos)
		if len(window) < r.hold && pos+len(window) < total {
			n := s.Slice(pos, min(total, pos+len(r.stage))).CopyTo(r.stage)
			window = r.stage[:n]
		}

		limit := len(window) - (r.hold - 1)
		if final && pos+len(window) == total {
			limit = len(window)
		}

		idx, d := r.directives.earliest(window)
		if d != nil && idx < limit {
			if err := out.Write(ctx, window[:idx]); err != nil {
				return pos, err
			}

			if err := out.Write(ctx, d.Replacement); err != nil {
				return pos, err
			}

			r.replacements++
			pos += idx + len(d.Pattern)
			continue
		}

		if limit <= 0 {
			break
		}

		if err := out.Write(ctx, window[:limit]); err != nil {
			return pos, err
		}

		pos += limit
	}

	return pos, nil
}
