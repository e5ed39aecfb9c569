package rewrite

import (
	"context"
	"io"
)

// DefaultReadSize is the default maximum size of the chunks read from
// the input.
const DefaultReadSize = 8 << 10

const maxEmptyReads = 100

// Source pulls chunks from an io.Reader and keeps the bytes that were not
// consumed yet. Every chunk is read into its own run, so views returned by
// earlier calls are never overwritten.
type Source struct {
	reader   io.Reader
	readSize int
	runs     [][]byte
	examined int
	eof      bool
	err      error
	bytesIn  int64
}

// NewSource creates a source reading chunks of at most readSize bytes.
func NewSource(r io.Reader, readSize int) *Source {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}

	return &Source{reader: r, readSize: readSize}
}

func (s *Source) buffered() int {
	return Sequence(s.runs).Len()
}

// Read returns all the bytes that were not consumed yet. When every one of
// them was examined by the previous step, Read blocks until new data
// arrives, the input ends or the context is canceled. The returned flag
// reports that the input has ended and no more data will follow.
func (s *Source) Read(ctx context.Context) (Sequence, bool, error) {
	for !s.eof && s.err == nil && s.examined >= s.buffered() {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		s.fill()
	}

	if s.err != nil {
		return nil, false, s.err
	}

	return Sequence(s.runs), s.eof, nil
}

func (s *Source) fill() {
	for i := 0; i < maxEmptyReads; i++ {
		b := make([]byte, s.readSize)
		n, err := s.reader.Read(b)
		if n > 0 {
			s.runs = append(s.runs, b[:n])
			s.bytesIn += int64(n)
		}

		switch {
		case err == io.EOF:
			s.eof = true
			return
		case err != nil:
			s.err = err
			return
		case n > 0:
			return
		}
	}

	s.err = io.ErrNoProgress
}

// Advance releases the first consumed bytes of the last returned sequence,
// and marks the first examined bytes as inspected. Examined bytes are
// delivered again by the next Read, together with the new data.
func (s *Source) Advance(consumed, examined int) {
	s.examined = examined - consumed
	for consumed > 0 && len(s.runs) > 0 {
		if consumed < len(s.runs[0]) {
			s.runs[0] = s.runs[0][consumed:]
			return
		}

		consumed -= len(s.runs[0])
		s.runs[0] = nil
		s.runs = s.runs[1:]
	}
}

// BytesIn returns the number of bytes read from the underlying reader.
func (s *Source) BytesIn() int64 { return s.bytesIn }
