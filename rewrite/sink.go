package rewrite

import (
	"context"
	"io"
	"net/http"
)

// DefaultBufferSize is the capacity of the BufferedSink output block.
const DefaultBufferSize = 16384

// Sink is the downstream byte sink of a rewrite.
type Sink interface {

	// Buffer returns a writable region of at least size bytes. The
	// region is valid until the next call to Commit or Flush.
	Buffer(size int) []byte

	// Commit marks the first n bytes of the last returned region as
	// written.
	Commit(n int)

	// Flush hands the committed bytes to the transport. It blocks until
	// they were accepted.
	Flush(context.Context) error

	// CloseWithError signals the end of the output. A non-nil cause
	// tells the receiver that the output was truncated.
	CloseWithError(cause error) error
}

type writerSink struct {
	writer  io.Writer
	pending []byte
	closer  func(error) error
}

// NewWriterSink returns a sink writing to w. When w implements
// http.Flusher, it is flushed after every write. Closing the sink does not
// close w.
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{writer: w}
}

// NewPipeSink returns a sink writing to a pipe. Closing the sink closes the
// pipe with the cause, so that the reading side observes truncated output
// as an error.
func NewPipeSink(w *io.PipeWriter) Sink {
	return &writerSink{writer: w, closer: w.CloseWithError}
}

func (s *writerSink) Buffer(size int) []byte {
	if cap(s.pending)-len(s.pending) < size {
		b := make([]byte, len(s.pending), len(s.pending)+size)
		copy(b, s.pending)
		s.pending = b
	}

	return s.pending[len(s.pending):cap(s.pending)]
}

func (s *writerSink) Commit(n int) {
	s.pending = s.pending[:len(s.pending)+n]
}

func (s *writerSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(s.pending) == 0 {
		return nil
	}

	_, err := s.writer.Write(s.pending)
	s.pending = s.pending[:0]
	if err != nil {
		return err
	}

	if f, ok := s.writer.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}

func (s *writerSink) CloseWithError(cause error) error {
	if s.closer == nil {
		return nil
	}

	return s.closer(cause)
}

// BufferedSink coalesces small writes into a block of a fixed capacity
// before handing them to the underlying sink. Writes that do not fit into
// the block bypass it in capacity sized pieces.
type BufferedSink struct {
	sink     Sink
	size     int
	block    []byte
	n        int
	bytesOut int64
}

// NewBufferedSink creates a buffered sink. When size is not positive,
// DefaultBufferSize is used.
func NewBufferedSink(s Sink, size int) *BufferedSink {
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &BufferedSink{sink: s, size: size}
}

func (b *BufferedSink) acquire() {
	b.block = b.sink.Buffer(b.size)[:b.size]
	b.n = 0
}

func (b *BufferedSink) flush(ctx context.Context) error {
	b.sink.Commit(b.n)
	b.block = nil
	b.n = 0
	return b.sink.Flush(ctx)
}

// Write appends p to the pending block. It only does I/O when p does not
// fit into the remaining space of the block.
func (b *BufferedSink) Write(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	b.bytesOut += int64(len(p))
	if b.block == nil {
		b.acquire()
	}

	if len(p) <= len(b.block)-b.n {
		b.n += copy(b.block[b.n:], p)
		return nil
	}

	if b.n > 0 {
		k := copy(b.block[b.n:], p)
		b.n += k
		p = p[k:]
		if err := b.flush(ctx); err != nil {
			return err
		}
	} else {
		b.block = nil
	}

	for len(p) >= b.size {
		copy(b.sink.Buffer(b.size), p[:b.size])
		b.sink.Commit(b.size)
		if err := b.sink.Flush(ctx); err != nil {
			return err
		}

		p = p[b.size:]
	}

	if len(p) > 0 {
		b.acquire()
		b.n = copy(b.block, p)
	}

	return nil
}

// WriteSequence writes every run of s.
func (b *BufferedSink) WriteSequence(ctx context.Context, s Sequence) error {
	for _, r := range s {
		if err := b.Write(ctx, r); err != nil {
			return err
		}
	}

	return nil
}

// Complete flushes the pending bytes and closes the underlying sink. The
// flush is attempted even when ctx was canceled. Errors are ignored, the
// receiving side may already be gone.
func (b *BufferedSink) Complete(ctx context.Context, cause error) {
	if b.n > 0 {
		_ = b.flush(context.WithoutCancel(ctx))
	} else if b.block != nil {
		b.block = nil
	}

	_ = b.sink.CloseWithError(cause)
}

// BytesOut returns the number of bytes written to the sink.
func (b *BufferedSink) BytesOut() int64 { return b.bytesOut }
