package rewrite

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrClosed = errors.New("reader closed")

type reader struct {
	body   io.ReadCloser
	pipe   *io.PipeReader
	cancel context.CancelFunc
	once   sync.Once
}

// NewReader returns a reader that yields body rewritten. The rewrite runs
// in its own goroutine, feeding a pipe, and it stops when the returned
// reader is closed or ctx is canceled. Closing the returned reader closes
// body.
func NewReader(ctx context.Context, body io.ReadCloser, d *Directives, o Options) io.ReadCloser {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	r := &reader{
		body:   body,
		pipe:   pr,
		cancel: cancel,
	}

	go func() {
		s, err := Rewrite(ctx, NewPipeSink(pw), body, d, o)
		if o.Done != nil {
			o.Done(s, err)
		}
	}()

	return r
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.pipe.Read(p)
	if err == io.ErrClosedPipe {
		err = ErrClosed
	}

	return n, err
}

func (r *reader) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		r.pipe.CloseWithError(ErrClosed)
		err = r.body.Close()
	})

	return err
}
