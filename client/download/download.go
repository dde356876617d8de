package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Handle streams body into w. The returned count is the number of bytes
// written, which on failure describes the partial result left in w.
// Write failures wrap ErrWrite, read failures wrap ErrRead and a body
// shorter than contentLength yields ErrContentLengthMismatch.
func Handle(ctx context.Context, body io.Reader, contentLength int64, w io.Writer, logger *slog.Logger, optFns ...Option) (int64, error) {
	opts := options{progressTick: time.Second}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return 0, fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	body = &contextReader{ctx: ctx, r: body}

	var writer io.Writer = &sinkWriter{w: w}

	var pw *progressWriter
	if opts.progress {
		now := time.Now()
		pw = &progressWriter{
			w:          writer,
			logger:     logger,
			fn:         opts.progressFn,
			interval:   opts.progressTick,
			total:      contentLength,
			startTime:  now,
			lastReport: now,
		}
		writer = pw
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		var we *writeError
		if errors.As(err, &we) {
			return n, &Error{
				Err:    ErrWrite,
				Detail: fmt.Sprintf("after %d bytes", n),
				Cause:  we.err,
			}
		}

		if errors.Is(err, context.Canceled) {
			return n, fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}

		return n, &Error{
			Err:    ErrRead,
			Detail: fmt.Sprintf("after %d bytes", n),
			Cause:  err,
		}
	}

	if contentLength >= 0 && n != contentLength {
		return n, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if pw != nil {
		pw.finish()
	}

	return n, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}

// sinkWriter marks failures of the destination so they can be told
// apart from failures reading the body.
type sinkWriter struct {
	w io.Writer
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, &writeError{err: err}
	}

	return n, nil
}

type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }

func (e *writeError) Unwrap() error { return e.err }
