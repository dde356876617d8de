package download

import (
	"errors"
	"time"
)

// ProgressFunc receives the number of bytes transferred so far and the
// expected total, which is -1 when the server did not announce a length.
type ProgressFunc func(transferred, total int64)

// Option defines optional settings for Handle.
//
// WithProgress enables progress reporting. fn may be nil, in which
// case progress is only logged via the logger supplied to Handle.
//
// WithProgressInterval sets how often progress is reported;
// the default is once per second.
type Option func(*options) error

type options struct {
	progress     bool
	progressFn   ProgressFunc
	progressTick time.Duration
}

func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		opts.progress = true
		opts.progressFn = fn
		return nil
	}
}

func WithProgressInterval(d time.Duration) Option {
	return func(opts *options) error {
		if d <= 0 {
			return errors.New("progress interval must be positive")
		}

		opts.progressTick = d
		return nil
	}
}
