package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Limiter holds a token bucket shared by every RoundTripper it wraps.
type Limiter struct {
	limiter *rate.Limiter
	rps     int
	burst   int
}

// New creates a Limiter allowing rps transfers per second with the given
// burst capacity.
func New(rps, burst int) (*Limiter, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
	}, nil
}

// Wrap returns an http.RoundTripper drawing a token from l before
// delegating to next. logFn lazily resolves the logger at request time;
// a nil-returning logFn disables wait logging.
func (l *Limiter) Wrap(next http.RoundTripper, logFn func() *slog.Logger) http.RoundTripper {
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &roundTripper{
		l:     l,
		next:  next,
		logFn: logFn,
	}
}

// roundTripper is an http.RoundTripper restricting outbound calls
// to the rate of its Limiter.
type roundTripper struct {
	l     *Limiter
	next  http.RoundTripper
	logFn func() *slog.Logger
}

func (t *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	var waited time.Duration
	logger := t.logFn()
	if logger != nil && t.l.limiter.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "rate", t.l.rps, "burst", t.l.burst, "url", r.URL.Redacted())

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.l.rps, "burst", t.l.burst)
		}()
	}

	start := time.Now()

	err := t.l.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
