package httpfetch

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpfetch/client/metrics"
	"github.com/adamwoolhether/httpfetch/client/throttle"
)

// Option is a functional option for configuring a [Fetcher] via [New].
//
// WithLogger injects a custom logger.
// WithReporter sets the channel for notices, warnings, progress and the
// busy signal; the default reports through the logger.
// WithTimeout bounds every transfer; zero, the default, means none.
// WithTracer records a span per operation.
// WithMetrics records transfer outcomes.
// WithThrottle limits transfers across all calls of the Fetcher.
// WithTLSConfig overrides the TLS configuration of https transfers.
// WithFileURLs enables file:// URLs.
type Option func(*options) error

type options struct {
	logger    *slog.Logger
	reporter  Reporter
	timeout   time.Duration
	tracer    trace.Tracer
	metrics   *metrics.Recorder
	throttle  *throttle.Limiter
	tlsConfig *tls.Config
	fileURLs  bool
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

func WithReporter(r Reporter) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("reporter must not be nil")
		}
		o.reporter = r
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = d
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) error {
		o.metrics = r
		return nil
	}
}

func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		l, err := throttle.New(rps, burst)
		if err != nil {
			return err
		}
		o.throttle = l
		return nil
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		o.tlsConfig = cfg
		return nil
	}
}

func WithFileURLs() Option {
	return func(o *options) error {
		o.fileURLs = true
		return nil
	}
}
