package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/adamwoolhether/httpfetch/client/header"
	"github.com/adamwoolhether/httpfetch/client/throttle"
)

// MaxRedirects is the default ceiling on followed redirects.
const MaxRedirects = 50

// keepAliveIdle is the TCP keep-alive idle time used with WithKeepAlive.
const keepAliveIdle = 60 * time.Second

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	timeout           *time.Duration
	userAgent         *string
	noFollowRedirects bool
	maxRedirects      int
	keepAlive         bool
	noCache           bool
	collector         *header.Collector
	tlsConfig         *tls.Config
	throttle          *throttle.Limiter
	protocols         []protocol
	logger            *slog.Logger
}

type protocol struct {
	scheme string
	rt     http.RoundTripper
}

// WithTimeout bounds the whole transfer, redirects and body included.
// Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent sets the User-Agent header on every request of the
// transfer, redirect hops included. An empty value suppresses the header.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = &header
		return nil
	}
}

// WithNoFollowRedirects returns the first response as-is instead of
// following its Location.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithMaxRedirects sets how many redirects are followed before the
// transfer fails with [CodeTooManyRedirects]. Defaults to [MaxRedirects].
func WithMaxRedirects(n int) Option {
	return func(c *options) error {
		if n < 0 {
			return errors.New("max redirects must not be negative")
		}
		c.maxRedirects = n
		return nil
	}
}

// WithKeepAlive enables TCP keep-alive probes on the transfer's connections.
func WithKeepAlive() Option {
	return func(c *options) error {
		c.keepAlive = true
		return nil
	}
}

// WithNoCache adds "Pragma: no-cache" to every request so intermediary
// caches are bypassed.
func WithNoCache() Option {
	return func(c *options) error {
		c.noCache = true
		return nil
	}
}

// WithHeaderCollector captures the raw response header lines of every
// hop into col. Capture pins HTTPS connections to HTTP/1.1.
func WithHeaderCollector(col *header.Collector) Option {
	return func(c *options) error {
		if col == nil {
			return errors.New("collector must not be nil")
		}
		c.collector = col
		return nil
	}
}

// WithTLSConfig sets the TLS configuration used for https connections.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		c.tlsConfig = cfg
		return nil
	}
}

// WithThrottle draws a token from l before every request. Sharing l
// between clients limits them together.
func WithThrottle(l *throttle.Limiter) Option {
	return func(c *options) error {
		if l == nil {
			return fmt.Errorf("limiter %w", errNil)
		}
		c.throttle = l
		return nil
	}
}

// WithProtocol registers rt to serve URLs with the given scheme, e.g.
// "file" with [http.NewFileTransport]. The scheme is reported by
// [Client.Version] after the built-in ones.
func WithProtocol(scheme string, rt http.RoundTripper) Option {
	return func(c *options) error {
		if scheme == "" || rt == nil {
			return errors.New("protocol scheme and transport must be set")
		}
		if slices.Contains(builtinProtocols, scheme) {
			return fmt.Errorf("protocol %q is built in", scheme)
		}
		c.protocols = append(c.protocols, protocol{scheme: scheme, rt: rt})
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

var errNil = errors.New("must not be nil")

// staticHeaders is an http.RoundTripper setting fixed request headers
// on every outgoing request, redirect hops included.
type staticHeaders struct {
	header http.Header
	base   http.RoundTripper
}

func (sh staticHeaders) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	for k, v := range sh.header {
		cpy.Header[k] = v
	}
	return sh.base.RoundTrip(cpy)
}
