package httpfetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpfetch/client"
	"github.com/adamwoolhether/httpfetch/client/download"
	"github.com/adamwoolhether/httpfetch/client/header"
	"github.com/adamwoolhether/httpfetch/client/metrics"
	"github.com/adamwoolhether/httpfetch/client/throttle"
)

const tracerName = "github.com/adamwoolhether/httpfetch"

// VersionInfo describes the linked transport.
type VersionInfo = client.VersionInfo

// HeadersRequest is the host-marshalled input of [Fetcher.FetchHeaders].
// URL must hold exactly one value; Redirect must be set.
type HeadersRequest struct {
	URL       []string `json:"url" validate:"required,len=1,dive,required"`
	UserAgent string   `json:"useragent"`
	Redirect  *bool    `json:"redirect" validate:"required"`
}

// Headers is the outcome of a header fetch: the raw header lines of
// every hop in arrival order, and the final status code.
type Headers struct {
	Lines  []string
	Status int
}

// DownloadRequest is the host-marshalled input of [Fetcher.Download].
// Extra URL or Dest values are ignored with a warning; Mode must hold
// exactly one value.
type DownloadRequest struct {
	URL       []string `json:"url" validate:"required,min=1,dive,required"`
	Dest      []string `json:"destfile" validate:"required,min=1,dive,required"`
	Mode      []string `json:"mode" validate:"required,len=1,dive,required"`
	Quiet     *bool    `json:"quiet" validate:"required"`
	CacheOK   *bool    `json:"cacheOK" validate:"required"`
	UserAgent string   `json:"useragent"`
}

// DownloadResult reports a completed download.
type DownloadResult struct {
	Path string
}

// Fetcher is the entry point for hosts. Each call builds its own
// transfer session, so a Fetcher is safe for concurrent use.
type Fetcher struct {
	logger    *slog.Logger
	reporter  Reporter
	tracer    trace.Tracer
	metrics   *metrics.Recorder
	throttle  *throttle.Limiter
	timeout   time.Duration
	tlsConfig *tls.Config
	fileURLs  bool
	supported bool
}

// New creates a Fetcher with the given options.
func New(optFns ...Option) (*Fetcher, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.reporter == nil {
		opts.reporter = LogReporter{Logger: opts.logger}
	}
	if opts.tracer == nil {
		opts.tracer = otel.Tracer(tracerName)
	}

	return &Fetcher{
		logger:    opts.logger,
		reporter:  opts.reporter,
		tracer:    opts.tracer,
		metrics:   opts.metrics,
		throttle:  opts.throttle,
		timeout:   opts.timeout,
		tlsConfig: opts.tlsConfig,
		fileURLs:  opts.fileURLs,
		supported: client.Supported,
	}, nil
}

// Version reports the transport's version, TLS backend and protocols.
// It never fails: a build without a transport reports empty fields.
func (f *Fetcher) Version() VersionInfo {
	if !f.supported {
		return VersionInfo{TLSVersion: "none"}
	}

	if f.fileURLs {
		return client.Version("file")
	}

	return client.Version()
}

// Headers is FetchHeaders for callers holding plain values.
func (f *Fetcher) Headers(ctx context.Context, url, userAgent string, followRedirects bool) (*Headers, error) {
	return f.FetchHeaders(ctx, HeadersRequest{
		URL:       []string{url},
		UserAgent: userAgent,
		Redirect:  &followRedirects,
	})
}

// FetchHeaders sends a HEAD request and returns the raw response header
// lines, at most [header.MaxLines] of at most [header.MaxLineLength]
// bytes each, with the final status code.
func (f *Fetcher) FetchHeaders(ctx context.Context, req HeadersRequest) (*Headers, error) {
	ctx, span, logger := f.startCall(ctx, "httpfetch.headers")
	defer span.End()

	if !f.supported {
		return nil, fail(span, &UnsupportedError{Op: "FetchHeaders"})
	}
	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}

	rawURL := req.URL[0]
	span.SetAttributes(attribute.String("url", rawURL), attribute.Bool("redirect", *req.Redirect))

	col := header.NewCollector(header.MaxLines, header.MaxLineLength)
	opts := append(f.sessionOptions(logger, req.UserAgent), client.WithHeaderCollector(col))
	if !*req.Redirect {
		opts = append(opts, client.WithNoFollowRedirects())
	}

	done := f.metrics.Start(metrics.OpHeaders)

	c, err := client.Build(opts...)
	if err != nil {
		done(int(client.CodeRecvError), 0)
		return nil, fail(span, fmt.Errorf("building session: %w", err))
	}
	defer c.Close()

	res, err := c.Head(ctx, rawURL)
	if err != nil {
		code := transferCode(err)
		done(int(code), 0)
		logger.Error("header fetch failed", "url", rawURL, "code", int(code), "error", err)
		return nil, fail(span, err)
	}
	done(int(client.CodeOK), 0)

	span.SetAttributes(attribute.Int("status", res.StatusCode))
	logger.Debug("headers fetched", "url", rawURL, "status", res.StatusCode, "lines", col.Len())

	return &Headers{Lines: col.Lines(), Status: res.StatusCode}, nil
}

// Fetch is Download for callers holding plain values.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, quiet bool, mode, userAgent string, useCache bool) (*DownloadResult, error) {
	return f.Download(ctx, DownloadRequest{
		URL:       []string{url},
		Dest:      []string{dest},
		Mode:      []string{mode},
		Quiet:     &quiet,
		CacheOK:   &useCache,
		UserAgent: userAgent,
	})
}

// Download retrieves a URL's body into a local file opened with an
// fopen-style mode. Redirects are always followed. A failed transfer
// leaves the partial file in place.
func (f *Fetcher) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	ctx, span, logger := f.startCall(ctx, "httpfetch.download")
	defer span.End()

	if !f.supported {
		return nil, fail(span, &UnsupportedError{Op: "Download"})
	}
	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}

	if len(req.URL) > 1 {
		f.reporter.Warn("only first element of 'url' argument used")
	}
	if len(req.Dest) > 1 {
		f.reporter.Warn("only first element of 'destfile' argument used")
	}

	rawURL, dest, mode := req.URL[0], req.Dest[0], req.Mode[0]
	quiet, cacheOK := *req.Quiet, *req.CacheOK
	span.SetAttributes(attribute.String("url", rawURL), attribute.String("path", dest))

	if _, err := download.ParseMode(mode); err != nil {
		return nil, fail(span, &ArgumentError{Arg: "mode", Detail: err.Error()})
	}

	file, err := download.OpenFile(dest, mode)
	if err != nil {
		return nil, fail(span, &FileOpenError{Path: dest, Err: err})
	}
	closed := false
	defer func() {
		if !closed {
			if err := file.Close(); err != nil {
				logger.Error("closing destination", "path", file.Name(), "error", err)
			}
		}
	}()

	opts := append(f.sessionOptions(logger, req.UserAgent), client.WithKeepAlive())
	if !cacheOK {
		opts = append(opts, client.WithNoCache())
	}

	var dlOpts []download.Option
	if !quiet {
		f.reporter.Notice(fmt.Sprintf("trying URL '%s'", rawURL))
		dlOpts = append(dlOpts, download.WithProgress(f.reporter.Progress))
	}

	done := f.metrics.Start(metrics.OpDownload)

	c, err := client.Build(opts...)
	if err != nil {
		done(int(client.CodeRecvError), 0)
		return nil, fail(span, fmt.Errorf("building session: %w", err))
	}
	defer c.Close()

	res, err := f.busy(func() (*client.Result, error) {
		return c.Download(ctx, rawURL, file, dlOpts...)
	})
	var n int64
	if res != nil {
		n = res.Bytes
	}
	if err != nil {
		code := transferCode(err)
		done(int(code), n)
		logger.Error("download failed", "url", rawURL, "path", file.Name(), "code", int(code), "bytes", n, "error", err)
		return nil, fail(span, &TransferError{Code: code, Message: code.String(), Err: err})
	}

	closed = true
	if err := file.Close(); err != nil {
		done(int(client.CodeWriteError), n)
		return nil, fail(span, &TransferError{Code: client.CodeWriteError, Message: client.CodeWriteError.String(), Err: err})
	}
	done(int(client.CodeOK), n)

	span.SetAttributes(attribute.Int("status", res.StatusCode), attribute.Int64("bytes", n))
	logger.Info("download complete", "url", rawURL, "path", file.Name(), "status", res.StatusCode, "bytes", n)

	return &DownloadResult{Path: file.Name()}, nil
}

// busy signals the host around fn.
func (f *Fetcher) busy(fn func() (*client.Result, error)) (*client.Result, error) {
	f.reporter.Busy(true)
	defer f.reporter.Busy(false)

	return fn()
}

// startCall opens the operation's span and a logger tagged with the
// call id: the trace id when tracing is live, a random id otherwise.
func (f *Fetcher) startCall(ctx context.Context, name string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := f.tracer.Start(ctx, name)

	callID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		callID = uuid.New().String()
	}

	return ctx, span, f.logger.With("call_id", callID)
}

func (f *Fetcher) sessionOptions(logger *slog.Logger, userAgent string) []client.Option {
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithUserAgent(userAgent),
	}
	if f.timeout > 0 {
		opts = append(opts, client.WithTimeout(f.timeout))
	}
	if f.throttle != nil {
		opts = append(opts, client.WithThrottle(f.throttle))
	}
	if f.tlsConfig != nil {
		opts = append(opts, client.WithTLSConfig(f.tlsConfig))
	}
	if f.fileURLs {
		opts = append(opts, client.WithProtocol("file", http.NewFileTransport(http.Dir("/"))))
	}

	return opts
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code := transferCode(err); code != client.CodeOK {
		span.SetAttributes(attribute.Int("code", int(code)))
	}

	return err
}
