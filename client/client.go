package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/adamwoolhether/httpfetch/client/download"
	"github.com/adamwoolhether/httpfetch/client/header"
)

// builtinProtocols are the schemes served by the network transport, in
// the order they are reported.
var builtinProtocols = []string{"http", "https"}

// errUnsupportedScheme marks a redirect to a scheme the session
// cannot serve.
var errUnsupportedScheme = errors.New("unsupported protocol scheme")

// Client is a single transfer session: one transport, one set of
// request headers and one redirect policy. Build a fresh Client per
// logical exchange and Close it when done.
type Client struct {
	c         *http.Client
	transport *http.Transport
	logger    *slog.Logger
	collector *header.Collector
	protocols []string
}

// Result describes a completed exchange.
type Result struct {
	StatusCode    int
	Status        string
	FinalURL      string
	ContentLength int64
	Bytes         int64
}

// Build configures a Client. It fails with ErrUnsupported when the
// binary carries no HTTP transport.
func Build(optFns ...Option) (*Client, error) {
	if !Supported {
		return nil, ErrUnsupported
	}

	opts := options{maxRedirects: MaxRedirects}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		logger:    slog.Default(),
		protocols: slices.Clone(builtinProtocols),
	}
	if opts.logger != nil {
		client.logger = opts.logger
	}

	dialer := &net.Dialer{KeepAlive: -1}
	if opts.keepAlive {
		dialer.KeepAlive = keepAliveIdle
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.tlsConfig != nil {
		tlsCfg = opts.tlsConfig.Clone()
	}

	proxy := httpproxy.FromEnvironment().ProxyFunc()

	transport := &http.Transport{
		Proxy:              func(r *http.Request) (*url.URL, error) { return proxy(r.URL) },
		DialContext:        dialer.DialContext,
		TLSClientConfig:    tlsCfg,
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}

	if opts.collector != nil {
		tap := &tapDialer{dialer: dialer, tls: tlsCfg, col: opts.collector, proxy: proxy}
		transport.DialContext = tap.DialContext
		transport.DialTLSContext = tap.DialTLSContext
		// The tap opens HTTPS tunnels itself so it stays above TLS.
		transport.Proxy = func(r *http.Request) (*url.URL, error) {
			if r.URL.Scheme == "https" {
				return nil, nil
			}
			return proxy(r.URL)
		}
		transport.ForceAttemptHTTP2 = false
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		client.collector = opts.collector
	}

	for _, p := range opts.protocols {
		transport.RegisterProtocol(p.scheme, p.rt)
		client.protocols = append(client.protocols, p.scheme)
	}
	client.transport = transport

	hdr := http.Header{"Accept": {"*/*"}}
	if opts.userAgent != nil {
		if *opts.userAgent == "" {
			hdr["User-Agent"] = nil // Present but empty suppresses Go's default.
		} else {
			hdr.Set("User-Agent", *opts.userAgent)
		}
	}
	if opts.noCache {
		hdr.Set("Pragma", "no-cache")
	}

	var rt http.RoundTripper = staticHeaders{header: hdr, base: transport}
	if opts.throttle != nil {
		rt = opts.throttle.Wrap(rt, func() *slog.Logger { return client.logger })
	}

	client.c = &http.Client{
		Transport:     rt,
		CheckRedirect: client.checkRedirect(opts.noFollowRedirects, opts.maxRedirects),
	}
	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	return client, nil
}

// Head issues a HEAD request, following redirects per the session's
// policy. With a header collector attached, the raw head of every hop
// is captured. Any body is drained to [download.Discard].
func (c *Client) Head(ctx context.Context, rawURL string) (*Result, error) {
	req, err := c.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, newTransferError(err)
	}
	defer c.closeBody(resp)

	if c.collector != nil && c.collector.Len() == 0 {
		c.collector.Render(resp)
	}

	n, err := io.Copy(download.Discard, resp.Body)
	if err != nil {
		return nil, newTransferError(err)
	}

	return newResult(resp, req, n), nil
}

// Download issues a GET request and streams the body into w. Error
// statuses are not failures: the body is written as received and the
// status is logged. Failures leave whatever reached w in place.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer, optFns ...download.Option) (*Result, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, newTransferError(err)
	}
	defer c.closeBody(resp)

	final := finalURL(resp, req)
	if final.Scheme == "file" && resp.StatusCode != http.StatusOK {
		return nil, &TransferError{
			Code:    CodeFileCouldntReadFile,
			Message: fmt.Sprintf("%s: %s", final.Path, resp.Status),
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("server returned error status", "url", final.Redacted(), "status", resp.StatusCode)
	}

	n, err := download.Handle(ctx, resp.Body, resp.ContentLength, w, c.logger, optFns...)
	if err != nil {
		return newResult(resp, req, n), newTransferError(err)
	}

	return newResult(resp, req, n), nil
}

// Version reports the session's transport capabilities.
func (c *Client) Version() VersionInfo {
	return Version(c.protocols[len(builtinProtocols):]...)
}

// Close releases the session's idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// newRequest resolves rawURL the way command line transfer tools do: a
// missing scheme means http.
func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &TransferError{Code: CodeURLMalformat, Message: err.Error(), Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(c.protocols, scheme) {
		return nil, &TransferError{
			Code:    CodeUnsupportedProtocol,
			Message: fmt.Sprintf("protocol %q not supported", u.Scheme),
		}
	}
	if u.Host == "" && scheme != "file" {
		return nil, &TransferError{Code: CodeURLMalformat, Message: fmt.Sprintf("no host in URL %q", rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, &TransferError{Code: CodeURLMalformat, Message: err.Error(), Err: err}
	}

	return req, nil
}

func (c *Client) checkRedirect(noFollow bool, maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if noFollow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("%w: maximum (%d) followed", ErrTooManyRedirects, maxRedirects)
		}
		if !slices.Contains(c.protocols, req.URL.Scheme) {
			return fmt.Errorf("%w %q", errUnsupportedScheme, req.URL.Scheme)
		}

		c.logger.Debug("following redirect", "url", req.URL.Redacted(), "hop", len(via))

		return nil
	}
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// finalURL is the URL of the last hop. Transports registered with
// WithProtocol may leave resp.Request unset.
func finalURL(resp *http.Response, req *http.Request) *url.URL {
	if resp.Request != nil {
		return resp.Request.URL
	}

	return req.URL
}

func newResult(resp *http.Response, req *http.Request, n int64) *Result {
	return &Result{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		FinalURL:      finalURL(resp, req).String(),
		ContentLength: resp.ContentLength,
		Bytes:         n,
	}
}
