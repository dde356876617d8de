//go:build !nohttp

package httpfetch_test

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adamwoolhether/httpfetch"
	"github.com/adamwoolhether/httpfetch/client"
	"github.com/adamwoolhether/httpfetch/client/metrics"
)

// recorder is a Reporter keeping every call.
type recorder struct {
	mu       sync.Mutex
	notices  []string
	warnings []string
	busy     []bool
	progress []int64
}

func (r *recorder) Notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, msg)
}

func (r *recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recorder) Busy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, busy)
}

func (r *recorder) Progress(transferred, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, transferred)
}

func newFetcher(t *testing.T, opts ...httpfetch.Option) (*httpfetch.Fetcher, *recorder) {
	t.Helper()

	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f, err := httpfetch.New(append([]httpfetch.Option{
		httpfetch.WithLogger(logger),
		httpfetch.WithReporter(rec),
	}, opts...)...)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	return f, rec
}

// rawServer answers every request with response, verbatim, and closes.
func rawServer(t *testing.T, response string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if _, err := http.ReadRequest(bufio.NewReader(conn)); err != nil {
					return
				}
				_, _ = io.WriteString(conn, response)
			}()
		}
	}()

	return "http://" + ln.Addr().String()
}

type hits struct {
	mu      sync.Mutex
	count   int
	pragmas []string
	agents  []string
}

func bodyServer(t *testing.T, body string) (*httptest.Server, *hits) {
	t.Helper()

	h := &hits{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.count++
		h.pragmas = append(h.pragmas, r.Header.Get("Pragma"))
		h.agents = append(h.agents, r.Header.Get("User-Agent"))
		h.mu.Unlock()

		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/file", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	return ts, h
}

func TestHeaders_ThreeLines(t *testing.T) {
	srvURL := rawServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")

	f, _ := newFetcher(t)

	h, err := f.Headers(t.Context(), srvURL+"/ok", "test-agent", true)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}

	if h.Status != http.StatusOK {
		t.Errorf("exp status 200, got %d", h.Status)
	}
	if len(h.Lines) != 3 {
		t.Errorf("exp 3 lines, got %d: %q", len(h.Lines), h.Lines)
	}
}

func TestHeaders_CappedAt100(t *testing.T) {
	var resp strings.Builder
	resp.WriteString("HTTP/1.1 200 OK\r\n")
	for i := range 120 {
		fmt.Fprintf(&resp, "X-H%d: %s\r\n", i, strings.Repeat("v", 3000))
	}
	resp.WriteString("Content-Length: 0\r\n\r\n")

	srvURL := rawServer(t, resp.String())

	f, _ := newFetcher(t)

	h, err := f.Headers(t.Context(), srvURL, "", true)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}

	if len(h.Lines) != 100 {
		t.Errorf("exp 100 lines, got %d", len(h.Lines))
	}
	for i, line := range h.Lines {
		if len(line) > 2048 {
			t.Errorf("line %d has %d bytes", i, len(line))
		}
	}
}

func TestHeaders_Redirect(t *testing.T) {
	ts, _ := bodyServer(t, "x")

	f, _ := newFetcher(t)

	testCases := []struct {
		follow    bool
		expStatus int
	}{
		{follow: true, expStatus: http.StatusOK},
		{follow: false, expStatus: http.StatusFound},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("follow=%v", tc.follow), func(t *testing.T) {
			h, err := f.Headers(t.Context(), ts.URL+"/redirect", "", tc.follow)
			if err != nil {
				t.Fatalf("headers: %v", err)
			}
			if h.Status != tc.expStatus {
				t.Errorf("exp status %d, got %d", tc.expStatus, h.Status)
			}
		})
	}
}

func TestHeaders_DNSFailure(t *testing.T) {
	f, _ := newFetcher(t)

	_, err := f.Headers(t.Context(), "https://nonexistent.invalid/ok", "test-agent", true)
	if !errors.Is(err, httpfetch.ErrTransfer) {
		t.Fatalf("exp ErrTransfer, got %v", err)
	}

	var te *httpfetch.TransferError
	if !errors.As(err, &te) || te.Code == 0 {
		t.Errorf("exp non-zero transfer code, got %v", err)
	}
}

func TestFetchHeaders_InvalidArguments(t *testing.T) {
	follow := true

	testCases := []struct {
		name     string
		req      httpfetch.HeadersRequest
		expField string
	}{
		{
			name:     "missing url",
			req:      httpfetch.HeadersRequest{Redirect: &follow},
			expField: "url",
		},
		{
			name:     "two urls",
			req:      httpfetch.HeadersRequest{URL: []string{"http://a", "http://b"}, Redirect: &follow},
			expField: "url",
		},
		{
			name:     "empty url",
			req:      httpfetch.HeadersRequest{URL: []string{""}, Redirect: &follow},
			expField: "url[0]",
		},
		{
			name:     "unresolvable redirect",
			req:      httpfetch.HeadersRequest{URL: []string{"http://a"}},
			expField: "redirect",
		},
	}

	f, _ := newFetcher(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.FetchHeaders(t.Context(), tc.req)
			if !errors.Is(err, httpfetch.ErrInvalidArgument) {
				t.Fatalf("exp ErrInvalidArgument, got %v", err)
			}

			var fe httpfetch.FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("exp FieldErrors, got %T", err)
			}
			if _, ok := fe.Fields()[tc.expField]; !ok {
				t.Errorf("exp error on %q, got %v", tc.expField, fe.Fields())
			}
		})
	}
}

func TestDownload_ABC(t *testing.T) {
	ts, h := bodyServer(t, "ABC")

	f, rec := newFetcher(t)
	dest := filepath.Join(t.TempDir(), "out.bin")

	res, err := f.Fetch(t.Context(), ts.URL+"/file", dest, true, "wb", "agent", false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Path != dest {
		t.Errorf("exp path %s, got %s", dest, res.Path)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ABC" {
		t.Errorf("exp ABC, got %q", got)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if diff := cmp.Diff([]string{"agent"}, h.agents); diff != "" {
		t.Errorf("User-Agent mismatch (-want +got):\n%s", diff)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.notices) != 0 || len(rec.progress) != 0 {
		t.Errorf("quiet download reported: notices=%q progress=%v", rec.notices, rec.progress)
	}
	if diff := cmp.Diff([]bool{true, false}, rec.busy); diff != "" {
		t.Errorf("busy signal mismatch (-want +got):\n%s", diff)
	}
}

func TestDownload_CacheBusting(t *testing.T) {
	testCases := []struct {
		useCache  bool
		expPragma string
	}{
		{useCache: false, expPragma: "no-cache"},
		{useCache: true, expPragma: ""},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("useCache=%v", tc.useCache), func(t *testing.T) {
			ts, h := bodyServer(t, "ok")
			f, _ := newFetcher(t)

			dest := filepath.Join(t.TempDir(), "out")
			if _, err := f.Fetch(t.Context(), ts.URL+"/file", dest, true, "wb", "", tc.useCache); err != nil {
				t.Fatalf("fetch: %v", err)
			}

			h.mu.Lock()
			defer h.mu.Unlock()
			if diff := cmp.Diff([]string{tc.expPragma}, h.pragmas); diff != "" {
				t.Errorf("Pragma mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDownload_AlwaysFollowsRedirects(t *testing.T) {
	for _, quiet := range []bool{true, false} {
		t.Run(fmt.Sprintf("quiet=%v", quiet), func(t *testing.T) {
			ts, h := bodyServer(t, "followed")
			f, _ := newFetcher(t)

			dest := filepath.Join(t.TempDir(), "out")
			if _, err := f.Fetch(t.Context(), ts.URL+"/redirect", dest, quiet, "wb", "", true); err != nil {
				t.Fatalf("fetch: %v", err)
			}

			got, _ := os.ReadFile(dest)
			if string(got) != "followed" {
				t.Errorf("exp redirect target body, got %q", got)
			}

			h.mu.Lock()
			defer h.mu.Unlock()
			if h.count != 2 {
				t.Errorf("exp 2 requests, got %d", h.count)
			}
		})
	}
}

func TestDownload_NotQuiet(t *testing.T) {
	ts, _ := bodyServer(t, "ABC")
	f, rec := newFetcher(t)

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := f.Fetch(t.Context(), ts.URL+"/file", dest, false, "wb", "", true); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if diff := cmp.Diff([]string{fmt.Sprintf("trying URL '%s/file'", ts.URL)}, rec.notices); diff != "" {
		t.Errorf("notice mismatch (-want +got):\n%s", diff)
	}
	if len(rec.progress) == 0 || rec.progress[len(rec.progress)-1] != 3 {
		t.Errorf("exp final progress of 3 bytes, got %v", rec.progress)
	}
}

func TestDownload_FileOpenError(t *testing.T) {
	ts, h := bodyServer(t, "ABC")
	f, rec := newFetcher(t)

	dir := t.TempDir()

	testCases := []struct {
		name  string
		dest  string
		expOS error
	}{
		{name: "directory", dest: dir},
		{name: "missing parent", dest: filepath.Join(dir, "missing", "out.bin"), expOS: fs.ErrNotExist},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.Fetch(t.Context(), ts.URL+"/file", tc.dest, false, "wb", "", true)
			if !errors.Is(err, httpfetch.ErrFileOpen) {
				t.Fatalf("exp ErrFileOpen, got %v", err)
			}
			if tc.expOS != nil && !errors.Is(err, tc.expOS) {
				t.Errorf("exp error to match %v, got %v", tc.expOS, err)
			}

			var foe *httpfetch.FileOpenError
			if !errors.As(err, &foe) || foe.Path != tc.dest {
				t.Errorf("exp FileOpenError for %s, got %v", tc.dest, err)
			}
			if !strings.HasPrefix(err.Error(), fmt.Sprintf("cannot open destfile '%s', reason '", tc.dest)) {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count != 0 {
		t.Errorf("exp no network call, server saw %d", h.count)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.notices) != 0 || len(rec.busy) != 0 {
		t.Errorf("exp no transfer started, got notices=%q busy=%v", rec.notices, rec.busy)
	}
}

func TestDownload_InvalidArguments(t *testing.T) {
	yes := true

	testCases := []struct {
		name string
		req  httpfetch.DownloadRequest
	}{
		{
			name: "missing url",
			req:  httpfetch.DownloadRequest{Dest: []string{"x"}, Mode: []string{"wb"}, Quiet: &yes, CacheOK: &yes},
		},
		{
			name: "missing dest",
			req:  httpfetch.DownloadRequest{URL: []string{"http://a"}, Mode: []string{"wb"}, Quiet: &yes, CacheOK: &yes},
		},
		{
			name: "two modes",
			req:  httpfetch.DownloadRequest{URL: []string{"http://a"}, Dest: []string{"x"}, Mode: []string{"wb", "a"}, Quiet: &yes, CacheOK: &yes},
		},
		{
			name: "bad mode",
			req:  httpfetch.DownloadRequest{URL: []string{"http://a"}, Dest: []string{"x"}, Mode: []string{"q"}, Quiet: &yes, CacheOK: &yes},
		},
		{
			name: "unresolvable quiet",
			req:  httpfetch.DownloadRequest{URL: []string{"http://a"}, Dest: []string{"x"}, Mode: []string{"wb"}, CacheOK: &yes},
		},
		{
			name: "unresolvable cacheOK",
			req:  httpfetch.DownloadRequest{URL: []string{"http://a"}, Dest: []string{"x"}, Mode: []string{"wb"}, Quiet: &yes},
		},
	}

	f, _ := newFetcher(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.Download(t.Context(), tc.req)
			if !errors.Is(err, httpfetch.ErrInvalidArgument) {
				t.Errorf("exp ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestDownload_MultiValuedWarns(t *testing.T) {
	ts, _ := bodyServer(t, "first")
	f, rec := newFetcher(t)

	dir := t.TempDir()
	first, second := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	yes := true

	res, err := f.Download(t.Context(), httpfetch.DownloadRequest{
		URL:     []string{ts.URL + "/file", "http://unused.invalid/"},
		Dest:    []string{first, second},
		Mode:    []string{"wb"},
		Quiet:   &yes,
		CacheOK: &yes,
	})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if res.Path != first {
		t.Errorf("exp first destination, got %s", res.Path)
	}
	if _, err := os.Stat(second); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("exp second destination untouched, got %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	exp := []string{
		"only first element of 'url' argument used",
		"only first element of 'destfile' argument used",
	}
	if diff := cmp.Diff(exp, rec.warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestDownload_TransferErrorKeepsPartialFile(t *testing.T) {
	srvURL := rawServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nABC")
	f, rec := newFetcher(t)

	dest := filepath.Join(t.TempDir(), "partial")
	_, err := f.Fetch(t.Context(), srvURL, dest, true, "wb", "", true)

	var te *httpfetch.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("exp TransferError, got %v", err)
	}
	if te.Code != client.CodePartialFile || te.Message != client.CodePartialFile.String() {
		t.Errorf("exp partial file code and text, got %d %q", te.Code, te.Message)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("partial file removed: %v", err)
	}
	if string(got) != "ABC" {
		t.Errorf("exp partial content ABC, got %q", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if diff := cmp.Diff([]bool{true, false}, rec.busy); diff != "" {
		t.Errorf("busy signal not paired on failure (-want +got):\n%s", diff)
	}
}

func TestDownload_AppendMode(t *testing.T) {
	ts, _ := bodyServer(t, "DEF")
	f, _ := newFetcher(t)

	dest := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(dest, []byte("ABC"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Fetch(t.Context(), ts.URL+"/file", dest, true, "ab", "", true); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "ABCDEF" {
		t.Errorf("exp appended content, got %q", got)
	}
}

func TestDownload_FileURLs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("local"), 0o600); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "dest")

	t.Run("disabled", func(t *testing.T) {
		f, _ := newFetcher(t)
		_, err := f.Fetch(t.Context(), "file://"+src, dest, true, "wb", "", true)

		var te *httpfetch.TransferError
		if !errors.As(err, &te) || te.Code != client.CodeUnsupportedProtocol {
			t.Errorf("exp unsupported protocol, got %v", err)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		f, _ := newFetcher(t, httpfetch.WithFileURLs())
		if _, err := f.Fetch(t.Context(), "file://"+src, dest, true, "wb", "", true); err != nil {
			t.Fatalf("fetch: %v", err)
		}

		got, _ := os.ReadFile(dest)
		if string(got) != "local" {
			t.Errorf("exp copied content, got %q", got)
		}
		if diff := cmp.Diff([]string{"http", "https", "file"}, f.Version().Protocols); diff != "" {
			t.Errorf("protocols mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestVersion_Idempotent(t *testing.T) {
	f, _ := newFetcher(t)

	first, second := f.Version(), f.Version()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Version changed between calls (-first +second):\n%s", diff)
	}
	if first.Version == "" || first.TLSVersion == "" || len(first.Protocols) == 0 {
		t.Errorf("exp populated version info, got %+v", first)
	}
}

func TestFetcher_Concurrent(t *testing.T) {
	var served atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		w.Header().Set("X-Path", r.URL.Path)
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer ts.Close()

	f, _ := newFetcher(t)
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			path := fmt.Sprintf("/p%d", i)

			h, err := f.Headers(t.Context(), ts.URL+path, "", true)
			if err != nil {
				t.Errorf("headers %d: %v", i, err)
				return
			}
			if !slicesContain(h.Lines, "X-Path: "+path+"\r\n") {
				t.Errorf("call %d saw another call's headers: %q", i, h.Lines)
			}

			dest := filepath.Join(dir, fmt.Sprintf("f%d", i))
			if _, err := f.Fetch(t.Context(), ts.URL+path, dest, true, "wb", "", true); err != nil {
				t.Errorf("fetch %d: %v", i, err)
				return
			}
			if got, _ := os.ReadFile(dest); string(got) != path {
				t.Errorf("file %d holds %q", i, got)
			}
		})
	}
	wg.Wait()

	if served.Load() != 32 {
		t.Errorf("exp 32 requests, got %d", served.Load())
	}
}

func TestFetcher_Metrics(t *testing.T) {
	ts, _ := bodyServer(t, "ABC")

	reg := prometheus.NewRegistry()
	rec, err := metrics.New("httpfetch", reg)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := newFetcher(t, httpfetch.WithMetrics(rec))

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := f.Fetch(t.Context(), ts.URL+"/file", dest, true, "wb", "", true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Headers(t.Context(), ts.URL, "", true); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP httpfetch_downloaded_bytes_total Body bytes written to download destinations.
# TYPE httpfetch_downloaded_bytes_total counter
httpfetch_downloaded_bytes_total 3
# HELP httpfetch_transfers_total Transfers by operation and transfer code (0 is success).
# TYPE httpfetch_transfers_total counter
httpfetch_transfers_total{code="0",operation="download"} 1
httpfetch_transfers_total{code="0",operation="headers"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"httpfetch_downloaded_bytes_total", "httpfetch_transfers_total"); err != nil {
		t.Error(err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	testCases := []struct {
		name string
		opt  httpfetch.Option
	}{
		{name: "nil reporter", opt: httpfetch.WithReporter(nil)},
		{name: "negative timeout", opt: httpfetch.WithTimeout(-1)},
		{name: "nil tracer", opt: httpfetch.WithTracer(nil)},
		{name: "zero throttle", opt: httpfetch.WithThrottle(0, 1)},
		{name: "nil tls", opt: httpfetch.WithTLSConfig(nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := httpfetch.New(tc.opt); err == nil {
				t.Error("exp error, got nil")
			}
		})
	}
}

func TestWriterReporter(t *testing.T) {
	var buf bytes.Buffer
	r := httpfetch.NewWriterReporter(&buf)

	r.Notice("trying URL 'http://x'")
	r.Warn("careful")
	r.Busy(true)
	r.Progress(512, -1)
	r.Progress(2048, 3*1024*1024)

	exp := "trying URL 'http://x'\n" +
		"Warning: careful\n" +
		"downloaded 512 bytes\n" +
		"downloaded 2.0 KB of 3.0 MB\n"
	if diff := cmp.Diff(exp, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func slicesContain(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
