// Command httpfetch reports transport capabilities, fetches raw response
// headers and downloads URLs to local files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/adamwoolhether/httpfetch"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitTransferError = 1
	ExitInvalidArgs   = 2
	ExitFileOpen      = 3
	ExitUnsupported   = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "version":
		return runVersion(cmdArgs, stdout, stderr)
	case "headers":
		return runHeaders(ctx, cmdArgs, stdout, stderr)
	case "download":
		return runDownload(ctx, cmdArgs, stderr)
	case "help", "-h", "--help":
		printUsage(stderr)
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return ExitInvalidArgs
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: httpfetch <command> [options]

Commands:
  version   Print transport version, TLS backend and supported protocols
  headers   Fetch the raw response headers of a URL
  download  Download a URL to a local file

Run 'httpfetch <command> -h' for command-specific help.`)
}

func runVersion(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "Load configuration from this .env file")

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	f, _, code := newFetcher(*envFile, stderr, nil)
	if f == nil {
		return code
	}

	info := f.Version()
	fmt.Fprintf(stdout, "version:   %s\n", info.Version)
	fmt.Fprintf(stdout, "tls:       %s\n", info.TLSVersion)
	fmt.Fprintf(stdout, "ssh:       %s\n", info.SSHVersion)
	fmt.Fprintf(stdout, "protocols: %s\n", strings.Join(info.Protocols, ", "))

	return ExitSuccess
}

func runHeaders(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("headers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "Load configuration from this .env file")
	noRedirect := fs.Bool("no-redirect", false, "Report the first response instead of following redirects")
	ua := fs.String("ua", "", "User-Agent header (default from "+envUserAgent+")")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: httpfetch headers [options] URL

Send a HEAD request and print the raw response header lines of every hop.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	f, cfg, code := newFetcher(*envFile, stderr, nil)
	if f == nil {
		return code
	}

	follow := !*noRedirect
	h, err := f.FetchHeaders(ctx, httpfetch.HeadersRequest{
		URL:       fs.Args(),
		UserAgent: cfg.userAgent(*ua),
		Redirect:  &follow,
	})
	if err != nil {
		return fail(stderr, err)
	}

	for _, line := range h.Lines {
		fmt.Fprint(stdout, line)
	}

	return ExitSuccess
}

func runDownload(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "Load configuration from this .env file")
	quiet := fs.Bool("quiet", false, "Suppress the notice and progress output")
	mode := fs.String("mode", "wb", "fopen-style mode used to open DEST")
	noCache := fs.Bool("no-cache", false, "Ask intermediaries not to serve a cached copy")
	ua := fs.String("ua", "", "User-Agent header (default from "+envUserAgent+")")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: httpfetch download [options] URL DEST

Download URL into the local file DEST. Redirects are always followed.
A failed transfer leaves the partial file in place.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Error: URL and DEST are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	f, cfg, code := newFetcher(*envFile, stderr, httpfetch.NewWriterReporter(stderr))
	if f == nil {
		return code
	}

	res, err := f.Fetch(ctx, fs.Arg(0), fs.Arg(1), *quiet, *mode, cfg.userAgent(*ua), !*noCache)
	if err != nil {
		return fail(stderr, err)
	}

	if !*quiet {
		fmt.Fprintf(stderr, "saved to '%s'\n", res.Path)
	}

	return ExitSuccess
}

func newFetcher(envFile string, stderr io.Writer, reporter httpfetch.Reporter) (*httpfetch.Fetcher, config, int) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, cfg, ExitInvalidArgs
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	opts := append(cfg.options(), httpfetch.WithLogger(logger))
	if reporter != nil {
		opts = append(opts, httpfetch.WithReporter(reporter))
	}

	f, err := httpfetch.New(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, cfg, ExitInvalidArgs
	}

	return f, cfg, ExitSuccess
}

// userAgent prefers the flag over the configured value.
func (cfg config) userAgent(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return cfg.UserAgent
}

// fail prints err and maps it to an exit code.
func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)

	switch {
	case errors.Is(err, httpfetch.ErrInvalidArgument):
		return ExitInvalidArgs
	case errors.Is(err, httpfetch.ErrFileOpen):
		return ExitFileOpen
	case errors.Is(err, httpfetch.ErrUnsupportedPlatform):
		return ExitUnsupported
	default:
		return ExitTransferError
	}
}
