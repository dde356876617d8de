package httpfetch

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Reporter is the host's channel for user-facing output during a
// download. Busy(true) and Busy(false) always come in pairs around the
// transfer.
type Reporter interface {
	Notice(msg string)
	Warn(msg string)
	Busy(busy bool)
	Progress(transferred, total int64)
}

// LogReporter reports through a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Notice(msg string) { r.logger().Info(msg) }

func (r LogReporter) Warn(msg string) { r.logger().Warn(msg) }

func (r LogReporter) Busy(busy bool) { r.logger().Debug("transfer state", "busy", busy) }

func (r LogReporter) Progress(transferred, total int64) {
	r.logger().Info("downloading", "transferred", transferred, "total", total)
}

func (r LogReporter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}

// WriterReporter writes human-readable lines, typically to stderr.
type WriterReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterReporter returns a WriterReporter writing to w.
func NewWriterReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{w: w}
}

func (r *WriterReporter) Notice(msg string) { r.printf("%s\n", msg) }

func (r *WriterReporter) Warn(msg string) { r.printf("Warning: %s\n", msg) }

// Busy is a no-op: a terminal needs no liveness signal.
func (r *WriterReporter) Busy(bool) {}

func (r *WriterReporter) Progress(transferred, total int64) {
	if total < 0 {
		r.printf("downloaded %s\n", byteSize(transferred))
		return
	}

	r.printf("downloaded %s of %s\n", byteSize(transferred), byteSize(total))
}

func (r *WriterReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.w, format, args...)
}

// byteSize formats n the way transfer tools print sizes: bytes below
// 1 KB, otherwise KB or MB with one decimal.
func byteSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
