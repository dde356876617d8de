package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// progressWriter is an io.Writer, reporting download progress at
// most once per interval and once more on completion.
type progressWriter struct {
	w           io.Writer
	logger      *slog.Logger
	fn          ProgressFunc
	interval    time.Duration
	transferred int64
	total       int64
	startTime   time.Time
	lastReport  time.Time
	done        bool
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += int64(n)

	if time.Since(pw.lastReport) >= pw.interval {
		pw.lastReport = time.Now()
		pw.report("downloading")
	}

	if pw.total >= 0 && pw.transferred == pw.total {
		pw.finish()
	}

	return n, err
}

// finish emits the final report once.
func (pw *progressWriter) finish() {
	if pw.done {
		return
	}
	pw.done = true
	pw.report("download complete")
}

func (pw *progressWriter) report(msg string) {
	if pw.fn != nil {
		pw.fn(pw.transferred, pw.total)
		return
	}

	elapsed := time.Since(pw.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", pw.transferred,
		"total", pw.total,
		"mbps", fmt.Sprintf("%.2f", float64(pw.transferred)/elapsed.Seconds()/(1024*1024)),
	}
	if pw.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100))
	}
	pw.logger.Info(msg, attrs...)
}
