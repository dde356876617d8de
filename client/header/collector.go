package header

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"sync"
)

const (
	// MaxLines is the default number of header lines a Collector retains.
	MaxLines = 100
	// MaxLineLength is the default number of bytes retained per line.
	MaxLineLength = 2048
)

// Collector is a bounded sink for raw header lines. Lines arriving
// after the collector is full are reported as consumed but discarded.
type Collector struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
	maxLen   int
}

// NewCollector creates a Collector retaining at most maxLines lines of
// at most maxLineLength bytes each. Non-positive values fall back to
// MaxLines and MaxLineLength.
func NewCollector(maxLines, maxLineLength int) *Collector {
	if maxLines <= 0 {
		maxLines = MaxLines
	}
	if maxLineLength <= 0 {
		maxLineLength = MaxLineLength
	}

	return &Collector{
		lines:    make([]string, 0, min(maxLines, MaxLines)),
		maxLines: maxLines,
		maxLen:   maxLineLength,
	}
}

// OnHeaderLine stores raw if capacity remains. It always returns len(raw)
// so the caller never observes a short write.
func (c *Collector) OnHeaderLine(raw []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) >= c.maxLines {
		return len(raw)
	}

	line := raw
	if len(line) > c.maxLen {
		line = line[:c.maxLen]
	}
	c.lines = append(c.lines, string(line))

	return len(raw)
}

// Reset clears the stored lines so one Collector can serve successive
// exchanges. A Fetcher builds a fresh Collector per call and never
// resets; Reset is for callers that attach one Collector to several
// sessions with client.WithHeaderCollector.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = c.lines[:0]
}

// Len returns the number of stored lines.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lines)
}

// Lines returns a copy of the stored lines in arrival order.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.lines)
}

// Cap returns the maximum number of lines and bytes per line.
func (c *Collector) Cap() (lines, lineLength int) {
	return c.maxLines, c.maxLen
}

// Render feeds the head of resp into c as raw lines: the status line,
// one line per header value in canonical key order, and the blank line
// ending the block. It serves protocols that never put a header block
// on the wire.
func (c *Collector) Render(resp *http.Response) {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.0"
	}
	c.OnHeaderLine(fmt.Appendf(nil, "%s %s\r\n", proto, statusText(resp)))

	var buf bytes.Buffer
	_ = resp.Header.Write(&buf)
	for _, line := range bytes.SplitAfter(buf.Bytes(), []byte("\n")) {
		if len(line) > 0 {
			c.OnHeaderLine(line)
		}
	}

	c.OnHeaderLine([]byte("\r\n"))
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}

	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
