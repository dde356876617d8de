package header

import (
	"bytes"
	"sync"
)

// Scanner is an io.Writer splitting a raw byte stream into lines and
// handing each complete line, terminator included, to a Collector.
// Bytes of an unterminated trailing line are held until the next Write.
type Scanner struct {
	mu      sync.Mutex
	col     *Collector
	partial []byte
	limit   int
	seen    int
}

// NewScanner returns a Scanner feeding col.
func NewScanner(col *Collector) *Scanner {
	_, maxLen := col.Cap()

	return &Scanner{
		col:   col,
		limit: maxLen,
	}
}

// Write never fails and always reports len(p) written.
func (s *Scanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			s.hold(rest)
			break
		}

		s.hold(rest[:i+1])
		s.col.OnHeaderLine(s.partial)
		s.partial = s.partial[:0]
		s.seen++
		rest = rest[i+1:]
	}

	return len(p), nil
}

// Seen returns the number of complete lines read off the stream,
// including those the collector did not retain.
func (s *Scanner) Seen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seen
}

// hold buffers b, keeping no more than the collector would store.
func (s *Scanner) hold(b []byte) {
	room := s.limit - len(s.partial)
	if room <= 0 {
		return
	}
	if len(b) > room {
		b = b[:room]
	}
	s.partial = append(s.partial, b...)
}
