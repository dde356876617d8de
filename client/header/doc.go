// Package header captures raw HTTP response header lines into a
// bounded, ordered buffer.
//
// # Capturing
//
// A [Collector] stores at most a fixed number of lines, each truncated
// to a fixed length. A [Scanner] sits between a network connection and
// the collector, splitting the raw byte stream into lines:
//
//	col := header.NewCollector(header.MaxLines, header.MaxLineLength)
//	sc := header.NewScanner(col)
//	_, _ = sc.Write([]byte("HTTP/1.1 200 OK\r\nServer: x\r\n\r\n"))
//	lines := col.Lines() // 3 lines, terminators retained
//
// Lines past the collector's capacity are consumed and dropped.
package header
