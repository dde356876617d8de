package client

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adamwoolhether/httpfetch/client/header"
)

// errProxyTunnel is returned when a proxy answers CONNECT with a
// non-2xx status.
var errProxyTunnel = errors.New("proxy refused tunnel")

// tapDialer dials connections whose response heads are copied, byte for
// byte, into a header.Collector before net/http parses them.
type tapDialer struct {
	dialer *net.Dialer
	tls    *tls.Config
	col    *header.Collector
	proxy  func(*url.URL) (*url.URL, error)
}

func (d *tapDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return newTapConn(conn, d.col), nil
}

// DialTLSContext performs the handshake itself so the tap sits on the
// plaintext side. The returned conn is not a *tls.Conn, which keeps
// net/http on HTTP/1.1 where every header line crosses the wire as text.
//
// When the environment names a proxy for addr, the tunnel is opened
// here rather than by net/http, and the proxy's reply head is captured
// ahead of the origin's.
func (d *tapDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := d.dialTunnel(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := d.tls.Clone()
	cfg.NextProtos = []string{"http/1.1"}
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg.ServerName = host
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return newTapConn(conn, d.col), nil
}

func (d *tapDialer) dialTunnel(ctx context.Context, network, addr string) (net.Conn, error) {
	var proxyURL *url.URL
	if d.proxy != nil {
		u, err := d.proxy(&url.URL{Scheme: "https", Host: addr})
		if err != nil {
			return nil, fmt.Errorf("resolving proxy: %w", err)
		}
		proxyURL = u
	}
	if proxyURL == nil {
		return d.dialer.DialContext(ctx, network, addr)
	}

	port := proxyURL.Port()
	switch proxyURL.Scheme {
	case "http":
		if port == "" {
			port = "80"
		}
	case "https":
		if port == "" {
			port = "443"
		}
	default:
		return nil, fmt.Errorf("%w %q for proxy", errUnsupportedScheme, proxyURL.Scheme)
	}

	conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(proxyURL.Hostname(), port))
	if err != nil {
		return nil, err
	}

	if proxyURL.Scheme == "https" {
		cfg := d.tls.Clone()
		cfg.ServerName = proxyURL.Hostname()
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("proxy tls handshake: %w", err)
		}
		conn = tlsConn
	}

	if err := connectTunnel(ctx, conn, proxyURL, addr, header.NewScanner(d.col)); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// connectTunnel asks the proxy on conn to open a tunnel to addr. Each
// line of the proxy's reply head is written to sc.
func connectTunnel(ctx context.Context, conn net.Conn, proxyURL *url.URL, addr string, sc *header.Scanner) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(aLongTimeAgo) })
	defer stop()

	var req strings.Builder
	fmt.Fprintf(&req, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n", addr, addr)
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		fmt.Fprintf(&req, "Proxy-Authorization: Basic %s\r\n", cred)
	}
	req.WriteString("\r\n")

	if _, err := io.WriteString(conn, req.String()); err != nil {
		return ctxErr(ctx, fmt.Errorf("writing CONNECT: %w", err))
	}

	br := bufio.NewReader(conn)
	var status string
	for {
		line, err := br.ReadSlice('\n')
		if err != nil {
			return ctxErr(ctx, fmt.Errorf("reading proxy reply: %w", err))
		}
		_, _ = sc.Write(line)

		text := strings.TrimRight(string(line), "\r\n")
		if status == "" {
			status = text
			continue
		}
		if text == "" {
			break
		}
	}

	fields := strings.Fields(status)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") || len(fields[1]) != 3 || fields[1][0] != '2' {
		return fmt.Errorf("%w: %q", errProxyTunnel, status)
	}

	return nil
}

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// ctxErr prefers the context's error once it is done, so a cancelled
// tunnel classifies as a timeout or abort rather than an I/O failure.
func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	return err
}

// tapConn copies each response head read off the connection into a
// Scanner. Writing a request arms the tap; the blank line ending a
// final (non-1xx) response head disarms it, so bodies are never copied.
type tapConn struct {
	net.Conn
	sc *header.Scanner

	mu            sync.Mutex
	armed         bool
	lineLen       int
	lineNo        int
	first         []byte
	informational bool
}

func newTapConn(conn net.Conn, col *header.Collector) *tapConn {
	return &tapConn{
		Conn: conn,
		sc:   header.NewScanner(col),
	}
}

func (c *tapConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if !c.armed {
		c.armed = true
		c.lineLen = 0
		c.lineNo = 0
		c.first = c.first[:0]
		c.informational = false
	}
	c.mu.Unlock()

	return c.Conn.Write(p)
}

func (c *tapConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.capture(p[:n])
	}

	return n, err
}

func (c *tapConn) capture(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return
	}

	end := len(b)
	for i, ch := range b {
		switch ch {
		case '\r':
			continue
		case '\n':
		default:
			if c.lineNo == 0 && len(c.first) < 16 {
				c.first = append(c.first, ch)
			}
			c.lineLen++
			continue
		}

		if c.lineLen > 0 {
			if c.lineNo == 0 {
				c.informational = isInformational(c.first)
			}
			c.lineNo++
			c.lineLen = 0
			continue
		}

		// Blank line: the head is complete. A 1xx head is followed by
		// another head on the same exchange.
		if c.informational {
			c.lineNo = 0
			c.first = c.first[:0]
			c.informational = false
			continue
		}

		end = i + 1
		c.armed = false
		break
	}

	c.sc.Write(b[:end])
}

// isInformational reports whether a status line carries a 1xx code.
func isInformational(statusLine []byte) bool {
	if !bytes.HasPrefix(statusLine, []byte("HTTP/")) {
		return false
	}

	i := bytes.IndexByte(statusLine, ' ')
	return i > 0 && i+1 < len(statusLine) && statusLine[i+1] == '1'
}
