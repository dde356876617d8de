// Package client runs single HTTP(S) transfer sessions on top of
// [net/http].
//
// # Building a Client
//
// A [Client] is one session: build it for a single logical exchange and
// close it afterwards.
//
//	col := header.NewCollector(header.MaxLines, header.MaxLineLength)
//	c, err := client.Build(
//		client.WithUserAgent("myapp/1.0"),
//		client.WithHeaderCollector(col),
//	)
//	defer c.Close()
//
// # Capturing Headers
//
// [Client.Head] sends a HEAD request. With a collector attached, every
// response head of the redirect chain is copied off the wire, status
// line and terminating blank line included:
//
//	res, err := c.Head(ctx, "https://example.com/")
//	fmt.Println(res.StatusCode, col.Lines())
//
// # Downloading
//
// [Client.Download] streams a GET response body into any [io.Writer],
// typically a file opened with [download.OpenFile]:
//
//	f, err := download.OpenFile("~/out.bin", "wb")
//	res, err := c.Download(ctx, "https://example.com/file", f,
//		download.WithProgress(nil),
//	)
//
// # Failures
//
// Transport failures are returned as [*TransferError], carrying a
// [Code] numbered like libcurl's so hosts can keep existing handling.
//
// Building with the nohttp tag drops the transport: [Build] then fails
// with [ErrUnsupported] and [Version] reports no capabilities.
package client
