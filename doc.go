// Package httpfetch is an embeddable HTTP(S) retrieval facility for
// host runtimes. It offers three blocking operations: report transport
// capabilities, fetch the raw response headers of a URL, and download a
// URL's body to a local file.
//
// # Usage
//
//	f, err := httpfetch.New(httpfetch.WithTimeout(time.Minute))
//
//	info := f.Version()
//
//	h, err := f.Headers(ctx, "https://example.com/", "myhost/1.0", true)
//	fmt.Println(h.Status, h.Lines)
//
//	_, err = f.Fetch(ctx, "https://example.com/file", "~/file.bin",
//		false, // quiet
//		"wb",  // fopen-style mode
//		"myhost/1.0",
//		false, // useCache: send "Pragma: no-cache"
//	)
//
// Hosts marshalling loosely typed arguments use [Fetcher.FetchHeaders]
// and [Fetcher.Download] directly; their request structs accept
// multi-valued and missing arguments and reject them with
// [ErrInvalidArgument], or warn and use the first value where a host
// expects that.
//
// # Errors
//
// Every failure matches one of [ErrInvalidArgument], [ErrFileOpen],
// [ErrTransfer] or [ErrUnsupportedPlatform] with [errors.Is]. Transfer
// failures carry a numeric code in [TransferError].
//
// # Host Callbacks
//
// Notices ("trying URL ..."), warnings, progress and the busy signal of
// a download go to the [Reporter] set with [WithReporter].
package httpfetch
