// Package download provides the body sinks used by a transfer: a
// file-backed target opened with an fopen-style mode, and a discard
// sink for header-only requests.
//
// # File Target
//
// [OpenFile] expands a leading "~" and opens the destination with the
// semantics of the given mode string ("wb", "a", "w+x", ...):
//
//	f, err := download.OpenFile("~/data/out.bin", "wb")
//
// [Handle] then streams a response body into it, optionally reporting
// progress:
//
//	n, err := download.Handle(ctx, resp.Body, resp.ContentLength, f, logger,
//		download.WithProgress(func(done, total int64) { ... }),
//	)
//
// A failed transfer leaves whatever was written in place; cleanup is the
// caller's decision.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/httpfetch/client] package, which opens the
// target and invokes Handle internally.
package download
