// Package throttle rate-limits outbound transfers using a token-bucket
// limiter from [golang.org/x/time/rate].
//
// # Usage
//
// A [Limiter] is created once and shared; every transport it wraps draws
// from the same bucket, so transfers made through separate sessions are
// limited together:
//
//	l, err := throttle.New(
//		10, // transfers per second
//		5,  // burst capacity
//	)
//	rt := l.Wrap(http.DefaultTransport, func() *slog.Logger { return slog.Default() })
//	httpClient := &http.Client{Transport: rt}
//
// When the bucket is empty, requests block until a token becomes
// available or the request context ends.
package throttle
