//go:build nohttp

package client

// Supported reports whether this build carries an HTTP transport.
const Supported = false
