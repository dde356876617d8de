package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/adamwoolhether/httpfetch/client/download"
)

var (
	// ErrTransfer is the sentinel wrapped by every [TransferError].
	ErrTransfer = errors.New("transfer failed")
	// ErrTooManyRedirects is returned when a redirect chain exceeds the
	// configured ceiling.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrUnsupported is returned by [Build] when the binary was built
	// without an HTTP transport.
	ErrUnsupported = errors.New("no http transport linked")
)

// Code classifies a transfer failure. Values follow the numbering of
// libcurl's CURLcode so hosts can keep existing handling.
type Code int

const (
	CodeOK                     Code = 0
	CodeUnsupportedProtocol    Code = 1
	CodeURLMalformat           Code = 3
	CodeCouldntResolveHost     Code = 6
	CodeCouldntConnect         Code = 7
	CodePartialFile            Code = 18
	CodeWriteError             Code = 23
	CodeOperationTimedout      Code = 28
	CodeSSLConnectError        Code = 35
	CodeFileCouldntReadFile    Code = 37
	CodeAbortedByCallback      Code = 42
	CodeTooManyRedirects       Code = 47
	CodeGotNothing             Code = 52
	CodeRecvError              Code = 56
	CodePeerFailedVerification Code = 60
)

var codeText = map[Code]string{
	CodeOK:                     "No error",
	CodeUnsupportedProtocol:    "Unsupported protocol",
	CodeURLMalformat:           "URL using bad/illegal format or missing URL",
	CodeCouldntResolveHost:     "Couldn't resolve host name",
	CodeCouldntConnect:         "Couldn't connect to server",
	CodePartialFile:            "Transferred a partial file",
	CodeWriteError:             "Failed writing received data to disk/application",
	CodeOperationTimedout:      "Timeout was reached",
	CodeSSLConnectError:        "SSL connect error",
	CodeFileCouldntReadFile:    "Couldn't read a file:// file",
	CodeAbortedByCallback:      "Operation was aborted by an application callback",
	CodeTooManyRedirects:       "Number of redirects hit maximum amount",
	CodeGotNothing:             "Server returned nothing (no headers, no data)",
	CodeRecvError:              "Failure when receiving data from the peer",
	CodePeerFailedVerification: "SSL peer certificate or SSH remote key was not OK",
}

// String returns the fixed description of c.
func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}

	return fmt.Sprintf("Unknown error (%d)", int(c))
}

// TransferError is returned when the exchange with the server fails.
// Message carries the diagnostic detail; Err is the underlying cause.
type TransferError struct {
	Code    Code
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer error code %d: %s", e.Code, e.Message)
}

func (e *TransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransfer}
	}

	return []error{ErrTransfer, e.Err}
}

// newTransferError classifies err and keeps its text as the diagnostic.
func newTransferError(err error) *TransferError {
	return &TransferError{
		Code:    classify(err),
		Message: err.Error(),
		Err:     err,
	}
}

// classify maps a transport or sink failure onto a Code.
func classify(err error) Code {
	var (
		dnsErr    *net.DNSError
		certErr   *tls.CertificateVerificationError
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
		opErr     *net.OpError
		netErr    net.Error
	)

	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrTooManyRedirects):
		return CodeTooManyRedirects
	case errors.Is(err, errUnsupportedScheme):
		return CodeUnsupportedProtocol
	case errors.Is(err, errProxyTunnel):
		return CodeRecvError
	case errors.Is(err, download.ErrWrite):
		return CodeWriteError
	case errors.Is(err, download.ErrDownloadCancelled), errors.Is(err, context.Canceled):
		return CodeAbortedByCallback
	case errors.Is(err, download.ErrContentLengthMismatch), errors.Is(err, io.ErrUnexpectedEOF):
		return CodePartialFile
	case errors.Is(err, context.DeadlineExceeded):
		return CodeOperationTimedout
	case errors.As(err, &dnsErr):
		return CodeCouldntResolveHost
	case errors.As(err, &certErr):
		return CodePeerFailedVerification
	case errors.As(err, &recordErr), errors.As(err, &alertErr):
		return CodeSSLConnectError
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeOperationTimedout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return CodeCouldntConnect
	case errors.Is(err, io.EOF):
		return CodeGotNothing
	default:
		return CodeRecvError
	}
}
