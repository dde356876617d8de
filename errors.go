package httpfetch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adamwoolhether/httpfetch/client"
)

var (
	// ErrInvalidArgument is matched by every argument validation failure.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFileOpen is matched when a download destination cannot be opened.
	ErrFileOpen = errors.New("cannot open destination")
	// ErrTransfer is matched by every transfer failure.
	ErrTransfer = client.ErrTransfer
	// ErrUnsupportedPlatform is returned by every transfer operation when
	// the binary carries no HTTP transport.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
)

// TransferError carries the numeric transfer code and a diagnostic.
type TransferError = client.TransferError

// ArgumentError reports a single malformed argument.
type ArgumentError struct {
	Arg    string
	Detail string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid '%s' argument: %s", e.Arg, e.Detail)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

// FieldError is a validation failure of one request field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors collects the validation failures of one request.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}

	return "invalid argument: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error { return ErrInvalidArgument }

// Fields returns the failures keyed by field name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}

	return m
}

// FileOpenError reports a destination that could not be opened. It
// matches both ErrFileOpen and the underlying OS error.
type FileOpenError struct {
	Path string
	Err  error
}

func (e *FileOpenError) Error() string {
	return fmt.Sprintf("cannot open destfile '%s', reason '%s'", e.Path, reason(e.Err))
}

func (e *FileOpenError) Unwrap() []error {
	return []error{ErrFileOpen, e.Err}
}

// UnsupportedError names the operation refused on a build without an
// HTTP transport.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported on this platform", e.Op)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupportedPlatform }

// reason strips the operation and path an *os.PathError prefixes.
func reason(err error) string {
	if u := errors.Unwrap(err); u != nil {
		return u.Error()
	}

	return err.Error()
}

// transferCode extracts the transfer code of err, 0 when err carries none.
func transferCode(err error) client.Code {
	var te *client.TransferError
	if errors.As(err, &te) {
		return te.Code
	}

	return client.CodeOK
}
