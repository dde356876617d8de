package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode is a parsed fopen-style open mode.
type Mode struct {
	Flag      int
	Binary    bool
	Exclusive bool
}

// ParseMode interprets an fopen-style mode string: one of 'r', 'w' or
// 'a' followed by any combination of '+', 'b', 't' and 'x'. 'x' is only
// valid with 'w'.
func ParseMode(mode string) (Mode, error) {
	if mode == "" {
		return Mode{}, &Error{Err: ErrInvalidMode, Detail: "empty mode"}
	}

	var m Mode
	var plus bool
	for _, r := range mode[1:] {
		switch r {
		case '+':
			plus = true
		case 'b':
			m.Binary = true
		case 't':
			m.Binary = false
		case 'x':
			m.Exclusive = true
		default:
			return Mode{}, &Error{Err: ErrInvalidMode, Detail: fmt.Sprintf("unknown flag %q in %q", r, mode)}
		}
	}

	switch mode[0] {
	case 'r':
		m.Flag = os.O_RDONLY
		if plus {
			m.Flag = os.O_RDWR
		}
	case 'w':
		m.Flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if plus {
			m.Flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
	case 'a':
		m.Flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if plus {
			m.Flag = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
	default:
		return Mode{}, &Error{Err: ErrInvalidMode, Detail: fmt.Sprintf("mode %q must start with r, w or a", mode)}
	}

	if m.Exclusive {
		if mode[0] != 'w' {
			return Mode{}, &Error{Err: ErrInvalidMode, Detail: fmt.Sprintf("'x' requires 'w' in %q", mode)}
		}
		m.Flag |= os.O_EXCL
	}

	return m, nil
}

// OpenFile expands path and opens it with the semantics of mode.
// Errors from the file system are returned unwrapped so callers can
// report the OS reason verbatim.
func OpenFile(path, mode string) (*os.File, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	return os.OpenFile(ExpandPath(path), m.Flag, 0o666)
}

// ExpandPath replaces a leading "~" or "~/" with the current user's home
// directory. Any other path, including "~user" forms, is returned as is.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}

	return filepath.Join(home, path[1:])
}
