package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package matches one of them
// with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotPrepared       = errors.New("no image prepared")
	ErrNotConfigured     = errors.New("not configured")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrCorruptData       = errors.New("corrupt data")
)

// Error carries the failing operation and, where it applies, the offending
// feature or row index.
type Error struct {
	Kind   error
	Op     string
	Index  int // -1 when no index applies
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("extractor: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Index >= 0 {
		fmt.Fprintf(&b, " (index %d)", e.Index)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind error, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Index: -1, Detail: fmt.Sprintf(format, args...)}
}

func indexError(kind error, op string, index int, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Index: index, Detail: fmt.Sprintf(format, args...)}
}

func corrupt(err error, format string, args ...any) *Error {
	return &Error{Kind: ErrCorruptData, Op: "load", Index: -1, Detail: fmt.Sprintf(format, args...), Err: err}
}
