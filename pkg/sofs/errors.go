package sofs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is one of the POSIX-style result codes every core operation reports
// on failure. A Code is never returned bare -- it always arrives wrapped in
// an *Error that also names the failing operation and, where applicable,
// the lower-layer cause.
type Code int

// Argument/precondition codes.
const (
	EINVAL Code = iota + 1
	ENAMETOOLONG
	ERELPATH
	ENOTDIR
	ENOTEMPTY
	EEXIST
	ENOENT
	ELOOP
	EMLINK
	EFBIG
	EACCES
	EPERM

	// Capacity.
	ENOSPC

	// Structural consistency.
	EIUININVAL
	EFDININVAL
	EFININVAL
	ELDCININVAL
	EDCINVAL
	EDCARDYIL
	EDCNOTIL
	EDCNALINVAL
	EWGINODENB
	EDIRINVAL
	EDEINVAL
	EDCMINVAL

	// Lower storage layer.
	ELIBBAD
	EBADF
	EIO
)

var codeNames = map[Code]string{
	EINVAL:       "EINVAL",
	ENAMETOOLONG: "ENAMETOOLONG",
	ERELPATH:     "ERELPATH",
	ENOTDIR:      "ENOTDIR",
	ENOTEMPTY:    "ENOTEMPTY",
	EEXIST:       "EEXIST",
	ENOENT:       "ENOENT",
	ELOOP:        "ELOOP",
	EMLINK:       "EMLINK",
	EFBIG:        "EFBIG",
	EACCES:       "EACCES",
	EPERM:        "EPERM",
	ENOSPC:       "ENOSPC",
	EIUININVAL:   "EIUININVAL",
	EFDININVAL:   "EFDININVAL",
	EFININVAL:    "EFININVAL",
	ELDCININVAL:  "ELDCININVAL",
	EDCINVAL:     "EDCINVAL",
	EDCARDYIL:    "EDCARDYIL",
	EDCNOTIL:     "EDCNOTIL",
	EDCNALINVAL:  "EDCNALINVAL",
	EWGINODENB:   "EWGINODENB",
	EDIRINVAL:    "EDIRINVAL",
	EDEINVAL:     "EDEINVAL",
	EDCMINVAL:    "EDCMINVAL",
	ELIBBAD:      "ELIBBAD",
	EBADF:        "EBADF",
	EIO:          "EIO",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error wraps one Code with the operation that produced it and, where the
// failure originated below the core (a short read, a seek past the end of
// the device), the underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newErr constructs an *Error, optionally wrapping a lower-layer cause with
// errors.Wrap so callers walking the chain with errors.Cause still reach it.
func newErr(op string, code Code, cause error) *Error {
	e := &Error{Op: op, Code: code}
	if cause != nil {
		e.Err = errors.Wrap(cause, op)
	}
	return e
}

// IsCode reports whether err is a *sofs.Error carrying the given code.
func IsCode(err error, code Code) bool {
	se, ok := err.(*Error)
	return ok && se.Code == code
}
