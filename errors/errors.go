// Package errors implements the closed error taxonomy used throughout
// ndbfs. Every error an AFS component returns across a package boundary
// is an *Error carrying a Kind (the error's class, per the AFS error
// taxonomy), an optional Severity, a message, and a chained cause.
//
// Errors are constructed with E, which interprets its arguments by
// type: a Kind sets the kind, a Severity sets the severity, a string
// appends to the message, and an error (or *Error) becomes the cause.
package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/dbkernel/ndbfs/log"
)

// Kind classifies an error into the closed set translated from OS
// errno values by the worker's error map (see internal/afserr).
type Kind int

const (
	// Other is an error that does not fit the classification below.
	Other Kind = iota
	// PermissionDenied corresponds to EACCES, EROFS, ENXIO and similar.
	PermissionDenied
	// TemporaryNotAccessible corresponds to EAGAIN, ETIMEDOUT, ENOLCK,
	// EINTR (past the worker's internal retry loop), EIO.
	TemporaryNotAccessible
	// NoSpaceLeftOnDevice corresponds to ENFILE, EDQUOT, ENOSPC, EFBIG, ENOSR.
	NoSpaceLeftOnDevice
	// InvalidParameters corresponds to EINVAL, EBADF, ENAMETOOLONG,
	// EFAULT, EISDIR, ENOTDIR, EEXIST, ETXTBSY, and programmer errors
	// caught before any syscall is attempted (e.g. bad Filename spec).
	InvalidParameters
	// EnvironmentError corresponds to ELOOP, ENOLINK, EMULTIHOP,
	// EOPNOTSUPP, ESPIPE, EPIPE.
	EnvironmentError
	// NoMoreResources corresponds to EMFILE, ENOMEM.
	NoMoreResources
	// FileDoesNotExist corresponds to ENOENT.
	FileDoesNotExist
	// ReadUnderflow is raised when a read reaches EOF before all the
	// requested bytes are read, on an action other than ReadPartial.
	ReadUnderflow
	// Canceled indicates the enclosing context was canceled.
	Canceled
	// Timeout indicates an operation exceeded its deadline.
	Timeout

	maxKind
)

var kinds = map[Kind]string{
	Other:                   "unknown error",
	PermissionDenied:        "permission denied",
	TemporaryNotAccessible:  "temporarily not accessible",
	NoSpaceLeftOnDevice:     "no space left on device",
	InvalidParameters:       "invalid parameters",
	EnvironmentError:        "environment error",
	NoMoreResources:         "no more resources",
	FileDoesNotExist:        "file does not exist",
	ReadUnderflow:           "read underflow",
	Canceled:                "operation was canceled",
	Timeout:                 "operation timed out",
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s
	}
	return "unknown error"
}

var kindStdErrs = map[Kind]error{
	FileDoesNotExist: os.ErrNotExist,
	PermissionDenied: os.ErrPermission,
	Canceled:         context.Canceled,
	Timeout:          context.DeadlineExceeded,
}

// Severity determines whether an error-producing request may safely be
// retried by the caller.
type Severity int

const (
	// Unknown is the default severity.
	Unknown Severity = 0
	// Retriable indicates the operation can be safely retried as-is.
	Retriable Severity = -2
	// Temporary indicates the condition is likely transient.
	Temporary Severity = -1
	// Fatal indicates the node cannot make progress; the caller should
	// shut down rather than retry. Used for protocol violations such as
	// open-files path duplication or pool exhaustion (see §7).
	Fatal Severity = 1
)

var severities = map[Severity]string{
	Retriable: "retriable",
	Temporary: "temporary",
	Unknown:   "unknown",
	Fatal:     "fatal",
}

// String returns a human-readable explanation of the severity s.
func (s Severity) String() string {
	return severities[s]
}

// Separator is inserted between chained errors in Error() output.
var Separator = ":\n\t"

// Error is the standard error type returned by ndbfs packages.
type Error struct {
	Kind     Kind
	Severity Severity
	Message  string
	Err      error
}

// E constructs a new *Error from its arguments. Arguments are
// interpreted by type: Kind sets the kind, Severity sets the severity,
// string appends to the message (space separated), *Error or error
// become the chained cause.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.ErrorLog.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{Kind: InvalidParameters, Message: fmt.Sprintf("unknown type %T in error call", arg)}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	if prev, ok := e.Err.(*Error); ok {
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Severity == e.Severity || e.Severity == Unknown {
			e.Severity = prev.Severity
			prev.Severity = Unknown
		}
		return e
	}
	if e.Kind == Other {
		for kind := Kind(0); kind < maxKind; kind++ {
			if std := kindStdErrs[kind]; std != nil && errors.Is(e.Err, std) {
				e.Kind = kind
				break
			}
		}
	}
	return e
}

// Recover wraps err in an *Error, unless it is already one.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Severity != Unknown {
		pad(b, " ")
		b.WriteByte('(')
		b.WriteString(e.Severity.String())
		b.WriteByte(')')
	}
	if e.Err == nil {
		return
	}
	if inner, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(inner.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Unwrap lets errors.Unwrap/errors.Is/errors.As from the standard
// library traverse the chain.
func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether e is a timeout error.
func (e *Error) Timeout() bool { return e.Kind == Timeout }

// Temporary reports whether e is safe to retry.
func (e *Error) Temporary() bool { return e.Severity <= Temporary }

// Is reports whether e.Kind corresponds to the sentinel err, enabling
// interoperability with the standard library's errors.Is.
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	if err == kindStdErrs[e.Kind] {
		return true
	}
	return false
}

// IsFatal reports whether e represents a condition from which the AFS
// block cannot recover and must abort the node (see spec §7).
func IsFatal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Severity == Fatal
}
