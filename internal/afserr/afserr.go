// Package afserr implements the ErrorMap component: translation of OS
// error numbers into the closed errors.Kind enumeration used
// throughout the AFS block (spec §7).
package afserr

import (
	"io"
	"syscall"

	"github.com/dbkernel/ndbfs/errors"
)

// table maps syscall.Errno values to their AFS error Kind. Built from
// the taxonomy in spec §7; unmapped errno values fall through to
// errors.Other.
var table = map[syscall.Errno]errors.Kind{
	syscall.EACCES: errors.PermissionDenied,
	syscall.EROFS:  errors.PermissionDenied,
	syscall.ENXIO:  errors.PermissionDenied,

	syscall.EAGAIN: errors.TemporaryNotAccessible,
	syscall.ETIMEDOUT: errors.TemporaryNotAccessible,
	syscall.ENOLCK: errors.TemporaryNotAccessible,
	syscall.EINTR:  errors.TemporaryNotAccessible,
	syscall.EIO:    errors.TemporaryNotAccessible,

	syscall.ENFILE: errors.NoSpaceLeftOnDevice,
	syscall.EDQUOT: errors.NoSpaceLeftOnDevice,
	syscall.ENOSPC: errors.NoSpaceLeftOnDevice,
	syscall.EFBIG:  errors.NoSpaceLeftOnDevice,

	syscall.EINVAL:       errors.InvalidParameters,
	syscall.EBADF:        errors.InvalidParameters,
	syscall.ENAMETOOLONG: errors.InvalidParameters,
	syscall.EFAULT:       errors.InvalidParameters,
	syscall.EISDIR:       errors.InvalidParameters,
	syscall.ENOTDIR:      errors.InvalidParameters,
	syscall.EEXIST:       errors.InvalidParameters,
	syscall.ETXTBSY:      errors.InvalidParameters,

	syscall.ELOOP:     errors.EnvironmentError,
	syscall.EOPNOTSUPP: errors.EnvironmentError,
	syscall.ESPIPE:    errors.EnvironmentError,
	syscall.EPIPE:     errors.EnvironmentError,

	syscall.EMFILE: errors.NoMoreResources,
	syscall.ENOMEM: errors.NoMoreResources,

	syscall.ENOENT: errors.FileDoesNotExist,

	// ENOSR (-> NoSpaceLeftOnDevice) and ENOLINK/EMULTIHOP (->
	// EnvironmentError) are part of the source taxonomy but are STREAMS
	// and network-filesystem errnos with no syscall.Errno constant on
	// every platform this package builds for (notably absent from
	// darwin's syscall package); they are left out of table rather than
	// gated behind build tags, and fall through to errors.Other if a
	// platform ever does surface one.
}

// osErrorCodeNone is carried in a reply when the failure was raised
// locally (e.g. a Filename parameter error) rather than by a syscall,
// per spec §6: "osErrorCode = ~0 denotes a locally-raised error".
const osErrorCodeNone = ^uint32(0)

// Translate converts err, typically returned from a platform I/O
// primitive, into an *errors.Error carrying the matching Kind, plus the
// raw OS error code to report back on the bus (or osErrorCodeNone if
// err did not carry a syscall.Errno).
func Translate(err error) (*errors.Error, uint32) {
	if err == nil {
		return nil, 0
	}
	if e, ok := err.(*errors.Error); ok {
		// Already classified by the caller (e.g. Filename's parameter
		// validation, or the AFS block's own path/handle checks): it
		// never touched a syscall, so it carries no OS error code.
		return e, osErrorCodeNone
	}
	if err == io.EOF {
		return errors.E(errors.ReadUnderflow, "unexpected end of file").(*errors.Error), osErrorCodeNone
	}
	errno, ok := errnoOf(err)
	if !ok {
		return errors.E(errors.Other, err.Error(), err).(*errors.Error), osErrorCodeNone
	}
	kind, ok := table[errno]
	if !ok {
		kind = errors.Other
	}
	return errors.E(kind, err.Error(), err).(*errors.Error), uint32(errno)
}

// Local wraps a caller-detected error (never reaches a syscall) with
// the locally-raised OS code sentinel, mirroring Filename's
// ParameterError classification (spec §4.2).
func Local(kind errors.Kind, msg string) (*errors.Error, uint32) {
	return errors.E(kind, msg).(*errors.Error), osErrorCodeNone
}

// errnoOf extracts a syscall.Errno from err, unwrapping *PathError and
// *LinkError as the standard library's os package produces them.
func errnoOf(err error) (syscall.Errno, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return errno, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
