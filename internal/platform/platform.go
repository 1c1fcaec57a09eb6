// Package platform expresses the capability set an AsyncFile worker
// needs from the operating system — open/read/write/sync/close plus
// directory operations — as an interface, with POSIX and portable
// fallback implementations selected at compile time (spec §9:
// "Platform abstraction"). The worker loop in internal/worker is
// platform-agnostic; only this package's two build-tagged files know
// about raw file descriptors and syscall flags.
package platform

import (
	"errors"
	"io/fs"
	"os"
)

// OpenFlags mirrors the flag set in spec §4.3, independent of the
// request package so platform does not need to import it.
type OpenFlags struct {
	Create       bool
	CreateIfNone bool
	Truncate     bool
	Append       bool
	Sync         bool // honor O_SYNC if the platform supports it
	ReadOnly     bool
	WriteOnly    bool
	ReadWrite    bool
	Direct       bool // O_DIRECT where supported; ignored otherwise
}

// ToOS translates OpenFlags to the os.OpenFile flag bits common to all
// platforms. Direct/Sync handling beyond os.O_SYNC is added by the
// platform-specific Open implementation, since O_DIRECT has no
// portable os.* constant.
func (f OpenFlags) ToOS() int {
	var flags int
	switch {
	case f.ReadOnly:
		flags |= os.O_RDONLY
	case f.WriteOnly:
		flags |= os.O_WRONLY
	case f.ReadWrite:
		flags |= os.O_RDWR
	}
	if f.Create {
		flags |= os.O_CREATE | os.O_EXCL
	}
	if f.CreateIfNone {
		flags |= os.O_CREATE
	}
	if f.Truncate {
		flags |= os.O_TRUNC
	}
	if f.Append {
		flags |= os.O_APPEND
	}
	if f.Sync {
		flags |= os.O_SYNC
	}
	return flags
}

// File is the per-open-file capability surface a worker drives. It is
// satisfied by the platform-specific wrapper around *os.File.
type File interface {
	// ReadAt reads len(b) bytes starting at off, looping internally
	// until satisfied or an error occurs (transparent EINTR retry is
	// handled by the Go runtime's poller beneath os.File).
	ReadAt(b []byte, off int64) (int, error)
	// WriteAt writes b at off, looping internally as ReadAt does.
	WriteAt(b []byte, off int64) (int, error)
	// Readv issues a single vectored read across bufs, starting at
	// off, when the platform provides one; callers must fall back to
	// per-page ReadAt when Readv returns ErrReadvUnsupported.
	Readv(bufs [][]byte, off int64) (int, error)
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
	Close() error
}

// FS is the directory-level capability surface.
type FS interface {
	Open(path string, flags OpenFlags, perm os.FileMode) (File, error)
	Mkdir(path string, perm os.FileMode) error
	Remove(path string) error
	Rmdir(path string) error
	ReadDir(path string) ([]os.DirEntry, error)
}

// ErrReadvUnsupported is returned by Readv implementations that have
// no vectored read primitive on the current platform; callers fall
// back to issuing per-page ReadAt calls (spec §4.3's readvReq).
var ErrReadvUnsupported = errors.New("platform: vectored read not supported")
