//go:build unix

package platform

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// unixFS is the POSIX capability set, backed by *os.File for the
// common path and golang.org/x/sys/unix for the primitives the
// standard library does not expose: vectored reads and O_DIRECT.
type unixFS struct{}

// NewFS returns the platform FS for the current build.
func NewFS() FS { return unixFS{} }

func (unixFS) Open(path string, flags OpenFlags, perm os.FileMode) (File, error) {
	osFlags := flags.ToOS()
	if flags.Direct {
		osFlags |= unix.O_DIRECT
	}
	f, err := os.OpenFile(path, osFlags, perm)
	if err != nil {
		return nil, err
	}
	return &unixFile{f}, nil
}

func (unixFS) Mkdir(path string, perm os.FileMode) error { return os.Mkdir(path, perm) }
func (unixFS) Remove(path string) error                  { return os.Remove(path) }
func (unixFS) Rmdir(path string) error                   { return os.Remove(path) }
func (unixFS) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

type unixFile struct{ f *os.File }

func (u *unixFile) ReadAt(b []byte, off int64) (int, error)  { return u.f.ReadAt(b, off) }
func (u *unixFile) WriteAt(b []byte, off int64) (int, error) { return u.f.WriteAt(b, off) }
func (u *unixFile) Sync() error                              { return u.f.Sync() }
func (u *unixFile) Truncate(size int64) error                { return u.f.Truncate(size) }
func (u *unixFile) Stat() (fs.FileInfo, error)                { return u.f.Stat() }
func (u *unixFile) Close() error                              { return u.f.Close() }

// Readv issues a single readv(2) across bufs starting at off. The
// source falls back to per-page reads when HAVE_READV is undefined;
// here the build tag itself is the fallback selector (file_other.go's
// Readv returns ErrReadvUnsupported on non-unix targets, and the
// worker then issues per-page reads).
func (u *unixFile) Readv(bufs [][]byte, off int64) (int, error) {
	if _, err := u.f.Seek(off, 0); err != nil {
		return 0, err
	}
	iovs := make([][]byte, len(bufs))
	copy(iovs, bufs)
	n, err := unix.Readv(int(u.f.Fd()), iovs)
	return n, err
}
