//go:build !unix

package platform

import (
	"io/fs"
	"os"
)

// otherFS is the portable fallback capability set used on platforms
// without a unix build tag (notably Windows). It has no O_DIRECT
// equivalent and no vectored read primitive; callers of Readv fall
// back to per-page ReadAt, matching the source's own
// non-HAVE_READV path (spec §4.3).
type otherFS struct{}

// NewFS returns the platform FS for the current build.
func NewFS() FS { return otherFS{} }

func (otherFS) Open(path string, flags OpenFlags, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(path, flags.ToOS(), perm)
	if err != nil {
		return nil, err
	}
	return &otherFile{f}, nil
}

func (otherFS) Mkdir(path string, perm os.FileMode) error { return os.Mkdir(path, perm) }
func (otherFS) Remove(path string) error                  { return os.Remove(path) }
func (otherFS) Rmdir(path string) error                   { return os.Remove(path) }
func (otherFS) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

type otherFile struct{ f *os.File }

func (o *otherFile) ReadAt(b []byte, off int64) (int, error)  { return o.f.ReadAt(b, off) }
func (o *otherFile) WriteAt(b []byte, off int64) (int, error) { return o.f.WriteAt(b, off) }
func (o *otherFile) Sync() error                              { return o.f.Sync() }
func (o *otherFile) Truncate(size int64) error                { return o.f.Truncate(size) }
func (o *otherFile) Stat() (fs.FileInfo, error)               { return o.f.Stat() }
func (o *otherFile) Close() error                             { return o.f.Close() }

func (o *otherFile) Readv(bufs [][]byte, off int64) (int, error) {
	return 0, ErrReadvUnsupported
}
