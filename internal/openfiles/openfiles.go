// Package openfiles implements the OpenFiles registry, the IdleFiles
// recycling pool, and FileHandle allocation (spec §3, §4.4, §4.7).
// All three are touched only by the AFS block's own goroutine, so
// none of the types here need internal locking (spec §5).
package openfiles

import (
	"github.com/dbkernel/ndbfs/errors"
)

// Handle is the 16-bit opaque file identifier issued at open.
type Handle = uint16

// File is the minimal view the registry needs of a live AsyncFile:
// its assigned handle and the path it is bound to. worker.OpenFile
// satisfies this without openfiles importing the worker package.
type File interface {
	Handle() Handle
	Path() string
}

// Registry maps a live FileHandle to its File, enforcing the
// uniqueness of both handle and rendered path (spec §3's OpenFiles
// invariants).
type Registry struct {
	byHandle map[Handle]File
	byPath   map[string]Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle: make(map[Handle]File),
		byPath:   make(map[string]Handle),
	}
}

// Insert registers f under its handle. It is a fatal configuration
// error for f's path to already be open under a different handle
// (spec §3: "No two registered files share the same rendered path").
func (r *Registry) Insert(f File) error {
	if existing, ok := r.byPath[f.Path()]; ok && existing != f.Handle() {
		return errors.E(errors.Fatal, "openfiles: duplicate path already open under another handle: "+f.Path())
	}
	if _, ok := r.byHandle[f.Handle()]; ok {
		return errors.E(errors.Fatal, "openfiles: handle already registered")
	}
	r.byHandle[f.Handle()] = f
	r.byPath[f.Path()] = f.Handle()
	return nil
}

// Find returns the File registered under h, if any.
func (r *Registry) Find(h Handle) (File, bool) {
	f, ok := r.byHandle[h]
	return f, ok
}

// Erase removes h from the registry. Erasing a handle that was never
// inserted is a programmer error and returns a Fatal *errors.Error
// (spec §3: "Removal on close is mandatory; leaks produce fatal
// assertion").
func (r *Registry) Erase(h Handle) error {
	f, ok := r.byHandle[h]
	if !ok {
		return errors.E(errors.Fatal, "openfiles: erase of unregistered handle")
	}
	delete(r.byHandle, h)
	delete(r.byPath, f.Path())
	return nil
}

// Len returns the number of currently open files.
func (r *Registry) Len() int { return len(r.byHandle) }

// List returns a snapshot of currently open files, for dump commands.
func (r *Registry) List() []File {
	out := make([]File, 0, len(r.byHandle))
	for _, f := range r.byHandle {
		out = append(out, f)
	}
	return out
}

// IdlePool is the free list of File instances not currently bound to
// a logical file (spec §2's IdleFiles).
type IdlePool struct {
	files []File
}

// NewIdlePool returns an empty IdlePool.
func NewIdlePool() *IdlePool { return &IdlePool{} }

// Push returns f to the idle pool.
func (p *IdlePool) Push(f File) { p.files = append(p.files, f) }

// Pop removes and returns the most recently pushed idle file, or
// ok == false if the pool is empty.
func (p *IdlePool) Pop() (f File, ok bool) {
	if len(p.files) == 0 {
		return nil, false
	}
	n := len(p.files) - 1
	f, p.files = p.files[n], p.files[:n]
	return f, true
}

// Len returns the number of idle files.
func (p *IdlePool) Len() int { return len(p.files) }

// List returns a snapshot of idle files, for dump commands.
func (p *IdlePool) List() []File {
	out := make([]File, len(p.files))
	copy(out, p.files)
	return out
}

// maxHandle bounds the 16-bit handle space.
const maxHandle = 1<<16 - 1

// Allocator issues FileHandles by linear probe starting after the
// most recently issued handle, skipping handles the caller reports as
// live, and wrapping at the top of the space (spec §3). Allocation is
// deterministic and stable while a file remains open.
type Allocator struct {
	last uint32
}

// Next returns the next unused handle, consulting isLive to skip
// handles still in use. It returns a Fatal *errors.Error if the
// entire handle space is occupied — the node cannot make progress.
func (a *Allocator) Next(isLive func(Handle) bool) (Handle, error) {
	for i := uint32(0); i <= maxHandle; i++ {
		candidate := Handle((a.last + 1 + i) % (maxHandle + 1))
		if !isLive(candidate) {
			a.last = uint32(candidate)
			return candidate, nil
		}
	}
	return 0, errors.E(errors.Fatal, "openfiles: file handle space exhausted")
}
