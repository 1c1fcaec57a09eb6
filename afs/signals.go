// Package afs implements the Afs block: signal ingress, worker
// dispatch, idle-file recycling, and reply delivery (spec §4.5, §4.6,
// §4.7). The signal bus itself is external to this core (spec §1);
// this package defines only the boundary types a bus integration
// needs — the request signals it submits and the Bus interface it
// calls to deliver replies.
package afs

import (
	"github.com/dbkernel/ndbfs/internal/filename"
)

// PageFormat selects how a read/write signal's page descriptors are
// encoded, per spec §4.5.
type PageFormat int

const (
	// ListOfPairs carries one (memory index, file offset) pair per page.
	ListOfPairs PageFormat = iota
	// ArrayOfPages carries one base memory index and a contiguous run
	// of file pages starting at StartFileOffset.
	ArrayOfPages
	// ListPlusTrailingPage carries a list of memory pages followed by
	// one trailing file-only page.
	ListPlusTrailingPage
)

// PagePair is one (memory index, file offset) entry for ListOfPairs.
type PagePair struct {
	MemIndex   uint32
	FileOffset int64
}

// PageResolver addresses the database's page pool: given a memory
// index, it returns the backing buffer (its length is the page's
// size, since pages may be fixed, global, or shared pages of varying
// size — spec §4.5). This is the page-pool collaborator spec §1
// places out of scope for this core.
type PageResolver interface {
	Resolve(memIndex uint32) ([]byte, error)
}

// PageSpec is the as-received page descriptor set for a read or write
// signal, in one of the three formats spec §4.5 describes. DecodePages
// converts it into the uniform []request.Page form AsyncFile expects.
type PageSpec struct {
	Format PageFormat

	// ListOfPairs
	Pairs []PagePair

	// ArrayOfPages: NumPages contiguous file pages starting at
	// StartFileOffset, backed by NumPages consecutive memory pages
	// starting at BaseMemIndex.
	BaseMemIndex    uint32
	NumPages        uint32
	StartFileOffset int64

	// ListPlusTrailingPage: MemIndexes names the leading memory pages;
	// TrailingFileOffset is the file offset of one final page that has
	// no corresponding memory page (e.g. a partial tail page read
	// directly into a scratch buffer addressed by TrailingMemIndex).
	MemIndexes        []uint32
	TrailingMemIndex  uint32
	TrailingFileOffset int64
	HasTrailingPage    bool

	// FileOffsetStep, when non-zero, gives the per-page stride used to
	// compute successive file offsets for MemIndexes in
	// ListPlusTrailingPage; when zero, each resolved page's own length
	// is used as the stride (pages are assumed file-contiguous).
	FileOffsetStep int64
	FirstFileOffset int64
}

// OpenSignal corresponds to FSOPENREQ (spec §6). The four 32-bit
// fileNumber words of the wire signal are represented directly as the
// already-typed filename.Spec, since this is a Go API boundary rather
// than a wire format.
type OpenSignal struct {
	UserRef     uint32
	UserPointer uint32
	Spec        filename.Spec
	FileFlags   uint32 // request.OpenFlag bitset
	PageSize    uint32
	FileSize    uint64
	AutoSyncSize uint32
	DoBind      bool
	Trace       uint32
}

// CloseSignal corresponds to FSCLOSEREQ.
type CloseSignal struct {
	UserRef       uint32
	UserPointer   uint32
	FilePointer   uint16
	RemoveOnClose bool
	Trace         uint32
}

// ReadSignal corresponds to FSREADREQ.
type ReadSignal struct {
	UserRef     uint32
	UserPointer uint32
	FilePointer uint16
	Partial     bool
	Vectored    bool
	Pages       PageSpec
	Trace       uint32
}

// WriteSignal corresponds to FSWRITEREQ.
type WriteSignal struct {
	UserRef     uint32
	UserPointer uint32
	FilePointer uint16
	Sync        bool
	Vectored    bool
	Pages       PageSpec
	Trace       uint32
}

// SyncSignal corresponds to FSSYNCREQ.
type SyncSignal struct {
	UserRef     uint32
	UserPointer uint32
	FilePointer uint16
	Trace       uint32
}

// AppendSignal corresponds to FSAPPENDREQ.
type AppendSignal struct {
	UserRef     uint32
	UserPointer uint32
	FilePointer uint16
	MemIndex    uint32
	Size        int
	Synch       bool
	Trace       uint32
}

// RemoveSignal corresponds to FSREMOVEREQ.
type RemoveSignal struct {
	UserRef      uint32
	UserPointer  uint32
	Spec         filename.Spec
	Directory    bool
	OwnDirectory bool
	Trace        uint32
}

// SuspendSignal corresponds to FSSUSPENDORD.
type SuspendSignal struct {
	FilePointer  uint16
	Milliseconds int
}

// AllocMemSignal corresponds to ALLOC_MEM_REQ.
type AllocMemSignal struct {
	SenderRef   uint32
	SenderData  uint32
	RequestInfo uint32
}

// BuildIndexSignal corresponds to BUILDINDXREQ.
type BuildIndexSignal struct {
	SenderRef  uint32
	SenderData uint32
	BufferSize int
	Fn         func(buffer []byte) error
}

// Reply is the generic shape of every "…CONF"/"…REF" egress signal
// (spec §6): a nil Err means CONF, otherwise REF, carrying the
// translated error kind plus the raw OS code.
type Reply struct {
	Action       interface{} // request.Action; interface{} to avoid importing request in the public surface
	UserPointer  uint32
	Trace        uint32
	Err          error
	OSErrorCode  uint32
	FilePointer  uint16 // OpenConf
	BytesRead    int    // ReadPartial's bytes_read
	BytesWritten int    // Append's size
}

// Bus is the signal bus collaborator: the core calls Reply to deliver
// a completed request's outcome. The bus itself, and the scheduler
// that delivers inbound signals, are external to this core (spec §1).
type Bus interface {
	Reply(r Reply)
}
