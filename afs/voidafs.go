package afs

import (
	"sync/atomic"

	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/afserr"
	"github.com/dbkernel/ndbfs/internal/request"
)

// Block is the signal-ingress surface callers program against, so a
// node can be wired to either a real Afs or VoidAfs without a type
// switch (spec §12's supplemented VoidAfs, the source's no-op
// stand-in for nodes configured with no disk data files at all).
type Block interface {
	Open(OpenSignal)
	Close(CloseSignal)
	Read(ReadSignal)
	Write(WriteSignal)
	Sync(SyncSignal)
	Append(AppendSignal)
	Remove(RemoveSignal)
	Suspend(SuspendSignal)
	AllocMem(AllocMemSignal)
	BuildIndex(BuildIndexSignal)
}

var (
	_ Block = (*Afs)(nil)
	_ Block = VoidAfs{}
)

// VoidAfs acknowledges every signal without ever touching a
// filesystem, for nodes configured with no disk data files at all
// (spec §2, §12). It mirrors the original's VoidFs: every request
// gets an immediate CONF, with one exception, a READONLY open gets
// FileDoesNotExist, since a void node has nothing to read.
type VoidAfs struct {
	Bus Bus

	// nextHandle, when non-nil, is incremented to hand out a fresh fake
	// file handle on each CONF'd open. It is unexported and nothing sets
	// it, so a VoidAfs built outside this package answers every open
	// with handle 1.
	nextHandle *uint32
}

func (v VoidAfs) handle() uint16 {
	if v.nextHandle == nil {
		return 1
	}
	return uint16(atomic.AddUint32(v.nextHandle, 1))
}

func (v VoidAfs) conf(action request.Action, userPointer, trace uint32) {
	v.Bus.Reply(Reply{Action: action, UserPointer: userPointer, Trace: trace})
}

func (v VoidAfs) Open(sig OpenSignal) {
	if request.OpenFlag(sig.FileFlags)&request.ReadOnly != 0 {
		e, code := afserr.Local(errors.FileDoesNotExist, "afs: VoidAfs has no files to open read-only")
		v.Bus.Reply(Reply{Action: request.Open, UserPointer: sig.UserPointer, Trace: sig.Trace, Err: e, OSErrorCode: code})
		return
	}
	v.Bus.Reply(Reply{
		Action:      request.Open,
		UserPointer: sig.UserPointer,
		Trace:       sig.Trace,
		FilePointer: v.handle(),
	})
}

func (v VoidAfs) Close(sig CloseSignal) { v.conf(request.Close, sig.UserPointer, sig.Trace) }
func (v VoidAfs) Read(sig ReadSignal)   { v.conf(request.Read, sig.UserPointer, sig.Trace) }
func (v VoidAfs) Write(sig WriteSignal) { v.conf(request.Write, sig.UserPointer, sig.Trace) }
func (v VoidAfs) Sync(sig SyncSignal)   { v.conf(request.Sync, sig.UserPointer, sig.Trace) }

func (v VoidAfs) Append(sig AppendSignal) {
	v.Bus.Reply(Reply{
		Action:       request.Append,
		UserPointer:  sig.UserPointer,
		BytesWritten: sig.Size << 2,
	})
}

func (v VoidAfs) Remove(sig RemoveSignal) { v.conf(request.Rmrf, sig.UserPointer, sig.Trace) }

func (v VoidAfs) Suspend(SuspendSignal) {}

// AllocMem and BuildIndex have no VoidFs equivalent in the original,
// which never registers FSOPENREQ's pool-side siblings at all; a void
// node still acknowledges them rather than leaving the caller hanging.
func (v VoidAfs) AllocMem(sig AllocMemSignal) {
	v.conf(request.AllocMem, sig.SenderData, 0)
}

func (v VoidAfs) BuildIndex(sig BuildIndexSignal) {
	v.conf(request.BuildIndex, sig.SenderData, 0)
}
