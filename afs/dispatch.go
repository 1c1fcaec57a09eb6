package afs

import (
	"context"
	"sync/atomic"

	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/afserr"
	"github.com/dbkernel/ndbfs/internal/filename"
	"github.com/dbkernel/ndbfs/internal/openfiles"
	"github.com/dbkernel/ndbfs/internal/request"
	"github.com/dbkernel/ndbfs/internal/worker"
)

// handleSignal runs on the reactor goroutine only.
func (a *Afs) handleSignal(env signalEnvelope) {
	switch env.kind {
	case sigOpen:
		a.doOpen(env.open)
	case sigClose:
		a.doClose(env.close)
	case sigRead:
		a.doRead(env.read)
	case sigWrite:
		a.doWrite(env.write)
	case sigSync:
		a.doSync(env.sync)
	case sigAppend:
		a.doAppend(env.append)
	case sigRemove:
		a.doRemove(env.remove)
	case sigSuspend:
		a.doSuspend(env.suspend)
	case sigAllocMem:
		a.doAllocMem(env.allocMem)
	case sigBuildIndex:
		a.doBuildIndex(env.buildIndex)
	case sigDump:
		env.dump()
	}
}

// acquireWorker returns an idle bound worker, spawning a new one if
// the open-file ceiling allows, or a Fatal-severity NoMoreResources
// error otherwise (spec §4.7, §7).
func (a *Afs) acquireWorker() (*worker.OpenFile, error) {
	if f, ok := a.idle.Pop(); ok {
		return f.(*worker.OpenFile), nil
	}
	if len(a.workers) >= a.cfg.MaxNoOfOpenFiles {
		return nil, errors.E(errors.NoMoreResources, errors.Fatal, "afs: open file limit reached")
	}
	handle, err := a.alloc.Next(a.isLive)
	if err != nil {
		return nil, err
	}
	f := worker.New(handle, a.fs, a.reply, a.pageAlloc)
	a.workers[handle] = f
	return f, nil
}

func (a *Afs) submitBound(wf *worker.OpenFile, req *request.Request) {
	atomic.AddInt64(&a.inFlight, 1)
	wf.Submit(req)
}

// runPooled dispatches req to completion on a fresh, stateless
// ephemeral worker, gated by the pool's BoundedGroup (spec §4.7's
// pool-of-unbound-workers mode, scoped to one-shot request kinds).
func (a *Afs) runPooled(req *request.Request) {
	atomic.AddInt64(&a.inFlight, 1)
	err := a.pooled.Go(context.Background(), func() {
		f := worker.NewEphemeral(a.fs, a.pageAlloc)
		f.Dispatch(req)
		a.reply.WriteChannelNoSignal(req)
	})
	if err != nil {
		req.Error, req.OSErrorCode = afserr.Local(errors.Canceled, "afs: pooled dispatch canceled")
		a.reply.WriteChannelNoSignal(req)
	}
}

// replyErr delivers a reply directly to the bus for failures detected
// before any Request reaches a worker (bad path spec, unknown handle,
// resource exhaustion): there is no in-flight Request to drain, so
// this bypasses the reply channel entirely.
func (a *Afs) replyErr(action request.Action, userPointer, trace uint32, err error) {
	translated, osCode := afserr.Translate(err)
	a.bus.Reply(Reply{Action: action, UserPointer: userPointer, Trace: trace, Err: translated, OSErrorCode: osCode})
}

func (a *Afs) effectiveOpenFlags(sig OpenSignal) request.OpenFlag {
	flags := request.OpenFlag(sig.FileFlags)
	if a.cfg.UseOSync {
		flags |= request.Sync_
	}
	return flags
}

func (a *Afs) doOpen(sig OpenSignal) {
	path, err := filename.Render(sig.Spec, a.baseTable, filename.Options{})
	if err != nil {
		a.replyErr(request.Open, sig.UserPointer, sig.Trace, err)
		return
	}

	f, err := a.acquireWorker()
	if err != nil {
		a.replyErr(request.Open, sig.UserPointer, sig.Trace, err)
		return
	}

	autoSync := sig.AutoSyncSize
	if a.cfg.AutoSyncFreqOverride != 0 {
		autoSync = a.cfg.AutoSyncFreqOverride
	}

	req := a.reqPool.Get()
	req.Action = request.Open
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = f
	req.Open = request.OpenParams{
		Flags:        a.effectiveOpenFlags(sig),
		PageSize:     sig.PageSize,
		FileSize:     sig.FileSize,
		AutoSyncSize: autoSync,
		Path:         path.Path,
		BaseDir:      a.baseTable.Resolve(sig.Spec.Base),
		DoBind:       true,
		Direct:       a.cfg.UseODirect,
		UnlinkFirst:  a.cfg.UnlinkOnCreate,
	}
	a.submitBound(f, req)
}

func (a *Afs) findOpen(h openfiles.Handle, action request.Action, userPointer, trace uint32) (*worker.OpenFile, bool) {
	f, ok := a.registry.Find(h)
	if !ok {
		a.replyErr(action, userPointer, trace, errors.E(errors.InvalidParameters, "afs: file handle is not open"))
		return nil, false
	}
	return f.(*worker.OpenFile), true
}

func (a *Afs) doClose(sig CloseSignal) {
	wf, ok := a.findOpen(sig.FilePointer, request.Close, sig.UserPointer, sig.Trace)
	if !ok {
		return
	}
	req := a.reqPool.Get()
	req.Action = request.Close
	if sig.RemoveOnClose {
		req.Action = request.CloseRemove
	}
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = wf
	req.FilePointer = sig.FilePointer
	a.submitBound(wf, req)
}

func (a *Afs) doRead(sig ReadSignal) {
	wf, ok := a.findOpen(sig.FilePointer, request.Read, sig.UserPointer, sig.Trace)
	if !ok {
		return
	}
	pages, err := DecodePages(sig.Pages, a.pages)
	if err != nil {
		a.replyErr(request.Read, sig.UserPointer, sig.Trace, err)
		return
	}
	action := request.Read
	switch {
	case sig.Vectored:
		action = request.Readv
	case sig.Partial:
		action = request.ReadPartial
	}
	req := a.reqPool.Get()
	req.Action = action
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = wf
	req.FilePointer = sig.FilePointer
	req.ReadWrite = request.ReadWriteParams{Pages: pages, NumberOfPages: uint32(len(pages))}
	a.submitBound(wf, req)
}

func (a *Afs) doWrite(sig WriteSignal) {
	wf, ok := a.findOpen(sig.FilePointer, request.Write, sig.UserPointer, sig.Trace)
	if !ok {
		return
	}
	pages, err := DecodePages(sig.Pages, a.pages)
	if err != nil {
		a.replyErr(request.Write, sig.UserPointer, sig.Trace, err)
		return
	}
	var action request.Action
	switch {
	case sig.Vectored && sig.Sync:
		action = request.WritevSync
	case sig.Vectored:
		action = request.Writev
	case sig.Sync:
		action = request.WriteSync
	default:
		action = request.Write
	}
	req := a.reqPool.Get()
	req.Action = action
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = wf
	req.FilePointer = sig.FilePointer
	req.ReadWrite = request.ReadWriteParams{Pages: pages, NumberOfPages: uint32(len(pages))}
	a.submitBound(wf, req)
}

func (a *Afs) doSync(sig SyncSignal) {
	wf, ok := a.findOpen(sig.FilePointer, request.Sync, sig.UserPointer, sig.Trace)
	if !ok {
		return
	}
	req := a.reqPool.Get()
	req.Action = request.Sync
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = wf
	req.FilePointer = sig.FilePointer
	a.submitBound(wf, req)
}

func (a *Afs) doAppend(sig AppendSignal) {
	wf, ok := a.findOpen(sig.FilePointer, request.Append, sig.UserPointer, sig.Trace)
	if !ok {
		return
	}
	buf, err := a.pages.Resolve(sig.MemIndex)
	if err != nil {
		a.replyErr(request.Append, sig.UserPointer, sig.Trace, err)
		return
	}
	size := sig.Size
	if size <= 0 || size > len(buf) {
		size = len(buf)
	}
	action := request.Append
	if sig.Synch {
		action = request.AppendSynch
	}
	req := a.reqPool.Get()
	req.Action = action
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.File = wf
	req.FilePointer = sig.FilePointer
	req.Append = request.AppendParams{Buf: buf, Size: size}
	a.submitBound(wf, req)
}

func (a *Afs) doRemove(sig RemoveSignal) {
	path, err := filename.Render(sig.Spec, a.baseTable, filename.Options{IsDirectory: sig.Directory})
	if err != nil {
		a.replyErr(request.Rmrf, sig.UserPointer, sig.Trace, err)
		return
	}
	req := a.reqPool.Get()
	req.Action = request.Rmrf
	req.UserRef = sig.UserRef
	req.UserPointer = sig.UserPointer
	req.Trace = sig.Trace
	req.Rmrf = request.RmrfParams{Path: path.Path, Directory: sig.Directory, OwnDirectory: sig.OwnDirectory}
	a.runPooled(req)
}

func (a *Afs) doSuspend(sig SuspendSignal) {
	f, ok := a.registry.Find(sig.FilePointer)
	if !ok {
		return
	}
	wf := f.(*worker.OpenFile)
	req := a.reqPool.Get()
	req.Action = request.Suspend
	req.File = wf
	req.FilePointer = sig.FilePointer
	req.Suspend = request.SuspendParams{Milliseconds: sig.Milliseconds}
	a.submitBound(wf, req)
}

func (a *Afs) doAllocMem(sig AllocMemSignal) {
	req := a.reqPool.Get()
	req.Action = request.AllocMem
	req.UserRef = sig.SenderRef
	req.UserPointer = sig.SenderData
	req.Alloc = request.AllocParams{RequestInfo: sig.RequestInfo}
	a.runPooled(req)
}

func (a *Afs) doBuildIndex(sig BuildIndexSignal) {
	buf, err := a.pageAlloc.AllocPages(sig.BufferSize)
	if err != nil {
		a.replyErr(request.BuildIndex, sig.SenderData, 0, err)
		return
	}
	req := a.reqPool.Get()
	req.Action = request.BuildIndex
	req.UserRef = sig.SenderRef
	req.UserPointer = sig.SenderData
	req.BuildIndex = request.BuildIndexParams{Buffer: buf, Fn: sig.Fn}
	a.runPooled(req)
}
