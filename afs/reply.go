package afs

import (
	"sync/atomic"

	"github.com/dbkernel/ndbfs/internal/request"
	"github.com/dbkernel/ndbfs/internal/worker"
	"github.com/dbkernel/ndbfs/log"
)

// drainReplies empties the shared reply channel, delivering each
// completed Request to the bus and retiring it to the pool. Called
// both on the 10ms tick and opportunistically right after handling an
// inbound signal (spec §4.6).
func (a *Afs) drainReplies() {
	for {
		req, ok := a.reply.TryReadChannel()
		if !ok {
			return
		}
		a.finish(req)
	}
}

func (a *Afs) finish(req *request.Request) {
	atomic.AddInt64(&a.inFlight, -1)

	r := Reply{
		Action:       req.Action,
		UserPointer:  req.UserPointer,
		Trace:        req.Trace,
		Err:          req.Error,
		OSErrorCode:  req.OSErrorCode,
		FilePointer:  req.FilePointerOut,
		BytesRead:    req.BytesRead,
		BytesWritten: req.BytesWritten,
	}

	skipReply := false
	switch req.Action {
	case request.Suspend:
		// FSSUSPENDORD is a one-way order in the source; there is no
		// corresponding CONF/REF to deliver.
		skipReply = true
	case request.Open:
		if wf, ok := req.File.(*worker.OpenFile); ok {
			if req.Error == nil {
				if err := a.registry.Insert(wf); err != nil {
					log.ErrorLog.Printf("afs: %v", err)
				}
				r.FilePointer = wf.Handle()
			} else {
				a.idle.Push(wf)
			}
		}
	case request.Close, request.CloseRemove:
		if wf, ok := req.File.(*worker.OpenFile); ok {
			if err := a.registry.Erase(wf.Handle()); err != nil {
				log.ErrorLog.Printf("afs: %v", err)
			}
			a.idle.Push(wf)
		}
	}

	if !skipReply {
		a.bus.Reply(r)
	}
	a.reqPool.Put(req)
}
