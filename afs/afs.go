package afs

import (
	"expvar"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dbkernel/ndbfs/afsconfig"
	"github.com/dbkernel/ndbfs/internal/filename"
	"github.com/dbkernel/ndbfs/internal/memchan"
	"github.com/dbkernel/ndbfs/internal/openfiles"
	"github.com/dbkernel/ndbfs/internal/platform"
	"github.com/dbkernel/ndbfs/internal/pool"
	"github.com/dbkernel/ndbfs/internal/request"
	"github.com/dbkernel/ndbfs/internal/worker"
)

// metrics is the process-wide counter map (spec §10.4). Per-instance
// values are published under keys qualified by NodeID, so multiple
// Afs instances in one process (tests, mainly) don't collide on a
// single expvar name.
var metrics = expvar.NewMap("ndbfs_afs")

// Afs is the block described by the source's Ndbfs: the reactor that
// turns inbound filesystem signals into Requests against bound or
// pooled workers, and drains their replies back to the bus (spec
// §4.5, §4.6). Every field below except the atomic counters and the
// ingress/done channels is touched only by the run goroutine.
type Afs struct {
	cfg       afsconfig.Config
	fs        platform.FS
	baseTable filename.Table
	pages     PageResolver
	pageAlloc worker.PageAllocator
	bus       Bus

	reqPool  *request.Pool
	registry *openfiles.Registry
	idle     *openfiles.IdlePool
	alloc    openfiles.Allocator
	workers  map[openfiles.Handle]*worker.OpenFile

	reply *memchan.Channel[*request.Request]

	// pooled gates the pool-of-unbound-workers path: AllocMem,
	// BuildIndex, and Rmrf (spec §4.7, scoped per the Open Question
	// decision in DESIGN.md).
	pooled *pool.BoundedGroup

	ingress chan signalEnvelope
	done    chan struct{}

	inFlight int64 // atomic
}

// New constructs an Afs block, pre-warming its idle pool to
// cfg.InitialNoOfOpenFiles bound workers (spec §4.7), and starts its
// reactor goroutine. pages is the page-pool collaborator used to
// resolve read/write page descriptors; pageAlloc backs AllocMem and
// the Open{INIT}/BuildIndex scratch buffers. A nil pageAlloc uses the
// heap-backed default.
func New(cfg afsconfig.Config, fs platform.FS, baseTable filename.Table, pages PageResolver, pageAlloc worker.PageAllocator, bus Bus) (*Afs, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pageAlloc == nil {
		pageAlloc = worker.DefaultPageAllocator
	}

	a := &Afs{
		cfg:       cfg,
		fs:        fs,
		baseTable: baseTable,
		pages:     pages,
		pageAlloc: pageAlloc,
		bus:       bus,
		reqPool:   request.NewPool(),
		registry:  openfiles.NewRegistry(),
		idle:      openfiles.NewIdlePool(),
		workers:   make(map[openfiles.Handle]*worker.OpenFile),
		reply:     memchan.New[*request.Request](),
		ingress:   make(chan signalEnvelope, 64),
		done:      make(chan struct{}),
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		// Bound mode still runs AllocMem/BuildIndex/Rmrf off the
		// pooled path; cap it to one concurrent op so those requests
		// don't contend with each other for the page allocator.
		poolSize = 1
	}
	a.pooled = pool.NewBoundedGroup(poolSize)

	for i := 0; i < cfg.InitialNoOfOpenFiles; i++ {
		handle, err := a.alloc.Next(a.isLive)
		if err != nil {
			return nil, err
		}
		f := worker.New(handle, fs, a.reply, pageAlloc)
		a.workers[handle] = f
		a.idle.Push(f)
	}

	a.publishMetrics()
	go a.run()
	return a, nil
}

func (a *Afs) isLive(h openfiles.Handle) bool {
	_, ok := a.workers[h]
	return ok
}

// postEndToAllWorkers enqueues an End request to every bound worker
// ever spawned (idle or open), matching the source's node-shutdown
// behavior (spec §4.3): each worker finishes whatever is already
// queued ahead of End, closes its file if still open, and exits. Their
// final replies land on a.reply after the reactor has already stopped
// draining it; that's fine, the Requests involved are never returned
// to the pool and the node is exiting regardless.
func (a *Afs) postEndToAllWorkers() {
	for _, w := range a.workers {
		req := a.reqPool.Get()
		req.Action = request.End
		w.Submit(req)
	}
}

func (a *Afs) publishMetrics() {
	prefix := fmt.Sprintf("node%d_", a.cfg.NodeID)
	metrics.Set(prefix+"open_files", expvar.Func(func() interface{} { return a.registry.Len() }))
	metrics.Set(prefix+"idle_files", expvar.Func(func() interface{} { return a.idle.Len() }))
	metrics.Set(prefix+"requests_in_flight", expvar.Func(func() interface{} { return atomic.LoadInt64(&a.inFlight) }))
	metrics.Set(prefix+"reply_queue_depth", expvar.Func(func() interface{} { return a.reply.Len() }))
}

// signalKind discriminates the union stored in signalEnvelope.
type signalKind int

const (
	sigOpen signalKind = iota
	sigClose
	sigRead
	sigWrite
	sigSync
	sigAppend
	sigRemove
	sigSuspend
	sigAllocMem
	sigBuildIndex
	sigDump
	sigStop
)

// signalEnvelope carries exactly one populated payload field,
// selected by kind. It is the ingress channel's element type: a
// plain Go channel, not a MemoryChannel, since ingress delivery from
// the bus carries no signal/no-signal distinction (spec §4.6 reserves
// that distinction for the worker reply path).
type signalEnvelope struct {
	kind signalKind

	open       OpenSignal
	close      CloseSignal
	read       ReadSignal
	write      WriteSignal
	sync       SyncSignal
	append     AppendSignal
	remove     RemoveSignal
	suspend    SuspendSignal
	allocMem   AllocMemSignal
	buildIndex BuildIndexSignal
	dump       func()
}

// Open submits an open request (spec §6's FSOPENREQ).
func (a *Afs) Open(sig OpenSignal) { a.ingress <- signalEnvelope{kind: sigOpen, open: sig} }

// Close submits a close request (FSCLOSEREQ).
func (a *Afs) Close(sig CloseSignal) { a.ingress <- signalEnvelope{kind: sigClose, close: sig} }

// Read submits a read request (FSREADREQ).
func (a *Afs) Read(sig ReadSignal) { a.ingress <- signalEnvelope{kind: sigRead, read: sig} }

// Write submits a write request (FSWRITEREQ).
func (a *Afs) Write(sig WriteSignal) { a.ingress <- signalEnvelope{kind: sigWrite, write: sig} }

// Sync submits a sync request (FSSYNCREQ).
func (a *Afs) Sync(sig SyncSignal) { a.ingress <- signalEnvelope{kind: sigSync, sync: sig} }

// Append submits an append request (FSAPPENDREQ).
func (a *Afs) Append(sig AppendSignal) { a.ingress <- signalEnvelope{kind: sigAppend, append: sig} }

// Remove submits a remove/rmrf request (FSREMOVEREQ).
func (a *Afs) Remove(sig RemoveSignal) { a.ingress <- signalEnvelope{kind: sigRemove, remove: sig} }

// Suspend submits a suspend order (FSSUSPENDORD).
func (a *Afs) Suspend(sig SuspendSignal) { a.ingress <- signalEnvelope{kind: sigSuspend, suspend: sig} }

// AllocMem submits a memory allocation request (ALLOC_MEM_REQ).
func (a *Afs) AllocMem(sig AllocMemSignal) {
	a.ingress <- signalEnvelope{kind: sigAllocMem, allocMem: sig}
}

// BuildIndex submits an index-build request (BUILDINDXREQ).
func (a *Afs) BuildIndex(sig BuildIndexSignal) {
	a.ingress <- signalEnvelope{kind: sigBuildIndex, buildIndex: sig}
}

// Stop drains any in-flight signal and reply work and halts the
// reactor goroutine. It does not attempt to join outstanding bound
// worker goroutines; callers that need a clean shutdown should first
// quiesce callers of Open/Close/Read/... before calling Stop.
func (a *Afs) Stop() {
	a.ingress <- signalEnvelope{kind: sigStop}
	<-a.done
}

// run is the reactor: a select loop over inbound signals and a
// 10ms reply-drain tick (spec §4.6's polling cadence), with an
// opportunistic drain immediately after each handled signal so a
// bursty caller doesn't wait out the tick to see its own reply.
func (a *Afs) run() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.drainReplies()
		case env := <-a.ingress:
			if env.kind == sigStop {
				a.drainReplies()
				a.postEndToAllWorkers()
				close(a.done)
				return
			}
			a.handleSignal(env)
			a.drainReplies()
		}
	}
}
