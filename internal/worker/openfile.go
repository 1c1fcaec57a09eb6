// Package worker implements the AsyncFile/AsyncIoThread split (spec
// §4.3, §12): OpenFile holds a bound worker's persistent state across
// its idle/opening/open/closing lifecycle, and its loop method is the
// goroutine body that services the file's MemoryChannel.
package worker

import (
	"os"
	"sync"
	"time"

	"github.com/dbkernel/ndbfs/internal/memchan"
	"github.com/dbkernel/ndbfs/internal/platform"
	"github.com/dbkernel/ndbfs/internal/request"
)

// WriteBufferSize is the worker's staging buffer for multi-page
// writes (spec §5's resource budget).
const WriteBufferSize = 256 * 1024

// PageAllocator is the AFS block's collaborator for AllocMem requests
// and for the page buffer an Open{INIT} or BuildIndex request needs.
// It stands in for the database's page pool / memory manager, which
// spec §1 places out of scope and specifies only at this interface.
type PageAllocator interface {
	AllocPages(n int) ([]byte, error)
	ReleasePages(buf []byte)
}

// heapAllocator is the default PageAllocator: plain heap allocation.
// A node with a real page pool supplies its own implementation at
// Afs construction time.
type heapAllocator struct{}

func (heapAllocator) AllocPages(n int) ([]byte, error) { return make([]byte, n), nil }
func (heapAllocator) ReleasePages([]byte)               {}

// DefaultPageAllocator is the heap-backed PageAllocator used when none
// is configured.
var DefaultPageAllocator PageAllocator = heapAllocator{}

// OpenFile is the per-AsyncFile state record: present for the whole
// lifetime of a worker goroutine, across many idle/open/close cycles,
// and destroyed only when the block posts an End request at shutdown
// (spec §3's AsyncFile lifecycle).
type OpenFile struct {
	id uint16

	fs    platform.FS
	alloc PageAllocator

	inbox *memchan.Channel[*request.Request]
	reply *memchan.Channel[*request.Request]

	// startup handshake (spec §4.3): the block waits on startCond until
	// started is true, guaranteeing inbox exists before any request is
	// posted.
	startMu   sync.Mutex
	startCond *sync.Cond
	started   bool

	// doBind records the DoBind value of the most recent Open request,
	// readable through DoBind (spec §4.7). Nothing in the block consults
	// it: every OpenFile created by New keeps its own loop goroutine.
	doBind bool

	// mutable only from within Loop's goroutine after doStart:
	path         string
	baseDir      string
	file         platform.File
	writeBuf     []byte
	unsyncedSize int64
	implicitSync bool
	autoSyncFreq uint32
	open         bool
}

// New creates an OpenFile and spawns its worker goroutine, performing
// the startup handshake synchronously: New does not return until the
// worker has installed its inbound channel and allocated its write
// buffer (spec §4.3 steps 1-3).
func New(id uint16, fs platform.FS, reply *memchan.Channel[*request.Request], alloc PageAllocator) *OpenFile {
	if alloc == nil {
		alloc = DefaultPageAllocator
	}
	f := &OpenFile{id: id, fs: fs, alloc: alloc, reply: reply}
	f.startCond = sync.NewCond(&f.startMu)

	f.startMu.Lock()
	go f.doStart()
	for !f.started {
		f.startCond.Wait()
	}
	f.startMu.Unlock()
	return f
}

func (f *OpenFile) doStart() {
	f.startMu.Lock()
	f.inbox = memchan.New[*request.Request]()
	f.writeBuf = make([]byte, WriteBufferSize)
	f.started = true
	f.startMu.Unlock()
	f.startCond.Signal()

	f.loop()
}

// NewEphemeral returns an OpenFile with no backing goroutine or
// channel, for the pooled (unbound-worker) path: a request is
// dispatched synchronously on the caller's own goroutine via
// Dispatch, rather than handed off through an inbox (spec §4.7's
// pool-of-unbound-workers mode, scoped here to the request types that
// are naturally one-shot: AllocMem, BuildIndex, and Rmrf).
func NewEphemeral(fs platform.FS, alloc PageAllocator) *OpenFile {
	if alloc == nil {
		alloc = DefaultPageAllocator
	}
	return &OpenFile{fs: fs, alloc: alloc}
}

// Dispatch runs req's action synchronously to completion, writing its
// outcome into req. It is the pooled-mode counterpart of the bound
// worker's inbox-driven loop.
func (f *OpenFile) Dispatch(req *request.Request) (stop bool) {
	return f.dispatch(req)
}

// Handle returns the file's FileHandle, satisfying openfiles.File.
func (f *OpenFile) Handle() uint16 { return f.id }

// Path returns the path this OpenFile is currently bound to, or "" if
// idle. Satisfies openfiles.File.
func (f *OpenFile) Path() string { return f.path }

// DoBind reports the binding mode most recently requested for this
// file.
func (f *OpenFile) DoBind() bool { return f.doBind }

// Submit enqueues req on this file's inbox channel for processing by
// its worker goroutine (spec §4.5 step 5: "hand the Request to the
// file's channel").
func (f *OpenFile) Submit(req *request.Request) {
	f.inbox.WriteChannel(req)
}

// loop is the worker goroutine body: read, dispatch, reply, repeat,
// until an End request (spec §4.3's main loop).
func (f *OpenFile) loop() {
	for {
		req, ok := f.inbox.ReadChannel()
		if !ok {
			return
		}
		stop := f.dispatch(req)
		f.reply.WriteChannelNoSignal(req)
		if stop {
			return
		}
	}
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}

func sleep(d time.Duration) { time.Sleep(d) }
