package worker

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/afserr"
	"github.com/dbkernel/ndbfs/internal/filename"
	"github.com/dbkernel/ndbfs/internal/platform"
	"github.com/dbkernel/ndbfs/internal/request"
)

// dispatch executes req's action and writes its outcome into req.
// It returns true if the worker goroutine should exit after replying
// (End, or Suspend{0}).
func (f *OpenFile) dispatch(req *request.Request) (stop bool) {
	switch req.Action {
	case request.Open:
		f.doBind = req.Open.DoBind
		f.handleOpen(req)
	case request.Close:
		f.handleClose(req, false)
	case request.CloseRemove:
		f.handleClose(req, true)
	case request.Read:
		f.handleRead(req, false)
	case request.ReadPartial:
		f.handleRead(req, true)
	case request.Readv:
		f.handleReadv(req)
	case request.Write:
		f.handleWrite(req, false)
	case request.Writev:
		f.handleWrite(req, false)
	case request.WriteSync:
		f.handleWrite(req, true)
	case request.WritevSync:
		f.handleWrite(req, true)
	case request.Sync:
		f.setErr(req, f.syncReq())
	case request.Append:
		f.handleAppend(req, false)
	case request.AppendSynch:
		f.handleAppend(req, true)
	case request.Rmrf:
		f.handleRmrf(req)
	case request.AllocMem:
		f.handleAllocMem(req)
	case request.BuildIndex:
		f.handleBuildIndex(req)
	case request.Suspend:
		stop = f.handleSuspend(req)
	case request.End:
		f.handleEnd(req)
		stop = true
	default:
		f.setErr(req, errors.E(errors.InvalidParameters, "unknown action"))
	}
	return stop
}

func (f *OpenFile) setErr(req *request.Request, err error) {
	if err == nil {
		req.Error = nil
		req.OSErrorCode = 0
		return
	}
	translated, osCode := afserr.Translate(err)
	req.Error = translated
	req.OSErrorCode = osCode
}

func (f *OpenFile) setLocalErr(req *request.Request, kind errors.Kind, msg string) {
	translated, osCode := afserr.Local(kind, msg)
	req.Error = translated
	req.OSErrorCode = osCode
}

// handleOpen implements Open with the retry-after-mkdir behavior (spec
// §4.3: "On ENOENT/PATH_NOT_FOUND during open with CREATE|CREATE_IF_NONE,
// the worker invokes createDirectories and retries once").
func (f *OpenFile) handleOpen(req *request.Request) {
	p := req.Open
	nModes := 0
	for _, set := range []bool{p.Flags&request.ReadOnly != 0, p.Flags&request.WriteOnly != 0, p.Flags&request.ReadWrite != 0} {
		if set {
			nModes++
		}
	}
	if nModes != 1 {
		f.setLocalErr(req, errors.InvalidParameters, "open: exactly one access mode must be set")
		return
	}

	flags := platform.OpenFlags{
		Create:       p.Flags&request.Create != 0,
		CreateIfNone: p.Flags&request.CreateIfNone != 0,
		Truncate:     p.Flags&request.Truncate != 0,
		Append:       p.Flags&request.AppendMode != 0,
		Sync:         p.Flags&request.Sync_ != 0,
		ReadOnly:     p.Flags&request.ReadOnly != 0,
		WriteOnly:    p.Flags&request.WriteOnly != 0,
		ReadWrite:    p.Flags&request.ReadWrite != 0,
		Direct:       p.Direct,
	}

	if p.UnlinkFirst && flags.Create {
		if err := f.fs.Remove(p.Path); err != nil && !isNotExist(err) {
			f.setErr(req, err)
			return
		}
	}

	file, err := f.fs.Open(p.Path, flags, 0644)
	if err != nil && isNotExist(err) && (flags.Create || flags.CreateIfNone) {
		if mkErr := createDirectories(f.fs, p.BaseDir, p.Path); mkErr == nil {
			file, err = f.fs.Open(p.Path, flags, 0644)
		}
	}
	if err != nil {
		f.setErr(req, err)
		return
	}

	f.file = file
	f.path = p.Path
	f.baseDir = p.BaseDir
	f.open = true
	f.unsyncedSize = 0
	f.implicitSync = flags.Sync
	f.autoSyncFreq = p.AutoSyncSize

	if p.Flags&request.Init != 0 {
		if err := f.zeroFill(p.FileSize); err != nil {
			f.setErr(req, err)
			return
		}
	}

	req.FilePointerOut = f.id
	f.setErr(req, nil)
}

// zeroFill implements the INIT flag: zero-extend the file to size
// bytes via chunked writes (spec §4.3's "chunked zero writes" note).
func (f *OpenFile) zeroFill(size uint64) error {
	const chunk = 1 << 20
	buf := make([]byte, chunk)
	var off int64
	for uint64(off) < size {
		n := chunk
		if remaining := size - uint64(off); remaining < chunk {
			n = int(remaining)
		}
		if _, err := f.file.WriteAt(buf[:n], off); err != nil {
			return err
		}
		off += int64(n)
	}
	return nil
}

func createDirectories(fs platform.FS, baseDir, path string) error {
	for _, dir := range filename.Components(baseDir, path) {
		if err := fs.Mkdir(dir, 0755); err != nil && !os.IsExist(err) {
			return err
		}
	}
	return nil
}

func (f *OpenFile) handleClose(req *request.Request, remove bool) {
	if !f.open {
		f.setErr(req, nil)
		return
	}
	if err := f.syncReq(); err != nil {
		f.setErr(req, err)
		return
	}
	if err := f.file.Close(); err != nil {
		f.setErr(req, err)
		return
	}
	path := f.path
	f.open = false
	f.file = nil
	if remove {
		if err := f.fs.Remove(path); err != nil && !isNotExist(err) {
			f.setErr(req, err)
			return
		}
	}
	f.setErr(req, nil)
}

func (f *OpenFile) handleRead(req *request.Request, partial bool) {
	rw := &req.ReadWrite
	var total int
	for i := range rw.Pages {
		page := &rw.Pages[i]
		n, err := readBuffer(f.file, page.Buf[:page.Size], page.Offset)
		total += n
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if partial {
					req.BytesRead = total
					f.setErr(req, nil)
					return
				}
				f.setErr(req, errors.E(errors.ReadUnderflow, "short read before completion"))
				return
			}
			f.setErr(req, err)
			return
		}
	}
	req.BytesRead = total
	f.setErr(req, nil)
}

// readBuffer loops until size bytes are read or an error occurs,
// matching spec §4.3's readBuffer: a short read that isn't EOF is
// retried; a short read at EOF surfaces as io.ErrUnexpectedEOF so
// callers can distinguish it from a hard error.
func readBuffer(file platform.File, buf []byte, offset int64) (int, error) {
	var read int
	for read < len(buf) {
		n, err := file.ReadAt(buf[read:], offset+int64(read))
		read += n
		if err != nil {
			if err == io.EOF {
				// Loop condition guarantees read < len(buf) here.
				return read, io.ErrUnexpectedEOF
			}
			return read, err
		}
		if n == 0 {
			return read, io.ErrUnexpectedEOF
		}
	}
	return read, nil
}

func (f *OpenFile) handleReadv(req *request.Request) {
	rw := &req.ReadWrite
	if len(rw.Pages) == 0 {
		f.setErr(req, nil)
		return
	}
	bufs := make([][]byte, len(rw.Pages))
	for i, p := range rw.Pages {
		bufs[i] = p.Buf[:p.Size]
	}
	n, err := f.file.Readv(bufs, rw.Pages[0].Offset)
	if err == platform.ErrReadvUnsupported {
		f.handleRead(req, false)
		return
	}
	if err != nil {
		f.setErr(req, err)
		return
	}
	req.BytesRead = n
	f.setErr(req, nil)
}

func (f *OpenFile) handleWrite(req *request.Request, sync bool) {
	if err := f.writeReq(&req.ReadWrite); err != nil {
		f.setErr(req, err)
		return
	}
	if sync {
		if err := f.syncReq(); err != nil {
			f.setErr(req, err)
			return
		}
	}
	f.setErr(req, nil)
}

// writeReq implements spec §4.3's writeReq: for a single page, write
// directly; for multiple pages, verify the pages are offset-contiguous
// and stage them into the worker's write buffer to issue one write,
// splitting across multiple writes when the total exceeds the buffer.
func (f *OpenFile) writeReq(rw *request.ReadWriteParams) error {
	pages := rw.Pages
	if len(pages) == 0 {
		return nil
	}
	if len(pages) == 1 {
		return f.writeBuffer(pages[0].Buf[:pages[0].Size], pages[0].Offset)
	}

	sorted := make([]request.Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.Offset+int64(prev.Size) != sorted[i].Offset {
			return errors.E(errors.InvalidParameters, "write: pages are not offset-contiguous")
		}
	}

	startOffset := sorted[0].Offset
	var staged int
	flush := func() error {
		if staged == 0 {
			return nil
		}
		if err := f.writeBuffer(f.writeBuf[:staged], startOffset); err != nil {
			return err
		}
		startOffset += int64(staged)
		staged = 0
		return nil
	}
	for _, p := range sorted {
		if staged+p.Size > len(f.writeBuf) {
			if err := flush(); err != nil {
				return err
			}
			startOffset = p.Offset
		}
		copy(f.writeBuf[staged:], p.Buf[:p.Size])
		staged += p.Size
	}
	return flush()
}

// writeBuffer writes the full buffer at offset, tracking unsynced
// bytes for auto-sync bookkeeping (spec §4.3).
func (f *OpenFile) writeBuffer(buf []byte, offset int64) error {
	var written int
	for written < len(buf) {
		n, err := f.file.WriteAt(buf[written:], offset+int64(written))
		written += n
		if err != nil {
			return err
		}
	}
	f.unsyncedSize += int64(len(buf))
	return nil
}

func (f *OpenFile) syncReq() error {
	if f.implicitSync || f.unsyncedSize == 0 {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return err
	}
	f.unsyncedSize = 0
	return nil
}

// handleAppend implements spec §4.3's appendReq: write at end of file,
// auto-syncing once the unsynced byte count crosses the configured
// frequency.
func (f *OpenFile) handleAppend(req *request.Request, synch bool) {
	info, err := f.file.Stat()
	if err != nil {
		f.setErr(req, err)
		return
	}
	off := info.Size()
	ap := req.Append
	if err := f.writeBuffer(ap.Buf[:ap.Size], off); err != nil {
		f.setErr(req, err)
		return
	}
	req.BytesWritten = ap.Size
	if synch {
		if err := f.syncReq(); err != nil {
			f.setErr(req, err)
			return
		}
	} else if f.autoSyncFreq != 0 && f.unsyncedSize > int64(f.autoSyncFreq) {
		if err := f.syncReq(); err != nil {
			f.setErr(req, err)
			return
		}
	}
	f.setErr(req, nil)
}

// handleRmrf implements spec §4.3's rmrfReq: a non-directory request
// unlinks one file, ignoring not-found; a directory request recurses
// into children before optionally removing the top directory.
func (f *OpenFile) handleRmrf(req *request.Request) {
	p := req.Rmrf
	if !p.Directory {
		if err := f.fs.Remove(p.Path); err != nil && !isNotExist(err) {
			f.setErr(req, err)
			return
		}
		f.setErr(req, nil)
		return
	}
	if err := removeTree(f.fs, p.Path, p.OwnDirectory); err != nil {
		f.setErr(req, err)
		return
	}
	f.setErr(req, nil)
}

func removeTree(fs platform.FS, dir string, removeSelf bool) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		child := dir + filename.Separator + entry.Name()
		if entry.IsDir() {
			if err := removeTree(fs, child, true); err != nil {
				return err
			}
			continue
		}
		if err := fs.Remove(child); err != nil && !isNotExist(err) {
			return err
		}
	}
	if removeSelf {
		if err := fs.Rmdir(dir); err != nil && !isNotExist(err) {
			return err
		}
	}
	return nil
}

// handleAllocMem implements spec §4.3's allocMemReq: a pure memory
// operation with no filesystem I/O, delegated to the configured
// PageAllocator (the database's page pool, out of scope per spec §1).
func (f *OpenFile) handleAllocMem(req *request.Request) {
	n := int(req.Alloc.RequestInfo)
	buf, err := f.alloc.AllocPages(n)
	if err != nil {
		f.setErr(req, err)
		return
	}
	req.Alloc.BytesOut = uint32(len(buf))
	f.setErr(req, nil)
}

// handleBuildIndex implements spec §4.3's buildIndxReq: a CPU-heavy
// caller-supplied function run on this worker goroutine, off the
// signal thread.
func (f *OpenFile) handleBuildIndex(req *request.Request) {
	if req.BuildIndex.Fn == nil {
		f.setLocalErr(req, errors.InvalidParameters, "buildindex: no function supplied")
		return
	}
	if err := req.BuildIndex.Fn(req.BuildIndex.Buffer); err != nil {
		f.setErr(req, err)
		return
	}
	f.setErr(req, nil)
}

// handleSuspend sleeps for the requested duration, or, when
// Milliseconds is zero, signals the worker goroutine to exit after
// replying, whether the worker is bound or pooled (spec §4.3, §5).
func (f *OpenFile) handleSuspend(req *request.Request) bool {
	ms := req.Suspend.Milliseconds
	f.setErr(req, nil)
	if ms == 0 {
		return true
	}
	sleep(time.Duration(ms) * time.Millisecond)
	return false
}

func (f *OpenFile) handleEnd(req *request.Request) {
	if f.open {
		_ = f.syncReq()
		_ = f.file.Close()
		f.open = false
		f.file = nil
	}
	f.writeBuf = nil
	f.setErr(req, nil)
}
