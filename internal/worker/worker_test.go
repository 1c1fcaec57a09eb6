package worker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/internal/memchan"
	"github.com/dbkernel/ndbfs/internal/platform"
	"github.com/dbkernel/ndbfs/internal/request"
	"github.com/dbkernel/ndbfs/internal/worker"
)

// awaitReply polls the reply channel rather than blocking on
// ReadChannel: the worker loop delivers replies via
// WriteChannelNoSignal, so a caller already parked in ReadChannel's
// cond.Wait before the write happens would never be woken.
func awaitReply(t *testing.T, reply *memchan.Channel[*request.Request]) *request.Request {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if req, ok := reply.TryReadChannel(); ok {
			return req
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for reply")
	return nil
}

func newTestFile(t *testing.T) (*worker.OpenFile, *memchan.Channel[*request.Request]) {
	t.Helper()
	reply := memchan.New[*request.Request]()
	f := worker.New(1, platform.NewFS(), reply, nil)
	t.Cleanup(func() {
		req := &request.Request{Action: request.End}
		f.Submit(req)
		awaitReply(t, reply)
	})
	return f, reply
}

func TestOpenWriteSyncReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "T0", "F0", "S0P0.Data")

	f, reply := newTestFile(t)

	openReq := &request.Request{
		Action: request.Open,
		Open: request.OpenParams{
			Flags:   request.Create | request.ReadWrite,
			Path:    path,
			BaseDir: dir,
			DoBind:  true,
		},
	}
	f.Submit(openReq)
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)
	assert.Equal(t, uint16(1), got.FilePointerOut)

	payload := []byte("hello ndbfs")
	writeReq := &request.Request{
		Action: request.WriteSync,
		ReadWrite: request.ReadWriteParams{
			Pages: []request.Page{{Buf: payload, Size: len(payload), Offset: 0}},
		},
	}
	f.Submit(writeReq)
	got = awaitReply(t, reply)
	require.NoError(t, got.Error)

	readBuf := make([]byte, len(payload))
	readReq := &request.Request{
		Action: request.Read,
		ReadWrite: request.ReadWriteParams{
			Pages: []request.Page{{Buf: readBuf, Size: len(readBuf), Offset: 0}},
		},
	}
	f.Submit(readReq)
	got = awaitReply(t, reply)
	require.NoError(t, got.Error)
	assert.Equal(t, payload, readBuf)

	closeReq := &request.Request{Action: request.Close}
	f.Submit(closeReq)
	got = awaitReply(t, reply)
	require.NoError(t, got.Error)
}

func TestOpenCreatesMissingDirectoriesOnENOENT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DBTUP", "T3", "F1", "S0P0.Data")

	f, reply := newTestFile(t)
	req := &request.Request{
		Action: request.Open,
		Open: request.OpenParams{
			Flags:   request.Create | request.ReadWrite,
			Path:    path,
			BaseDir: dir,
		},
	}
	f.Submit(req)
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReadPartialReportsShortRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.Data")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f, reply := newTestFile(t)
	openReq := &request.Request{
		Action: request.Open,
		Open:   request.OpenParams{Flags: request.ReadOnly, Path: path, BaseDir: dir},
	}
	f.Submit(openReq)
	awaitReply(t, reply)

	buf := make([]byte, 10)
	req := &request.Request{
		Action: request.ReadPartial,
		ReadWrite: request.ReadWriteParams{
			Pages: []request.Page{{Buf: buf, Size: len(buf), Offset: 0}},
		},
	}
	f.Submit(req)
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)
	assert.Equal(t, 3, got.BytesRead)
}

func TestFullReadPastEOFIsReadUnderflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.Data")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f, reply := newTestFile(t)
	f.Submit(&request.Request{
		Action: request.Open,
		Open:   request.OpenParams{Flags: request.ReadOnly, Path: path, BaseDir: dir},
	})
	awaitReply(t, reply)

	buf := make([]byte, 10)
	f.Submit(&request.Request{
		Action: request.Read,
		ReadWrite: request.ReadWriteParams{
			Pages: []request.Page{{Buf: buf, Size: len(buf), Offset: 0}},
		},
	})
	got := awaitReply(t, reply)
	require.Error(t, got.Error)
}

func TestAppendAdvancesToEndOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.FragLog")

	f, reply := newTestFile(t)
	f.Submit(&request.Request{
		Action: request.Open,
		Open: request.OpenParams{
			Flags:   request.Create | request.ReadWrite,
			Path:    path,
			BaseDir: dir,
		},
	})
	awaitReply(t, reply)

	f.Submit(&request.Request{
		Action: request.AppendSynch,
		Append: request.AppendParams{Buf: []byte("first "), Size: len("first ")},
	})
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)
	assert.Equal(t, len("first "), got.BytesWritten)

	f.Submit(&request.Request{
		Action: request.AppendSynch,
		Append: request.AppendParams{Buf: []byte("second"), Size: len("second")},
	})
	awaitReply(t, reply)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(data))
}

func TestRmrfDirectoryRemovesChildrenAndSelf(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "BACKUP-1")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.Data"), []byte("x"), 0644))

	f, reply := newTestFile(t)
	f.Submit(&request.Request{
		Action: request.Rmrf,
		Rmrf:   request.RmrfParams{Path: sub, Directory: true, OwnDirectory: true},
	})
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)

	_, err := os.Stat(sub)
	assert.True(t, os.IsNotExist(err))
}

func TestAllocMemDelegatesToConfiguredAllocator(t *testing.T) {
	reply := memchan.New[*request.Request]()
	f := worker.New(1, platform.NewFS(), reply, nil)
	defer func() {
		f.Submit(&request.Request{Action: request.End})
		awaitReply(t, reply)
	}()

	f.Submit(&request.Request{
		Action: request.AllocMem,
		Alloc:  request.AllocParams{RequestInfo: 4096},
	})
	got := awaitReply(t, reply)
	require.NoError(t, got.Error)
	assert.Equal(t, uint32(4096), got.Alloc.BytesOut)
}

func TestEphemeralDispatchRunsSynchronouslyWithNoGoroutine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "standalone.Data")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	f := worker.NewEphemeral(platform.NewFS(), nil)
	req := &request.Request{
		Action: request.Rmrf,
		Rmrf:   request.RmrfParams{Path: path},
	}
	stop := f.Dispatch(req)
	assert.False(t, stop)
	require.NoError(t, req.Error)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
