package openfiles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/openfiles"
)

type fakeFile struct {
	handle openfiles.Handle
	path   string
}

func (f fakeFile) Handle() openfiles.Handle { return f.handle }
func (f fakeFile) Path() string             { return f.path }

func TestRegistryInsertFindErase(t *testing.T) {
	r := openfiles.NewRegistry()
	f := fakeFile{handle: 1, path: "/data/T0F0/S0P0.Data"}
	require.NoError(t, r.Insert(f))

	got, ok := r.Find(1)
	require.True(t, ok)
	assert.Equal(t, f, got)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Erase(1))
	_, ok = r.Find(1)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRejectsDuplicatePath(t *testing.T) {
	r := openfiles.NewRegistry()
	require.NoError(t, r.Insert(fakeFile{handle: 1, path: "/data/same"}))
	err := r.Insert(fakeFile{handle: 2, path: "/data/same"})
	require.Error(t, err)
}

func TestRegistryEraseOfUnregisteredHandleIsFatal(t *testing.T) {
	r := openfiles.NewRegistry()
	err := r.Erase(5)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestIdlePoolPushPop(t *testing.T) {
	p := openfiles.NewIdlePool()
	assert.Equal(t, 0, p.Len())
	p.Push(fakeFile{handle: 1})
	p.Push(fakeFile{handle: 2})
	assert.Equal(t, 2, p.Len())

	f, ok := p.Pop()
	require.True(t, ok)
	assert.Equal(t, openfiles.Handle(2), f.Handle())
	assert.Equal(t, 1, p.Len())
}

func TestIdlePoolPopOnEmpty(t *testing.T) {
	p := openfiles.NewIdlePool()
	_, ok := p.Pop()
	assert.False(t, ok)
}

func TestAllocatorSkipsLiveHandlesAndWraps(t *testing.T) {
	var a openfiles.Allocator
	live := map[openfiles.Handle]bool{}
	isLive := func(h openfiles.Handle) bool { return live[h] }

	h1, err := a.Next(isLive)
	require.NoError(t, err)
	live[h1] = true

	h2, err := a.Next(isLive)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	live[h2] = true

	// Free h1; the allocator should still move forward rather than
	// immediately reissuing it, since allocation walks from the last
	// issued handle.
	delete(live, h1)
	h3, err := a.Next(isLive)
	require.NoError(t, err)
	assert.NotEqual(t, h2, h3)
	assert.NotEqual(t, h1, h3)

	// With every handle above the last issued one live, the probe wraps
	// around past the top of the space to handle 0.
	var w openfiles.Allocator
	h, err := w.Next(func(h openfiles.Handle) bool { return h != 0 })
	require.NoError(t, err)
	assert.Equal(t, openfiles.Handle(0), h)
}

func TestAllocatorExhaustionIsFatal(t *testing.T) {
	var a openfiles.Allocator
	_, err := a.Next(func(openfiles.Handle) bool { return true })
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
