package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

func newTestSession(t *testing.T) (*Session, *bytes.Buffer, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	var out bytes.Buffer
	s := NewSession(storage.NewStorageManager(mem), &out, Options{Frames: 3, Strategy: bufferpool.FIFO})
	t.Cleanup(func() { _ = s.Close() })
	return s, &out, mem
}

func TestSession_CreateOpenShow(t *testing.T) {
	s, out, mem := newTestSession(t)

	require.NoError(t, s.ExecScript("create t.bin; open t.bin 2 lru; pin 0; pin 1; show"))

	exists, err := afero.Exists(mem, "t.bin")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Contains(t, out.String(), "opened t.bin: 2 frames, lru")
	assert.Contains(t, out.String(), "[0 1],[1 1]\n")
	assert.Equal(t, bufferpool.LRU, s.Pool().Strategy())
}

func TestSession_OpenDefaults(t *testing.T) {
	s, out, _ := newTestSession(t)

	require.NoError(t, s.ExecScript("create t.bin; open t.bin"))
	assert.Contains(t, out.String(), "3 frames, fifo")
	require.ErrorIs(t, s.Exec("open t.bin"), ErrPoolOpen)
}

func TestSession_WriteReadDump(t *testing.T) {
	s, out, _ := newTestSession(t)
	require.NoError(t, s.ExecScript("create t.bin; open t.bin; pin 2"))

	require.NoError(t, s.Exec("write 2   hello  buffer pool"))
	out.Reset()
	require.NoError(t, s.Exec("read 2"))
	assert.Equal(t, "\"hello  buffer pool\"\n", out.String())

	out.Reset()
	require.NoError(t, s.Exec("show"))
	assert.Equal(t, "[2x1],[-1 0],[-1 0]\n", out.String())

	out.Reset()
	require.NoError(t, s.Exec("dump 2"))
	assert.True(t, strings.HasPrefix(out.String(), "page 2 xxhash="))
	assert.Contains(t, out.String(), "hello")
}

func TestSession_WritePersistsAcrossShutdown(t *testing.T) {
	s, out, _ := newTestSession(t)

	require.NoError(t, s.ExecScript("create t.bin; open t.bin 1 clock; pin 0; write 0 persisted; unpin 0; shutdown"))
	assert.Contains(t, out.String(), "pool shut down")
	assert.Nil(t, s.Pool())

	out.Reset()
	require.NoError(t, s.ExecScript("open t.bin; pin 0; read 0"))
	assert.Contains(t, out.String(), "\"persisted\"\n")
}

func TestSession_ShutdownWhilePinned(t *testing.T) {
	s, out, _ := newTestSession(t)
	require.NoError(t, s.ExecScript("create t.bin; open t.bin; pin 0"))

	require.ErrorIs(t, s.Exec("shutdown"), bufferpool.ErrPinnedPagesInBuffer)
	require.NotNil(t, s.Pool())

	out.Reset()
	require.NoError(t, s.Exec("show"))
	assert.Equal(t, "[0 1],[-1 0],[-1 0]\n", out.String())

	require.NoError(t, s.ExecScript("unpin 0; shutdown"))
}

func TestSession_PoolFullAndUnpinErrors(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.ExecScript("create t.bin; open t.bin 1 fifo; pin 0"))

	require.ErrorIs(t, s.Exec("pin 1"), bufferpool.ErrBufferPoolFull)
	require.ErrorIs(t, s.Exec("unpin 1"), ErrNotHeld)
	require.ErrorIs(t, s.Exec("dirty 1"), bufferpool.ErrUnknownPage)
	require.ErrorIs(t, s.Exec("read 1"), ErrNotHeld)

	require.NoError(t, s.Exec("unpin 0"))
	require.ErrorIs(t, s.Exec("unpin 0"), ErrNotHeld)
	require.NoError(t, s.Exec("pin 1"))
}

func TestSession_StatsAndInfo(t *testing.T) {
	s, out, _ := newTestSession(t)
	require.NoError(t, s.ExecScript("create t.bin; open t.bin 2 lfu; pin 0; unpin 0; pin 0; unpin 0; pin 3; dirty 3; force 3; unpin 3; flush"))

	out.Reset()
	require.NoError(t, s.Exec("stats"))
	assert.Contains(t, out.String(), "requests 3  hits 1  misses 2")
	assert.Contains(t, out.String(), "write io 1")

	out.Reset()
	require.NoError(t, s.Exec("info"))
	assert.Contains(t, out.String(), "file t.bin: 4 pages (16 KiB)")
	assert.Contains(t, out.String(), "pool: 2 frames (8.0 KiB), strategy lfu")
}

func TestSession_Errors(t *testing.T) {
	s, _, _ := newTestSession(t)

	require.ErrorIs(t, s.Exec("pin 0"), ErrNoPool)
	require.ErrorIs(t, s.Exec("show"), ErrNoPool)
	require.ErrorIs(t, s.Exec("frobnicate"), ErrUnknownCommand)
	require.ErrorIs(t, s.Exec("pin"), ErrUsage)
	require.ErrorIs(t, s.Exec("pin x"), ErrUsage)
	require.ErrorIs(t, s.Exec("write 1"), ErrUsage)
	require.ErrorIs(t, s.Exec("open a b c d"), ErrUsage)
	require.ErrorIs(t, s.Exec("open missing.bin"), storage.ErrFileNotFound)
	require.ErrorIs(t, s.Exec("destroy missing.bin"), storage.ErrFileNotFound)

	require.NoError(t, s.Exec("create t.bin"))
	require.ErrorIs(t, s.Exec("open t.bin 0"), bufferpool.ErrInvalidFrameCount)
	require.ErrorIs(t, s.Exec("open t.bin 2 lru-k"), bufferpool.ErrStrategyNotImplemented)
	require.ErrorIs(t, s.Exec("open t.bin 2 mru"), bufferpool.ErrUnknownStrategy)

	// ExecScript stops at the first failure.
	err := s.ExecScript("open t.bin; pin 0; bogus; pin 1")
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, []int{0, bufferpool.NoPage, bufferpool.NoPage}, s.Pool().FrameContents())
}

func TestSession_CloseReleasesPins(t *testing.T) {
	s, _, mem := newTestSession(t)
	require.NoError(t, s.ExecScript("create t.bin; open t.bin; pin 0; pin 0; write 0 bye"))

	require.NoError(t, s.Close())
	assert.Nil(t, s.Pool())

	raw, err := afero.ReadFile(mem, "t.bin")
	require.NoError(t, err)
	assert.Equal(t, "bye", string(raw[:3]))
}
