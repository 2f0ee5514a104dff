package workload

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

func testConfig() Config {
	return Config{Workers: 4, Ops: 2000, Pages: 64, Seed: 7, WriteRatio: 0.3}
}

func TestTrace_Reproducible(t *testing.T) {
	a, err := Trace(testConfig())
	require.NoError(t, err)
	b, err := Trace(testConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 2000)

	other := testConfig()
	other.Seed = 8
	c, err := Trace(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestTrace_SkewedAndInRange(t *testing.T) {
	trace, err := Trace(testConfig())
	require.NoError(t, err)

	counts := map[int]int{}
	writes := 0
	for _, a := range trace {
		require.GreaterOrEqual(t, a.Page, 0)
		require.Less(t, a.Page, 64)
		counts[a.Page]++
		if a.Write {
			writes++
		}
	}
	// Page 0 is the hottest under a Zipf distribution.
	for pg, n := range counts {
		assert.LessOrEqual(t, n, counts[0], "page %d", pg)
	}
	assert.InDelta(t, 0.3, float64(writes)/2000, 0.05)
}

func TestTrace_SinglePageAndValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Pages = 1
	trace, err := Trace(cfg)
	require.NoError(t, err)
	for _, a := range trace {
		require.Equal(t, 0, a.Page)
	}

	for _, bad := range []Config{
		{Workers: 0, Pages: 1},
		{Workers: 1, Pages: 0},
		{Workers: 1, Pages: 1, Ops: -1},
		{Workers: 1, Pages: 1, WriteRatio: 2},
	} {
		_, err := Trace(bad)
		require.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestSplit_PagesStayOnOneWorker(t *testing.T) {
	trace := []Access{{Page: 0}, {Page: 5}, {Page: 2, Write: true}, {Page: 4}, {Page: 5, Write: true}}
	parts := Split(trace, 2)

	assert.Equal(t, []Access{{Page: 0}, {Page: 2, Write: true}, {Page: 4}}, parts[0])
	assert.Equal(t, []Access{{Page: 5}, {Page: 5, Write: true}}, parts[1])
}

func TestStampAndDigest(t *testing.T) {
	page := make([]byte, storage.PageSize)
	Stamp(page, 3, 2)
	assert.Equal(t, uint64(2), Version(page))
	assert.NotEqual(t, Digest(3, 2), Digest(3, 1))
	assert.NotEqual(t, Digest(3, 2), Digest(4, 2))

	Stamp(page, 3, 0)
	assert.Equal(t, make([]byte, storage.PageSize), page)
	assert.Equal(t, uint64(0), Version(page))
}

func TestExpected(t *testing.T) {
	trace := []Access{{Page: 1, Write: true}, {Page: 2}, {Page: 1, Write: true}, {Page: 1}}
	assert.Equal(t, map[int]uint64{1: 2, 2: 0}, Expected(trace))
}

func TestRunStrategy_AllStrategiesVerify(t *testing.T) {
	trace, err := Trace(testConfig())
	require.NoError(t, err)

	for _, s := range bufferpool.Strategies() {
		t.Run(s.String(), func(t *testing.T) {
			mem := afero.NewMemMapFs()
			sm := storage.NewStorageManager(mem)

			res, err := RunStrategy(context.Background(), sm, "bench.pages", 8, s, trace, 4, true)
			require.NoError(t, err)

			assert.Equal(t, s, res.Strategy)
			assert.Equal(t, 2000, res.Ops)
			assert.Equal(t, uint64(2000), res.Stats.Requests())
			assert.Equal(t, res.Stats.Misses, res.Stats.ReadIO)
			assert.Positive(t, res.Stats.Hits)
			assert.Positive(t, res.Stats.WriteIO)

			exists, err := afero.Exists(mem, "bench.pages")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestRunStrategy_MoreWorkersThanFrames(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 6
	trace, err := Trace(cfg)
	require.NoError(t, err)

	mem := afero.NewMemMapFs()
	sm := storage.NewStorageManager(mem)

	res, err := RunStrategy(context.Background(), sm, "bench.pages", 2, bufferpool.Clock, trace, 6, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), res.Stats.Requests())

	exists, err := afero.Exists(mem, "bench.pages")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVerify_DetectsMismatch(t *testing.T) {
	mem := afero.NewMemMapFs()
	sm := storage.NewStorageManager(mem)
	require.NoError(t, sm.CreatePageFile("v.pages"))

	trace := []Access{{Page: 0, Write: true}}
	require.ErrorIs(t, Verify(sm, "v.pages", trace), ErrContentMismatch)

	pf, err := sm.OpenPageFile("v.pages")
	require.NoError(t, err)
	page := make([]byte, storage.PageSize)
	Stamp(page, 0, 1)
	require.NoError(t, pf.WritePage(0, page))
	require.NoError(t, pf.Close())

	require.NoError(t, Verify(sm, "v.pages", trace))
}

func TestRun_CanceledContext(t *testing.T) {
	sm := storage.NewStorageManager(afero.NewMemMapFs())
	require.NoError(t, sm.CreatePageFile("c.pages"))
	pool, err := bufferpool.NewPool(sm, "c.pages", 1, bufferpool.LRU)
	require.NoError(t, err)

	// Hold the only frame so every other pin has to retry.
	h, err := pool.PinPage(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, pool, []Access{{Page: 1}}, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Positive(t, res.Retries)

	require.NoError(t, pool.UnpinPage(h))
	require.NoError(t, pool.Shutdown())

	_, err = Run(context.Background(), pool, nil, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
