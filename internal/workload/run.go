package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	cpool "github.com/sourcegraph/conc/pool"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

var ErrContentMismatch = errors.New("workload: page content mismatch")

type Result struct {
	Strategy bufferpool.Strategy
	Stats    bufferpool.Stats
	Ops      int
	Writes   int
	Retries  uint64 // pins retried because every frame was pinned
	Elapsed  time.Duration
}

// Run replays trace against pool with the given number of workers. A write
// access bumps the page's version and restamps it. Pins that find the pool
// full are retried until ctx is done.
func Run(ctx context.Context, pool *bufferpool.Pool, trace []Access, workers int) (Result, error) {
	if workers <= 0 {
		return Result{}, fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}

	var retries atomic.Uint64
	writes := 0
	for _, a := range trace {
		if a.Write {
			writes++
		}
	}

	start := time.Now()
	p := cpool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(workers)
	for w, part := range Split(trace, workers) {
		p.Go(func(ctx context.Context) error {
			n, err := replay(ctx, pool, part)
			retries.Add(n)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			return nil
		})
	}
	err := p.Wait()

	res := Result{
		Strategy: pool.Strategy(),
		Stats:    pool.Stats(),
		Ops:      len(trace),
		Writes:   writes,
		Retries:  retries.Load(),
		Elapsed:  time.Since(start),
	}
	slog.Debug("workload.run", "strategy", res.Strategy.String(), "ops", res.Ops, "hit_ratio", res.Stats.HitRatio(), "elapsed", res.Elapsed)
	return res, err
}

func replay(ctx context.Context, pool *bufferpool.Pool, part []Access) (uint64, error) {
	var retries uint64
	for _, a := range part {
		h, err := pinWithRetry(ctx, pool, a.Page, &retries)
		if err != nil {
			return retries, err
		}
		if a.Write {
			Stamp(h.Data, a.Page, Version(h.Data)+1)
			if err := pool.MarkDirty(h); err != nil {
				_ = pool.UnpinPage(h)
				return retries, err
			}
		}
		if err := pool.UnpinPage(h); err != nil {
			return retries, err
		}
	}
	return retries, nil
}

func pinWithRetry(ctx context.Context, pool *bufferpool.Pool, pageNum int, retries *uint64) (*bufferpool.PageHandle, error) {
	for {
		h, err := pool.PinPage(pageNum)
		if !errors.Is(err, bufferpool.ErrBufferPoolFull) {
			return h, err
		}
		*retries++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runtime.Gosched()
	}
}

// Expected returns the version each touched page should end at.
func Expected(trace []Access) map[int]uint64 {
	out := make(map[int]uint64)
	for _, a := range trace {
		v := out[a.Page]
		if a.Write {
			v++
		}
		out[a.Page] = v
	}
	return out
}

// Verify reads every page the trace touched straight from the page file and
// compares its digest with the content the trace should have left behind.
func Verify(sm *storage.StorageManager, fileName string, trace []Access) error {
	pf, err := sm.OpenPageFile(fileName)
	if err != nil {
		return err
	}
	defer func() { _ = pf.Close() }()

	buf := make([]byte, storage.PageSize)
	for pg, version := range Expected(trace) {
		if err := pf.ReadPage(pg, buf); err != nil {
			return err
		}
		if got, want := xxhash.Sum64(buf), Digest(pg, version); got != want {
			return fmt.Errorf("%w: page %d digest %016x, want %016x (version %d)", ErrContentMismatch, pg, got, want, version)
		}
	}
	return nil
}

// RunStrategy creates a fresh page file, replays trace through a pool with
// the given strategy, shuts the pool down and verifies the file. The page
// file is removed afterwards unless keep is set.
func RunStrategy(ctx context.Context, sm *storage.StorageManager, fileName string, frames int, s bufferpool.Strategy, trace []Access, workers int, keep bool) (res Result, err error) {
	if err := sm.CreatePageFile(fileName); err != nil {
		return Result{}, err
	}
	if !keep {
		defer func() {
			if derr := sm.DestroyPageFile(fileName); derr != nil && err == nil {
				err = derr
			}
		}()
	}

	pool, err := bufferpool.NewPool(sm, fileName, frames, s)
	if err != nil {
		return Result{}, err
	}
	res, err = Run(ctx, pool, trace, workers)
	if err != nil {
		_ = pool.Shutdown()
		return res, err
	}
	if err := pool.Shutdown(); err != nil {
		return res, err
	}
	// Shutdown flushed the last dirty frames; count those writes too.
	res.Stats = pool.Stats()
	return res, Verify(sm, fileName, trace)
}
