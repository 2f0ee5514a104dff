package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.uber.org/multierr"

	locking "github.com/tuannm99/novabuf/internal/lock"
	"github.com/tuannm99/novabuf/internal/storage"
)

// NoPage marks a frame that holds no page.
const NoPage = -1

var (
	DefaultCapacity = 128

	ErrBufferPoolFull      = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPinnedPagesInBuffer = errors.New("bufferpool: pinned pages in buffer")
	ErrUnknownPage         = errors.New("bufferpool: page not in buffer")
	ErrPagePinned          = errors.New("bufferpool: page is pinned")
	ErrPageNotPinned       = errors.New("bufferpool: page is not pinned")
	ErrPoolClosed          = errors.New("bufferpool: pool is shut down")
	ErrInvalidFrameCount   = errors.New("bufferpool: frame count must be positive")
	ErrNilHandle           = errors.New("bufferpool: nil page handle")
)

// Frame is one slot of the pool. Data points into the pool's arena and is
// always exactly storage.PageSize long.
type Frame struct {
	PageNum int
	Data    []byte
	Dirty   bool
	Pin     locking.RefCount
}

func (f *Frame) empty() bool { return f.PageNum == NoPage }

// PageHandle is a borrowed view of a pinned page. Data may be read and
// written until the handle is passed to UnpinPage, which clears it.
type PageHandle struct {
	PageNum int
	Data    []byte
}

var _ Manager = (*Pool)(nil)

// Pool caches pages of one page file in a fixed number of frames. All
// methods are safe for concurrent use; frame table updates happen under a
// single mutex.
type Pool struct {
	sm       *storage.StorageManager
	fileName string
	strategy Strategy

	mu        sync.Mutex
	file      *storage.PageFile
	frames    []Frame
	pageTable map[int]int // page number -> frame index
	replacer  Replacer
	stats     Stats
	closed    bool
}

// NewPool opens pageFileName, which must already exist, and allocates
// numFrames empty frames.
func NewPool(sm *storage.StorageManager, pageFileName string, numFrames int, strategy Strategy) (*Pool, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameCount, numFrames)
	}
	replacer, err := newReplacer(strategy, numFrames)
	if err != nil {
		return nil, err
	}
	file, err := sm.OpenPageFile(pageFileName)
	if err != nil {
		return nil, err
	}

	arena := make([]byte, numFrames*storage.PageSize)
	frames := make([]Frame, numFrames)
	for i := range frames {
		lo := i * storage.PageSize
		frames[i].PageNum = NoPage
		frames[i].Data = arena[lo : lo+storage.PageSize : lo+storage.PageSize]
	}

	slog.Debug("bufferpool.init", "file", pageFileName, "frames", numFrames, "strategy", strategy.String())
	return &Pool{
		sm:        sm,
		fileName:  pageFileName,
		strategy:  strategy,
		file:      file,
		frames:    frames,
		pageTable: make(map[int]int, numFrames),
		replacer:  replacer,
	}, nil
}

func (p *Pool) PageFileName() string { return p.fileName }

func (p *Pool) Strategy() Strategy { return p.strategy }

func (p *Pool) NumFrames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// PinPage returns a handle on pageNum, loading it from disk on a miss. Pages
// beyond the end of the file are created empty first. When every frame is
// pinned it fails with ErrBufferPoolFull instead of waiting.
func (p *Pool) PinPage(pageNum int) (*PageHandle, error) {
	if pageNum < 0 {
		return nil, fmt.Errorf("%w: page %d", storage.ErrReadNonExistingPage, pageNum)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	// 1) HIT
	if idx, ok := p.pageTable[pageNum]; ok {
		f := &p.frames[idx]
		if f.Pin.Inc() == 1 {
			p.replacer.SetEvictable(idx, false)
		}
		p.replacer.RecordAccess(idx)
		p.stats.Hits++
		return &PageHandle{PageNum: pageNum, Data: f.Data}, nil
	}

	// 2) Free frame, else 3) evict
	idx := p.freeFrame()
	if idx < 0 {
		victim, err := p.evict()
		if err != nil {
			return nil, err
		}
		idx = victim
	}

	if err := p.load(idx, pageNum); err != nil {
		return nil, err
	}
	return &PageHandle{PageNum: pageNum, Data: p.frames[idx].Data}, nil
}

func (p *Pool) freeFrame() int {
	for i := range p.frames {
		if p.frames[i].empty() {
			return i
		}
	}
	return -1
}

// evict asks the replacer for a victim, writes it back if dirty and leaves
// the frame empty. A failed write-back hands the victim back to the replacer
// untouched.
func (p *Pool) evict() (int, error) {
	idx, ok := p.replacer.Evict()
	if !ok {
		return -1, ErrBufferPoolFull
	}

	f := &p.frames[idx]
	if f.empty() || f.Pin.Get() != 0 {
		// Replacer and frame table disagree; never hand out a pinned frame,
		// but keep tracking it so a later unpin makes it evictable again.
		if !f.empty() {
			p.replacer.Restore(idx)
			p.replacer.SetEvictable(idx, false)
		}
		return -1, ErrBufferPoolFull
	}

	wasDirty := f.Dirty
	if f.Dirty {
		if err := p.writeBack(f); err != nil {
			p.replacer.Restore(idx)
			return -1, err
		}
		p.stats.WriteBacks++
	}

	slog.Debug("bufferpool.evict", "frame", idx, "page", f.PageNum, "dirty", wasDirty, "strategy", p.strategy.String())
	delete(p.pageTable, f.PageNum)
	f.PageNum = NoPage
	p.stats.Evictions++
	return idx, nil
}

// load reads pageNum into the empty frame idx and pins it once. On failure
// the frame stays empty.
func (p *Pool) load(idx, pageNum int) error {
	if pageNum >= p.file.TotalPages() {
		if err := p.file.EnsureCapacity(pageNum + 1); err != nil {
			return err
		}
	}

	f := &p.frames[idx]
	if err := p.file.ReadPage(pageNum, f.Data); err != nil {
		return err
	}
	p.stats.ReadIO++
	p.stats.Misses++

	f.PageNum = pageNum
	f.Dirty = false
	f.Pin.Set(1)
	p.pageTable[pageNum] = idx

	p.replacer.RecordLoad(idx)
	p.replacer.SetEvictable(idx, false)
	return nil
}

func (p *Pool) writeBack(f *Frame) error {
	if err := p.file.WritePage(f.PageNum, f.Data); err != nil {
		return err
	}
	p.stats.WriteIO++
	f.Dirty = false
	return nil
}

// frameOf returns the frame holding the handle's page.
func (p *Pool) frameOf(h *PageHandle) (int, error) {
	if h == nil {
		return -1, ErrNilHandle
	}
	if p.closed {
		return -1, ErrPoolClosed
	}
	idx, ok := p.pageTable[h.PageNum]
	if !ok {
		return -1, fmt.Errorf("%w: page %d", ErrUnknownPage, h.PageNum)
	}
	return idx, nil
}

// UnpinPage releases one pin on the handle's page and invalidates the handle.
func (p *Pool) UnpinPage(h *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.frameOf(h)
	if err != nil {
		return err
	}

	zero, err := p.frames[idx].Pin.Dec()
	if err != nil {
		return fmt.Errorf("%w: page %d", ErrPageNotPinned, h.PageNum)
	}
	if zero {
		p.replacer.SetEvictable(idx, true)
	}
	h.Data = nil
	return nil
}

func (p *Pool) MarkDirty(h *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.frameOf(h)
	if err != nil {
		return err
	}
	p.frames[idx].Dirty = true
	return nil
}

// ForcePage writes the page to disk whether or not it is dirty.
func (p *Pool) ForcePage(h *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.frameOf(h)
	if err != nil {
		return err
	}
	return p.writeBack(&p.frames[idx])
}

// ForceFlushPool writes back every dirty frame that is not pinned. Pinned
// frames keep their dirty flag. Every frame is tried; failures are combined.
func (p *Pool) ForceFlushPool() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	return p.flushUnpinned()
}

func (p *Pool) flushUnpinned() error {
	var errs error
	flushed := 0
	for i := range p.frames {
		f := &p.frames[i]
		if f.empty() || !f.Dirty || f.Pin.Get() != 0 {
			continue
		}
		if err := p.writeBack(f); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		flushed++
	}
	slog.Debug("bufferpool.flush", "file", p.fileName, "pages", flushed)
	return errs
}

// DiscardPage drops an unpinned page from the pool, writing it back first
// if it is dirty. The frame becomes free.
func (p *Pool) DiscardPage(pageNum int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.frameOf(&PageHandle{PageNum: pageNum})
	if err != nil {
		return err
	}

	f := &p.frames[idx]
	if f.Pin.Get() != 0 {
		return fmt.Errorf("%w: page %d", ErrPagePinned, pageNum)
	}
	if f.Dirty {
		if err := p.writeBack(f); err != nil {
			return err
		}
	}

	delete(p.pageTable, pageNum)
	f.PageNum = NoPage
	p.replacer.Remove(idx)
	return nil
}

// Shutdown flushes the pool and releases its frames and file handle. If any
// page is still pinned it fails with ErrPinnedPagesInBuffer and the pool
// stays usable.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if err := p.flushUnpinned(); err != nil {
		return err
	}
	for i := range p.frames {
		if n := p.frames[i].Pin.Get(); n > 0 {
			return fmt.Errorf("%w: page %d fixed %d times", ErrPinnedPagesInBuffer, p.frames[i].PageNum, n)
		}
	}

	err := p.file.Close()
	p.closed = true
	p.frames = nil
	p.pageTable = nil
	slog.Debug("bufferpool.shutdown", "file", p.fileName, "read_io", p.stats.ReadIO, "write_io", p.stats.WriteIO)
	return err
}

// FrameContents returns the page held by each frame, NoPage for empty ones.
func (p *Pool) FrameContents() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].PageNum
	}
	return out
}

func (p *Pool) DirtyFlags() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]bool, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].Dirty
	}
	return out
}

func (p *Pool) FixCounts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = int(p.frames[i].Pin.Get())
	}
	return out
}

func (p *Pool) NumReadIO() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.stats.ReadIO)
}

func (p *Pool) NumWriteIO() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.stats.WriteIO)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// String renders the frames as "[page<x if dirty><fix count>]" joined by
// commas, e.g. "[3x1],[-1 0]".
func (p *Pool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	for i := range p.frames {
		f := &p.frames[i]
		if i > 0 {
			b.WriteByte(',')
		}
		mark := ' '
		if f.Dirty {
			mark = 'x'
		}
		fmt.Fprintf(&b, "[%d%c%d]", f.PageNum, mark, f.Pin.Get())
	}
	return b.String()
}
