package shell

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

var (
	ErrNoPool         = errors.New("shell: no pool open (use: open <file> [frames] [strategy])")
	ErrPoolOpen       = errors.New("shell: a pool is already open (use: shutdown)")
	ErrNotHeld        = errors.New("shell: page is not pinned by this session")
	ErrUnknownCommand = errors.New("shell: unknown command")
	ErrUsage          = errors.New("shell: usage")
)

const Help = `commands:
  create <file>                    create a page file with one empty page
  destroy <file>                   remove a page file
  open <file> [frames] [strategy]  open a buffer pool (fifo, lru, lfu, clock)
  pin <page>                       pin a page
  unpin <page>                     release one pin held by this session
  dirty <page>                     mark a resident page dirty
  force <page>                     write a resident page to disk
  flush                            write back all unpinned dirty pages
  write <page> <text>              copy text into a pinned page and mark it dirty
  read <page>                      print the text stored in a pinned page
  dump <page>                      digest and first bytes of a pinned page
  show                             frame contents ([page<x if dirty><fix count>])
  stats                            hit ratio and I/O counters
  info                             page file and pool summary
  shutdown                         flush and close the pool`

// Options are the pool settings used when open omits them.
type Options struct {
	Frames   int
	Strategy bufferpool.Strategy
}

// Session is one shell over a storage manager. It owns at most one pool and
// remembers the handles it pinned so unpin can hand them back.
type Session struct {
	sm   *storage.StorageManager
	out  io.Writer
	opts Options

	pool *bufferpool.Pool
	pins map[int][]*bufferpool.PageHandle
}

func NewSession(sm *storage.StorageManager, out io.Writer, opts Options) *Session {
	if opts.Frames <= 0 {
		opts.Frames = bufferpool.DefaultCapacity
	}
	return &Session{
		sm:   sm,
		out:  out,
		opts: opts,
		pins: make(map[int][]*bufferpool.PageHandle),
	}
}

func (s *Session) Pool() *bufferpool.Pool { return s.pool }

// ExecScript runs commands separated by ';' and stops at the first error.
func (s *Session) ExecScript(script string) error {
	for _, cmd := range strings.Split(script, ";") {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		if err := s.Exec(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Exec runs one command line.
func (s *Session) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		_, err := fmt.Fprintln(s.out, Help)
		return err
	case "create":
		return s.withFile(args, "create <file>", s.sm.CreatePageFile, "created")
	case "destroy":
		return s.withFile(args, "destroy <file>", s.sm.DestroyPageFile, "destroyed")
	case "open":
		return s.open(args)
	case "pin":
		return s.withPage(args, "pin <page>", s.pin)
	case "unpin":
		return s.withPage(args, "unpin <page>", s.unpin)
	case "dirty":
		return s.withPage(args, "dirty <page>", func(pg int) error {
			return s.pool.MarkDirty(s.handleFor(pg))
		})
	case "force":
		return s.withPage(args, "force <page>", func(pg int) error {
			return s.pool.ForcePage(s.handleFor(pg))
		})
	case "flush":
		if err := s.needPool(); err != nil {
			return err
		}
		return s.pool.ForceFlushPool()
	case "write":
		return s.write(line, args)
	case "read":
		return s.withPage(args, "read <page>", s.read)
	case "dump":
		return s.withPage(args, "dump <page>", s.dump)
	case "show":
		if err := s.needPool(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(s.out, s.pool.String())
		return err
	case "stats":
		return s.stats()
	case "info":
		return s.info()
	case "shutdown":
		return s.shutdown()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

// Close releases every pin the session holds and shuts the pool down.
func (s *Session) Close() error {
	if s.pool == nil {
		return nil
	}
	var errs error
	for pg, hs := range s.pins {
		for _, h := range hs {
			errs = multierr.Append(errs, s.pool.UnpinPage(h))
		}
		delete(s.pins, pg)
	}
	errs = multierr.Append(errs, s.pool.Shutdown())
	s.pool = nil
	return errs
}

func (s *Session) needPool() error {
	if s.pool == nil {
		return ErrNoPool
	}
	return nil
}

func (s *Session) withFile(args []string, usage string, fn func(string) error, verb string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s", ErrUsage, usage)
	}
	if err := fn(args[0]); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.out, "%s %s\n", verb, args[0])
	return err
}

func (s *Session) withPage(args []string, usage string, fn func(int) error) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s", ErrUsage, usage)
	}
	pg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %s: bad page number %q", ErrUsage, usage, args[0])
	}
	if err := s.needPool(); err != nil {
		return err
	}
	return fn(pg)
}

func (s *Session) open(args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("%w: open <file> [frames] [strategy]", ErrUsage)
	}
	if s.pool != nil {
		return ErrPoolOpen
	}

	frames, strategy := s.opts.Frames, s.opts.Strategy
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: bad frame count %q", ErrUsage, args[1])
		}
		frames = n
	}
	if len(args) > 2 {
		st, err := bufferpool.ParseStrategy(args[2])
		if err != nil {
			return err
		}
		strategy = st
	}

	pool, err := bufferpool.NewPool(s.sm, args[0], frames, strategy)
	if err != nil {
		return err
	}
	s.pool = pool
	_, err = fmt.Fprintf(s.out, "opened %s: %d frames, %s\n", args[0], frames, strategy)
	return err
}

// handleFor returns a handle this session holds on pg, or a bare one.
func (s *Session) handleFor(pg int) *bufferpool.PageHandle {
	if hs := s.pins[pg]; len(hs) > 0 {
		return hs[len(hs)-1]
	}
	return &bufferpool.PageHandle{PageNum: pg}
}

func (s *Session) held(pg int) (*bufferpool.PageHandle, error) {
	hs := s.pins[pg]
	if len(hs) == 0 {
		return nil, fmt.Errorf("%w: page %d", ErrNotHeld, pg)
	}
	return hs[len(hs)-1], nil
}

func (s *Session) pin(pg int) error {
	h, err := s.pool.PinPage(pg)
	if err != nil {
		return err
	}
	s.pins[pg] = append(s.pins[pg], h)
	_, err = fmt.Fprintf(s.out, "pinned page %d (held %d)\n", pg, len(s.pins[pg]))
	return err
}

func (s *Session) unpin(pg int) error {
	h, err := s.held(pg)
	if err != nil {
		return err
	}
	if err := s.pool.UnpinPage(h); err != nil {
		return err
	}
	hs := s.pins[pg][:len(s.pins[pg])-1]
	if len(hs) == 0 {
		delete(s.pins, pg)
	} else {
		s.pins[pg] = hs
	}
	return nil
}

func (s *Session) write(line string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: write <page> <text>", ErrUsage)
	}
	pg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: write <page> <text>: bad page number %q", ErrUsage, args[0])
	}
	if err := s.needPool(); err != nil {
		return err
	}
	h, err := s.held(pg)
	if err != nil {
		return err
	}

	// Keep the text exactly as typed after the page number.
	text := strings.TrimSpace(line)
	text = strings.TrimSpace(text[len(strings.Fields(text)[0]):])
	text = strings.TrimSpace(text[len(args[0]):])
	if len(text) > len(h.Data) {
		text = text[:len(h.Data)]
	}

	clear(h.Data)
	copy(h.Data, text)
	return s.pool.MarkDirty(h)
}

func (s *Session) read(pg int) error {
	h, err := s.held(pg)
	if err != nil {
		return err
	}
	text := h.Data
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	_, err = fmt.Fprintf(s.out, "%q\n", text)
	return err
}

func (s *Session) dump(pg int) error {
	h, err := s.held(pg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "page %d xxhash=%016x\n%s", pg, xxhash.Sum64(h.Data), hex.Dump(h.Data[:64]))
	return err
}

func (s *Session) stats() error {
	if err := s.needPool(); err != nil {
		return err
	}
	st := s.pool.Stats()
	_, err := fmt.Fprintf(s.out,
		"requests %s  hits %s  misses %s  hit ratio %.2f%%\nevictions %s  write-backs %s  read io %s  write io %s\nfix counts %v\ndirty      %v\n",
		humanize.Comma(int64(st.Requests())),
		humanize.Comma(int64(st.Hits)),
		humanize.Comma(int64(st.Misses)),
		st.HitRatio()*100,
		humanize.Comma(int64(st.Evictions)),
		humanize.Comma(int64(st.WriteBacks)),
		humanize.Comma(int64(st.ReadIO)),
		humanize.Comma(int64(st.WriteIO)),
		s.pool.FixCounts(),
		s.pool.DirtyFlags(),
	)
	return err
}

func (s *Session) info() error {
	if err := s.needPool(); err != nil {
		return err
	}
	name := s.pool.PageFileName()
	pages, err := s.sm.CountPages(name)
	if err != nil {
		return err
	}
	frames := s.pool.NumFrames()
	_, err = fmt.Fprintf(s.out, "file %s: %s pages (%s)\npool: %d frames (%s), strategy %s\n",
		name,
		humanize.Comma(int64(pages)),
		humanize.IBytes(uint64(pages)*storage.PageSize),
		frames,
		humanize.IBytes(uint64(frames)*storage.PageSize),
		s.pool.Strategy(),
	)
	return err
}

func (s *Session) shutdown() error {
	if err := s.needPool(); err != nil {
		return err
	}
	if err := s.pool.Shutdown(); err != nil {
		return err
	}
	s.pool = nil
	clear(s.pins)
	_, err := fmt.Fprintln(s.out, "pool shut down")
	return err
}
