package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// PageFile is an open handle on a page file. The file length is always
// totalPages*PageSize and totalPages only grows.
//
// A PageFile is not safe for concurrent use; the buffer pool serializes
// every call it makes.
type PageFile struct {
	name       string
	file       afero.File
	totalPages int
	curPage    int
}

func (pf *PageFile) FileName() string { return pf.name }

func (pf *PageFile) TotalPages() int { return pf.totalPages }

// PagePos returns the page the sequential cursor points at.
func (pf *PageFile) PagePos() int { return pf.curPage }

// Close syncs and releases the handle. Closing twice is an error.
func (pf *PageFile) Close() error {
	if pf == nil || pf.file == nil {
		return ErrFileHandleNotInit
	}
	err := multierr.Append(pf.file.Sync(), pf.file.Close())
	pf.file = nil
	if err != nil {
		return fmt.Errorf("storage: close %s: %w", pf.name, err)
	}
	return nil
}

func (pf *PageFile) check() error {
	if pf == nil || pf.file == nil {
		return ErrFileHandleNotInit
	}
	return nil
}

func offsetOf(pageNum int) int64 {
	return int64(pageNum) * PageSize
}

// ReadPage copies page pageNum into dst and moves the cursor to it.
func (pf *PageFile) ReadPage(pageNum int, dst []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	if len(dst) != PageSize {
		return ErrInvalidPageBuffer
	}
	if pageNum < 0 || pageNum >= pf.totalPages {
		return fmt.Errorf("%w: page %d (file has %d)", ErrReadNonExistingPage, pageNum, pf.totalPages)
	}

	n, err := pf.file.ReadAt(dst, offsetOf(pageNum))
	if n < PageSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("%w: page %d of %s: %w", ErrReadFailed, pageNum, pf.name, err)
	}

	pf.curPage = pageNum
	return nil
}

// WritePage writes src as page pageNum and moves the cursor to it. Writing
// at exactly TotalPages appends an empty page first; anything beyond that
// fails.
func (pf *PageFile) WritePage(pageNum int, src []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	if len(src) != PageSize {
		return ErrInvalidPageBuffer
	}
	if pageNum < 0 || pageNum > pf.totalPages {
		return fmt.Errorf("%w: page %d out of range (file has %d)", ErrWriteFailed, pageNum, pf.totalPages)
	}
	if pageNum == pf.totalPages {
		if err := pf.AppendEmptyPage(); err != nil {
			return err
		}
	}

	n, err := pf.file.WriteAt(src, offsetOf(pageNum))
	if err == nil && n != PageSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: page %d of %s: %w", ErrWriteFailed, pageNum, pf.name, err)
	}

	pf.curPage = pageNum
	return nil
}

// AppendEmptyPage grows the file by one zero-filled page.
func (pf *PageFile) AppendEmptyPage() error {
	if err := pf.check(); err != nil {
		return err
	}

	off := offsetOf(pf.totalPages)
	n, err := pf.file.WriteAt(make([]byte, PageSize), off)
	if err == nil && n != PageSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		// Drop any partial tail so the length stays a multiple of PageSize.
		if n > 0 {
			if terr := pf.file.Truncate(off); terr != nil {
				err = multierr.Append(err, terr)
			}
		}
		return fmt.Errorf("%w: append page %d to %s: %w", ErrWriteFailed, pf.totalPages, pf.name, err)
	}

	pf.totalPages++
	slog.Debug("storage.append", "file", pf.name, "pages", pf.totalPages)
	return nil
}

// EnsureCapacity appends empty pages until the file holds at least n pages.
// It does nothing when the file is already large enough.
func (pf *PageFile) EnsureCapacity(n int) error {
	if err := pf.check(); err != nil {
		return err
	}
	for pf.totalPages < n {
		if err := pf.AppendEmptyPage(); err != nil {
			return err
		}
	}
	return nil
}

func (pf *PageFile) ReadFirstPage(dst []byte) error {
	return pf.ReadPage(0, dst)
}

func (pf *PageFile) ReadPreviousPage(dst []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	return pf.ReadPage(pf.curPage-1, dst)
}

func (pf *PageFile) ReadCurrentPage(dst []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	return pf.ReadPage(pf.curPage, dst)
}

func (pf *PageFile) ReadNextPage(dst []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	return pf.ReadPage(pf.curPage+1, dst)
}

func (pf *PageFile) ReadLastPage(dst []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	return pf.ReadPage(pf.totalPages-1, dst)
}

// WriteCurrentPage writes src at the cursor position.
func (pf *PageFile) WriteCurrentPage(src []byte) error {
	if err := pf.check(); err != nil {
		return err
	}
	return pf.WritePage(pf.curPage, src)
}
