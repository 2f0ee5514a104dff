package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/tuannm99/novabuf/internal/alias/util"
)

// StorageManager creates, opens and removes page files on a filesystem.
// A page file is a flat sequence of PageSize blocks; page N lives at
// offset N*PageSize.
type StorageManager struct {
	fs afero.Fs
}

// NewStorageManager returns a manager backed by afs. A nil afs means the
// operating system filesystem.
func NewStorageManager(afs afero.Fs) *StorageManager {
	if afs == nil {
		afs = afero.NewOsFs()
	}
	return &StorageManager{fs: afs}
}

func (sm *StorageManager) Fs() afero.Fs { return sm.fs }

// CreatePageFile creates name holding exactly one zero-filled page.
// An existing file with the same name is truncated.
func (sm *StorageManager) CreatePageFile(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", ErrFileNotFound)
	}

	f, err := sm.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, FileMode0644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrFileNotFound, name, err)
	}

	n, err := f.WriteAt(make([]byte, PageSize), 0)
	if err == nil && n != PageSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		util.CloseQuietly(f, name)
		return fmt.Errorf("%w: create %s: %w", ErrWriteFailed, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrWriteFailed, name, err)
	}

	slog.Debug("storage.create", "file", name)
	return nil
}

// OpenPageFile opens an existing page file. The handle starts positioned at
// page 0. Files that cannot be opened for writing are opened read-only; every
// write on such a handle fails with ErrWriteFailed.
func (sm *StorageManager) OpenPageFile(name string) (*PageFile, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrFileNotFound)
	}

	f, err := sm.fs.OpenFile(name, os.O_RDWR, 0)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		f, err = sm.fs.OpenFile(name, os.O_RDONLY, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrFileNotFound, name, err)
	}

	info, err := f.Stat()
	if err != nil {
		util.CloseQuietly(f, name)
		return nil, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	if info.IsDir() {
		util.CloseQuietly(f, name)
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, name)
	}

	pf := &PageFile{
		name:       name,
		file:       f,
		totalPages: int(info.Size() / PageSize),
		curPage:    0,
	}
	slog.Debug("storage.open", "file", name, "pages", pf.totalPages)
	return pf, nil
}

// DestroyPageFile removes name from the filesystem.
func (sm *StorageManager) DestroyPageFile(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", ErrFileNotFound)
	}
	if _, err := sm.fs.Stat(name); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileNotFound, name, err)
	}
	if err := sm.fs.Remove(name); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrFileNotFound, name, err)
	}

	slog.Debug("storage.destroy", "file", name)
	return nil
}

// CountPages reports how many whole pages name holds without opening a handle.
func (sm *StorageManager) CountPages(name string) (int, error) {
	info, err := sm.fs.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFileNotFound, name, err)
	}
	return int(info.Size() / PageSize), nil
}
