package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tuannm99/novabuf/internal/storage"
)

// History is the shell's own command history file, one command per line.
type History struct {
	fs    afero.Fs
	path  string
	lines []string
}

func NewHistory(afs afero.Fs, path string) *History {
	return &History{fs: afs, path: path}
}

func (h *History) Lines() []string { return h.lines }

// Load reads at most max trailing lines. A missing file is not an error.
func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := h.fs.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(cmd string) error {
	cmd = compactOneLine(cmd)
	if cmd == "" || h.path == "" {
		return nil
	}

	if err := h.fs.MkdirAll(filepath.Dir(h.path), storage.FileMode0755); err != nil {
		return err
	}
	f, err := h.fs.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, storage.FileMode0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, cmd); err != nil {
		return err
	}
	h.lines = append(h.lines, cmd)
	return nil
}

// Print writes the last n lines, numbered from the start of the history.
func (h *History) Print(w io.Writer, last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	for i := len(h.lines) - last; i < len(h.lines); i++ {
		fmt.Fprintf(w, "%5d  %s\n", i+1, h.lines[i])
	}
}

func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
