package main

import (
	"bufio"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const maxHistorySize = 1000

// History holds shell commands in the newline-separated form that liner's
// ReadHistory and WriteHistory use, so it can seed a liner session and be
// persisted through the same io.ReaderFrom / io.WriterTo pair.
type History struct {
	path  string
	lines []string
}

var (
	_ io.ReaderFrom = (*History)(nil)
	_ io.WriterTo   = (*History)(nil)
)

func newHistory() (*History, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return openHistory(filepath.Join(home, ".widekv_history"))
}

// openHistory reads path if it exists. An empty path keeps the history in
// memory only.
func openHistory(path string) (*History, error) {
	h := &History{path: path}
	if path == "" {
		return h, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := h.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "read history %s", path)
	}
	return h, nil
}

// ReadFrom appends every line of r.
func (h *History) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	s := bufio.NewScanner(r)
	for s.Scan() {
		n += int64(len(s.Bytes())) + 1
		h.add(s.Text())
	}
	return n, s.Err()
}

// WriteTo writes one command per line, oldest first.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range h.lines {
		m, err := bw.WriteString(line + "\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// seed loads the history into a liner-style line editor.
func (h *History) seed(dst interface {
	ReadHistory(io.Reader) (int, error)
}) error {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return err
	}
	_, err := dst.ReadHistory(&buf)
	return err
}

// add records cmd unless it is blank or repeats the previous command.
func (h *History) add(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || (len(h.lines) > 0 && h.lines[len(h.lines)-1] == cmd) {
		return
	}
	h.lines = append(h.lines, cmd)
	if over := len(h.lines) - maxHistorySize; over > 0 {
		h.lines = append(h.lines[:0], h.lines[over:]...)
	}
}

func (h *History) save() error {
	if h.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return err
	}
	return os.WriteFile(h.path, buf.Bytes(), 0o600)
}

// list returns the last n commands, or all of them when n is out of range.
func (h *History) list(n int) []string {
	if n <= 0 || n > len(h.lines) {
		n = len(h.lines)
	}
	return h.lines[len(h.lines)-n:]
}
