package proc

import (
	"io"
	"os"
	"strings"
)

// Tail reads complete lines appended to a file that another process may still
// be writing. It keeps its own open handle and byte offset, so bytes appended
// after Open become visible on the next read without reopening. An incomplete
// trailing line is buffered until its newline arrives.
type Tail struct {
	f       *os.File
	pending []byte
}

// OpenTail opens an independent read cursor on path.
func OpenTail(path string) (*Tail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Tail{f: f}, nil
}

// ReadNewLines returns the complete lines appended since the previous call.
// It never blocks; when nothing new is available it returns an empty slice.
func (t *Tail) ReadNewLines() ([]string, error) {
	if t.f == nil {
		return nil, ErrNotStarted
	}

	buf := make([]byte, 4096)
	for {
		n, err := t.f.Read(buf)
		if n > 0 {
			t.pending = append(t.pending, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	last := -1
	for i := len(t.pending) - 1; i >= 0; i-- {
		if t.pending[i] == '\n' {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, nil
	}

	complete := string(t.pending[:last])
	t.pending = append(t.pending[:0], t.pending[last+1:]...)

	lines := strings.Split(complete, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}

// Close releases the cursor. Safe to call multiple times.
func (t *Tail) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	t.pending = nil
	return err
}
