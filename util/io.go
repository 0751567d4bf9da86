package util

import (
	"io"
	"sync"
	"sync/atomic"
)

// DefaultTailSize is how much trailing stderr a dissector keeps for
// error messages (4 KiB).
const DefaultTailSize = 4 * 1024

// TailBuffer is an io.Writer that retains only the last Max bytes
// written.  It lets a chatty subprocess write unbounded stderr while
// still giving the caller the lines that explain an exit status.
type TailBuffer struct {
	Max int

	mu        sync.Mutex
	buf       []byte
	truncated bool
}

// NewTailBuffer returns a TailBuffer keeping max bytes.
func NewTailBuffer(max int) *TailBuffer {
	if max <= 0 {
		max = DefaultTailSize
	}
	return &TailBuffer{Max: max}
}

// Write appends p, discarding the oldest bytes beyond Max.  It never
// fails.
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if n >= t.Max {
		t.buf = append(t.buf[:0], p[n-t.Max:]...)
		t.truncated = true
		return n, nil
	}
	if over := len(t.buf) + n - t.Max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained bytes, prefixed with "..." when older
// output was dropped.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}

// CountingReader wraps an io.Reader and counts bytes read through it.
// The count may be read concurrently with Read.
type CountingReader struct {
	R io.Reader
	n atomic.Int64
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// N returns the number of bytes read so far.
func (c *CountingReader) N() int64 { return c.n.Load() }
