package util

import (
	"bufio"
	"io"
	"sync"
)

// LineBufSize is the read buffer size used for dissector output (64 KiB).
// One buffer is held per in-flight conversion.
const LineBufSize = 64 * 1024

// ReaderPool provides reusable buffered readers for dissector output so
// that a long batch does not allocate a fresh 64 KiB buffer per capture.
var ReaderPool = sync.Pool{
	New: func() interface{} {
		return bufio.NewReaderSize(nil, LineBufSize)
	},
}

// GetReader retrieves a buffered reader from the pool, reset to read
// from src.  Callers must return it with [PutReader] when finished.
func GetReader(src io.Reader) *bufio.Reader {
	br := ReaderPool.Get().(*bufio.Reader)
	br.Reset(src)
	return br
}

// PutReader returns a reader to the pool for reuse.  The reader is
// detached from its source first so the pool does not pin it.
func PutReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	ReaderPool.Put(br)
}
