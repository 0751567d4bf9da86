// Package metrics provides lightweight, lock-free counters and gauges
// for tracking the progress of a conversion run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a conversion run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	filesStarted   atomic.Int64
	filesSucceeded atomic.Int64
	filesFailed    atomic.Int64
	filesSkipped   atomic.Int64

	dissectorsActive atomic.Int64
	dissectorsPeak   atomic.Int64

	rowsWritten  atomic.Int64
	linesDropped atomic.Int64
	fieldsNulled atomic.Int64
	bytesRead    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── File metrics ─────────────────────────────────────────────────────

// FileStarted records that a conversion task began.
func (c *Collector) FileStarted() {
	if c == nil {
		return
	}
	c.filesStarted.Add(1)
}

// FileSucceeded records a committed artifact.
func (c *Collector) FileSucceeded() {
	if c == nil {
		return
	}
	c.filesSucceeded.Add(1)
}

// FileFailed records a failed task and keeps its message.
func (c *Collector) FileFailed(msg string) {
	if c == nil {
		return
	}
	c.filesFailed.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// FileSkipped records a capture whose artifact was already complete.
func (c *Collector) FileSkipped() {
	if c == nil {
		return
	}
	c.filesSkipped.Add(1)
}

// FilesStarted returns the number of tasks started.
func (c *Collector) FilesStarted() int64 {
	if c == nil {
		return 0
	}
	return c.filesStarted.Load()
}

// FilesSucceeded returns the number of committed artifacts.
func (c *Collector) FilesSucceeded() int64 {
	if c == nil {
		return 0
	}
	return c.filesSucceeded.Load()
}

// FilesFailed returns the number of failed tasks.
func (c *Collector) FilesFailed() int64 {
	if c == nil {
		return 0
	}
	return c.filesFailed.Load()
}

// FilesSkipped returns the number of skipped captures.
func (c *Collector) FilesSkipped() int64 {
	if c == nil {
		return 0
	}
	return c.filesSkipped.Load()
}

// ── Dissector metrics ────────────────────────────────────────────────

// DissectorStarted increments the in-flight dissector gauge and raises
// the peak if needed.
func (c *Collector) DissectorStarted() {
	if c == nil {
		return
	}
	n := c.dissectorsActive.Add(1)
	for {
		peak := c.dissectorsPeak.Load()
		if n <= peak || c.dissectorsPeak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// DissectorExited decrements the in-flight dissector gauge.
func (c *Collector) DissectorExited() {
	if c == nil {
		return
	}
	c.dissectorsActive.Add(-1)
}

// ActiveDissectors returns the number of dissectors currently running.
func (c *Collector) ActiveDissectors() int64 {
	if c == nil {
		return 0
	}
	return c.dissectorsActive.Load()
}

// PeakDissectors returns the highest number of concurrent dissectors.
func (c *Collector) PeakDissectors() int64 {
	if c == nil {
		return 0
	}
	return c.dissectorsPeak.Load()
}

// ── Data metrics ─────────────────────────────────────────────────────

// RowsWritten records n rows written to artifacts.
func (c *Collector) RowsWritten(n int64) {
	if c == nil {
		return
	}
	c.rowsWritten.Add(n)
}

// LinesDropped records n malformed dissector lines.
func (c *Collector) LinesDropped(n int64) {
	if c == nil {
		return
	}
	c.linesDropped.Add(n)
}

// FieldsNulled records n field values that failed coercion.
func (c *Collector) FieldsNulled(n int64) {
	if c == nil {
		return
	}
	c.fieldsNulled.Add(n)
}

// BytesRead records n bytes read from dissector output.
func (c *Collector) BytesRead(n int64) {
	if c == nil {
		return
	}
	c.bytesRead.Add(n)
}

// TotalRows returns the number of rows written.
func (c *Collector) TotalRows() int64 {
	if c == nil {
		return 0
	}
	return c.rowsWritten.Load()
}

// TotalDropped returns the number of malformed lines dropped.
func (c *Collector) TotalDropped() int64 {
	if c == nil {
		return 0
	}
	return c.linesDropped.Load()
}

// TotalNulled returns the number of nulled field values.
func (c *Collector) TotalNulled() int64 {
	if c == nil {
		return 0
	}
	return c.fieldsNulled.Load()
}

// TotalBytesRead returns the bytes read from dissector output.
func (c *Collector) TotalBytesRead() int64 {
	if c == nil {
		return 0
	}
	return c.bytesRead.Load()
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Elapsed          string `json:"elapsed"`
	FilesStarted     int64  `json:"files_started"`
	FilesSucceeded   int64  `json:"files_succeeded"`
	FilesFailed      int64  `json:"files_failed"`
	FilesSkipped     int64  `json:"files_skipped"`
	ActiveDissectors int64  `json:"dissectors_active"`
	PeakDissectors   int64  `json:"dissectors_peak"`
	RowsWritten      int64  `json:"rows_written"`
	LinesDropped     int64  `json:"lines_dropped"`
	FieldsNulled     int64  `json:"fields_nulled"`
	BytesRead        int64  `json:"bytes_read"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Elapsed:          time.Since(c.startTime).Truncate(time.Millisecond).String(),
		FilesStarted:     c.filesStarted.Load(),
		FilesSucceeded:   c.filesSucceeded.Load(),
		FilesFailed:      c.filesFailed.Load(),
		FilesSkipped:     c.filesSkipped.Load(),
		ActiveDissectors: c.dissectorsActive.Load(),
		PeakDissectors:   c.dissectorsPeak.Load(),
		RowsWritten:      c.rowsWritten.Load(),
		LinesDropped:     c.linesDropped.Load(),
		FieldsNulled:     c.fieldsNulled.Load(),
		BytesRead:        c.bytesRead.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
