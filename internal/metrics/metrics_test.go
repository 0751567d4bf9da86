package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestCollector_Files(t *testing.T) {
	c := New()

	c.FileStarted()
	c.FileStarted()
	c.FileStarted()
	c.FileSucceeded()
	c.FileFailed("dissect wait b.pcapng: exit status 2")
	c.FileSkipped()

	if c.FilesStarted() != 3 {
		t.Errorf("started = %d, want 3", c.FilesStarted())
	}
	if c.FilesSucceeded() != 1 || c.FilesFailed() != 1 || c.FilesSkipped() != 1 {
		t.Errorf("succeeded/failed/skipped = %d/%d/%d",
			c.FilesSucceeded(), c.FilesFailed(), c.FilesSkipped())
	}
}

func TestCollector_Dissectors(t *testing.T) {
	c := New()

	c.DissectorStarted()
	c.DissectorStarted()
	c.DissectorStarted()
	c.DissectorExited()
	c.DissectorExited()
	c.DissectorStarted()

	if c.ActiveDissectors() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveDissectors())
	}
	if c.PeakDissectors() != 3 {
		t.Errorf("peak = %d, want 3", c.PeakDissectors())
	}
}

func TestCollector_PeakConcurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.DissectorStarted()
		}()
	}
	wg.Wait()
	if c.PeakDissectors() != 50 {
		t.Errorf("peak = %d, want 50", c.PeakDissectors())
	}
}

func TestCollector_Data(t *testing.T) {
	c := New()

	c.RowsWritten(1000)
	c.RowsWritten(24)
	c.LinesDropped(2)
	c.FieldsNulled(7)
	c.BytesRead(4096)

	if c.TotalRows() != 1024 {
		t.Errorf("rows = %d, want 1024", c.TotalRows())
	}
	if c.TotalDropped() != 2 || c.TotalNulled() != 7 || c.TotalBytesRead() != 4096 {
		t.Errorf("dropped/nulled/bytes = %d/%d/%d",
			c.TotalDropped(), c.TotalNulled(), c.TotalBytesRead())
	}
}

func TestCollector_Snapshot(t *testing.T) {
	c := New()
	c.FileStarted()
	c.DissectorStarted()
	c.RowsWritten(100)
	c.FileFailed("test")

	snap := c.Snapshot()
	if snap.ActiveDissectors != 1 {
		t.Errorf("snap active = %d", snap.ActiveDissectors)
	}
	if snap.RowsWritten != 100 {
		t.Errorf("snap rows = %d", snap.RowsWritten)
	}
	if snap.FilesFailed != 1 {
		t.Errorf("snap failed = %d", snap.FilesFailed)
	}
	if snap.LastErrorMessage != "test" || snap.LastError == "" {
		t.Errorf("snap error = %q at %q", snap.LastErrorMessage, snap.LastError)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.FileSucceeded()
	c.BytesRead(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.FilesSucceeded != 1 {
		t.Errorf("JSON succeeded = %d", snap.FilesSucceeded)
	}
	if snap.BytesRead != 42 {
		t.Errorf("JSON bytes read = %d", snap.BytesRead)
	}
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := New()
	c.FileStarted()
	c.FileStarted()
	c.FileSucceeded()
	c.FileFailed("boom")
	c.RowsWritten(12)

	path := filepath.Join(t.TempDir(), "capconv.prom")
	if err := c.WriteTextfile(path, "run-1"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`capconv_files_total{run_id="run-1",status="succeeded"} 1`,
		`capconv_files_total{run_id="run-1",status="failed"} 1`,
		`capconv_files_total{run_id="run-1",status="skipped"} 0`,
		`capconv_files_started_total{run_id="run-1"} 2`,
		`capconv_rows_written_total{run_id="run-1"} 12`,
		"# TYPE capconv_dissectors_peak gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.FileStarted()
	c.FileSucceeded()
	c.FileFailed("test")
	c.FileSkipped()
	c.DissectorStarted()
	c.DissectorExited()
	c.RowsWritten(100)
	c.LinesDropped(1)
	c.FieldsNulled(1)
	c.BytesRead(100)

	if c.ActiveDissectors() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalRows() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.FilesFailed() != 0 {
		t.Error("nil collector should return 0")
	}

	snap := c.Snapshot()
	if snap.FilesStarted != 0 {
		t.Error("nil snapshot should be zero")
	}

	if j := c.JSON(); j == "" {
		t.Error("nil JSON should return valid JSON")
	}
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom"), "r"); err != nil {
		t.Errorf("nil WriteTextfile = %v", err)
	}
}
