package metrics

import "testing"

// BenchmarkCollector_DissectorStarted measures the gauge plus peak
// update done once per capture.
func BenchmarkCollector_DissectorStarted(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.DissectorStarted()
		c.DissectorExited()
	}
}

// BenchmarkCollector_RowsWritten measures counter overhead.
func BenchmarkCollector_RowsWritten(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RowsWritten(1)
	}
}

// BenchmarkCollector_Snapshot measures the cost of taking a snapshot.
func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.FileStarted()
	c.RowsWritten(1024)
	c.FileFailed("test")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.FileStarted()
		c.RowsWritten(1)
		c.BytesRead(32768)
	}
}
