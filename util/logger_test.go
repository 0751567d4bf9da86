package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.Contains(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	output := buf.String()
	// Timestamp format is "YYYY-MM-DD HH:MM:SS.mmm"
	if !strings.Contains(output, ":") || len(output) < 15 {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}

func TestLogger_WarnLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1) // normal
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Warn("warning message")

	if !strings.Contains(buf.String(), "[WRN]") {
		t.Errorf("expected [WRN] prefix, got %q", buf.String())
	}
}

func TestLogger_WithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.With("a.pcapng").Warn("dropped line %d", 7)

	want := "[WRN] a.pcapng: dropped line 7\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLogger_WithSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetTimestamps(false)
	child := l.With("b.pcapng")
	l.SetOutput(&buf)

	child.Info("done")
	if !strings.Contains(buf.String(), "b.pcapng: done") {
		t.Errorf("child did not follow parent output: %q", buf.String())
	}
}

func TestLogger_Discard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	l.Info("nothing")
	if l.Level() >= LogQuiet {
		t.Errorf("Discard level = %d", l.Level())
	}
}

func TestReaderPool_RoundTrip(t *testing.T) {
	br := GetReader(strings.NewReader("a\nb\n"))
	if br == nil {
		t.Fatal("GetReader returned nil")
	}
	if br.Size() != LineBufSize {
		t.Errorf("buffer size = %d, want %d", br.Size(), LineBufSize)
	}
	line, err := br.ReadString('\n')
	if err != nil || line != "a\n" {
		t.Fatalf("ReadString = %q, %v", line, err)
	}
	PutReader(br)

	// A recycled reader must not carry data from its previous source.
	br2 := GetReader(strings.NewReader("c\n"))
	line, err = br2.ReadString('\n')
	if err != nil || line != "c\n" {
		t.Errorf("ReadString after reuse = %q, %v", line, err)
	}
	PutReader(br2)
}

func TestPutReader_Nil(t *testing.T) {
	// Should not panic.
	PutReader(nil)
}
