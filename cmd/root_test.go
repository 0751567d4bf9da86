package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capconv/internal/errors"
)

// fakeTshark is a stand-in dissector: it prints two fields for any
// capture and fails for captures with "bad" in the name.
const fakeTshark = `#!/bin/sh
case "$2" in
*bad*) echo "tshark: The file \"$2\" appears to be damaged or corrupt." >&2; exit 2 ;;
esac
echo 'frame.time,wlan.ssid'
echo '"2024-01-01 00:00:00.000000","eduroam"'
echo '"2024-01-01 00:00:00.500000",""'
`

const schemaDoc = `fields:
  - name: frame.time
    type: timestamp
    time: true
  - name: wlan.ssid
    type: string
`

// setup returns input and output directories and flags pointing at the
// fake dissector.
func setup(t *testing.T, captures ...string) (in, out string, args []string) {
	t.Helper()
	dir := t.TempDir()
	in, out = filepath.Join(dir, "captures"), filepath.Join(dir, "processed")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, c := range captures {
		if err := os.WriteFile(filepath.Join(in, c), []byte("pcapng"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tool := filepath.Join(dir, "tshark")
	if err := os.WriteFile(tool, []byte(fakeTshark), 0o755); err != nil {
		t.Fatal(err)
	}
	schema := filepath.Join(dir, "fields.yaml")
	if err := os.WriteFile(schema, []byte(schemaDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return in, out, []string{"-i", in, "-o", out, "--tshark", tool, "--schema", schema, "-q"}
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	err := Execute(context.Background(), []string{"--version"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help returns without error.
func TestExecute_Help(t *testing.T) {
	if err := Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	err := Execute(context.Background(), []string{"--nonexistent-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestExecute_UnexpectedArgument(t *testing.T) {
	_, _, args := setup(t)
	err := Execute(context.Background(), append(args, "captures"))
	if err == nil || !strings.Contains(err.Error(), "unexpected argument") {
		t.Fatalf("expected unexpected-argument error, got %v", err)
	}
}

// TestExecute_Invalid verifies configuration errors surface before any
// work starts.
func TestExecute_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero workers", []string{"-n", "0"}, "--workers"},
		{"bad compression", []string{"--compression", "lz4"}, "--compression"},
		{"bad remote", []string{"-R", "survey@"}, "empty host"},
		{"watch remote", []string{"--watch", "-R", "sensor-01"}, "--watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, args := setup(t)
			err := Execute(context.Background(), append(args, tt.args...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

// TestExecute_Convert runs a whole batch through the fake dissector.
func TestExecute_Convert(t *testing.T) {
	_, out, args := setup(t, "a.pcapng", "b.pcapng", "bad.pcapng", "notes.txt")
	metricsFile := filepath.Join(t.TempDir(), "capconv.prom")

	err := Execute(context.Background(), append(args, "-n", "2", "--metrics-file", metricsFile))
	if !errors.Is(err, errors.ErrBatchFailed) {
		t.Fatalf("err = %v, want ErrBatchFailed", err)
	}

	for _, name := range []string{"a.pcapng.parquet", "a.pcapng.parquet.done", "b.pcapng.parquet", "b.pcapng.parquet.done"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "bad.pcapng.parquet")); !os.IsNotExist(err) {
		t.Errorf("failed capture left an artifact: %v", err)
	}

	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`status="succeeded"} 2`, `status="failed"} 1`, "capconv_rows_written_total"} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics file missing %q:\n%s", want, prom)
		}
	}
}

// TestExecute_SkipExisting verifies a rerun leaves verified artifacts alone.
func TestExecute_SkipExisting(t *testing.T) {
	_, out, args := setup(t, "a.pcapng")
	if err := Execute(context.Background(), args); err != nil {
		t.Fatal(err)
	}
	artifact := filepath.Join(out, "a.pcapng.parquet")
	before, err := os.Stat(artifact)
	if err != nil {
		t.Fatal(err)
	}

	if err := Execute(context.Background(), append(args, "--skip-existing")); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("--skip-existing rewrote a verified artifact")
	}
}

// TestExecute_NoCaptures verifies an empty input directory is not an error.
func TestExecute_NoCaptures(t *testing.T) {
	_, _, args := setup(t)
	if err := Execute(context.Background(), args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_EnvDefaults verifies environment defaults apply when the
// flag is absent.
func TestExecute_EnvDefaults(t *testing.T) {
	in, out, args := setup(t, "a.pcapng")
	t.Setenv("CAPCONV_INPUT", in)
	t.Setenv("CAPCONV_OUTPUT", out)

	// Drop -i/-o so only the environment names the directories.
	if err := Execute(context.Background(), append(args[4:], "--dry-run")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("dry run should not create %s", out)
	}
}
