package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"capconv/internal/coerce"
	"capconv/internal/dissect"
	"capconv/internal/metrics"
	"capconv/internal/schema"
	"capconv/util"
)

// script is the canned behaviour of one fake dissector run.
type script struct {
	out    string        // stdout
	stderr string        // stderr tail
	exit   int           // exit status reported by Wait
	delay  time.Duration // held before Wait returns
	hang   bool          // write out, then block until killed
}

// fakeRunner plays scripts keyed by capture base name in place of
// tshark and tracks how many runs overlap.
type fakeRunner struct {
	scripts map[string]script

	mu      sync.Mutex
	active  int
	peak    int
	started []string
}

func newFakeRunner(scripts map[string]script) *fakeRunner {
	return &fakeRunner{scripts: scripts}
}

func (f *fakeRunner) Start(ctx context.Context, _ string, args []string) (dissect.Process, error) {
	capture := args[1]
	sc, ok := f.scripts[filepath.Base(capture)]
	if !ok {
		return nil, fmt.Errorf("exec: %s: no script", capture)
	}

	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.started = append(f.started, filepath.Base(capture))
	f.mu.Unlock()

	p := &fakeProc{ctx: ctx, sc: sc, exited: f.exited}
	if sc.hang {
		pr, pw := io.Pipe()
		go func() {
			io.WriteString(pw, sc.out)
			<-ctx.Done()
			pw.Close()
		}()
		p.stdout = pr
	} else {
		p.stdout = strings.NewReader(sc.out)
	}
	return p, nil
}

func (f *fakeRunner) exited() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeRunner) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeRunner) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

type fakeProc struct {
	ctx    context.Context
	sc     script
	stdout io.Reader
	exited func()
}

func (p *fakeProc) Stdout() io.Reader { return p.stdout }
func (p *fakeProc) Stderr() string    { return p.sc.stderr }

func (p *fakeProc) Wait() error {
	defer p.exited()
	if p.sc.hang {
		<-p.ctx.Done()
		return fmt.Errorf("signal: killed")
	}
	if p.sc.delay > 0 {
		select {
		case <-time.After(p.sc.delay):
		case <-p.ctx.Done():
			return fmt.Errorf("signal: killed")
		}
	}
	if p.sc.exit != 0 {
		return exitStatus(p.sc.exit)
	}
	return nil
}

type exitStatus int

func (e exitStatus) Error() string   { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitStatus) ExitStatus() int { return int(e) }

// ── fixtures ─────────────────────────────────────────────────────────

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Field{
		{Name: "t", Type: schema.Timestamp, Time: true},
		{Name: "a", Type: schema.Float},
		{Name: "b", Type: schema.Float},
	})
	require.NoError(t, err)
	return s
}

// csvOutput renders a header and n well-formed rows for testSchema.
func csvOutput(n int) string {
	var b strings.Builder
	b.WriteString("t,a,b\n")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Millisecond).Format("2006-01-02 15:04:05.000000")
		fmt.Fprintf(&b, "%q,%q,%q\n", ts, fmt.Sprint(i), fmt.Sprint(i*2))
	}
	return b.String()
}

// csvColumns returns the column values an artifact built from
// csvOutput(n) must hold, in row order.
func csvColumns(n int) [][]interface{} {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := make([][]interface{}, 3)
	for i := 0; i < n; i++ {
		cols[0] = append(cols[0], base.Add(time.Duration(i)*time.Millisecond).UnixMicro())
		cols[1] = append(cols[1], float64(i))
		cols[2] = append(cols[2], float64(i*2))
	}
	return cols
}

// assertColumns checks every column of artifact against csvColumns(n).
func assertColumns(t *testing.T, artifact string, n int) {
	t.Helper()
	for c, want := range csvColumns(n) {
		assert.Equal(t, want, readColumn(t, artifact, c), "column %d of %s", c, filepath.Base(artifact))
	}
}

// testLogger returns a normal-verbosity logger writing to buf.
func testLogger() (*util.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := util.NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	return l, &buf
}

func newConverter(t *testing.T, r dissect.Runner, out string, logger *util.Logger) *Converter {
	t.Helper()
	return &Converter{
		Invoker:     dissect.NewInvoker(r, dissect.Options{}),
		Schema:      testSchema(t),
		OutputDir:   out,
		Layouts:     coerce.DefaultTimeLayouts,
		Compression: "snappy",
		Metrics:     metrics.New(),
		Logger:      logger,
	}
}

// touchCaptures creates empty capture files so the local lister finds
// them; the fake runner never reads them.
func touchCaptures(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("pcapng"), 0o644))
	}
}

// readColumn returns every value of column col in the artifact.
func readColumn(t *testing.T, artifact string, col int) []interface{} {
	t.Helper()
	fr, err := local.NewLocalFileReader(artifact)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetColumnReader(fr, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := pr.GetNumRows()
	if n == 0 {
		return nil
	}
	vals, _, _, err := pr.ReadColumnByIndex(int64(col), n)
	require.NoError(t, err)
	return vals
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
