package core

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"capconv/internal/columnar"
	"capconv/internal/errors"
	"capconv/util"
)

// Lister enumerates capture files in a directory.
type Lister interface {
	List(ctx context.Context, dir, ext string) ([]string, error)
}

// Connector is a remote runner that must be connected before use.
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
}

// LocalLister lists captures on this machine.
type LocalLister struct{}

// List returns the regular files directly inside dir whose names end in
// ext, sorted by name.  Symlinks to regular files count.
func (LocalLister) List(_ context.Context, dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !e.Type().IsRegular() {
			fi, err := os.Stat(p)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// BatchMode converts every capture in a directory once.
type BatchMode struct {
	Converter *Converter
	Lister    Lister
	Remote    Connector // optional; connected for the duration of Run
	InputDir  string
	Extension string
	Workers   int
	Logger    *util.Logger

	mu      sync.Mutex
	summary Summary
}

// Run lists the captures, converts them on at most Workers concurrent
// dissectors and waits for all of them.  A failing capture never stops
// its siblings; Run reports errors.ErrBatchFailed afterwards.
func (m *BatchMode) Run(ctx context.Context) error {
	start := time.Now()

	if m.Remote != nil {
		if err := m.Remote.Connect(ctx); err != nil {
			return err
		}
		defer m.Remote.Close()
	}

	captures, err := m.Lister.List(ctx, m.InputDir, m.Extension)
	if err != nil {
		return err
	}
	if len(captures) == 0 {
		m.Logger.Warn("no *%s files in %s", m.Extension, m.InputDir)
		return errors.ErrNoCaptures
	}

	if err := prepareOutput(m.Converter.OutputDir, m.Logger); err != nil {
		return err
	}

	m.Logger.Verbose("converting %d capture(s) with %d worker(s)", len(captures), m.Workers)
	results := RunAll(ctx, captures, m.Workers, m.Converter.Convert)

	s := Summarize(results, time.Since(start))
	m.mu.Lock()
	m.summary = s
	m.mu.Unlock()
	return s.Err()
}

// Summary returns the outcome of the last Run.
func (m *BatchMode) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// RunAll runs convert for every capture with at most workers in flight
// and returns the results in input order.  Task failures are recorded,
// never propagated to the group, so siblings keep running.  Captures not
// yet started when ctx is cancelled fail with the context error.
func RunAll(ctx context.Context, captures []string, workers int, convert func(context.Context, string) Result) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(captures))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, capture := range captures {
		i, capture := i, capture
		if err := ctx.Err(); err != nil {
			results[i] = Result{Capture: capture, Err: err}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Capture: capture, Err: err}
				return nil
			}
			results[i] = convert(ctx, capture)
			return nil
		})
	}
	g.Wait()
	return results
}

// prepareOutput creates the output directory and removes temporary
// artifacts left by interrupted runs.
func prepareOutput(dir string, logger *util.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWrite("mkdir", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WrapWrite("readdir", dir, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && columnar.IsTemp(e.Name()) {
			p := filepath.Join(dir, e.Name())
			if err := os.Remove(p); err == nil {
				logger.Verbose("removed stale %s", p)
			}
		}
	}
	return nil
}
