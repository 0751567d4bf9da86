package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"capconv/internal/errors"
	"capconv/util"
)

// WatchMode converts the captures already in the input directory, then
// keeps converting new ones as the capture process finishes them.  A
// file is considered finished once its size has not changed for Settle.
type WatchMode struct {
	Batch  *BatchMode
	Settle time.Duration
	// Tick is how often pending files are re-examined; Settle/5 if zero.
	Tick   time.Duration
	Logger *util.Logger

	mu      sync.Mutex
	summary Summary
}

type pendingFile struct {
	size  int64
	since time.Time
}

// Run blocks until ctx is cancelled.  Captures still converting at that
// point are killed and reported as failed.
func (m *WatchMode) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watch before the initial sweep so captures finished during it are
	// not missed.
	if err := watcher.Add(m.Batch.InputDir); err != nil {
		return err
	}

	start := time.Now()
	if err := m.Batch.Run(ctx); err != nil && !errors.Is(err, errors.ErrNoCaptures) &&
		!errors.Is(err, errors.ErrBatchFailed) {
		return err
	}
	total := m.Batch.Summary()
	m.setSummary(total)
	m.Logger.Info("watching %s for new *%s files", m.Batch.InputDir, m.Batch.Extension)

	var (
		g        errgroup.Group
		resMu    sync.Mutex
		results  []Result
		inflight = make(map[string]bool)
		pending  = make(map[string]*pendingFile)
	)
	g.SetLimit(m.Batch.Workers)

	tick := m.Tick
	if tick <= 0 {
		tick = m.Settle / 5
	}
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	dispatch := func(path string) bool {
		resMu.Lock()
		busy := inflight[path]
		if !busy {
			inflight[path] = true
		}
		resMu.Unlock()
		if busy {
			return false
		}
		ok := g.TryGo(func() error {
			r := m.Batch.Converter.Convert(ctx, path)
			resMu.Lock()
			results = append(results, r)
			delete(inflight, path)
			resMu.Unlock()
			return nil
		})
		if !ok {
			resMu.Lock()
			delete(inflight, path)
			resMu.Unlock()
		}
		return ok
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case ev, ok := <-watcher.Events:
			if !ok {
				break loop
			}
			if !strings.HasSuffix(ev.Name, m.Batch.Extension) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				if p, ok := pending[ev.Name]; ok {
					p.since = time.Now()
					continue
				}
				fi, err := os.Stat(ev.Name)
				if err != nil || !fi.Mode().IsRegular() {
					continue
				}
				m.Logger.Debug("watch: %s changed", filepath.Base(ev.Name))
				pending[ev.Name] = &pendingFile{size: fi.Size(), since: time.Now()}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				break loop
			}
			m.Logger.Warn("watch: %v", err)

		case now := <-ticker.C:
			for path, p := range pending {
				fi, err := os.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if fi.Size() != p.size {
					p.size, p.since = fi.Size(), now
					continue
				}
				if now.Sub(p.since) < m.Settle {
					continue
				}
				if dispatch(path) {
					delete(pending, path)
				}
			}
		}
	}

	g.Wait()
	resMu.Lock()
	watched := Summarize(results, time.Since(start)-total.Elapsed)
	resMu.Unlock()
	total = total.Merge(watched)
	m.setSummary(total)
	return total.Err()
}

func (m *WatchMode) setSummary(s Summary) {
	m.mu.Lock()
	m.summary = s
	m.mu.Unlock()
}

// Summary returns the results of the initial sweep and every capture
// converted while watching.
func (m *WatchMode) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}
