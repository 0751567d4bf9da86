package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"capconv/internal/coerce"
	"capconv/internal/columnar"
	"capconv/internal/dissect"
	"capconv/internal/errors"
	"capconv/internal/metrics"
	"capconv/internal/records"
	"capconv/internal/schema"
	"capconv/util"
)

// Converter turns one capture file into one Parquet artifact.  It holds
// only read-only configuration, so a single Converter serves every
// worker; all per-capture state lives in Convert.
type Converter struct {
	Invoker   *dissect.Invoker
	Schema    *schema.Schema
	OutputDir string

	// Location and Layouts configure timestamp coercion.
	Location *time.Location
	Layouts  []string

	Compression    string
	SkipExisting   bool
	AllowTruncated bool

	Metrics *metrics.Collector
	Logger  *util.Logger
}

// Result is the outcome of one conversion task.
type Result struct {
	Capture  string
	Artifact string
	Rows     int64
	Dropped  int
	Nulled   int64
	Bytes    int64 // dissector output consumed
	Skipped  bool
	Elapsed  time.Duration
	Err      error
}

// OK reports whether the task produced (or kept) a complete artifact.
func (r Result) OK() bool { return r.Err == nil }

// Convert runs the dissector on capture and streams its rows into an
// artifact.  Malformed lines and unparseable fields are logged and
// counted; everything else fails the task.  A failed task leaves no
// artifact under the final name.
func (c *Converter) Convert(ctx context.Context, capture string) Result {
	start := time.Now()
	name := filepath.Base(capture)
	log := c.Logger.With(name)
	res := Result{Capture: capture, Artifact: filepath.Join(c.OutputDir, columnar.ArtifactName(capture))}

	if c.SkipExisting {
		ok, err := columnar.Verify(res.Artifact, c.Schema)
		if err != nil {
			log.Warn("cannot verify existing artifact, reconverting: %v", err)
		}
		if ok {
			log.Verbose("up to date, skipping")
			c.Metrics.FileSkipped()
			res.Skipped = true
			return res
		}
	}

	c.Metrics.FileStarted()
	res = c.convert(ctx, capture, log, res)
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		c.Metrics.FileFailed(res.Err.Error())
		log.Error("%v", res.Err)
		return res
	}
	c.Metrics.FileSucceeded()
	c.Metrics.RowsWritten(res.Rows)
	c.Metrics.LinesDropped(int64(res.Dropped))
	c.Metrics.FieldsNulled(res.Nulled)
	log.Info("%s rows -> %s (%s read in %s)", humanize.Comma(res.Rows), res.Artifact,
		humanize.IBytes(uint64(res.Bytes)), res.Elapsed.Round(time.Millisecond))
	if res.Dropped > 0 || res.Nulled > 0 {
		log.Warn("%d malformed lines dropped, %d fields nulled", res.Dropped, res.Nulled)
	}
	return res
}

func (c *Converter) convert(parent context.Context, capture string, log *util.Logger, res Result) Result {
	// The task context is cancelled whenever the output stops being read
	// before EOF, so the dissector cannot block on a full pipe.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	w, err := columnar.Create(c.OutputDir, capture, c.Schema, columnar.Options{Compression: c.Compression})
	if err != nil {
		res.Err = err
		return res
	}

	run, err := c.Invoker.Start(ctx, capture, c.Schema)
	if err != nil {
		w.Abort()
		res.Err = err
		return res
	}
	c.Metrics.DissectorStarted()
	log.Debug("dissector started")

	out := &util.CountingReader{R: run.Stdout()}
	rd := records.NewReader(out, c.Schema, records.Options{
		Capture: capture,
		OnMalformed: func(e *errors.MalformedLineError) {
			if e.Err != nil {
				log.Warn("dropped line %d: %v", e.Line, e.Err)
			} else {
				log.Warn("dropped line %d: got %d fields, want %d", e.Line, e.Fields, e.Want)
			}
			log.Debug("line %d content: %q", e.Line, e.Content)
		},
	})
	co := coerce.New(c.Schema, coerce.Options{
		Layouts:  c.Layouts,
		Location: c.Location,
		OnError: func(e *errors.CoercionError) {
			log.Debug("%v", e)
		},
	})

	var writeErr error
	for rd.Next() {
		rec := rd.Record()
		row := co.Coerce(rec.Line, rec.Values)
		res.Nulled += int64(row.Nulled)
		if writeErr = w.Write(row); writeErr != nil {
			break
		}
	}
	readErr := rd.Err()
	res.Dropped = rd.Dropped()
	rd.Close()
	if writeErr != nil || (readErr != nil && !errors.Is(readErr, errors.ErrNoHeader)) {
		cancel()
	}

	waitErr := run.Wait()
	c.Metrics.DissectorExited()
	res.Bytes = out.N()
	c.Metrics.BytesRead(res.Bytes)
	if s := run.Stderr(); s != "" && waitErr == nil {
		log.Debug("dissector stderr: %s", s)
	}

	switch {
	case parent.Err() != nil:
		res.Err = parent.Err()
	case writeErr != nil:
		res.Err = writeErr
	case readErr != nil && !errors.Is(readErr, errors.ErrNoHeader):
		res.Err = readErr
	case waitErr != nil && !(c.AllowTruncated && w.Rows() > 0):
		res.Err = waitErr
	}
	if res.Err != nil {
		w.Abort()
		return res
	}

	if waitErr != nil {
		log.Warn("keeping %d rows from abnormal dissector exit: %v", w.Rows(), waitErr)
	} else if readErr != nil {
		log.Warn("dissector produced no output, writing empty artifact")
	}

	m, err := w.Commit(columnar.Stats{DroppedLines: res.Dropped, NulledFields: res.Nulled})
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = m.Rows
	return res
}
