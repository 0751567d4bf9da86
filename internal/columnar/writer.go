// Package columnar writes coerced rows for one capture file to a Parquet
// artifact.
//
// Rows stream into a temporary file in the output directory.  Only a
// successful Commit renames it to its final name and then writes the
// completion manifest, so a reader that sees an artifact together with a
// matching manifest sees a complete file.  Anything else (a leftover
// temp file, an artifact without manifest) is an interrupted conversion.
package columnar

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/crypto/blake2b"

	"capconv/internal/coerce"
	"capconv/internal/errors"
	"capconv/internal/schema"
)

// Extension is appended to the capture file name to name its artifact.
const Extension = ".parquet"

// DefaultRowGroupSize caps the rows buffered in memory before a row group
// is flushed (16 MiB).
const DefaultRowGroupSize = 16 * 1024 * 1024

// Compression codecs accepted by Options.Compression.
var codecs = map[string]parquet.CompressionCodec{
	"none":   parquet.CompressionCodec_UNCOMPRESSED,
	"snappy": parquet.CompressionCodec_SNAPPY,
	"gzip":   parquet.CompressionCodec_GZIP,
	"zstd":   parquet.CompressionCodec_ZSTD,
}

// ValidCompression reports whether name is a supported codec.
func ValidCompression(name string) bool {
	_, ok := codecs[strings.ToLower(name)]
	return ok
}

// Options tune a Writer.
type Options struct {
	Compression  string // codec name; "snappy" if empty
	RowGroupSize int64  // DefaultRowGroupSize if 0
}

// ArtifactName returns the artifact file name for capture.
func ArtifactName(capture string) string {
	return filepath.Base(capture) + Extension
}

// Writer streams rows for one capture into a Parquet artifact.  It is
// owned by a single conversion task.
type Writer struct {
	capture string
	final   string
	tmp     string
	schema  *schema.Schema

	f    *os.File
	sum  hash.Hash
	pw   *writer.CSVWriter
	rows int64
	done bool
}

// Create opens a temporary artifact for capture in dir.  Any manifest
// left from an earlier run is removed first so it can never vouch for
// the new file.
func Create(dir, capture string, s *schema.Schema, opts Options) (*Writer, error) {
	final := filepath.Join(dir, ArtifactName(capture))
	if err := os.Remove(ManifestPath(final)); err != nil && !os.IsNotExist(err) {
		return nil, errors.WrapWrite("create", ManifestPath(final), err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(final)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WrapWrite("create", tmp, err)
	}

	sum, _ := blake2b.New256(nil) // only fails for oversized keys
	pw, err := writer.NewCSVWriter(Metadata(s), writerfile.NewWriterFile(io.MultiWriter(f, sum)), 1)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, errors.WrapWrite("create", tmp, err)
	}
	codec := strings.ToLower(opts.Compression)
	if codec == "" {
		codec = "snappy"
	}
	c, ok := codecs[codec]
	if !ok {
		f.Close()
		os.Remove(tmp)
		return nil, errors.WrapWrite("create", tmp, fmt.Errorf("unknown compression %q", opts.Compression))
	}
	pw.CompressionType = c
	pw.RowGroupSize = opts.RowGroupSize
	if pw.RowGroupSize <= 0 {
		pw.RowGroupSize = DefaultRowGroupSize
	}

	return &Writer{
		capture: capture,
		final:   final,
		tmp:     tmp,
		schema:  s,
		f:       f,
		sum:     sum,
		pw:      pw,
	}, nil
}

// Metadata returns the parquet-go column declarations for s, one per
// field in schema order.  Every column is OPTIONAL so that coercion
// failures can be stored as nulls.
func Metadata(s *schema.Schema) []string {
	md := make([]string, s.Len())
	for i, f := range s.Fields() {
		switch f.Type {
		case schema.Float:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", f.Name)
		case schema.Timestamp:
			md[i] = fmt.Sprintf("name=%s, type=INT64, logicaltype=TIMESTAMP, "+
				"logicaltype.isadjustedtoutc=false, logicaltype.unit=MICROS, repetitiontype=OPTIONAL", f.Name)
		default:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", f.Name)
		}
	}
	return md
}

// Path returns the final artifact path.
func (w *Writer) Path() string { return w.final }

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Write appends one row.  Rows are stored in call order.
//
// parquet-go buffers the record slice itself until the next page flush,
// so every call hands it a fresh one.
func (w *Writer) Write(row coerce.Row) error {
	rec := make([]interface{}, w.schema.Len())
	for i := range rec {
		if i >= len(row.Values) {
			break
		}
		v := row.Values[i]
		switch v.Kind {
		case coerce.String:
			rec[i] = v.Str
		case coerce.Float:
			rec[i] = v.Num
		case coerce.Time:
			rec[i] = v.Wall.UnixMicro()
		}
	}
	if err := w.pw.Write(rec); err != nil {
		return errors.WrapWrite("write", w.tmp, err)
	}
	w.rows++
	return nil
}

// Commit finishes the artifact, moves it into place and writes its
// manifest.  On error nothing is left under the final names.
func (w *Writer) Commit(stats Stats) (*Manifest, error) {
	if w.done {
		return nil, errors.WrapWrite("commit", w.final, fmt.Errorf("writer already closed"))
	}
	w.done = true

	if err := w.pw.WriteStop(); err != nil {
		w.discard()
		return nil, errors.WrapWrite("flush", w.tmp, err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return nil, errors.WrapWrite("sync", w.tmp, err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmp)
		return nil, errors.WrapWrite("close", w.tmp, err)
	}
	if err := os.Rename(w.tmp, w.final); err != nil {
		os.Remove(w.tmp)
		return nil, errors.WrapWrite("rename", w.final, err)
	}

	m := &Manifest{
		Capture:      filepath.Base(w.capture),
		Artifact:     filepath.Base(w.final),
		Rows:         w.rows,
		DroppedLines: stats.DroppedLines,
		NulledFields: stats.NulledFields,
		Fields:       w.schema.Fields(),
		Digest:       digestPrefix + fmt.Sprintf("%x", w.sum.Sum(nil)),
	}
	if err := writeManifest(ManifestPath(w.final), m); err != nil {
		os.Remove(w.final)
		return nil, errors.WrapWrite("manifest", ManifestPath(w.final), err)
	}
	return m, nil
}

// Abort discards the temporary artifact.  It is a no-op after Commit.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.tmp)
}

// IsTemp reports whether name is a temporary artifact left by an
// interrupted conversion.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") &&
		strings.Contains(name, Extension+".")
}
