// Package records parses the delimited, double-quoted output of
// `tshark -T fields -E header=y -E separator=, -E quote=d` as a stream.
//
// Lines are read one at a time through a pooled buffer, so memory use is
// bounded by the longest line, not by the size of the capture.  A line
// that cannot be split into exactly one value per schema field is
// reported through the OnMalformed hook and skipped; the next line is
// parsed on its own, so one bad line never desynchronises the rest.
package records

import (
	"bufio"
	"bytes"
	"io"

	"capconv/internal/errors"
	"capconv/internal/schema"
	"capconv/util"
)

// DefaultMaxLine is the longest line accepted (1 MiB).  tshark lines are
// a few hundred bytes; anything near this is garbage from a truncated
// capture.
const DefaultMaxLine = 1 << 20

// maxContent bounds the raw line text copied into a MalformedLineError.
const maxContent = 512

// Record is one parsed data line.  Values holds one string per schema
// field.  The slice is reused by the next call to Next.
type Record struct {
	Line   int
	Values []string
}

// Options tune a Reader.
type Options struct {
	// Capture names the source in diagnostics.
	Capture string
	// MaxLine overrides DefaultMaxLine.
	MaxLine int
	// OnMalformed is called for every skipped line.
	OnMalformed func(*errors.MalformedLineError)
}

// Reader yields Records from dissector output.  It is not safe for
// concurrent use and cannot be rewound.
type Reader struct {
	br      *bufio.Reader
	schema  *schema.Schema
	opts    Options
	line    int
	header  bool
	long    []byte
	fields  []string
	rec     Record
	dropped int
	err     error
}

// NewReader returns a Reader over src.  Call Close to return its buffer
// to the pool.
func NewReader(src io.Reader, s *schema.Schema, opts Options) *Reader {
	if opts.MaxLine <= 0 {
		opts.MaxLine = DefaultMaxLine
	}
	return &Reader{
		br:     util.GetReader(src),
		schema: s,
		opts:   opts,
		fields: make([]string, 0, s.Len()),
	}
}

// ReadHeader consumes the first non-empty line and checks that it names
// the schema fields in order.  It returns errors.ErrNoHeader if the
// stream ends first.  Next calls it implicitly.
func (r *Reader) ReadHeader() error {
	if r.header {
		return nil
	}
	want := r.schema.Names()
	for {
		raw, err := r.readLine()
		if err == io.EOF {
			return errors.ErrNoHeader
		}
		if errors.Is(err, errors.ErrLineTooLong) {
			return &errors.HeaderError{Capture: r.opts.Capture, Want: want, Got: []string{string(raw)}}
		}
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			continue
		}
		got, err := split(raw, r.fields[:0])
		if err != nil || !equal(got, want) {
			return &errors.HeaderError{Capture: r.opts.Capture, Want: want, Got: clone(got)}
		}
		r.header = true
		return nil
	}
}

// Next advances to the next well-formed data line.  It returns false at
// end of stream, on a header mismatch or on a read error; check Err.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.header {
		if r.err = r.ReadHeader(); r.err != nil {
			return false
		}
	}
	want := r.schema.Len()
	for {
		raw, err := r.readLine()
		if err == io.EOF {
			return false
		}
		if errors.Is(err, errors.ErrLineTooLong) {
			r.malformed(raw, 0, err)
			continue
		}
		if err != nil {
			r.err = err
			return false
		}
		if len(raw) == 0 {
			continue
		}

		fields, err := split(raw, r.fields[:0])
		r.fields = fields[:0]
		if err != nil {
			r.malformed(raw, 0, err)
			continue
		}
		if len(fields) != want {
			r.malformed(raw, len(fields), nil)
			continue
		}
		r.rec = Record{Line: r.line, Values: fields}
		return true
	}
}

// Record returns the current record.  Valid until the next call to Next.
func (r *Reader) Record() Record { return r.rec }

// Err returns the error that stopped Next, if any.  An empty stream is
// reported as errors.ErrNoHeader so callers can tell "no output" from
// "no frames".
func (r *Reader) Err() error { return r.err }

// Line returns the number of lines read so far, header included.
func (r *Reader) Line() int { return r.line }

// Dropped returns the number of malformed lines skipped.
func (r *Reader) Dropped() int { return r.dropped }

// Close releases the read buffer.  The Reader must not be used after.
func (r *Reader) Close() {
	util.PutReader(r.br)
	r.br = nil
}

func (r *Reader) malformed(raw []byte, n int, cause error) {
	r.dropped++
	if r.opts.OnMalformed == nil {
		return
	}
	if len(raw) > maxContent {
		raw = raw[:maxContent]
	}
	r.opts.OnMalformed(&errors.MalformedLineError{
		Capture: r.opts.Capture,
		Line:    r.line,
		Content: string(raw),
		Fields:  n,
		Want:    r.schema.Len(),
		Err:     cause,
	})
}

// readLine returns the next line without its terminator.  A line longer
// than MaxLine is consumed to its end and returned as a prefix together
// with ErrLineTooLong.  The slice is valid until the next call.
func (r *Reader) readLine() ([]byte, error) {
	r.long = r.long[:0]
	over := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			over = r.accumulate(chunk, over)
			continue
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == io.EOF && len(chunk) == 0 && len(r.long) == 0 && !over {
			return nil, io.EOF
		}

		r.line++
		line := chunk
		if len(r.long) > 0 || over {
			over = r.accumulate(chunk, over)
			line = r.long
		} else if len(line) > r.opts.MaxLine {
			over = true
		}
		if over {
			if len(line) > maxContent {
				line = line[:maxContent]
			}
			return line, errors.ErrLineTooLong
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		return line, nil
	}
}

// accumulate appends a partial line to r.long.  Once the line exceeds
// MaxLine only a diagnostic prefix is kept.
func (r *Reader) accumulate(chunk []byte, over bool) bool {
	if over {
		return true
	}
	if len(r.long)+len(chunk) > r.opts.MaxLine {
		r.long = append(r.long, chunk...)
		if len(r.long) > maxContent {
			r.long = r.long[:maxContent]
		}
		return true
	}
	r.long = append(r.long, chunk...)
	return false
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
