// Package coerce turns raw dissector strings into typed column values.
//
// Coercion never fails a record: a field that does not parse becomes
// null and the rest of the row is kept.  Truncated captures make tshark
// emit partial values near the end of a file, and dropping one field is
// cheaper than dropping the frame.
package coerce

import (
	"strconv"
	"strings"
	"time"

	"capconv/internal/errors"
	"capconv/internal/schema"
)

// DefaultTimeLayouts are tried in order for timestamp fields.  The first
// is tshark's absolute time format (`Nov  5, 2024 10:15:30.123456789 MDT`),
// the second the ISO-like form newer tshark releases and most tools use.
var DefaultTimeLayouts = []string{
	"Jan _2, 2006 15:04:05.999999999 MST",
	"Jan _2, 2006 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Kind identifies which member of a Value is set.
type Kind uint8

const (
	Null Kind = iota
	String
	Float
	Time
)

// Value is one coerced field.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	// Wall is a timezone-naive wall clock, stored in UTC so that its
	// fields read back unchanged.
	Wall time.Time
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return v.Kind == Null }

// Row is a typed record: exactly one Value per schema field, in schema
// order.
type Row struct {
	Line   int
	Values []Value
	// Nulled counts fields that had a non-empty raw value but did not
	// coerce.
	Nulled int
}

// Options tune a Coercer.
type Options struct {
	// Layouts overrides DefaultTimeLayouts.
	Layouts []string
	// Location, when set, is the zone the capture wall clocks belong to.
	// Wall clocks that are skipped or repeated there by a DST change are
	// nulled.
	Location *time.Location
	// OnError, when set, receives every field-level coercion failure.
	OnError func(*errors.CoercionError)
}

// Coercer applies a schema's types to raw records.  It is safe for
// concurrent use once built.
type Coercer struct {
	schema  *schema.Schema
	layouts []string
	loc     *time.Location
	onError func(*errors.CoercionError)
}

// New returns a Coercer for s.
func New(s *schema.Schema, opts Options) *Coercer {
	layouts := opts.Layouts
	if len(layouts) == 0 {
		layouts = DefaultTimeLayouts
	}
	return &Coercer{schema: s, layouts: layouts, loc: opts.Location, onError: opts.OnError}
}

// Coerce converts raw (one string per schema field) into a Row.  The
// returned Row owns a fresh Values slice.
func (c *Coercer) Coerce(line int, raw []string) Row {
	row := Row{Line: line, Values: make([]Value, c.schema.Len())}
	for i := range row.Values {
		if i >= len(raw) {
			continue
		}
		f := c.schema.Field(i)
		v, err := c.field(f.Type, raw[i])
		if err != nil {
			row.Nulled++
			if c.onError != nil {
				c.onError(&errors.CoercionError{Field: f.Name, Type: string(f.Type), Value: raw[i], Err: err})
			}
		}
		row.Values[i] = v
	}
	return row
}

// field coerces a single raw value.  Empty input is a plain null, not an
// error; tshark emits it for fields absent from a frame.
func (c *Coercer) field(t schema.Type, raw string) (Value, error) {
	switch t {
	case schema.Float:
		s := strings.TrimSpace(raw)
		if s == "" {
			return Value{}, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Float, Num: f}, nil

	case schema.Timestamp:
		s := strings.TrimSpace(raw)
		if s == "" {
			return Value{}, nil
		}
		w, err := ParseWall(s, c.layouts)
		if err != nil {
			return Value{}, err
		}
		if c.loc != nil {
			if err := CheckLocal(w, c.loc); err != nil {
				return Value{}, err
			}
		}
		return Value{Kind: Time, Wall: w}, nil

	default:
		if raw == "" {
			return Value{}, nil
		}
		return Value{Kind: String, Str: raw}, nil
	}
}
