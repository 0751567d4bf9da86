// Package schema declares which dissector fields are requested and the
// semantic type each one is coerced to.
//
// A Schema is built once at start-up (from the defaults or a YAML file)
// and shared read-only by every conversion worker.
package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the semantic type of a field.
type Type string

const (
	String    Type = "string"
	Float     Type = "float"
	Timestamp Type = "timestamp"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case String, Float, Timestamp:
		return true
	}
	return false
}

// Field is one requested dissector field.
type Field struct {
	Name string `yaml:"name"`
	Type Type   `yaml:"type"`
	// Time marks the capture-time column. At most one field may set it.
	Time bool `yaml:"time,omitempty"`
}

// Schema is an ordered, immutable list of fields.
type Schema struct {
	fields []Field
	index  map[string]int
	time   int
}

// New validates fields and returns a Schema. The slice is copied.
func New(fields []Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema: no fields")
	}
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
		time:   -1,
	}
	for i, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field %d has no name", i)
		}
		if f.Type == "" {
			f.Type = String
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("schema: field %s: unknown type %q", f.Name, f.Type)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %s", f.Name)
		}
		if f.Time {
			if f.Type != Timestamp {
				return nil, fmt.Errorf("schema: time field %s must have type timestamp", f.Name)
			}
			if s.time >= 0 {
				return nil, fmt.Errorf("schema: both %s and %s are marked as the time field",
					s.fields[s.time].Name, f.Name)
			}
			s.time = i
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in request order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// TimeField returns the index of the capture-time field, or -1.
func (s *Schema) TimeField() int { return s.time }

// ── Defaults ─────────────────────────────────────────────────────────

// Default returns the wireless-survey field set: Aruba ERM capture time,
// transmitter address, AP name, SSID and the QBSS load element.
func Default() *Schema {
	s, err := New([]Field{
		{Name: "aruba_erm.time", Type: Timestamp, Time: true},
		{Name: "wlan.ta", Type: String},
		{Name: "wlan.vs.aruba.ap_name", Type: String},
		{Name: "wlan.ssid", Type: String},
		{Name: "wlan.qbss.scount", Type: Float},
		{Name: "wlan.qbss.cu", Type: Float},
		{Name: "wlan.qbss.adc", Type: Float},
	})
	if err != nil {
		panic(err) // static table
	}
	return s
}

// ── YAML file ────────────────────────────────────────────────────────

type fileFormat struct {
	Fields []Field `yaml:"fields"`
}

// Parse reads a schema document:
//
//	fields:
//	  - name: frame.time
//	    type: timestamp
//	    time: true
//	  - name: wlan.ds.current_channel
//	    type: float
func Parse(data []byte) (*Schema, error) {
	var ff fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return New(ff.Fields)
}

// Load reads and parses the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
