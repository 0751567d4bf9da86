package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	s := Default()
	if s.Len() != 7 {
		t.Fatalf("Len = %d, want 7", s.Len())
	}
	if s.TimeField() != 0 {
		t.Errorf("TimeField = %d, want 0", s.TimeField())
	}
	if got := s.Field(s.TimeField()).Name; got != "aruba_erm.time" {
		t.Errorf("time field = %q", got)
	}
	for _, name := range []string{"wlan.qbss.scount", "wlan.qbss.cu", "wlan.qbss.adc"} {
		i := s.Index(name)
		if i < 0 {
			t.Fatalf("missing %s", name)
		}
		if s.Field(i).Type != Float {
			t.Errorf("%s type = %s, want float", name, s.Field(i).Type)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		substr string
	}{
		{"empty", nil, "no fields"},
		{"blank name", []Field{{Name: " "}}, "no name"},
		{"bad type", []Field{{Name: "a", Type: "int"}}, "unknown type"},
		{"duplicate", []Field{{Name: "a"}, {Name: "a"}}, "duplicate"},
		{"time not timestamp", []Field{{Name: "a", Type: Float, Time: true}}, "must have type timestamp"},
		{"two time fields", []Field{
			{Name: "a", Type: Timestamp, Time: true},
			{Name: "b", Type: Timestamp, Time: true},
		}, "both a and b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fields)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not contain %q", err, tt.substr)
			}
		})
	}
}

func TestNew_DefaultsToString(t *testing.T) {
	s, err := New([]Field{{Name: "wlan.ssid"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Field(0).Type != String {
		t.Errorf("type = %q, want string", s.Field(0).Type)
	}
	if s.TimeField() != -1 {
		t.Errorf("TimeField = %d, want -1", s.TimeField())
	}
}

func TestFields_IsCopy(t *testing.T) {
	s := Default()
	f := s.Fields()
	f[0].Name = "mutated"
	if s.Field(0).Name == "mutated" {
		t.Error("Fields() must not expose internal state")
	}
}

func TestParse(t *testing.T) {
	doc := `
fields:
  - name: frame.time
    type: timestamp
    time: true
  - name: wlan.ta
  - name: wlan.ds.current_channel
    type: float
`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"frame.time", "wlan.ta", "wlan.ds.current_channel"}
	got := s.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if s.Index("wlan.ds.current_channel") != 2 {
		t.Errorf("Index = %d", s.Index("wlan.ds.current_channel"))
	}
	if s.Index("nope") != -1 {
		t.Error("unknown name should give -1")
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("fields:\n  - name: a\n    kind: float\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  - {name: a, type: float}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 || s.Field(0).Type != Float {
		t.Errorf("unexpected schema %+v", s.Fields())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
