package columnar

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"capconv/internal/schema"
)

// ManifestSuffix is appended to an artifact path to name its completion
// manifest.
const ManifestSuffix = ".done"

const digestPrefix = "blake2b-256:"

// Stats are the per-capture counters recorded in the manifest.
type Stats struct {
	DroppedLines int   `json:"dropped_lines"`
	NulledFields int64 `json:"nulled_fields"`
}

// Manifest is the completion marker written next to a finished artifact.
// It carries no wall-clock time so that reconverting unchanged input
// reproduces it byte for byte.
type Manifest struct {
	Capture      string         `json:"capture"`
	Artifact     string         `json:"artifact"`
	Rows         int64          `json:"rows"`
	DroppedLines int            `json:"dropped_lines"`
	NulledFields int64          `json:"nulled_fields"`
	Fields       []schema.Field `json:"fields"`
	Digest       string         `json:"digest"`
}

// ManifestPath returns the manifest path for an artifact path.
func ManifestPath(artifact string) string { return artifact + ManifestSuffix }

// ReadManifest loads the manifest of artifact.
func ReadManifest(artifact string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(artifact))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", ManifestPath(artifact), err)
	}
	return &m, nil
}

// Verify reports whether artifact is complete: its manifest exists, was
// written for the same field list, and its digest matches the file.
func Verify(artifact string, s *schema.Schema) (bool, error) {
	m, err := ReadManifest(artifact)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sameFields(m.Fields, s.Fields()) {
		return false, nil
	}
	d, err := FileDigest(artifact)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d == m.Digest, nil
}

// FileDigest returns the BLAKE2b-256 digest of a file in manifest form.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return digestPrefix + fmt.Sprintf("%x", h.Sum(nil)), nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func sameFields(a, b []schema.Field) bool {
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
