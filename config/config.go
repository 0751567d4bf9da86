// Package config defines the runtime configuration for capconv.  A
// Config is filled from defaults, then the environment, then flags, and
// is passed explicitly to the mode builder; nothing else reads the
// environment.
package config

import (
	"strconv"
	"strings"
	"time"

	"capconv/internal/errors"
)

// Config holds every tuneable for a single capconv run.
type Config struct {
	// ── Paths ────────────────────────────────────────────────────────
	InputDir  string
	OutputDir string
	Extension string // capture file suffix, e.g. ".pcapng"

	// ── Pool ─────────────────────────────────────────────────────────
	Workers int

	// ── Dissector ────────────────────────────────────────────────────
	Tshark         string
	SessionReset   int    // tshark -M; < 0 disables
	Occurrence     string // tshark -E occurrence=
	AllowTruncated bool   // keep rows from a dissector that exited non-zero

	// ── Schema ───────────────────────────────────────────────────────
	SchemaPath string // YAML field list; built-in schema if empty
	Timezone   string // IANA zone the capture clock runs in; empty = none

	// ── Artifacts ────────────────────────────────────────────────────
	Compression  string
	SkipExisting bool

	// ── Watch ────────────────────────────────────────────────────────
	Watch  bool
	Settle time.Duration

	// ── Remote capture host ──────────────────────────────────────────
	RemoteSpec     string // raw user@host[:port] from -R
	RemoteEnabled  bool
	RemoteUser     string
	RemoteHost     string
	RemotePort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	MetricsFile string
	DryRun      bool
	Verbose     int
}

// Default returns a Config holding the documented defaults.
func Default() *Config {
	return &Config{
		InputDir:     DefaultInputDir,
		OutputDir:    DefaultOutputDir,
		Extension:    DefaultExtension,
		Workers:      DefaultWorkers,
		Tshark:       DefaultTshark,
		SessionReset: DefaultSessionReset,
		Compression:  DefaultCompression,
		Settle:       DefaultSettle,
		Verbose:      1,
	}
}

// ── Validation ───────────────────────────────────────────────────────

var compressions = []string{"none", "snappy", "gzip", "zstd"}

var occurrences = map[string]bool{"f": true, "l": true, "a": true}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return &errors.ConfigError{Field: "input", Message: "input directory is required",
			Hint: "set -i or CAPCONV_INPUT"}
	}
	if c.OutputDir == "" {
		return &errors.ConfigError{Field: "output", Message: "output directory is required",
			Hint: "set -o or CAPCONV_OUTPUT"}
	}
	if c.Workers < 1 {
		return &errors.ConfigError{Field: "workers", Value: c.Workers, Message: "must be at least 1"}
	}
	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return &errors.ConfigError{Field: "ext", Value: c.Extension,
			Message: "must start with a dot", Hint: "e.g. --ext .pcap"}
	}
	if c.Tshark == "" {
		return &errors.ConfigError{Field: "tshark", Message: "dissector executable is required"}
	}
	if c.Occurrence != "" && !occurrences[c.Occurrence] {
		if n, err := strconv.Atoi(c.Occurrence); err != nil || n == 0 {
			return &errors.ConfigError{Field: "occurrence", Value: c.Occurrence,
				Message: "must be f, l, a or an occurrence number"}
		}
	}
	if !contains(compressions, strings.ToLower(c.Compression)) {
		return &errors.ConfigError{Field: "compression", Value: c.Compression,
			Message: "unsupported codec", Hint: "one of " + strings.Join(compressions, ", ")}
	}

	if c.Watch {
		if c.RemoteEnabled {
			return &errors.ConfigError{Field: "watch", Message: "watch mode needs a local input directory",
				Hint: "drop --remote or run capconv on the capture host"}
		}
		if c.Settle <= 0 {
			return &errors.ConfigError{Field: "settle", Value: c.Settle, Message: "must be positive"}
		}
	}

	if c.RemoteEnabled && c.RemoteHost == "" {
		return &errors.ConfigError{Field: "remote", Value: c.RemoteSpec, Message: "remote host is required"}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
