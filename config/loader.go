package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the CAPCONV_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  The unprefixed
// CAPTURES_FOLDER and PROCESSED_DATA_FOLDER used by existing capture
// deployments are still honoured, below their prefixed equivalents.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := firstEnv("CAPCONV_INPUT", "CAPTURES_FOLDER"); v != "" {
		cfg.InputDir = v
	}
	if v := firstEnv("CAPCONV_OUTPUT", "PROCESSED_DATA_FOLDER"); v != "" {
		cfg.OutputDir = v
	}
	if v := envInt("CAPCONV_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := os.Getenv("CAPCONV_EXT"); v != "" {
		cfg.Extension = v
	}

	// Dissector
	if v := os.Getenv("CAPCONV_TSHARK"); v != "" {
		cfg.Tshark = v
	}
	if v := os.Getenv("CAPCONV_SESSION_RESET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionReset = n
		}
	}
	if v := os.Getenv("CAPCONV_OCCURRENCE"); v != "" {
		cfg.Occurrence = v
	}
	if envBool("CAPCONV_ALLOW_TRUNCATED") {
		cfg.AllowTruncated = true
	}

	// Schema
	if v := os.Getenv("CAPCONV_SCHEMA"); v != "" {
		cfg.SchemaPath = v
	}
	if v := os.Getenv("CAPCONV_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	// Artifacts
	if v := os.Getenv("CAPCONV_COMPRESSION"); v != "" {
		cfg.Compression = v
	}
	if envBool("CAPCONV_SKIP_EXISTING") {
		cfg.SkipExisting = true
	}

	// Watch
	if envBool("CAPCONV_WATCH") {
		cfg.Watch = true
	}
	if v := envDuration("CAPCONV_SETTLE"); v > 0 {
		cfg.Settle = v
	}

	// Remote capture host
	if v := os.Getenv("CAPCONV_REMOTE"); v != "" {
		cfg.RemoteSpec = v
	}
	if v := os.Getenv("CAPCONV_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("CAPCONV_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("CAPCONV_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("CAPCONV_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := os.Getenv("CAPCONV_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	if v := envInt("CAPCONV_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts a Go duration ("30s") or a bare number of seconds.
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
