package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultInputDir is scanned for captures when neither -i nor an
	// environment variable names one.
	DefaultInputDir = "captures"

	// DefaultOutputDir receives the Parquet artifacts.
	DefaultOutputDir = "processed"

	// DefaultWorkers is the number of concurrent dissector processes.
	// One keeps a laptop usable while a batch runs.
	DefaultWorkers = 1

	// DefaultExtension selects capture files in the input directory.
	DefaultExtension = ".pcapng"

	// DefaultTshark is the dissector executable.
	DefaultTshark = "tshark"

	// DefaultSessionReset is tshark's -M value.
	DefaultSessionReset = 100000

	// DefaultCompression is the Parquet codec.
	DefaultCompression = "snappy"

	// DefaultSettle is how long a capture's size must stay unchanged in
	// watch mode before it is converted.
	DefaultSettle = 5 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultConnectAttempts is how many times the capture host is
	// dialled before giving up.
	DefaultConnectAttempts = 4
)
