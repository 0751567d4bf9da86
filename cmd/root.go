// Package cmd wires up the CLI flags and dispatches to the conversion core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"capconv/config"
	"capconv/internal/core"
	"capconv/internal/errors"
	"capconv/internal/metrics"
	"capconv/remote"
	"capconv/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X capconv/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected conversion mode.  Defaults
// come from config.Default, then the environment, then flags.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("capconv", flag.ContinueOnError)

	// ── directories ──────────────────────────────────────────────
	fs.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "Directory holding capture files")
	fs.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "Directory for Parquet artifacts")
	fs.StringVar(&cfg.Extension, "ext", cfg.Extension, "Capture file extension")
	fs.IntVarP(&cfg.Workers, "workers", "n", cfg.Workers, "Concurrent dissector processes")

	// ── dissector ────────────────────────────────────────────────
	fs.StringVar(&cfg.Tshark, "tshark", cfg.Tshark, "Dissector executable")
	fs.IntVar(&cfg.SessionReset, "session-reset", cfg.SessionReset, "tshark -M value (negative disables)")
	fs.StringVar(&cfg.Occurrence, "occurrence", cfg.Occurrence, "tshark -E occurrence= (f, l, a or an index)")
	fs.BoolVar(&cfg.AllowTruncated, "allow-truncated", cfg.AllowTruncated, "Keep rows from a dissector that exited abnormally")

	// ── artifacts ────────────────────────────────────────────────
	fs.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "YAML field schema (default: built-in wireless fields)")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "Zone of capture clocks; DST-ambiguous times become null")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Parquet codec: none, snappy, gzip, zstd")
	fs.BoolVar(&cfg.SkipExisting, "skip-existing", cfg.SkipExisting, "Skip captures with a verified artifact")

	// ── watch ────────────────────────────────────────────────────
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Keep converting new captures until interrupted")
	fs.DurationVar(&cfg.Settle, "settle", cfg.Settle, "Time a capture's size must be stable before conversion")

	// ── remote capture host ──────────────────────────────────────
	fs.StringVarP(&cfg.RemoteSpec, "remote", "R", cfg.RemoteSpec, "Run tshark on [user@]host[:port] over SSH")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the dissector commands and exit")

	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("capconv %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}
	if verbose > 0 {
		cfg.Verbose = 1 + verbose
	}
	if quiet {
		cfg.Verbose = 0
	}

	// ── remote target ────────────────────────────────────────────
	if cfg.RemoteSpec != "" {
		user, host, port, err := remote.ParseTarget(cfg.RemoteSpec)
		if err != nil {
			return err
		}
		cfg.RemoteEnabled = true
		cfg.RemoteUser = user
		cfg.RemoteHost = host
		cfg.RemotePort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	runID := uuid.NewString()
	m := metrics.New()
	logger.Debug("run %s", runID)

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	runErr := mode.Run(ctx)

	if s, ok := mode.(core.Summarizer); ok && !cfg.DryRun {
		report(logger, s.Summary())
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile, runID); err != nil {
			logger.Warn("metrics: %v", err)
		}
	}

	if errors.Is(runErr, errors.ErrNoCaptures) {
		return nil
	}
	return runErr
}

// ── helpers ──────────────────────────────────────────────────────────

// report prints the end-of-run summary and every failed capture.
func report(logger *util.Logger, s core.Summary) {
	if len(s.Results) == 0 {
		return
	}
	logger.Info("%d converted, %d failed, %d skipped: %s rows, %s read in %s",
		s.Succeeded, s.Failed, s.Skipped, humanize.Comma(s.Rows),
		humanize.IBytes(uint64(s.Bytes)), s.Elapsed.Round(time.Millisecond))
	if s.Dropped > 0 || s.Nulled > 0 {
		logger.Info("%s malformed lines dropped, %s fields nulled",
			humanize.Comma(int64(s.Dropped)), humanize.Comma(s.Nulled))
	}
	for _, r := range s.Failures() {
		logger.Error("failed: %s: %v", r.Capture, r.Err)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `capconv – capture to Parquet converter v%s

Runs tshark on every capture file in a directory and writes one Parquet
file per capture, with a bounded number of dissectors in flight.

Usage:
  capconv [options]                           Convert a directory once
  capconv --watch [options]                   Convert new captures as they land
  capconv -R user@sensor [options]            Dissect on a capture host over SSH

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  CAPCONV_INPUT, CAPCONV_OUTPUT, CAPCONV_WORKERS and CAPCONV_<FLAG> set
  defaults; CAPTURES_FOLDER and PROCESSED_DATA_FOLDER are also honoured.

Examples:
  capconv -i captures -o processed -n 4       Four dissectors at once
  capconv --skip-existing --timezone Europe/Zurich
  capconv --watch --settle 10s                Follow a live capture directory
  capconv -R survey@sensor-01 -i /data/pcap   Remote dissection
`)
}
