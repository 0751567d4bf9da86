package core

import (
	"fmt"
	"time"

	"capconv/config"
	"capconv/internal/coerce"
	"capconv/internal/dissect"
	"capconv/internal/metrics"
	"capconv/internal/retry"
	"capconv/internal/schema"
	"capconv/remote"
	"capconv/util"
)

// Build constructs the appropriate Mode from the given configuration.
// It loads the schema and time zone, wires the local or remote runner
// and shares one Converter between all workers.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	s, err := loadSchema(cfg)
	if err != nil {
		return nil, err
	}
	var loc *time.Location
	if cfg.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
	}

	var (
		runner dissect.Runner
		lister Lister = LocalLister{}
		conn   Connector
	)
	if cfg.RemoteEnabled {
		client := remote.NewClient(remoteConfig(cfg), logger)
		runner, lister, conn = client, client, client
	} else {
		runner = &dissect.LocalRunner{Logger: logger}
	}

	inv := dissect.NewInvoker(runner, dissect.Options{
		Tool:         cfg.Tshark,
		SessionReset: cfg.SessionReset,
		Occurrence:   cfg.Occurrence,
	})
	conv := &Converter{
		Invoker:        inv,
		Schema:         s,
		OutputDir:      cfg.OutputDir,
		Location:       loc,
		Layouts:        coerce.DefaultTimeLayouts,
		Compression:    cfg.Compression,
		SkipExisting:   cfg.SkipExisting,
		AllowTruncated: cfg.AllowTruncated,
		Metrics:        m,
		Logger:         logger,
	}
	batch := &BatchMode{
		Converter: conv,
		Lister:    lister,
		Remote:    conn,
		InputDir:  cfg.InputDir,
		Extension: cfg.Extension,
		Workers:   cfg.Workers,
		Logger:    logger,
	}

	switch {
	case cfg.DryRun:
		return &DryRunMode{Batch: batch, Invoker: inv, Schema: s, Logger: logger}, nil
	case cfg.Watch:
		return &WatchMode{Batch: batch, Settle: cfg.Settle, Logger: logger}, nil
	default:
		return batch, nil
	}
}

// ── shared helpers ───────────────────────────────────────────────────

func loadSchema(cfg *config.Config) (*schema.Schema, error) {
	if cfg.SchemaPath == "" {
		return schema.Default(), nil
	}
	return schema.Load(cfg.SchemaPath)
}

func remoteConfig(cfg *config.Config) *remote.Config {
	return &remote.Config{
		User:          cfg.RemoteUser,
		Host:          cfg.RemoteHost,
		Port:          cfg.RemotePort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   config.DefaultConnTimeout,
		MaxSessions:   remote.DefaultMaxSessions,
		Retry: &retry.Backoff{
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			MaxAttempts:  config.DefaultConnectAttempts,
			Jitter:       true,
		},
	}
}
