// Package core is the orchestration layer.  It composes the dissector,
// the record parser, coercion and the columnar writer into a conversion
// task, runs tasks on a bounded worker pool, and provides a builder that
// selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	dissect / records / coerce / columnar  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point between the
// command line and the modes.
package core

import "context"

// Mode represents a complete operational mode of capconv (batch, watch
// or dry run).  Each mode owns its full lifecycle, from listing
// captures to tearing down the remote connection.
type Mode interface {
	Run(ctx context.Context) error
}

// Summarizer is implemented by modes that convert captures.  Summary is
// valid once Run returned.
type Summarizer interface {
	Summary() Summary
}
