package core

import (
	"context"
	"path/filepath"
	"strings"

	"capconv/internal/columnar"
	"capconv/internal/dissect"
	"capconv/internal/schema"
	"capconv/util"
)

// DryRunMode lists the captures a batch would convert and prints the
// dissector command for each, without running anything.
type DryRunMode struct {
	Batch   *BatchMode
	Invoker *dissect.Invoker
	Schema  *schema.Schema
	Logger  *util.Logger
}

// Run implements [Mode].
func (m *DryRunMode) Run(ctx context.Context) error {
	b := m.Batch
	if b.Remote != nil {
		if err := b.Remote.Connect(ctx); err != nil {
			return err
		}
		defer b.Remote.Close()
	}
	captures, err := b.Lister.List(ctx, b.InputDir, b.Extension)
	if err != nil {
		return err
	}
	for _, c := range captures {
		out := filepath.Join(b.Converter.OutputDir, columnar.ArtifactName(c))
		m.Logger.Info("%s %s > %s", m.Invoker.Tool(), strings.Join(m.Invoker.Args(c, m.Schema), " "), out)
	}
	m.Logger.Info("%d capture(s), %d worker(s)", len(captures), b.Workers)
	return nil
}
