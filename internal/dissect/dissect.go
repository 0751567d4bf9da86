// Package dissect launches the external packet dissector (tshark) for one
// capture file and exposes its standard output as a stream.
//
// The invoker only builds the command line and interprets the exit
// status; where the process actually runs is decided by a [Runner], so
// the same conversion code drives a local tshark or one on a remote
// capture host.
package dissect

import (
	"context"
	"io"
	"strconv"

	"capconv/internal/errors"
	"capconv/internal/schema"
)

// DefaultTool is the dissector executable looked up in PATH.
const DefaultTool = "tshark"

// DefaultSessionReset is passed to tshark's -M flag.  tshark keeps
// per-conversation state for the whole capture; resetting the session
// every N packets keeps its memory flat on multi-gigabyte files.
const DefaultSessionReset = 100000

// Process is one running dissector.
type Process interface {
	// Stdout is the dissector's standard output.  It must be read to EOF
	// (or the process cancelled) before Wait returns.
	Stdout() io.Reader
	// Wait blocks until the process exits and reports a non-zero exit as
	// an error.  Stderr returns meaningful content once Wait returned.
	Wait() error
	// Stderr returns the tail of the process's standard error.
	Stderr() string
}

// Runner starts commands.  Implementations must tie the process lifetime
// to ctx: cancelling ctx kills the process.
type Runner interface {
	Start(ctx context.Context, name string, args []string) (Process, error)
}

// Options configure the dissector command line.
type Options struct {
	Tool         string   // executable; DefaultTool if empty
	SessionReset int      // -M value; DefaultSessionReset if 0, disabled if < 0
	Occurrence   string   // -E occurrence=; tshark default (all) if empty
	ExtraArgs    []string // appended before the -e list, e.g. "-n" or "-2"
}

// Invoker runs the dissector for capture files.  It is safe for
// concurrent use; every Start creates an independent process.
type Invoker struct {
	runner Runner
	opts   Options
}

// NewInvoker returns an Invoker that starts processes through r.
func NewInvoker(r Runner, opts Options) *Invoker {
	if opts.Tool == "" {
		opts.Tool = DefaultTool
	}
	if opts.SessionReset == 0 {
		opts.SessionReset = DefaultSessionReset
	}
	return &Invoker{runner: r, opts: opts}
}

// Tool returns the dissector executable name.
func (inv *Invoker) Tool() string { return inv.opts.Tool }

// Args builds the dissector arguments for capture: CSV on stdout with a
// header line, comma separators, double quotes, and one -e per schema
// field in schema order.
func (inv *Invoker) Args(capture string, s *schema.Schema) []string {
	args := []string{"-r", capture}
	if inv.opts.SessionReset > 0 {
		args = append(args, "-M", strconv.Itoa(inv.opts.SessionReset))
	}
	args = append(args,
		"-T", "fields",
		"-E", "header=y",
		"-E", "separator=,",
		"-E", "quote=d",
	)
	if inv.opts.Occurrence != "" {
		args = append(args, "-E", "occurrence="+inv.opts.Occurrence)
	}
	args = append(args, inv.opts.ExtraArgs...)
	for _, name := range s.Names() {
		args = append(args, "-e", name)
	}
	return args
}

// Start launches the dissector for capture.  A launch failure is
// returned as *errors.ToolError.
func (inv *Invoker) Start(ctx context.Context, capture string, s *schema.Schema) (*Run, error) {
	p, err := inv.runner.Start(ctx, inv.opts.Tool, inv.Args(capture, s))
	if err != nil {
		return nil, errors.WrapTool("start", capture, err, "")
	}
	return &Run{capture: capture, proc: p}, nil
}

// Run is a started dissection of one capture file.
type Run struct {
	capture string
	proc    Process
}

// Stdout returns the dissector output stream.
func (r *Run) Stdout() io.Reader { return r.proc.Stdout() }

// Wait reaps the dissector.  A non-zero exit is returned as
// *errors.ToolError carrying the capture path, exit status and stderr.
func (r *Run) Wait() error {
	if err := r.proc.Wait(); err != nil {
		return errors.WrapTool("wait", r.capture, err, r.proc.Stderr())
	}
	return nil
}

// Stderr returns the tail of the dissector's standard error, which
// tshark also uses for warnings on successful runs.
func (r *Run) Stderr() string { return r.proc.Stderr() }
