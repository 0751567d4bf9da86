// Package errors provides domain-specific error types for capconv.
//
// The types carry the context a batch summary needs (capture file,
// line, field, exit status) and tell the orchestrator at which
// granularity a failure is absorbed: field and line errors are counted
// and skipped, tool and write errors fail one conversion task.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrBatchFailed  = errors.New("one or more captures failed to convert")
	ErrNoCaptures   = errors.New("no capture files found")
	ErrNotConnected = errors.New("not connected")
	ErrNoHeader     = errors.New("dissector output has no header line")
	ErrLineTooLong  = errors.New("line exceeds maximum length")
	ErrUnterminated = errors.New("unterminated quoted field")
)

// ── Structured error types ───────────────────────────────────────────

// ToolError reports a dissector subprocess that could not be started
// or exited abnormally.
type ToolError struct {
	Capture  string // capture file path
	Op       string // "start", "wait"
	ExitCode int    // -1 when the process never ran or was killed
	Stderr   string // trailing stderr output, trimmed
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("dissect %s %s", e.Op, e.Capture)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	msg += fmt.Sprintf(": %v", e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// HeaderError reports a header line that does not match the requested
// field order.
type HeaderError struct {
	Capture string
	Want    []string
	Got     []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: header mismatch: want [%s], got [%s]",
		e.Capture, strings.Join(e.Want, ","), strings.Join(e.Got, ","))
}

// MalformedLineError reports a single data line that was dropped.
type MalformedLineError struct {
	Capture string
	Line    int    // 1-based line number in the dissector output
	Content string // raw line, possibly truncated
	Fields  int    // number of fields found (0 if not split)
	Want    int
	Err     error // optional cause (unterminated quote, too long)
}

func (e *MalformedLineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:%d: %v: %q", e.Capture, e.Line, e.Err, e.Content)
	}
	return fmt.Sprintf("%s:%d: got %d fields, want %d: %q",
		e.Capture, e.Line, e.Fields, e.Want, e.Content)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

// CoercionError reports a single field that could not be converted to
// its declared type and was nulled.
type CoercionError struct {
	Field string
	Type  string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("field %s: cannot coerce %q to %s: %v", e.Field, e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// WriteError reports a failure producing an output artifact.
type WriteError struct {
	Op   string // "create", "write", "flush", "sync", "rename", "manifest"
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "session"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapTool creates a ToolError, extracting the exit status from an
// *exec.ExitError when there is one.
func WrapTool(op, capture string, err error, stderr string) *ToolError {
	code := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	}
	var ec interface{ ExitStatus() int }
	if code < 0 && errors.As(err, &ec) {
		code = ec.ExitStatus()
	}
	return &ToolError{
		Capture:  capture,
		Op:       op,
		ExitCode: code,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}
}

// WrapWrite creates a WriteError.
func WrapWrite(op, path string, err error) *WriteError {
	return &WriteError{Op: op, Path: path, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsTaskFatal reports whether err must fail a whole conversion task.
// Line and field errors are absorbed where they occur.
func IsTaskFatal(err error) bool {
	if err == nil {
		return false
	}
	var ml *MalformedLineError
	var ce *CoercionError
	return !errors.As(err, &ml) && !errors.As(err, &ce)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use capconv/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
