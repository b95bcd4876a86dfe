// Package compiler turns formatted resume data plus a template into a PDF or
// SVG document by driving an external typesetting engine.
package compiler

import (
	"errors"
	"fmt"
)

// ErrCompilationFailed is matched by every error the Adapter returns. Callers
// show a single generic failure to end users and log the cause.
var ErrCompilationFailed = errors.New("failed to compile resume")

// CompilationError wraps the underlying reason a render failed
type CompilationError struct {
	Format     string
	TemplateID string
	Cause      error
}

func (e *CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to compile resume (%s, template %q): %v", e.Format, e.TemplateID, e.Cause)
	}
	return fmt.Sprintf("failed to compile resume (%s, template %q)", e.Format, e.TemplateID)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrCompilationFailed) succeed.
func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilationFailed
}

// EngineUnavailableError is returned when the engine binary cannot be found or run
type EngineUnavailableError struct {
	Binary string
	Cause  error
}

func (e *EngineUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("typesetting engine %q unavailable: %v", e.Binary, e.Cause)
	}
	return fmt.Sprintf("typesetting engine %q unavailable", e.Binary)
}

func (e *EngineUnavailableError) Unwrap() error {
	return e.Cause
}

// EngineError represents a failed engine run. Stderr holds the engine's
// diagnostics for logging.
type EngineError struct {
	Message string
	Stderr  string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("engine error: %s", e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}
