// Package livepreview renders resumes to SVG page fragments for an
// interactive preview and schedules those renders as the user edits.
package livepreview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInitTimeout is returned when the engine does not signal readiness
	// within the configured initialization timeout.
	ErrInitTimeout = errors.New("renderer initialization timed out")
	// ErrNotInitialized is returned by RenderToSVG before Initialize succeeded.
	ErrNotInitialized = errors.New("renderer is not initialized")
)

// FetchError represents a non-200 response from the source endpoints
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

// ClientError reports whether the server rejected the request itself (4xx),
// as opposed to failing to serve it.
func (e *FetchError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// MissingLibraryFilesError is returned when a render needs library files that
// could not be loaded
type MissingLibraryFilesError struct {
	Library string
	Files   []string
}

func (e *MissingLibraryFilesError) Error() string {
	return fmt.Sprintf("library %q is missing files: %s", e.Library, strings.Join(e.Files, ", "))
}

// RenderError wraps a failed preview render
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
