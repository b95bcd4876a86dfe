// Package sources provides read-only access to the typesetting sources: one
// document file per template and a pair of shared library files per library.
package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/resume-builder/internal/templates"
)

// TemplateExt is the extension of template document files.
const TemplateExt = ".typ"

var (
	// ErrInvalidPath is returned for path segments that are empty, relative
	// references, or contain separators.
	ErrInvalidPath = errors.New("invalid source path")
	// ErrNotFound is returned when the requested source file does not exist.
	ErrNotFound = errors.New("source not found")
)

// Reader reads template and library sources.
type Reader interface {
	ReadTemplate(templateID string) (string, error)
	ReadLibrary(library, fileName string) (string, error)
}

// Store reads sources from two fixed directories.
type Store struct {
	templatesDir string
	librariesDir string
}

// NewStore creates a store rooted at the given directories.
func NewStore(templatesDir, librariesDir string) *Store {
	return &Store{
		templatesDir: filepath.Clean(templatesDir),
		librariesDir: filepath.Clean(librariesDir),
	}
}

// TemplatesDir returns the template directory.
func (s *Store) TemplatesDir() string { return s.templatesDir }

// LibrariesDir returns the library directory.
func (s *Store) LibrariesDir() string { return s.librariesDir }

// ValidSegment reports whether seg is safe to use as a single path element.
func ValidSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, `/\`+"\x00")
}

// ReadTemplate returns the document source of a template.
func (s *Store) ReadTemplate(templateID string) (string, error) {
	if !ValidSegment(templateID) {
		return "", fmt.Errorf("template id %q: %w", templateID, ErrInvalidPath)
	}
	return readFile(filepath.Join(s.templatesDir, templateID+TemplateExt))
}

// ReadLibrary returns one of the two fixed files of a library.
func (s *Store) ReadLibrary(library, fileName string) (string, error) {
	if !ValidSegment(library) {
		return "", fmt.Errorf("library %q: %w", library, ErrInvalidPath)
	}
	if !templates.IsLibraryFile(fileName) {
		return "", fmt.Errorf("library file %q: %w", fileName, ErrInvalidPath)
	}
	return readFile(filepath.Join(s.librariesDir, library, fileName))
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
		}
		return "", fmt.Errorf("failed to read source %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}
