// Package templates maps template identifiers to the shared typesetting
// library each template imports.
package templates

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Library file names. Every library directory holds exactly these two files:
// the entry point a template imports and the implementation it re-exports.
const (
	LibraryEntryFile = "lib.typ"
	LibraryImplFile  = "resume.typ"
)

// LibraryFiles returns the fixed library file names in load order.
func LibraryFiles() []string {
	return []string{LibraryEntryFile, LibraryImplFile}
}

// IsLibraryFile reports whether name is one of the fixed library file names.
func IsLibraryFile(name string) bool {
	return name == LibraryEntryFile || name == LibraryImplFile
}

// ErrUnknownTemplate is matched by errors returned for unmapped template ids.
var ErrUnknownTemplate = errors.New("unknown template")

// UnknownTemplateError reports a template id with no library mapping.
type UnknownTemplateError struct {
	ID string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template: %q", e.ID)
}

// Is makes errors.Is(err, ErrUnknownTemplate) succeed.
func (e *UnknownTemplateError) Is(target error) bool {
	return target == ErrUnknownTemplate
}

// Entry is one row of the registry.
type Entry struct {
	ID      string `json:"id" yaml:"id"`
	Library string `json:"library" yaml:"library"`
}

// Registry is the static template id -> library directory table.
type Registry struct {
	libraries map[string]string
}

// DefaultEntries is the table shipped with the repository sources.
func DefaultEntries() []Entry {
	return []Entry{
		{ID: "modern", Library: "basic-resume"},
		{ID: "classic", Library: "classic-resume"},
		{ID: "compact", Library: "compact-resume"},
	}
}

// DefaultRegistry returns a registry holding DefaultEntries.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultEntries())
	if err != nil {
		panic(err) // static table
	}
	return r
}

// NewRegistry builds a registry from entries. Empty fields and duplicate
// ids are rejected.
func NewRegistry(entries []Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("template registry is empty")
	}

	libraries := make(map[string]string, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("template registry entry %d: id is required", i)
		}
		if e.Library == "" {
			return nil, fmt.Errorf("template registry entry %q: library is required", e.ID)
		}
		if _, exists := libraries[e.ID]; exists {
			return nil, fmt.Errorf("template registry: duplicate id %q", e.ID)
		}
		libraries[e.ID] = e.Library
	}
	return &Registry{libraries: libraries}, nil
}

// registryFile is the YAML layout of a registry file.
type registryFile struct {
	Templates []Entry `yaml:"templates"`
}

// LoadRegistry reads a registry from a YAML file of the form
//
//	templates:
//	  - id: modern
//	    library: basic-resume
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template registry %s: %w", path, err)
	}
	return NewRegistry(file.Templates)
}

// Library resolves a template id to its library directory name.
func (r *Registry) Library(templateID string) (string, error) {
	lib, ok := r.libraries[templateID]
	if !ok {
		return "", &UnknownTemplateError{ID: templateID}
	}
	return lib, nil
}

// Has reports whether templateID is mapped.
func (r *Registry) Has(templateID string) bool {
	_, ok := r.libraries[templateID]
	return ok
}

// Entries returns the registry rows sorted by id.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.libraries))
	for id, lib := range r.libraries {
		entries = append(entries, Entry{ID: id, Library: lib})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// SourceReader is the subset of the source store used to validate a registry.
type SourceReader interface {
	ReadTemplate(templateID string) (string, error)
	ReadLibrary(library, fileName string) (string, error)
}

// Validate checks that every template has a document source and that every
// mapped library has both library files. All problems are reported together.
func (r *Registry) Validate(src SourceReader) error {
	var errs []error
	checked := make(map[string]bool)

	for _, e := range r.Entries() {
		if _, err := src.ReadTemplate(e.ID); err != nil {
			errs = append(errs, fmt.Errorf("template %q: %w", e.ID, err))
		}
		if checked[e.Library] {
			continue
		}
		checked[e.Library] = true
		for _, name := range LibraryFiles() {
			if _, err := src.ReadLibrary(e.Library, name); err != nil {
				errs = append(errs, fmt.Errorf("library %q file %s: %w", e.Library, name, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("template registry validation failed: %w", errors.Join(errs...))
	}
	return nil
}
