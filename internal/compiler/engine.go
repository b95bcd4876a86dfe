package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path"
	"slices"

	"github.com/jonathan/resume-builder/internal/artifacts"
	"github.com/jonathan/resume-builder/internal/templates"
)

// Fixed locations inside the engine's virtual source tree. Templates import
// their library as "lib/lib.typ" relative to the main document.
const (
	MainPath   = "/main.typ"
	LibraryDir = "/lib"
	DataInput  = "data"
)

// Engine compiles a virtual source tree.
type Engine interface {
	CompilePDF(ctx context.Context, job Job) ([]byte, error)
	// CompileSVG returns a single continuous SVG covering every page.
	CompileSVG(ctx context.Context, job Job) ([]byte, error)
}

// Job is one compilation: virtual path -> source text, the entry document,
// and named string inputs visible to the document.
type Job struct {
	Sources  map[string]string
	MainPath string
	Inputs   map[string]string
}

// cacheKey digests the output format, the main path, every source and every
// input in sorted order.
func (j Job) cacheKey(format string) string {
	parts := [][]byte{[]byte(format), []byte(j.MainPath)}
	for _, p := range slices.Sorted(maps.Keys(j.Sources)) {
		parts = append(parts, []byte(p), []byte(j.Sources[p]))
	}
	for _, name := range slices.Sorted(maps.Keys(j.Inputs)) {
		parts = append(parts, []byte(name), []byte(j.Inputs[name]))
	}
	return artifacts.Key(parts...)
}

// LibraryPath returns the virtual path of a library file.
func LibraryPath(fileName string) string {
	return path.Join(LibraryDir, fileName)
}

// BuildJob registers document at MainPath and each library file under
// LibraryDir, and serializes data as the "data" input.
func BuildJob(document string, library map[string]string, data any) (Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Job{}, fmt.Errorf("failed to serialize resume data: %w", err)
	}

	job := Job{
		Sources:  make(map[string]string, len(library)+1),
		MainPath: MainPath,
		Inputs:   map[string]string{DataInput: string(payload)},
	}
	job.Sources[MainPath] = document
	for _, name := range templates.LibraryFiles() {
		text, ok := library[name]
		if !ok {
			return Job{}, fmt.Errorf("library file %s is missing", name)
		}
		job.Sources[LibraryPath(name)] = text
	}
	return job, nil
}
