package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-builder/internal/pagesplit"
	"go.uber.org/zap"
)

const (
	// DefaultBinary is the engine executable looked up in PATH.
	DefaultBinary = "typst"
	// DefaultTimeout bounds one engine run.
	DefaultTimeout = 30 * time.Second
)

// inputDir holds job inputs inside the root. Each input is written to a file
// and passed as "<name>-path", which keeps large payloads out of argv.
const inputDir = "/_inputs"

var (
	svgPagePattern = regexp.MustCompile(`^page-(\d+)\.svg$`)
	inputName      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// TypstEngine runs the typst CLI against a temporary copy of the job's
// virtual source tree.
type TypstEngine struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewTypstEngine creates an engine. Empty binary and non-positive timeout
// fall back to the defaults.
func NewTypstEngine(binary string, timeout time.Duration, logger *zap.Logger) *TypstEngine {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypstEngine{binary: binary, timeout: timeout, logger: logger}
}

// Binary returns the configured executable.
func (e *TypstEngine) Binary() string { return e.binary }

// Probe checks the engine can be executed and returns its version line.
func (e *TypstEngine) Probe(ctx context.Context) (string, error) {
	bin, err := exec.LookPath(e.binary)
	if err != nil {
		return "", &EngineUnavailableError{Binary: e.binary, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", &EngineUnavailableError{Binary: e.binary, Cause: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// CompilePDF implements Engine.
func (e *TypstEngine) CompilePDF(ctx context.Context, job Job) ([]byte, error) {
	var pdf []byte
	err := e.run(ctx, job, "pdf", "out.pdf", func(dir string) error {
		data, err := os.ReadFile(filepath.Join(dir, "out.pdf"))
		if err != nil {
			return &EngineError{Message: "PDF was not generated", Cause: err}
		}
		pdf = data
		return nil
	})
	return pdf, err
}

// CompileSVG implements Engine. The CLI writes one file per page; the pages
// are stacked into a single continuous document.
func (e *TypstEngine) CompileSVG(ctx context.Context, job Job) ([]byte, error) {
	var svg []byte
	err := e.run(ctx, job, "svg", "page-{p}.svg", func(dir string) error {
		pages, err := readSVGPages(dir)
		if err != nil {
			return err
		}
		merged, err := pagesplit.Merge(pages, pagesplit.DefaultTrailer)
		if err != nil {
			return &EngineError{Message: "failed to merge SVG pages", Cause: err}
		}
		svg = []byte(merged)
		return nil
	})
	return svg, err
}

// run materializes the job into a temp dir, invokes the CLI and hands the
// directory to collect before it is removed.
func (e *TypstEngine) run(ctx context.Context, job Job, format, output string, collect func(dir string) error) error {
	bin, err := exec.LookPath(e.binary)
	if err != nil {
		return &EngineUnavailableError{Binary: e.binary, Cause: err}
	}

	dir, err := os.MkdirTemp("", "typst-compile-*")
	if err != nil {
		return &EngineError{Message: "failed to create temporary working directory", Cause: err}
	}
	defer os.RemoveAll(dir)

	srcDir := filepath.Join(dir, "src")
	if err := materialize(srcDir, job.Sources); err != nil {
		return err
	}
	mainFile, err := localPath(srcDir, job.MainPath)
	if err != nil {
		return err
	}

	inputArgs, err := writeInputs(srcDir, job.Inputs)
	if err != nil {
		return err
	}
	args := append([]string{"compile", "--root", srcDir, "--format", format}, inputArgs...)
	args = append(args, mainFile, filepath.Join(dir, output))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	e.logger.Debug("Typst run finished",
		zap.String("format", format),
		zap.Duration("duration", time.Since(start)),
		zap.Error(runErr))

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &EngineError{Message: fmt.Sprintf("compilation timed out after %s", e.timeout), Stderr: stderr.String(), Cause: ctx.Err()}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &EngineError{Message: "typst compilation failed", Stderr: stderr.String(), Cause: runErr}
	}

	return collect(dir)
}

// materialize writes every virtual source below root.
func materialize(root string, files map[string]string) error {
	for vpath, text := range files {
		target, err := localPath(root, vpath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &EngineError{Message: fmt.Sprintf("failed to create directory for %s", vpath), Cause: err}
		}
		if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
			return &EngineError{Message: fmt.Sprintf("failed to write %s", vpath), Cause: err}
		}
	}
	return nil
}

// writeInputs stores every input under inputDir and returns the matching
// "--input <name>-path=<virtual path>" arguments in name order.
func writeInputs(root string, inputs map[string]string) ([]string, error) {
	names := make([]string, 0, len(inputs))
	files := make(map[string]string, len(inputs))
	for name, value := range inputs {
		if !inputName.MatchString(name) {
			return nil, &EngineError{Message: fmt.Sprintf("invalid input name %q", name)}
		}
		names = append(names, name)
		files[path.Join(inputDir, name)] = value
	}
	if err := materialize(root, files); err != nil {
		return nil, err
	}

	sort.Strings(names)
	args := make([]string, 0, 2*len(names))
	for _, name := range names {
		args = append(args, "--input", name+"-path="+path.Join(inputDir, name))
	}
	return args, nil
}

// localPath maps an absolute virtual path to a file below root. Cleaning a
// rooted path drops any leading "..", so the result never escapes root.
func localPath(root, vpath string) (string, error) {
	if !strings.HasPrefix(vpath, "/") {
		return "", &EngineError{Message: fmt.Sprintf("virtual path %q must be absolute", vpath)}
	}
	clean := path.Clean(vpath)
	if clean == "/" {
		return "", &EngineError{Message: fmt.Sprintf("invalid virtual path %q", vpath)}
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// readSVGPages returns the page files in page-number order.
func readSVGPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &EngineError{Message: "failed to list SVG output", Cause: err}
	}

	type numbered struct {
		n    int
		name string
	}
	var files []numbered
	for _, entry := range entries {
		m := svgPagePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, numbered{n: n, name: entry.Name()})
	}
	if len(files) == 0 {
		return nil, &EngineError{Message: "SVG was not generated"}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	pages := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return nil, &EngineError{Message: fmt.Sprintf("failed to read %s", f.name), Cause: err}
		}
		pages = append(pages, string(data))
	}
	return pages, nil
}
