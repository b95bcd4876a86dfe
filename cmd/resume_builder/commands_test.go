package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/resume-builder/internal/config"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/jonathan/resume-builder/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCompileInput_FullRequest(t *testing.T) {
	path := writeFile(t, t.TempDir(), "req.json", `{
		"templateId": "classic",
		"formData": {"personalInfo": {"firstName": "Ada"}, "experience": [{"company": "AE", "position": "Dev", "startDate": "1843-07-01"}]}
	}`)

	data, templateID, err := readCompileInput(path, "")
	require.NoError(t, err)
	assert.Equal(t, "classic", templateID)
	assert.Equal(t, "Ada", data.PersonalInfo.FirstName)
	require.Len(t, data.Experience, 1)
	assert.Equal(t, "1843-07-01", data.Experience[0].StartDate.ISO())
}

func TestReadCompileInput_BareFormDataNeedsTemplate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.json", `{"personalInfo": {"firstName": "Ada"}}`)

	_, _, err := readCompileInput(path, "")
	assert.Error(t, err)

	data, templateID, err := readCompileInput(path, "modern")
	require.NoError(t, err)
	assert.Equal(t, "modern", templateID)
	assert.Equal(t, "Ada", data.PersonalInfo.FirstName)
}

func TestReadCompileInput_SchemaViolation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "req.json", `{"templateId": "../etc", "formData": {}}`)

	_, _, err := readCompileInput(path, "")
	var verr *schemas.ValidationError
	assert.True(t, errors.As(err, &verr), "got %v", err)
}

func TestReadCompileInput_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := readCompileInput(filepath.Join(dir, "missing.json"), "modern")
	assert.ErrorContains(t, err, "failed to read input file")

	_, _, err = readCompileInput(writeFile(t, dir, "bad.json", "{"), "modern")
	assert.ErrorContains(t, err, "failed to parse input JSON")
}

func TestWritePages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "resume.svg")

	paths, err := writePages(out, []string{"<svg>1</svg>", "<svg>2</svg>"})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(out), "resume-2.svg"), paths[1])

	got, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "<svg>1</svg>", string(got))
}

func TestValidationProblems(t *testing.T) {
	assert.Nil(t, validationProblems(nil))

	joined := fmt.Errorf("template registry validation failed: %w",
		errors.Join(errors.New("template \"a\": missing"), errors.New("library \"b\" file lib.typ: missing")))
	assert.Equal(t, []string{`template "a": missing`, `library "b" file lib.typ: missing`}, validationProblems(joined))

	assert.Equal(t, []string{"plain"}, validationProblems(errors.New("plain")))
}

func TestRateLimitConfig(t *testing.T) {
	cfg := rateLimitConfig(config.RateLimitConfig{
		Enabled:   true,
		Limit:     7,
		Window:    time.Second,
		Whitelist: "10.0.0.1, 10.0.0.2",
	})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.DefaultLimit)
	assert.Equal(t, time.Second, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)

	cfg = rateLimitConfig(config.RateLimitConfig{})
	assert.False(t, cfg.Enabled)
	assert.Positive(t, cfg.DefaultLimit, "zero keeps the built-in default")
}

func TestSplitCommand(t *testing.T) {
	dir := t.TempDir()
	pages := []string{
		`<svg xmlns="http://www.w3.org/2000/svg" width="595.276" height="841.89"><rect/></svg>`,
		`<svg xmlns="http://www.w3.org/2000/svg" width="595.276" height="841.89"><circle/></svg>`,
	}
	merged, err := pagesplit.Merge(pages, pagesplit.DefaultTrailer)
	require.NoError(t, err)
	in := writeFile(t, dir, "doc.svg", merged)
	out := filepath.Join(dir, "page.svg")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"split", "--in", in, "--out", out})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "Split into 2 pages")
	_, err = os.Stat(filepath.Join(dir, "page-3.svg"))
	assert.True(t, os.IsNotExist(err), "trailing overflow page is dropped")
	assert.FileExists(t, filepath.Join(dir, "page-2.svg"))
}

func TestTemplatesListCommand(t *testing.T) {
	t.Setenv("RESUME_SOURCES_TEMPLATES_DIR", "../../sources/templates")
	t.Setenv("RESUME_SOURCES_LIBRARIES_DIR", "../../sources/libraries")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"templates", "list"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "basic-resume")
}

func TestTemplatesValidateCommand(t *testing.T) {
	t.Setenv("RESUME_SOURCES_TEMPLATES_DIR", "../../sources/templates")
	t.Setenv("RESUME_SOURCES_LIBRARIES_DIR", "../../sources/libraries")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"templates", "validate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "ALL TEMPLATE SOURCES PRESENT")
}
