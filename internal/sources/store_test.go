package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore lays out a template and library directory under a temp dir.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	tplDir := filepath.Join(root, "templates")
	libDir := filepath.Join(root, "libraries", "basic-resume")
	require.NoError(t, os.MkdirAll(tplDir, 0o755))
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tplDir, "modern.typ"), []byte("#import \"lib/lib.typ\": *"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "lib.typ"), []byte("#import \"resume.typ\": *"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "resume.typ"), []byte("#let resume(body) = body"), 0o644))
	return NewStore(tplDir, filepath.Join(root, "libraries"))
}

func TestValidSegment(t *testing.T) {
	valid := []string{"modern", "basic-resume", "lib.typ", "a_b"}
	invalid := []string{"", ".", "..", "a/b", `a\b`, "../etc", "a\x00b"}

	for _, s := range valid {
		assert.True(t, ValidSegment(s), s)
	}
	for _, s := range invalid {
		assert.False(t, ValidSegment(s), s)
	}
}

func TestStore_ReadTemplate(t *testing.T) {
	s := newTestStore(t)

	text, err := s.ReadTemplate("modern")
	require.NoError(t, err)
	assert.Contains(t, text, "lib/lib.typ")

	_, err = s.ReadTemplate("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.ReadTemplate("../secrets")
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestStore_ReadLibrary(t *testing.T) {
	s := newTestStore(t)

	text, err := s.ReadLibrary("basic-resume", templates.LibraryEntryFile)
	require.NoError(t, err)
	assert.Contains(t, text, "resume.typ")

	_, err = s.ReadLibrary("unknown-lib", templates.LibraryEntryFile)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.ReadLibrary("basic-resume", "other.typ")
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = s.ReadLibrary("..", templates.LibraryEntryFile)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestStore_ErrorsDoNotLeakDirectories(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadTemplate("missing")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), s.TemplatesDir())
}

func TestCachedStore_CachesSuccessfulReads(t *testing.T) {
	s := newTestStore(t)
	c, err := NewCachedStore(s, 8, nil)
	require.NoError(t, err)

	first, err := c.ReadTemplate("modern")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, os.WriteFile(filepath.Join(s.TemplatesDir(), "modern.typ"), []byte("changed"), 0o644))
	second, err := c.ReadTemplate("modern")
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached read should not hit disk")

	c.Invalidate()
	third, err := c.ReadTemplate("modern")
	require.NoError(t, err)
	assert.Equal(t, "changed", third)
}

func TestCachedStore_DoesNotCacheFailures(t *testing.T) {
	c, err := NewCachedStore(newTestStore(t), 8, nil)
	require.NoError(t, err)

	_, err = c.ReadLibrary("unknown-lib", templates.LibraryEntryFile)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCachedStore_Bounded(t *testing.T) {
	c, err := NewCachedStore(newTestStore(t), 2, nil)
	require.NoError(t, err)

	_, _ = c.ReadTemplate("modern")
	_, _ = c.ReadLibrary("basic-resume", templates.LibraryEntryFile)
	_, _ = c.ReadLibrary("basic-resume", templates.LibraryImplFile)
	assert.Equal(t, 2, c.Len())
}

func TestCachedStore_WatchPurgesOnChange(t *testing.T) {
	s := newTestStore(t)
	c, err := NewCachedStore(s, 8, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Watch(ctx))

	_, err = c.ReadLibrary("basic-resume", templates.LibraryImplFile)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	path := filepath.Join(s.LibrariesDir(), "basic-resume", templates.LibraryImplFile)
	require.NoError(t, os.WriteFile(path, []byte("#let resume(body) = [#body]"), 0o644))

	assert.Eventually(t, func() bool { return c.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
}
