package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_FreshDirectory(t *testing.T) {
	fsys := memfs.New()
	s := New(fsys, "site", nil)
	files := map[string]string{
		"index.html":   "<!DOCTYPE html>",
		"styles.css":   ".a {}",
		"js/app.js":    "console.log(1);",
		"pages/a.html": "<p>",
	}
	require.NoError(t, s.Publish(files))

	got, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, files, got)
	assertNoTemporaries(t, fsys)
}

func TestPublish_ReplacesWholeSet(t *testing.T) {
	fsys := memfs.New()
	s := New(fsys, "out/site", nil)
	require.NoError(t, s.Publish(map[string]string{"old.html": "old", "styles.css": "v1"}))
	require.NoError(t, s.Publish(map[string]string{"index.html": "new", "styles.css": "v2"}))

	got, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"index.html": "new", "styles.css": "v2"}, got)
	assertNoTemporaries(t, fsys)
}

func TestPublish_RejectsUnsafeNames(t *testing.T) {
	fsys := memfs.New()
	s := New(fsys, "site", nil)
	require.NoError(t, s.Publish(map[string]string{"index.html": "keep"}))

	for _, name := range []string{"../escape.html", "/abs.html", "a/../../b", "", "a//b"} {
		err := s.Publish(map[string]string{name: "x", "index.html": "replaced"})
		assert.Error(t, err, name)
	}
	got, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"index.html": "keep"}, got)
}

// failingFS refuses to write one file so staging fails midway.
type failingFS struct {
	billy.Filesystem
	fail string
}

func (f failingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if filepath.Base(name) == f.fail {
		return nil, errors.New("disk full")
	}
	return f.Filesystem.OpenFile(name, flag, perm)
}

func TestPublish_FailureKeepsPreviousSet(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, New(mem, "site", nil).Publish(map[string]string{"index.html": "v1"}))

	s := New(failingFS{Filesystem: mem, fail: "styles.css"}, "site", nil)
	err := s.Publish(map[string]string{"index.html": "v2", "styles.css": "x"})
	require.Error(t, err)

	got, err := New(mem, "site", nil).Files()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"index.html": "v1"}, got)
	assertNoTemporaries(t, mem)
}

func TestFiles_Missing(t *testing.T) {
	got, err := New(memfs.New(), "site", nil).Files()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewOS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "site")
	s, err := NewOS(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Publish(map[string]string{"index.html": "hello"}))

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Publish(map[string]string{"about.html": "bye"}))
	_, err = os.Stat(filepath.Join(dir, "index.html"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func assertNoTemporaries(t *testing.T, fsys billy.Filesystem) {
	t.Helper()
	check := func(dir string) {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".appgen-", "leftover %s/%s", dir, e.Name())
		}
	}
	check("/")
	check("out")
}
