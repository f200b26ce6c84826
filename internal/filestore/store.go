// Package filestore publishes a finished artifact set to a directory.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store replaces the content of one directory on a billy filesystem.
type Store struct {
	fs  billy.Filesystem
	dir string
	log *zap.Logger
}

// New returns a store publishing into dir on fsys.
func New(fsys billy.Filesystem, dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{fs: fsys, dir: path.Clean(filepath.ToSlash(dir)), log: log}
}

// NewOS returns a store for a directory on the local disk.
func NewOS(dir string, log *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	return New(osfs.New(parent), filepath.Base(abs), log), nil
}

// Dir is the published directory relative to the store's filesystem.
func (s *Store) Dir() string { return s.dir }

// Publish makes files, keyed by relative path, the exact content of the
// directory. Everything is written to a staging directory first; the old
// directory is only swapped out once staging is complete, so a failure
// leaves the previous set in place.
func (s *Store) Publish(files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		if !safe(name) {
			return fmt.Errorf("filestore: unsafe file name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	id := uuid.NewString()
	parent := path.Dir(s.dir)
	staging := path.Join(parent, ".appgen-staging-"+id)
	backup := path.Join(parent, ".appgen-previous-"+id)

	if err := s.fs.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("filestore: staging: %w", err)
	}
	for _, name := range names {
		target := path.Join(staging, name)
		if err := s.fs.MkdirAll(path.Dir(target), 0755); err != nil {
			s.discard(staging)
			return fmt.Errorf("filestore: %s: %w", name, err)
		}
		if err := util.WriteFile(s.fs, target, []byte(files[name]), 0644); err != nil {
			s.discard(staging)
			return fmt.Errorf("filestore: %s: %w", name, err)
		}
	}

	hadPrevious, err := s.exists(s.dir)
	if err != nil {
		s.discard(staging)
		return err
	}
	if hadPrevious {
		if err := s.fs.Rename(s.dir, backup); err != nil {
			s.discard(staging)
			return fmt.Errorf("filestore: moving previous set aside: %w", err)
		}
	}
	if err := s.fs.Rename(staging, s.dir); err != nil {
		if hadPrevious {
			if rerr := s.fs.Rename(backup, s.dir); rerr != nil {
				s.log.Error("restoring previous set", zap.String("backup", backup), zap.Error(rerr))
			}
		}
		s.discard(staging)
		return fmt.Errorf("filestore: publishing: %w", err)
	}
	if hadPrevious {
		s.discard(backup)
	}
	s.log.Info("artifact set published", zap.String("dir", s.dir), zap.Int("files", len(names)))
	return nil
}

// Files reads the published directory back, keyed by relative path.
func (s *Store) Files() (map[string]string, error) {
	out := make(map[string]string)
	ok, err := s.exists(s.dir)
	if err != nil || !ok {
		return out, err
	}
	err = util.Walk(s.fs, s.dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := util.ReadFile(s.fs, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(filepath.ToSlash(p), s.dir), "/")
		out[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: reading %s: %w", s.dir, err)
	}
	return out, nil
}

func (s *Store) exists(p string) (bool, error) {
	_, err := s.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("filestore: stat %q: %w", p, err)
	}
}

func (s *Store) discard(p string) {
	if err := util.RemoveAll(s.fs, p); err != nil {
		s.log.Warn("removing temporary directory", zap.String("dir", p), zap.Error(err))
	}
}

func safe(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return false
	}
	clean := path.Clean(name)
	return clean == name && clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
