// Package store implements the content-addressed keg store: materializing
// bottles or build output under a store key with atomic commit semantics,
// and the installed-set database tracking what is currently installed.
package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// Store materializes and removes kegs under a configured root's store
// directory, keyed by formula.StoreKey.
type Store struct {
	cfg *config.Config
}

// New returns a Store rooted at cfg.StoreDir.
func New(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// Contains reports whether storeKey has a committed keg directory.
func (s *Store) Contains(storeKey string) bool {
	info, err := os.Stat(s.cfg.KegDir(storeKey))
	return err == nil && info.IsDir()
}

// MaterializeFromBottle extracts archivePath into a temporary directory,
// rewrites @@HOMEBREW_PREFIX@@/@@HOMEBREW_CELLAR@@ placeholders to this
// store's configured prefix, and atomically renames it into place as
// storeKey. A concurrent observer sees either no directory or a fully
// committed one. If storeKey is already committed, the extraction is
// discarded and the existing keg path is returned unchanged.
func (s *Store) MaterializeFromBottle(storeKey, archivePath string) (string, error) {
	lock := NewFileLock(s.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return "", err
	}
	defer lock.Unlock()

	final := s.cfg.KegDir(storeKey)
	if info, err := os.Stat(final); err == nil && info.IsDir() {
		return final, nil
	}

	tmp := s.cfg.KegTmpDir(storeKey)
	os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	if err := extractArchive(archivePath, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}

	if err := relocate(tmp, s.cfg.Prefix, s.cfg.CellarDir); err != nil {
		os.RemoveAll(tmp)
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	if err := commit(tmp, final); err != nil {
		return "", err
	}
	return final, nil
}

// MaterializeFromBuild atomically commits buildOutputDir (a build
// executor's completed work-dir install tree) as storeKey. Build output is
// already prefix-correct since the build ran against the real configured
// prefix, so no relocation pass runs here.
func (s *Store) MaterializeFromBuild(storeKey, buildOutputDir string) (string, error) {
	lock := NewFileLock(s.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return "", err
	}
	defer lock.Unlock()

	final := s.cfg.KegDir(storeKey)
	if info, err := os.Stat(final); err == nil && info.IsDir() {
		os.RemoveAll(buildOutputDir)
		return final, nil
	}

	if err := commit(buildOutputDir, final); err != nil {
		return "", err
	}
	return final, nil
}

// commit renames src into place as dst, the atomic commit point for a
// materialization. Cross-device renames (e.g. a build work-dir on a
// different filesystem than the store) fall back to a recursive copy.
func commit(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	os.RemoveAll(src)
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}

// Remove deletes storeKey's committed keg directory. Callers must ensure no
// installed-set record still references this store key before calling.
func (s *Store) Remove(storeKey string) error {
	lock := NewFileLock(s.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.RemoveAll(s.cfg.KegDir(storeKey)); err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	return nil
}

// List returns every committed store key currently present.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.StoreDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	var keys []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}

// CleanStaleTmp removes leftover *.tmp materialization directories, the
// residue of a process that crashed between extraction and commit. Safe to
// call opportunistically at startup since a .tmp directory is never itself
// a commit point.
func (s *Store) CleanStaleTmp() error {
	entries, err := os.ReadDir(s.cfg.StoreDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".tmp") {
			if err := os.RemoveAll(filepath.Join(s.cfg.StoreDir, e.Name())); err != nil {
				return &zerobrewerr.ErrFileError{Detail: err.Error()}
			}
		}
	}
	return nil
}
