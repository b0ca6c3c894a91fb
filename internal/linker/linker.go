// Package linker projects a materialized keg into the prefix: a Cellar
// entry plus per-file symlinks under bin/lib/include/etc, mirroring
// Homebrew's own linking stage.
package linker

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/store"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// topLevelDirs are the Cellar subdirectories exposed as prefix symlinks.
// Anything else in a keg (docs, man pages under share are included; a
// formula's private state is not) stays reachable only through the Cellar.
var topLevelDirs = []string{"bin", "sbin", "lib", "include", "share", "etc", "var", "Frameworks", "opt"}

// LinkReport summarizes the outcome of a Link call.
type LinkReport struct {
	Name          string
	Linked        []string
	AlreadyLinked []string
}

// Linker creates and removes the prefix symlinks for installed formulas.
// Mutations for a given formula name are serialized by a keyed mutex so
// concurrent scheduler workers never interleave link/unlink for the same
// name, while unrelated formulas link in parallel.
type Linker struct {
	cfg       *config.Config
	nameLocks sync.Map // name -> *sync.Mutex
}

// New returns a Linker rooted at cfg.Prefix / cfg.CellarDir.
func New(cfg *config.Config) *Linker {
	return &Linker{cfg: cfg}
}

func (l *Linker) lockFor(name string) *sync.Mutex {
	m, _ := l.nameLocks.LoadOrStore(name, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Link establishes a Cellar entry for rec at kegPath (the committed store
// directory containing a <name>/<version> subtree) and, unless rec is
// keg-only, symlinks its bin/sbin/lib/include/share/etc/var/Frameworks/opt
// entries into the prefix. A conflict with an existing, differently-owned
// path aborts the whole call and rolls back every symlink it created.
func (l *Linker) Link(rec *formula.Record, kegPath string) (*LinkReport, error) {
	mu := l.lockFor(rec.Name)
	mu.Lock()
	defer mu.Unlock()

	version := rec.Version.String()
	cellarEntry := l.cfg.CellarPath(rec.Name, version)
	kegTarget := filepath.Join(kegPath, rec.Name, version)

	if err := ensureCellarEntry(cellarEntry, kegTarget); err != nil {
		return nil, err
	}

	report := &LinkReport{Name: rec.Name}
	if rec.KegOnly != nil {
		return report, nil
	}

	var created []string
	rollback := func() {
		for _, p := range created {
			os.Remove(p)
		}
	}

	for _, dir := range topLevelDirs {
		srcDir := filepath.Join(cellarEntry, dir)
		if _, err := os.Stat(srcDir); err != nil {
			continue // formula doesn't ship this directory
		}

		err := filepath.WalkDir(srcDir, func(sourcePath string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return err
			}
			rel, err := filepath.Rel(srcDir, sourcePath)
			if err != nil {
				return err
			}
			targetPath := filepath.Join(l.cfg.Prefix, dir, rel)

			outcome, err := l.linkOne(rec.Name, sourcePath, targetPath)
			if err != nil {
				return err
			}
			switch outcome {
			case linkedNew:
				created = append(created, targetPath)
				report.Linked = append(report.Linked, targetPath)
			case linkedAlready:
				report.AlreadyLinked = append(report.AlreadyLinked, targetPath)
			}
			return nil
		})
		if err != nil {
			rollback()
			return nil, err
		}
	}

	owned := append(append([]string(nil), report.Linked...), report.AlreadyLinked...)
	if err := l.recordLinks(rec.Name, owned); err != nil {
		rollback()
		return nil, err
	}

	return report, nil
}

type linkOutcome int

const (
	linkedNew linkOutcome = iota
	linkedAlready
)

// linkOne creates targetPath -> sourcePath, or reports it as already linked
// if it points there, or fails with ErrConflictedLink if it is owned by
// something else.
//
// Two formulas racing to claim the same targetPath (e.g. two concurrent
// installs both providing bin/foo) hold different per-name locks, so they
// can reach this function at the same time. symlink(2) itself is atomic:
// of any two concurrent os.Symlink calls on the same targetPath, exactly
// one succeeds and the other observes EEXIST, with no window in which both
// believe they created it and no partial link left behind by the loser.
// A stat-then-create-then-rename sequence would reopen that window, so the
// create is attempted directly rather than staged through a tmp path.
func (l *Linker) linkOne(owner, sourcePath, targetPath string) (linkOutcome, error) {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return 0, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	err := os.Symlink(sourcePath, targetPath)
	if err == nil {
		return linkedNew, nil
	}
	if !os.IsExist(err) {
		return 0, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	existing, err := os.Lstat(targetPath)
	if err != nil {
		return 0, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	if existing.Mode()&os.ModeSymlink != 0 {
		current, readErr := os.Readlink(targetPath)
		if readErr == nil && current == sourcePath {
			return linkedAlready, nil
		}
	}

	existingOwner, ok := l.ownerOf(targetPath)
	if !ok {
		existingOwner = "unknown"
	}
	return 0, &zerobrewerr.ErrConflictedLink{Path: targetPath, ExistingOwner: existingOwner}
}

// Unlink removes exactly the prefix symlinks the link map recorded for
// name; any other path is left untouched.
func (l *Linker) Unlink(name string) error {
	mu := l.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	m, err := l.loadLinkMap()
	if err != nil {
		return err
	}

	for _, path := range m[name] {
		os.Remove(path)
	}
	delete(m, name)

	return l.saveLinkMap(m)
}

// ownerOf looks up which formula's link map currently claims targetPath.
func (l *Linker) ownerOf(targetPath string) (string, bool) {
	m, err := l.loadLinkMap()
	if err != nil {
		return "", false
	}
	for owner, paths := range m {
		for _, p := range paths {
			if p == targetPath {
				return owner, true
			}
		}
	}
	return "", false
}

func (l *Linker) recordLinks(name string, paths []string) error {
	m, err := l.loadLinkMap()
	if err != nil {
		return err
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	m[name] = sorted
	return l.saveLinkMap(m)
}

func (l *Linker) linkMapPath() string {
	return filepath.Join(l.cfg.DBDir, "links.json")
}

func (l *Linker) loadLinkMap() (map[string][]string, error) {
	lock := store.NewFileLock(l.cfg.LockPath())
	if err := lock.LockShared(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	data, err := os.ReadFile(l.linkMapPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	m := map[string][]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	return m, nil
}

func (l *Linker) saveLinkMap(m map[string][]string) error {
	lock := store.NewFileLock(l.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.MkdirAll(l.cfg.DBDir, 0755); err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	path := l.linkMapPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	return nil
}

// ensureCellarEntry makes cellarEntry a symlink to kegTarget, idempotent if
// it already points there. Like linkOne, the create is attempted directly
// (relying on symlink(2)'s atomicity) rather than staged through a tmp path,
// so two processes racing to install the same formula/version never open a
// stat-then-create TOCTOU window.
func ensureCellarEntry(cellarEntry, kegTarget string) error {
	if err := os.MkdirAll(filepath.Dir(cellarEntry), 0755); err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	err := os.Symlink(kegTarget, cellarEntry)
	if err == nil {
		return nil
	}
	if !os.IsExist(err) {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	info, err := os.Lstat(cellarEntry)
	if err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return &zerobrewerr.ErrConflictedLink{Path: cellarEntry, ExistingOwner: "non-symlink entry"}
	}
	existing, readErr := os.Readlink(cellarEntry)
	if readErr == nil && existing == kegTarget {
		return nil
	}
	return &zerobrewerr.ErrConflictedLink{Path: cellarEntry, ExistingOwner: existing}
}
