// Package build executes a formula's build-from-source path: staging its
// source tarball, handing off to an external interpreter process (the
// bundled shim by default, or a site-provided one), and materializing the
// result into the content-addressed store on success.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/fetch"
	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/store"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// tailLines is the number of trailing stdout/stderr lines kept for an
// ErrBuildError's Tail, enough to see the actual failure without dumping an
// entire build log.
const tailLines = 40

// InstalledDep is the subset of an installed dependency's record the build
// environment needs to locate its Cellar entry.
type InstalledDep struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	CellarPath string `json:"cellar_path"`
}

// Executor runs formula builds. Stdout and stderr are teed to os.Stdout /
// os.Stderr so a human watching `zerobrew install` sees live build output,
// while a bounded tail of each is kept for error reporting.
type Executor struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
}

// New returns an Executor using fetcher to stage source archives.
func New(cfg *config.Config, fetcher *fetch.Fetcher) *Executor {
	return &Executor{cfg: cfg, fetcher: fetcher}
}

// Build runs rec's build-from-source path and materializes the result under
// storeKey, returning the committed keg directory. The work directory is
// removed on every exit path, success or failure.
func (e *Executor) Build(ctx context.Context, rec *formula.Record, storeKey string, deps []InstalledDep) (string, error) {
	workDir := e.cfg.BuildWorkDir(rec.Name)
	if err := os.RemoveAll(workDir); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	defer os.RemoveAll(workDir)

	sourceDir := filepath.Join(workDir, "src")
	if err := os.MkdirAll(sourceDir, 0755); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	archivePath, err := e.fetcher.Fetch(ctx, rec.SourceURL, rec.SourceChecksum)
	if err != nil {
		return "", err
	}
	if err := store.ExtractArchive(archivePath, sourceDir); err != nil {
		return "", err
	}
	sourceDir = stripSingleTopLevelDir(sourceDir)

	shimPath, err := writeShim(workDir)
	if err != nil {
		return "", err
	}

	// installRoot stages a name/version keg tree, mirroring the layout a
	// bottle's own tarball root has, so MaterializeFromBuild can commit it
	// into the store exactly like MaterializeFromBottle does.
	installRoot := filepath.Join(workDir, "install")
	stagedKeg := filepath.Join(installRoot, rec.Name, rec.Version.String())
	if err := os.MkdirAll(stagedKeg, 0755); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	env, err := e.buildEnv(rec, stagedKeg, installRoot, deps)
	if err != nil {
		return "", err
	}

	interpreter, err := locateInterpreter(ctx, e.cfg)
	if err != nil {
		return "", err
	}

	if err := e.run(ctx, rec.Name, interpreter, shimPath, sourceDir, env); err != nil {
		return "", err
	}

	st := store.New(e.cfg)
	return st.MaterializeFromBuild(storeKey, installRoot)
}

func (e *Executor) run(ctx context.Context, name, interpreter, shimPath, sourceDir string, env []string) error {
	stdoutTail := newLineRing(tailLines)
	stderrTail := newLineRing(tailLines)

	cmd := exec.CommandContext(ctx, interpreter, shimPath)
	cmd.Dir = sourceDir
	cmd.Env = env
	cmd.Stdout = teeWriter{os.Stdout, stdoutTail}
	cmd.Stderr = teeWriter{os.Stderr, stderrTail}

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return &zerobrewerr.ErrExecutionError{Detail: err.Error()}
		}

		tail := stderrTail.Lines()
		if len(tail) == 0 {
			tail = stdoutTail.Lines()
		}
		return &zerobrewerr.ErrBuildError{Name: name, Tail: tail}
	}
	return nil
}

// teeWriter writes to both a live stream and a bounded tail buffer.
type teeWriter struct {
	live io.Writer
	tail *lineRing
}

func (w teeWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)
	return w.live.Write(p)
}

// buildEnv constructs the environment contract passed to the interpreter.
// PREFIX points at a staged, versioned keg directory rather than the live
// prefix: the build installs there, and that staged tree is what later gets
// committed into the store and, only then, linked into the real prefix.
// CELLAR is the staging root containing it. PATH and the compiler search
// variables point at the live prefix and already-linked dependencies, since
// those are real, already-installed trees the build needs to find.
func (e *Executor) buildEnv(rec *formula.Record, stagedKeg, installRoot string, deps []InstalledDep) ([]string, error) {
	depsByName := make(map[string]struct {
		CellarPath string `json:"cellar_path"`
	}, len(deps))
	for _, d := range deps {
		depsByName[d.Name] = struct {
			CellarPath string `json:"cellar_path"`
		}{CellarPath: d.CellarPath}
	}
	depsJSON, err := json.Marshal(depsByName)
	if err != nil {
		return nil, &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}

	pathDirs := []string{filepath.Join(e.cfg.Prefix, "bin"), filepath.Join(e.cfg.Prefix, "sbin")}
	for _, d := range deps {
		pathDirs = append(pathDirs, filepath.Join(d.CellarPath, "bin"))
	}
	pathDirs = append(pathDirs, "/usr/bin", "/bin", "/usr/sbin", "/sbin")

	env := []string{
		"FORMULA_NAME=" + rec.Name,
		"FORMULA_VERSION=" + rec.Version.String(),
		"PREFIX=" + stagedKeg,
		"CELLAR=" + installRoot,
		"FORMULA_FILE=" + rec.Name + ".json",
		"INSTALLED_DEPS=" + string(depsJSON),
		"PATH=" + strings.Join(pathDirs, string(os.PathListSeparator)),
		"HOME=" + e.cfg.BuildWorkDir(rec.Name),
	}

	var ldflags, cppflags, pkgConfigDirs []string
	for _, d := range deps {
		ldflags = append(ldflags, fmt.Sprintf("-L%s/lib", d.CellarPath))
		cppflags = append(cppflags, fmt.Sprintf("-I%s/include", d.CellarPath))
		pkgConfigDirs = append(pkgConfigDirs, fmt.Sprintf("%s/lib/pkgconfig", d.CellarPath))
	}
	if len(deps) > 0 {
		env = append(env,
			"LDFLAGS="+strings.Join(ldflags, " "),
			"CPPFLAGS="+strings.Join(cppflags, " "),
			"PKG_CONFIG_PATH="+strings.Join(pkgConfigDirs, string(os.PathListSeparator)),
		)
	}

	return env, nil
}

// stripSingleTopLevelDir collapses a "dir/<single-entry>/..." extraction
// layout (the norm for tarballs published as "name-1.2.3.tar.gz") down to
// that single entry, matching Homebrew's own strip_dirs=1 convention.
func stripSingleTopLevelDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
