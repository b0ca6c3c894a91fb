package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

var runCmd = &cobra.Command{
	Use:                "run <formula> [args...]",
	Short:              "Execute an installed formula's linked binary",
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE:               runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	name := args[0]
	extra := args[1:]

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, ok, err := a.db.Get(name)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(os.Stderr, errmsg.Format(&zerobrewerr.ErrFormulaNotFound{Name: name}))
		return errSilent
	}

	binPath, err := resolveRunBinary(cfg, rec.Name, rec.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err))
		return errSilent
	}

	child := exec.CommandContext(globalCtx, binPath, extra...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = append(os.Environ(), "PATH="+filepath.Join(cfg.Prefix, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))

	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitWithCode(exitErr.ExitCode())
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// resolveRunBinary locates the executable this formula installed: first the
// prefix symlink matching its name, falling back to a scan of the Cellar
// bin directory for a keg-only formula with no prefix symlink.
func resolveRunBinary(cfg *config.Config, name, version string) (string, error) {
	prefixBin := filepath.Join(cfg.Prefix, "bin", name)
	if _, err := os.Stat(prefixBin); err == nil {
		return prefixBin, nil
	}

	cellarBin := filepath.Join(cfg.CellarPath(name, version), "bin")
	entries, err := os.ReadDir(cellarBin)
	if err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: fmt.Sprintf("no runnable binary found for %s", name)}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		return filepath.Join(cellarBin, e.Name()), nil
	}
	return "", &zerobrewerr.ErrFileError{Detail: fmt.Sprintf("no runnable binary found for %s", name)}
}
