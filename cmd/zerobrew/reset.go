package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zerobrew/zerobrew/internal/config"
)

var resetYesFlag bool

// stdinIsTerminal reports whether stdin is a terminal. Replaceable for testing.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// stdinReader is confirmReset's source, replaceable in tests to avoid
// touching the real stdin.
var stdinReader io.Reader = os.Stdin

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Destroy and rebuild the zerobrew root from scratch",
	Long: `Reset removes the store, installed-set database, fetch cache, lock
directory, and the prefix's Cellar and build workspace, then recreates an
empty root layout. Symlinks under the prefix's bin, lib and other linked
directories are not removed. Everything previously installed must be
reinstalled afterward.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetYesFlag, "yes", false, "Skip the interactive confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	if !resetYesFlag && !cfg.AutoInit {
		ok, err := confirmReset(cfg.Root)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	for _, dir := range []string{cfg.StoreDir, cfg.DBDir, cfg.CacheDir, cfg.LocksDir, cfg.CellarDir, cfg.TmpDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	fmt.Printf("==> Reset zerobrew root at %s\n", cfg.Root)
	return nil
}

func confirmReset(root string) (bool, error) {
	if stdinIsTerminal() {
		fmt.Fprintf(os.Stderr, "This will permanently delete everything under %s. Continue? [y/N] ", root)
	}

	reader := bufio.NewReader(stdinReader)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
