package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/buildinfo"
	"github.com/zerobrew/zerobrew/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM. Commands use it for cancellable
// operations (fetch, build, link).
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "zerobrew",
	Short: "A fast, Homebrew-compatible package installer",
	Long: `zerobrew resolves formula dependency graphs against the Homebrew
formula index, prefers prebuilt bottles, falls back to source builds, and
projects installed versions into a prefix via symlinks.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitGeneral)
	}()

	if err := rootCmd.Execute(); err != nil {
		if err != errSilent {
			fmt.Fprintln(os.Stderr, err)
		}
		exitWithCode(ExitGeneral)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

// determineLogLevel honors flags over environment variables over the
// default (WARN).
func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}

	if isTruthy(os.Getenv("ZEROBREW_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("ZEROBREW_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("ZEROBREW_QUIET")) {
		return slog.LevelError
	}

	return slog.LevelWarn
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
