package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
	"github.com/zerobrew/zerobrew/internal/manifest"
	"github.com/zerobrew/zerobrew/internal/resolver"
)

var bundleFile string
var bundleForce bool

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Bulk install from, or dump the installed set to, a manifest file",
}

var bundleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install every formula named in a bundle manifest",
	RunE:  runBundleInstall,
}

var bundleDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the current installed set to a bundle manifest",
	RunE:  runBundleDump,
}

func init() {
	bundleInstallCmd.Flags().StringVar(&bundleFile, "file", "", "Manifest file to read (required)")
	bundleInstallCmd.MarkFlagRequired("file")

	bundleDumpCmd.Flags().StringVar(&bundleFile, "file", "", "Manifest file to write (required)")
	bundleDumpCmd.Flags().BoolVar(&bundleForce, "force", false, "Overwrite an existing manifest file")
	bundleDumpCmd.MarkFlagRequired("file")

	bundleCmd.AddCommand(bundleInstallCmd)
	bundleCmd.AddCommand(bundleDumpCmd)
}

func runBundleInstall(cmd *cobra.Command, args []string) error {
	f, err := os.Open(bundleFile)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	names, err := manifest.Parse(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err))
		return errSilent
	}

	var formulaNames []string
	for _, n := range names {
		if strings.HasPrefix(n, "cask:") {
			continue
		}
		formulaNames = append(formulaNames, n)
	}
	if len(formulaNames) == 0 {
		fmt.Println("==> Bundle named no formulas to install (casks are not supported)")
		return nil
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	nodes, err := a.resolveAndInstall(globalCtx, formulaNames, resolver.ModeBundle, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err))
		return errSilent
	}

	for _, n := range nodes {
		fmt.Printf("==> Installed %s %s\n", n.Name, n.Record.Version.String())
	}
	return nil
}

func runBundleDump(cmd *cobra.Command, args []string) error {
	if !bundleForce {
		if _, err := os.Stat(bundleFile); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", bundleFile)
		}
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.db.List()
	if err != nil {
		return err
	}

	var names []string
	for _, r := range records {
		if r.IsExplicit {
			names = append(names, r.Name)
		}
	}

	f, err := os.Create(bundleFile)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer f.Close()

	if err := manifest.Dump(f, names); err != nil {
		return err
	}
	fmt.Printf("==> Wrote %d formulas to %s\n", len(names), bundleFile)
	return nil
}
