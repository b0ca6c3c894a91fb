package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
	"github.com/zerobrew/zerobrew/internal/formula"
)

var infoCmd = &cobra.Command{
	Use:   "info <formula>",
	Short: "Show catalog and installed-state details for a formula",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.index.Get(globalCtx, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err))
		return errSilent
	}

	fmt.Printf("%s: %s\n", rec.Name, rec.Version.String())
	if rec.License != "" {
		fmt.Printf("License: %s\n", rec.License)
	}
	fmt.Printf("Source: %s\n", rec.SourceURL)

	if len(rec.Bottles) > 0 {
		tags := make([]string, 0, len(rec.Bottles))
		for tag := range rec.Bottles {
			tags = append(tags, tag)
		}
		fmt.Printf("Bottled for: %s\n", strings.Join(tags, ", "))
	}

	if rec.KegOnly != nil {
		fmt.Printf("Keg-only: %s\n", rec.KegOnly.Reason)
	}

	if deps := rec.DependenciesByClass(formula.Runtime); len(deps) > 0 {
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = d.Name
		}
		fmt.Printf("Dependencies: %s\n", strings.Join(names, ", "))
	}

	installed, ok, err := a.db.Get(name)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Not installed")
		return nil
	}

	status := "installed as a dependency"
	if installed.IsExplicit {
		status = "installed"
	}
	fmt.Printf("%s: %s (%s)\n", status, installed.Version, installed.InstalledAt.Format("2006-01-02"))

	if rec.Caveats != "" {
		fmt.Printf("\nCaveats:\n%s\n", rec.Caveats)
	}
	return nil
}
