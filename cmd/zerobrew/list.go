package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/store"
)

var listOutdatedFlag bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed formulas",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listOutdatedFlag, "outdated", false, "Only show formulas with a newer version available upstream")
}

func runList(cmd *cobra.Command, args []string) error {
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

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if !listOutdatedFlag {
		fmt.Fprintln(tw, "NAME\tVERSION\tEXPLICIT\tINSTALLED")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", r.Name, r.Version, r.IsExplicit, humanize.Time(r.InstalledAt))
		}
		return nil
	}

	fmt.Fprintln(tw, "NAME\tINSTALLED\tAVAILABLE")
	for _, r := range records {
		rec, err := a.index.Get(globalCtx, r.Name)
		if err != nil {
			continue
		}
		available := rec.Version.String()
		if store.Outdated(r.Version, available) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Version, available)
		}
	}
	return nil
}
