package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
)

var gcPruneCacheFlag time.Duration

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove unreferenced kegs and orphaned installed-set rows",
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().DurationVar(&gcPruneCacheFlag, "prune-cache", 0, "Also remove fetch-cache entries older than this duration (e.g. 168h); never done automatically")
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.collector.Sweep(globalCtx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errmsg.Format(err))
		return errSilent
	}

	for _, name := range report.RemovedFormulas {
		fmt.Printf("==> Removed orphaned formula %s\n", name)
	}
	for _, key := range report.RemovedStoreKeys {
		fmt.Printf("==> Removed unreferenced keg %s\n", key)
	}
	if len(report.RemovedFormulas) == 0 && len(report.RemovedStoreKeys) == 0 {
		fmt.Println("==> Nothing to remove")
	}

	if gcPruneCacheFlag > 0 {
		pruned, err := a.collector.PruneCache(gcPruneCacheFlag)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errmsg.Format(err))
			return errSilent
		}
		for _, p := range pruned {
			fmt.Printf("==> Pruned cache entry %s\n", p)
		}
	}
	return nil
}
