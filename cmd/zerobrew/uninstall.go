package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

var uninstallAllFlag bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <formulas...>",
	Short: "Unlink and remove the installed-set record for one or more formulas",
	Args:  cobra.ArbitraryArgs,
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallAllFlag, "all", false, "Uninstall every explicitly installed formula")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	if !uninstallAllFlag && len(args) == 0 {
		return fmt.Errorf("uninstall requires at least one formula name, or --all")
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

	names := args
	if uninstallAllFlag {
		records, err := a.db.List()
		if err != nil {
			return err
		}
		names = nil
		for _, r := range records {
			if r.IsExplicit {
				names = append(names, r.Name)
			}
		}
	}

	var failed bool
	for _, name := range names {
		if _, ok, err := a.db.Get(name); err != nil {
			return err
		} else if !ok {
			fmt.Fprintln(os.Stderr, errmsg.Format(&zerobrewerr.ErrFormulaNotFound{Name: name}))
			failed = true
			continue
		}

		if err := a.linker.Unlink(name); err != nil {
			fmt.Fprintln(os.Stderr, errmsg.Format(err))
			failed = true
			continue
		}
		if err := a.db.Remove(name); err != nil {
			fmt.Fprintln(os.Stderr, errmsg.Format(err))
			failed = true
			continue
		}
		fmt.Printf("==> Uninstalled %s\n", name)
	}

	if failed {
		return errSilent
	}
	return nil
}
