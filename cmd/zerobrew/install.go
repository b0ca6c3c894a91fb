package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/errmsg"
	"github.com/zerobrew/zerobrew/internal/progress"
	"github.com/zerobrew/zerobrew/internal/resolver"
)

var noLinkFlag bool

var installCmd = &cobra.Command{
	Use:   "install <formulas...>",
	Short: "Install one or more formulas",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&noLinkFlag, "no-link", false, "Materialize the closure without projecting it into the prefix")
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := progress.NewSpinner(os.Stderr)
	spinner.Start(fmt.Sprintf("Resolving %v...", args))

	nodes, err := a.resolveAndInstall(globalCtx, args, resolver.ModeInstall, !noLinkFlag)
	spinner.Stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(err))
		return errSilent
	}

	for _, n := range nodes {
		fmt.Printf("==> Installed %s %s\n", n.Name, n.Record.Version.String())
	}
	return nil
}
