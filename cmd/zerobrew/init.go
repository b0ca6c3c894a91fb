package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the zerobrew root and prefix directories",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	db, err := store.OpenDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("==> Initialized zerobrew root at %s\n", cfg.Root)
	fmt.Printf("==> Prefix: %s\n", cfg.Prefix)
	return nil
}
