// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline-mirror/internal/mirror"
)

var downloadCmd = &cobra.Command{
	Use:   "download [baseline|updates|all]",
	Short: "Mirror archive files from the remote FTP directories",
	Long: `Download lists the remote baseline and/or update directories and fetches
every file not yet in the ledger, resuming partial transfers from their
last confirmed byte. Files already downloaded and verified are skipped
unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Bool("force", false, "redownload files already in the ledger")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	target := "all"
	if len(args) == 1 {
		target = args[0]
	}
	switch target {
	case "baseline", "updates", "all":
	default:
		return fmt.Errorf("unknown download target %q (want baseline, updates, or all)", target)
	}

	force, _ := cmd.Flags().GetBool("force")
	skipExisting := !force

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var total mirror.DownloadSummary
	if target == "baseline" || target == "all" {
		summary, err := svc.DownloadBaseline(ctx, skipExisting, os.Stdout)
		if err != nil {
			return err
		}
		total.Downloaded += summary.Downloaded
		total.Failed += summary.Failed
	}
	if target == "updates" || target == "all" {
		summary, err := svc.DownloadUpdates(ctx, skipExisting, os.Stdout)
		if err != nil {
			return err
		}
		total.Downloaded += summary.Downloaded
		total.Failed += summary.Failed
	}

	if total.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to download", total.Failed)
	}
	return nil
}
