// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Parse downloaded archive files into the corpus database",
	Long: `Import streams every downloaded-but-unprocessed file through the XML
parser and upserts the normalized records. Baseline files import before
update files; files already processed are skipped.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("type", "", "restrict to one file type: baseline or update")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.ImportAll(ctx, kind, os.Stdout)
	if err != nil {
		return err
	}
	if summary.FilesFailed > 0 {
		return fmt.Errorf("%d file(s) failed to import", summary.FilesFailed)
	}
	return nil
}
