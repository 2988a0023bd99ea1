// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Integrity-check every local archive file",
	Long: `Scan decompresses every mirrored file end to end and reports the paths
that fail: truncated streams, bad gzip headers, unreadable files.`,
	RunE: runScan,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Redownload corrupt archive files",
	Long: `Repair deletes every corrupt file together with its ledger row,
refetches only the missing files, and re-verifies them. With --reimport,
repaired files are parsed into the corpus again. Files that fail to repair
are left marked error for operator attention.`,
	RunE: runRepair,
}

func init() {
	scanCmd.Flags().String("type", "", "restrict to one file type: baseline or update")
	repairCmd.Flags().String("type", "", "restrict to one file type: baseline or update")
	repairCmd.Flags().Bool("reimport", false, "re-run the import for repaired files")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(repairCmd)
}

// kindFlag parses the shared --type flag into a file kind filter.
func kindFlag(cmd *cobra.Command) (types.FileKind, error) {
	raw, _ := cmd.Flags().GetString("type")
	switch raw {
	case "":
		return "", nil
	case "baseline":
		return types.KindBaseline, nil
	case "update", "updates":
		return types.KindUpdate, nil
	default:
		return "", fmt.Errorf("unknown file type %q (want baseline or update)", raw)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	corrupt, err := svc.ScanForCorruption(kind)
	if err != nil {
		return err
	}
	if len(corrupt) == 0 {
		fmt.Println("all files intact")
		return nil
	}
	for _, path := range corrupt {
		fmt.Printf("corrupt: %s\n", path)
	}
	return fmt.Errorf("%d corrupt file(s) found; run repair", len(corrupt))
}

func runRepair(cmd *cobra.Command, args []string) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}
	reimport, _ := cmd.Flags().GetBool("reimport")

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Repair(ctx, kind, reimport, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) could not be repaired", summary.Failed)
	}
	return nil
}
