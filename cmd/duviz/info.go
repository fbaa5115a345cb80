package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"duviz/internal/snapshot"

	_ "modernc.org/sqlite"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display snapshot metadata",
	Long:  `Print metadata about a snapshot database including scan time and totals.`,
	RunE:  runInfo,
}

var infoDB string

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "./data/latest.db", "Path to snapshot database")
}

func runInfo(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite", infoDB)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	meta, err := snapshot.LoadMeta(db)
	if err != nil {
		return fmt.Errorf("failed to read snapshot metadata: %w", err)
	}

	fmt.Printf("Snapshot Information\n")
	fmt.Printf("====================\n\n")
	fmt.Printf("Root Path:     %s\n", meta.RootPath)
	fmt.Printf("Scan Time:     %s\n", meta.ScanTime.Format(time.RFC3339))
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Items:         %s\n", humanize.Comma(meta.ItemCount))
	fmt.Printf("Apparent Size: %s\n", humanize.Bytes(uint64(meta.TotalSize)))
	fmt.Printf("Disk Usage:    %s\n", humanize.Bytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("Errors:        %s\n", humanize.Comma(meta.ErrorCount))
	}
	return nil
}
