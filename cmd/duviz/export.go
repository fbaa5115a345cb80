package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"duviz/internal/entry"
	"duviz/internal/export"
	"duviz/internal/pathutil"
	"duviz/internal/scan"
	"duviz/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export a tree as a JSON document",
	Long: `Scan a directory (or load a saved snapshot with --db) and write the
tree as a JSON document that can be imported on another machine.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var (
	exportOut     string
	exportDB      string
	exportOneFS   bool
	exportFollow  bool
	exportExtend  bool
	exportExclude []string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "-", "Output file (- for stdout)")
	exportCmd.Flags().StringVarP(&exportDB, "db", "d", "", "Export a saved snapshot instead of scanning")
	exportCmd.Flags().BoolVarP(&exportOneFS, "one-file-system", "x", false, "Do not cross filesystem boundaries")
	exportCmd.Flags().BoolVarP(&exportFollow, "follow-symlinks", "L", false, "Follow symlinks to their targets")
	exportCmd.Flags().BoolVar(&exportExtend, "extended", false, "Collect extended metadata (mtime, owner, mode)")
	exportCmd.Flags().StringSliceVarP(&exportExclude, "exclude", "e", nil, "Glob patterns to exclude (can be repeated)")
}

func runExport(cmd *cobra.Command, args []string) error {
	var root *entry.Entry

	if exportDB != "" {
		var err error
		root, _, err = snapshot.Open(exportDB)
		if err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}
	} else {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		abs = pathutil.Normalize(abs)

		opts := scan.DefaultOptions().
			WithSameFilesystem(exportOneFS).
			WithFollowSymlinks(exportFollow).
			WithExtended(exportExtend)
		for _, pattern := range exportExclude {
			opts.AddExcludePattern(pattern)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			cancel()
		}()

		root, err = scan.New(opts).Scan(ctx, abs)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
	}

	out := os.Stdout
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := export.Encode(out, root); err != nil {
		return err
	}
	return nil
}
