package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"duviz/internal/entry"
	"duviz/internal/pathutil"
	"duviz/internal/scan"
	"duviz/internal/snapshot"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a directory and save a snapshot",
	Long:  `Scan a directory tree and save the result as a SQLite snapshot database.`,
	RunE:  runScan,
}

var (
	scanRoot      string
	scanOut       string
	scanRetention int
	scanExclude   []string
	scanOneFS     bool
	scanFollow    bool
	scanExtended  bool
	scanCaches    bool
	scanKernfs    bool
	scanVerbose   bool
	scanProgress  time.Duration
)

func init() {
	scanCmd.Flags().StringVarP(&scanRoot, "root", "r", ".", "Root directory to scan")
	scanCmd.Flags().StringVarP(&scanOut, "out", "o", "./data", "Output directory for snapshots")
	scanCmd.Flags().IntVar(&scanRetention, "retention", 5, "Number of snapshots to retain (0 = unlimited)")
	scanCmd.Flags().StringSliceVarP(&scanExclude, "exclude", "e", nil, "Glob patterns to exclude (can be repeated)")
	scanCmd.Flags().BoolVarP(&scanOneFS, "one-file-system", "x", false, "Do not cross filesystem boundaries")
	scanCmd.Flags().BoolVarP(&scanFollow, "follow-symlinks", "L", false, "Follow symlinks to their targets")
	scanCmd.Flags().BoolVar(&scanExtended, "extended", false, "Collect extended metadata (mtime, owner, mode)")
	scanCmd.Flags().BoolVar(&scanCaches, "exclude-caches", false, "Skip directories tagged with CACHEDIR.TAG")
	scanCmd.Flags().BoolVar(&scanKernfs, "exclude-kernfs", false, "Skip Linux pseudo-filesystems such as /proc")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Enable verbose scan logging")
	scanCmd.Flags().DurationVar(&scanProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
}

func runScan(cmd *cobra.Command, args []string) error {
	rootPath, err := filepath.Abs(scanRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	rootPath = pathutil.Normalize(rootPath)

	outDir, err := filepath.Abs(scanOut)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	logger := zap.NewNop()
	if scanVerbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync()
	}

	opts := scan.DefaultOptions().
		WithSameFilesystem(scanOneFS).
		WithFollowSymlinks(scanFollow).
		WithExtended(scanExtended).
		WithExcludeCaches(scanCaches).
		WithExcludeKernfs(scanKernfs).
		WithLogger(logger)
	for _, pattern := range scanExclude {
		opts.AddExcludePattern(pattern)
	}

	fmt.Printf("Scanning %s...\n", rootPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	scanner := scan.New(opts)
	startTime := time.Now()
	isTTY := isTerminal()

	var tree *entry.Entry
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		tree, err = scanner.Scan(gctx, rootPath)
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		var spinnerIdx int
		lastNonTTY := time.Now()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				p := scanner.Progress()
				elapsed := time.Since(startTime).Round(time.Millisecond)
				rate := float64(0)
				if elapsed.Seconds() > 0 {
					rate = float64(p.Files+p.Dirs) / elapsed.Seconds()
				}
				if isTTY {
					spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
					spinnerIdx++
					errStr := ""
					if p.Errors > 0 {
						errStr = fmt.Sprintf(" | %d errors", p.Errors)
					}
					fmt.Fprintf(os.Stderr, "\r\033[K%s Scanning... %d files | %d dirs | %s | %.0f/sec | %s%s",
						spinner, p.Files, p.Dirs, humanize.Bytes(uint64(p.Bytes)), rate, elapsed, errStr)
				} else if scanProgress > 0 && time.Since(lastNonTTY) >= scanProgress {
					fmt.Fprintf(os.Stderr, "PROGRESS files=%d dirs=%d bytes=%s rate=%.0f/sec elapsed=%s errors=%d\n",
						p.Files, p.Dirs, humanize.Bytes(uint64(p.Bytes)), rate, elapsed, p.Errors)
					lastNonTTY = time.Now()
				}
			}
		}
	})
	err = g.Wait()

	if isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Scan canceled.")
			return nil
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	d, _ := tree.Dir()
	meta := snapshot.Meta{
		RootPath:    rootPath,
		ScanTime:    startTime,
		TotalSize:   tree.Size,
		TotalBlocks: tree.Blocks,
		ItemCount:   d.TotalItems + 1,
		ErrorCount:  scanner.Progress().Errors,
	}
	mgr := snapshot.NewManager(outDir, scanRetention).WithLogger(logger)
	dbPath, err := mgr.Save(tree, meta)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	fmt.Printf("Snapshot: %s\n", dbPath)
	fmt.Printf("Scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Items: %s\n", humanize.Comma(meta.ItemCount))
	fmt.Printf("  Apparent size: %s\n", humanize.Bytes(uint64(meta.TotalSize)))
	fmt.Printf("  Disk usage: %s\n", humanize.Bytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("  Errors: %s\n", humanize.Comma(meta.ErrorCount))
	}
	return nil
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
