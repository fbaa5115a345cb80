package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"duviz/internal/pathutil"
	"duviz/internal/scan"
	"duviz/internal/snapshot"
	"duviz/internal/tui"
)

var (
	rootOneFS    bool
	rootFollow   bool
	rootExtended bool
	rootExclude  []string
	rootCaches   bool
	rootKernfs   bool
)

func init() {
	rootCmd.Flags().BoolVarP(&rootOneFS, "one-file-system", "x", false, "Do not cross filesystem boundaries")
	rootCmd.Flags().BoolVarP(&rootFollow, "follow-symlinks", "L", false, "Follow symlinks to their targets")
	rootCmd.Flags().BoolVarP(&rootExtended, "extended", "e", false, "Collect extended metadata (mtime, owner, mode)")
	rootCmd.Flags().StringSliceVar(&rootExclude, "exclude", nil, "Glob patterns to exclude (can be repeated)")
	rootCmd.Flags().BoolVar(&rootCaches, "exclude-caches", false, "Skip directories tagged with CACHEDIR.TAG")
	rootCmd.Flags().BoolVar(&rootKernfs, "exclude-kernfs", false, "Skip Linux pseudo-filesystems such as /proc")
}

// runRoot scans the given path (default ".") and opens the browser on
// the live tree.
func runRoot(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	root = pathutil.Normalize(root)

	opts := scan.DefaultOptions().
		WithSameFilesystem(rootOneFS).
		WithFollowSymlinks(rootFollow).
		WithExtended(rootExtended).
		WithExcludeCaches(rootCaches).
		WithExcludeKernfs(rootKernfs)
	for _, pattern := range rootExclude {
		opts.AddExcludePattern(pattern)
	}

	model := tui.NewModel(scan.New(opts), root)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse a saved snapshot interactively",
	Long:  `Open the interactive browser on a previously saved snapshot database.`,
	RunE:  runBrowse,
}

var browseDB string

func init() {
	browseCmd.Flags().StringVarP(&browseDB, "db", "d", "./data/latest.db", "Path to snapshot database")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	root, _, err := snapshot.Open(browseDB)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}

	// Snapshot browsing is read-only; refresh is disabled.
	model := tui.NewModelFromTree(root, nil)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
