package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"duviz/internal/export"
	"duviz/internal/tui"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Browse a previously exported JSON document",
	Long: `Rebuild a tree from a JSON document produced by export and open the
browser on it. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	in := os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		in = f
	}

	root, err := export.Decode(in)
	if err != nil {
		return fmt.Errorf("failed to import document: %w", err)
	}

	// An imported tree has no live filesystem behind it; refresh is
	// disabled.
	model := tui.NewModelFromTree(root, nil)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
