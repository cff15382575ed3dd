package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/alexandria/internal/branch"
)

var outlineJSON bool

func init() {
	cmd := newOutlineCmd()
	cmd.Flags().BoolVar(&outlineJSON, "json", false, "Print the reading plan as JSON")
	rootCmd.AddCommand(cmd)
}

func newOutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the reading outline of a document",
		Long: `The outline command walks the sections of a document in reading order and
prints, before each one, only the headings that have not been shown yet.

Example:
  alexandria outline book.adoc
  alexandria outline notes.md --max-section-tokens 500 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutline(cmd, args[0])
		},
	}
}

func runOutline(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	p, err := loadPublication(ctx, path, newLogger())
	if err != nil {
		return err
	}

	steps, err := branch.Plan(ctx, p.tree, p.tree.Leaves(), 0)
	if err != nil {
		return fmt.Errorf("failed to plan outline: %w", err)
	}
	if outlineJSON {
		return printJSON(cmd.OutOrStdout(), steps)
	}
	return writeOutline(ctx, cmd.OutOrStdout(), p, steps)
}

func writeOutline(ctx context.Context, w io.Writer, p *publication, steps []branch.Step) error {
	for _, st := range steps {
		for _, h := range st.Headings {
			ev, err := p.tree.GetEvent(ctx, h.Address)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", h.Depth), ev.Title())
		}
		if st.Leaf.IsZero() {
			fmt.Fprintln(w, "- (missing section)")
			continue
		}
		ev, err := p.tree.GetEvent(ctx, st.Leaf)
		if err != nil {
			return err
		}
		label := ev.Title()
		if label == "" {
			label = firstLine(ev.Content, 60)
		}
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", p.tree.Depth(st.Leaf)), label)
	}
	return nil
}

// firstLine returns the first line of s, cut to at most n runes.
func firstLine(s string, n int) string {
	s, _, _ = strings.Cut(s, "\n")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
