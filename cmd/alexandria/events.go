package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/alexandria/internal/event"
)

var eventsSectionsOnly bool

func init() {
	cmd := newEventsCmd()
	cmd.Flags().BoolVar(&eventsSectionsOnly, "sections", false, "Only print section events")
	rootCmd.AddCommand(cmd)
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <file>",
		Short: "Print the events generated for a document",
		Long: `The events command splits a document and prints the unsigned events as a JSON
array, children before the indexes that reference them and the root last.

Example:
  alexandria events book.adoc --pubkey 3bf0c63f...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPublication(cmd.Context(), args[0], newLogger())
			if err != nil {
				return err
			}
			events := p.pub.Events
			if eventsSectionsOnly {
				events = nil
				for _, ev := range p.pub.Events {
					if ev.Kind == event.KindSection {
						events = append(events, ev)
					}
				}
			}
			if err := printJSON(cmd.OutOrStdout(), events); err != nil {
				return fmt.Errorf("failed to write events: %w", err)
			}
			return nil
		},
	}
}
