package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sshwatch/internal/parser"
	"sshwatch/internal/render"
	"sshwatch/internal/state"
)

const topSourcesLimit = 5

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		status string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show events recorded by watch --history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			st, err := parseStatusFlag(status)
			if err != nil {
				return err
			}

			store, err := state.OpenReadOnly(a.cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			cfg := a.cfg
			printer := render.NewPrinter(out, cfg.Output.Format, cfg.Output.Color, cfg.Output.UserWidth)

			records, err := store.Recent(ctx, limit, st)
			if err != nil {
				return err
			}
			// Oldest first, like the live stream.
			for i := len(records) - 1; i >= 0; i-- {
				evt := records[i].Event
				if err := printer.PrintEvent(&evt); err != nil {
					return err
				}
			}

			if cfg.Output.Format == render.FormatJSON {
				return nil
			}

			counts, err := store.StatusCounts(ctx)
			if err != nil {
				return err
			}
			top, err := store.TopSources(ctx, parser.StatusFailed, topSourcesLimit)
			if err != nil {
				return err
			}
			printSummary(out, counts, top)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to show")
	cmd.Flags().StringVar(&status, "status", "", "Only show events with this status (FAILED, DISCONNECTED, CLOSED, none)")
	return cmd
}

// parseStatusFlag maps --status to a store filter. Empty means all events,
// "none" means events without a status.
func parseStatusFlag(value string) (*parser.Status, error) {
	var st parser.Status
	switch strings.ToUpper(value) {
	case "":
		return nil, nil
	case "NONE", "-":
		st = parser.StatusNone
	case string(parser.StatusFailed), string(parser.StatusDisconnected), string(parser.StatusClosed):
		st = parser.Status(strings.ToUpper(value))
	default:
		return nil, fmt.Errorf("unknown status %q", value)
	}
	return &st, nil
}

func printSummary(w io.Writer, counts map[parser.Status]int, top []state.SourceCount) {
	keys := make([]string, 0, len(counts))
	for st := range counts {
		keys = append(keys, string(st))
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Events by status:")
	for _, k := range keys {
		label := k
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "  %-13s %d\n", label, counts[parser.Status(k)])
	}

	if len(top) == 0 {
		return
	}
	fmt.Fprintln(w, "Top failing sources:")
	for _, s := range top {
		fmt.Fprintf(w, "  %-15s %d\n", s.IP, s.Count)
	}
}
