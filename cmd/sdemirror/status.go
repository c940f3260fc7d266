package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored version, table sizes and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			v, err := a.store.Version(ctx)
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			if v.Token == "" {
				fmt.Fprintln(a.stdout, "Version: never refreshed")
			} else {
				fmt.Fprintf(a.stdout, "Version: %s (%s)\n", v.Token, v.Date.UTC().Format(time.RFC3339))
			}

			counts, err := a.store.Counts(ctx)
			if err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
			t := newTable(a.stdout)
			t.AppendHeader(table.Row{"Table", "Name", "Rows"})
			for _, c := range counts {
				t.AppendRow(table.Row{c.Label, c.Table, c.Rows})
			}
			t.Render()

			runs, err := a.store.Runs(ctx, limit)
			if err != nil {
				return fmt.Errorf("read runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No refresh has run yet.")
				return nil
			}

			t = newTable(a.stdout)
			t.AppendHeader(table.Row{"Started", "Status", "Token", "Rows", "Forced", "Error"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.StartedAt.UTC().Format(time.RFC3339),
					r.Status,
					r.Token,
					r.RowsLoaded,
					r.Forced,
					r.Error,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "runs", "n", 10, "number of recent runs to show")
	return cmd
}
