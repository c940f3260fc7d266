package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sdemirror/internal/sde"
)

func (a *app) updateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the mirror when the upstream version changed",
		Long: `Compare the stored version token with the upstream one and, when they
differ, replace every mirror table in a single transaction. With --force the
refresh runs even when the tokens match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.newUpdater().Update(cmd.Context(), force)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, res.Message())
			if res.Status == sde.StatusUpdated {
				printStats(a, res.Stats)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refresh even when the stored token is current")
	return cmd
}

func printStats(a *app, stats []sde.Stats) {
	t := newTable(a.stdout)
	t.AppendHeader(table.Row{"Pipeline", "Table", "Extracted", "Loaded", "Duration"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Pipeline, s.Table, s.Extracted, s.Loaded, s.Duration.Round(time.Millisecond).String()})
	}
	t.AppendFooter(table.Row{"", "", "", sde.TotalLoaded(stats), ""})
	t.Render()
}
