package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the mirror schema",
		Long:  "Create any missing tables. Every other command does this implicitly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The schema was migrated during setup.
			fmt.Fprintf(a.stdout, "Schema ready (%s)\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
