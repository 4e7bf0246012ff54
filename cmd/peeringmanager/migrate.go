package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HerbHall/peeringmanager/internal/auth"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and list them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := auth.NewUserStore(ctx, a.db); err != nil {
				return err
			}
			applied, err := a.db.Applied(ctx)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout())
			table.SetHeader([]string{"MODULE", "VERSION", "DESCRIPTION", "APPLIED"})
			for _, m := range applied {
				table.Append([]string{m.Plugin, strconv.Itoa(m.Version), m.Description, m.AppliedAt})
			}
			table.Render()
			fmt.Fprintf(os.Stderr, "%d migrations applied\n", len(applied))
			return nil
		},
	}
}
