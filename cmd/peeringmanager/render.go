package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "render <exchange>",
		Short: "Print the rendered configuration of an internet exchange",
		Long:  "Render the configuration template attached to an internet exchange, given by slug or ID.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ix, err := a.exchange(ctx, args[0])
			if err != nil {
				return fmt.Errorf("exchange %s: %w", args[0], err)
			}
			config, err := a.peering.Configuration(ctx, ix)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), config)
			return nil
		},
	}
}
