package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiffCmd(configPath *string) *cobra.Command {
	var commit bool
	cmd := &cobra.Command{
		Use:   "diff <exchange>",
		Short: "Compare the rendered configuration with the router",
		Long: "Render the configuration of an internet exchange, load it as a merge candidate on its router " +
			"and print the resulting changes. With --commit the changes are applied.",
		Args: cobra.ExactArgs(1),
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
			diff, err := a.peering.Changes(ctx, ix, commit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if diff == "" {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			printDiff(out, diff, colored(out))
			if commit {
				fmt.Fprintf(out, "committed to the router of %s\n", ix.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the changes")
	return cmd
}
