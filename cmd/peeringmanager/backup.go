package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/peeringmanager/internal/backup"
	"github.com/HerbHall/peeringmanager/internal/server"
)

func newBackupCmd(configPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write the database and configuration to a tar.gz archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if output == "" {
				output = "peeringmanager-" + time.Now().UTC().Format("20060102-150405") + ".tar.gz"
			}
			if err := backup.Create(ctx, a.db.DB(), a.v.ConfigFileUsed(), output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default peeringmanager-<timestamp>.tar.gz)")
	return cmd
}

func newRestoreCmd(configPath *string) *cobra.Command {
	var (
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Extract a backup archive into the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if dir == "" {
				v, err := server.LoadConfig(*configPath)
				if err != nil {
					return fmt.Errorf("load configuration: %w", err)
				}
				dir = v.GetString("server.data_dir")
			}
			if dir == "" {
				dir = "."
			}
			if err := backup.Restore(cmd.Context(), args[0], dir, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default server.data_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
