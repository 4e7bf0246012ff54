// Command peeringmanager serves the peering management API and offers
// offline helpers to render, diff and plan exchange configurations.
package main

//	@title						Peering Manager API
//	@version					0.1.0
//	@description				BGP peering management: autonomous systems, internet exchanges, routers and sessions.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "peeringmanager",
		Short: "BGP peering management",
		Args:  cobra.NoArgs,
		// main prints errors itself.
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newRenderCmd(&configPath),
		newDiffCmd(&configPath),
		newCandidatesCmd(&configPath),
		newBackupCmd(&configPath),
		newRestoreCmd(&configPath),
		newVersionCmd(),
	)
	return cmd
}
