package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCandidatesCmd(configPath *string) *cobra.Command {
	var asn int64
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List PeeringDB exchanges that are not yet configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if asn == 0 {
				asn = int64(a.v.GetInt("plugins.peering.my_asn"))
			}
			if asn == 0 {
				return fmt.Errorf("no ASN: pass --asn or set plugins.peering.my_asn")
			}
			known, err := a.peering.Store().KnownPeeringDBIDs(ctx)
			if err != nil {
				return err
			}
			candidates, err := a.catalog.ImportCandidates(ctx, asn, known)
			if err != nil {
				return fmt.Errorf("peeringdb: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintf(out, "AS%d has no exchanges left to import\n", asn)
				return nil
			}
			table := newTable(out)
			table.SetHeader([]string{"PEERINGDB", "NAME", "SLUG", "IPV6", "IPV4"})
			for _, c := range candidates {
				table.Append([]string{strconv.FormatInt(c.PeeringDBID, 10), c.Name, c.Slug, c.IPv6Address, c.IPv4Address})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int64Var(&asn, "asn", 0, "local ASN (defaults to plugins.peering.my_asn)")
	return cmd
}
