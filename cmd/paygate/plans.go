package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	core "github.com/dmitrymomot/paygate/pkg/billing"
)

func newPlansCmd(load configLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Validate and print the plan catalog",
		Long: `Load CATALOG_PATH, validate it and print every plan with its vendor identifiers.

Examples:
  paygate plans
  paygate plans --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			catalog, err := core.NewCatalog(cmd.Context(), core.NewFilePlanSource(cfg.CatalogPath))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Plans())
			}
			return printPlans(cmd.OutOrStdout(), catalog.Plans())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the public catalog as JSON")
	return cmd
}

func printPlans(w io.Writer, plans []core.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tINTERVAL\tPROVIDERS")
	for _, p := range plans {
		name := p.Name
		if p.Featured {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, name, p.Price, p.Interval, vendorIDs(p))
	}
	return tw.Flush()
}

// vendorIDs renders the provider mapping as "provider=id" pairs in a stable order.
func vendorIDs(p core.Plan) string {
	pairs := make([]string, 0, len(p.Providers))
	for provider, id := range p.Providers {
		pairs = append(pairs, string(provider)+"="+id)
	}
	slices.Sort(pairs)
	return strings.Join(pairs, " ")
}
