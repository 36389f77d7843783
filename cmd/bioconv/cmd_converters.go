package main

import (
	"fmt"

	"bioconv/internal/converter"

	"github.com/spf13/cobra"
)

// convertersCmd lists the registered converters.
var convertersCmd = &cobra.Command{
	Use:   "converters",
	Short: "List available converters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range converter.Names() {
			cc := cfg.Converter(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s / %s (taxon %s, model %s)\n",
				name, cc.DataSource, cc.DataSet, cc.TaxonID, cc.Model)
		}
		return nil
	},
}
