package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsOSName string

// statsCmd prints item counts per class.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item counts per class in an items database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		s, err := openStore(ctx, statsOSName)
		if err != nil {
			return err
		}
		defer s.Close()

		counts, err := s.CountByClass(ctx)
		if err != nil {
			return err
		}
		color.New(color.FgCyan, color.Bold).Fprintf(cmd.OutOrStdout(), "Items by class (%s)\n", s.Dialect())
		printCounts(cmd.OutOrStdout(), counts)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsOSName, "os-name", "", "Named object store from config (default: store)")
}
