package main

import (
	"bioconv/internal/metrics"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	postModel  string
	postOSName string
	postSQLDir string
)

// postprocessCmd runs the post-load SQL maintenance on its own.
var postprocessCmd = &cobra.Command{
	Use:   "postprocess",
	Short: "Run post-load SQL maintenance on an items database",
	Long: `Executes "<model>_src_items.sql" against a Postgres items database:
reference statistics, the model's statements one per line, then ANALYSE.
SQLite stores are left unchanged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		s, err := openStore(ctx, postOSName)
		if err != nil {
			return err
		}
		defer s.Close()

		m := metrics.New()
		if err := postProcess(ctx, s, m, postOSName,
			firstNonEmpty(postModel, cfg.PostProcess.Model),
			firstNonEmpty(postSQLDir, cfg.PostProcess.SQLDir)); err != nil {
			return err
		}
		if cfg.Metrics.Textfile != "" {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				return err
			}
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Post-processing complete (%s)\n", s.Dialect())
		return s.Close()
	},
}

func init() {
	postprocessCmd.Flags().StringVar(&postModel, "model", "", "Model whose SQL file to run (default: post_process.model)")
	postprocessCmd.Flags().StringVar(&postOSName, "os-name", "", "Named object store from config (default: store)")
	postprocessCmd.Flags().StringVar(&postSQLDir, "sql-dir", "", "Directory holding <model>_src_items.sql (default: embedded)")
}
