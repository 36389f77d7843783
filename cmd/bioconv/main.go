package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bioconv/internal/config"
	"bioconv/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	timeout time.Duration

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bioconv",
	Short: "bioconv - flat-file identifier importer",
	Long: `bioconv converts tab-delimited biological identifier tables into items
(genes, transcripts, translations and their synonyms) and loads them into a
source items database, then runs the post-load SQL maintenance for it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return err
		}
		logger = logging.L()
		logging.Boot("bioconv %s: config %s, store driver %s", cfg.Version, cfgFile, cfg.Store.Driver)
		logging.BootDebug("Source %s (dir=%s, includes=%v)", cfg.Source.Type, cfg.Source.Dir, cfg.Source.Includes)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "bioconv.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Operation timeout (default: config timeout)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(postprocessCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(convertersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext applies the timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	d := timeout
	if d <= 0 && cfg != nil {
		d = cfg.GetTimeout()
	}
	if d <= 0 {
		d = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
