// Package cmd provides the CLI commands for fieldcrawl.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fieldcrawl/internal/logging"
	"github.com/Aman-CERP/fieldcrawl/internal/profiling"
	"github.com/Aman-CERP/fieldcrawl/pkg/version"
)

// rootFlags holds persistent flags shared by every subcommand.
type rootFlags struct {
	debug   bool
	dir     string
	profile profiling.Options

	profiler       *profiling.Profiler
	loggingCleanup func()
}

// NewRootCmd creates the root command for the fieldcrawl CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "fieldcrawl",
		Short: "Crawl content items into a field-level search index",
		Long: `fieldcrawl builds one search-index document per content item.

For every item it decides which fields are written, following the
inclusion and exclusion lists in .fieldcrawl.yaml, isolates failures
of individual fields and commits only documents that built cleanly.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("fieldcrawl version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to ~/.fieldcrawl/logs/")
	cmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", ".", "Project directory holding .fieldcrawl.yaml")
	cmd.PersistentFlags().StringVar(&flags.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return flags.start()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return flags.stop()
	}

	cmd.AddCommand(newCrawlCmd(flags))
	cmd.AddCommand(newSearchCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newConfigCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// start begins profiling and, with --debug, file logging before the
// project config is known.
func (f *rootFlags) start() error {
	if f.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		f.loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if f.profile.Enabled() {
		p, err := profiling.Start(f.profile)
		if err != nil {
			return err
		}
		f.profiler = p
	}
	return nil
}

// stop flushes profiles and closes the debug log.
func (f *rootFlags) stop() error {
	err := f.profiler.Stop()
	f.profiler = nil

	if f.loggingCleanup != nil {
		f.loggingCleanup()
		f.loggingCleanup = nil
	}
	return err
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so a running crawl stops between items.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
