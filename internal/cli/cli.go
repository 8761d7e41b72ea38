package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/massalia/agenda/internal/adapter"
	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/logging"
	"github.com/massalia/agenda/internal/pipeline"
	"github.com/massalia/agenda/internal/storage"
	"github.com/massalia/agenda/internal/venue"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitPartial = 2
)

var (
	flagConfigDir     string
	flagDataDir       string
	flagSources       []string
	flagDryRun        bool
	flagSkipSelection bool
	flagFormat        string
	flagVerbose       bool
)

// exitCode is set by runCrawl and consumed by Execute, so RunE can
// return normally and deferred cleanup still runs.
var exitCode = ExitSuccess

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda-crawl",
		Short: "Crawl Marseille cultural-event sources into the published agenda",
		Long: `Fetches candidate events from the configured sources, selects the
ones that belong in the calendar, classifies and deduplicates them
against the published set, and emits updated canonical records plus a
per-candidate decision log.`,
		RunE:          runCrawl,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "config", "Directory holding selection-criteria.yaml, venues.yaml and sources.yaml")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "~/.local/share/agenda", "Data directory for snapshots and decision logs")
	cmd.Flags().StringSliceVar(&flagSources, "source", nil, "Crawl only these source ids (repeatable)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Run without saving the snapshot or decision log")
	cmd.Flags().BoolVar(&flagSkipSelection, "skip-selection", false, "Accept every candidate (diagnostics only)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newAuditCmd())

	return cmd
}

// runCrawl is the main command logic.
func runCrawl(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	logger, criteria, venues, sources, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}

	if len(flagSources) > 0 {
		sources, err = filterSources(sources, flagSources)
		if err != nil {
			return err
		}
	}

	registry, err := adapter.NewRegistry(sources, logger)
	if err != nil {
		return err
	}

	store, err := storage.New(flagDataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	snapshot, err := store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	p := pipeline.New(criteria, registry, venues, logger, flagSkipSelection, nil)

	// Interrupts cancel fetching; completed sources still flow through
	// the remaining stages so partial results get flushed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := p.Run(ctx, snapshot.Canonicals())
	if runErr != nil {
		WriteOutput(os.Stdout, result, format, flagVerbose)
		return runErr
	}

	if !flagDryRun {
		snapshot.Apply(result.Canonicals)
		today := time.Now().In(event.Paris).Truncate(24 * time.Hour)
		snapshot.Prune(today.AddDate(0, 0, -1))
		if err := store.SaveSnapshot(snapshot); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		if err := store.WriteDecisionLog(result.RunID, result.Log); err != nil {
			return fmt.Errorf("saving decision log: %w", err)
		}
	}

	if err := WriteOutput(os.Stdout, result, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	exitCode = statusExitCode(result.Status)
	return nil
}

// statusExitCode maps a run status to the process exit code.
func statusExitCode(s pipeline.Status) int {
	if s == pipeline.StatusPartial {
		return ExitPartial
	}
	return ExitSuccess
}

// newAuditCmd reports probable duplicate venues and incomplete entries
// in the venue registry.
func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit-venues",
		Short: "Check the venue registry for duplicates and missing fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, criteria, venues, _, err := loadConfiguration(cmd)
			if err != nil {
				return err
			}
			return WriteAudit(os.Stdout, venues.Audit(criteria.Matching.VenueSimilarity),
				OutputFormat(strings.ToLower(flagFormat)))
		},
	}
}

// loadConfiguration loads process config, logger and the three
// configuration documents. Any failure here is fatal to the run.
// Explicit flags beat environment settings; environment beats defaults.
func loadConfiguration(cmd *cobra.Command) (zerolog.Logger, *config.Selection, *venue.Registry, *config.Sources, error) {
	var zero zerolog.Logger

	cfg, err := config.Load()
	if err != nil {
		return zero, nil, nil, nil, err
	}
	if cmd.Flags().Changed("config-dir") {
		cfg.ConfigDir = flagConfigDir
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	} else if flagDataDir != "" && cfg.DataDir == "data" {
		// Flag default is the user data dir; keep it unless the
		// environment overrode the compiled default.
		cfg.DataDir = flagDataDir
	}
	flagDataDir = cfg.DataDir

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	logger, err := logging.New(cfg.Environment, level)
	if err != nil {
		return zero, nil, nil, nil, err
	}

	criteria, err := config.LoadSelection(filepath.Join(cfg.ConfigDir, "selection-criteria.yaml"))
	if err != nil {
		return zero, nil, nil, nil, err
	}
	venues, err := venue.LoadRegistry(filepath.Join(cfg.ConfigDir, "venues.yaml"))
	if err != nil {
		return zero, nil, nil, nil, err
	}
	sources, err := config.LoadSources(filepath.Join(cfg.ConfigDir, "sources.yaml"))
	if err != nil {
		return zero, nil, nil, nil, err
	}
	return logger, criteria, venues, sources, nil
}

// filterSources restricts the document to the requested source ids.
func filterSources(sources *config.Sources, ids []string) (*config.Sources, error) {
	filtered := &config.Sources{Defaults: sources.Defaults}
	for _, id := range ids {
		src := sources.ByID(id)
		if src == nil {
			return nil, fmt.Errorf("unknown source id %q", id)
		}
		filtered.Sources = append(filtered.Sources, *src)
	}
	return filtered, nil
}

// Execute runs the CLI and exits with the run's status code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(exitCode)
}
