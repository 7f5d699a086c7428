// Package cmd provides the CLI commands for the confluence binary.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/config"
	"github.com/TomaszPitak/confluence/internal/errors"
	"github.com/TomaszPitak/confluence/internal/logging"
	"github.com/TomaszPitak/confluence/internal/tree"
	"github.com/TomaszPitak/confluence/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	debugMode      bool
	treeDir        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the confluence CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confluence",
		Short: "Ingest and query Confluence export packages",
		Long: `confluence turns a Confluence XML export package into an on-disk
entity tree and answers questions about it: spaces, pages, attachments,
users, groups, and full-text page search.

Run 'confluence ingest <source> --tree <dir>' once, then point the
query commands at the same tree.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("confluence version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&treeDir, "tree", "", "Entity tree directory (default: ingest.tree_dir from config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.confluence/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSpacesCmd())
	cmd.AddCommand(newPagesCmd())
	cmd.AddCommand(newAttachmentsCmd())
	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newGroupsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog records to the rotated log file, built from
// the logging section of the configuration. Stderr mirroring stays off
// so command output remains parseable.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: false,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup

	if debugMode {
		slog.Info("debug logging enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Short()))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and renders failures in the structured
// error format.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}

// resolveTreeDir returns the loaded configuration and the tree
// directory: the --tree flag when set, the configured ingest.tree_dir
// otherwise.
func resolveTreeDir() (*config.Config, string, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, "", err
	}
	if treeDir != "" {
		return cfg, treeDir, nil
	}
	if cfg.Ingest.TreeDir == "" {
		return nil, "", errors.New(errors.ErrCodeConfigNotFound,
			"no entity tree configured", nil).
			WithSuggestion("pass --tree <dir> or set ingest.tree_dir in .confluence.yaml")
	}
	return cfg, cfg.Ingest.TreeDir, nil
}

// openTree reopens a persisted entity tree for the query commands and
// restores its in-memory indexes.
func openTree() (*tree.Tree, error) {
	cfg, dir, err := resolveTreeDir()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			"entity tree not found at "+dir, err).
			WithSuggestion("run 'confluence ingest <source> --tree " + dir + "' first")
	}

	t, err := tree.NewWithCacheSize(dir, cfg.Ingest.CacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilePermission, err)
	}
	if err := t.RebuildIndexes(); err != nil {
		_ = t.Close()
		return nil, errors.Wrap(errors.ErrCodeTreeCorrupt, err)
	}
	return t, nil
}
