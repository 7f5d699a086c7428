package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/ingest"
	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the outcome of the last ingestion pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// StatsOutput is the JSON shape of the last pass outcome.
type StatsOutput struct {
	StartedAt  time.Time        `json:"started_at"`
	DurationMS int64            `json:"duration_ms"`
	Total      int64            `json:"total_objects"`
	Objects    map[string]int64 `json:"objects"`
	Dropped    map[string]int64 `json:"dropped,omitempty"`
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	_, dir, err := resolveTreeDir()
	if err != nil {
		return err
	}

	store, err := telemetry.Open(filepath.Join(dir, ingest.StatsDBName))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.LastRun()
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	if stats == nil {
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(nil)
		}
		w.Status("", "no ingestion pass recorded yet")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(StatsOutput{
			StartedAt:  stats.StartedAt,
			DurationMS: stats.Duration.Milliseconds(),
			Total:      stats.Total(),
			Objects:    stats.Objects,
			Dropped:    stats.Dropped,
		})
	}

	w.Field("started", stats.StartedAt.Format(time.RFC3339))
	w.Field("duration", stats.Duration.String())
	w.Field("objects", fmt.Sprintf("%d", stats.Total()))

	classes := make([]string, 0, len(stats.Objects))
	for class := range stats.Objects {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		w.Field("  "+class, fmt.Sprintf("%d", stats.Objects[class]))
	}

	if len(stats.Dropped) > 0 {
		reasons := make([]string, 0, len(stats.Dropped))
		for reason := range stats.Dropped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			w.Warningf("dropped %d: %s", stats.Dropped[reason], reason)
		}
	}
	return nil
}
