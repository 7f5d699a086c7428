package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/ingest"
	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/search"
	"github.com/TomaszPitak/confluence/internal/telemetry"
)

func newIngestCmd() *cobra.Command {
	var buildIndex bool

	cmd := &cobra.Command{
		Use:   "ingest <source>",
		Short: "Ingest an export package into an entity tree",
		Long: `Ingest reads an export package (a directory, a zip archive, or a
file:// URL), streams its entities.xml, and persists every object as a
property bag in the entity tree.

The pass is a single forward read. Re-running it over the same tree
merges records key by key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], buildIndex)
		},
	}

	cmd.Flags().BoolVar(&buildIndex, "index", true, "Build the full-text page index after the pass")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, source string, buildIndex bool) error {
	cfg, dir, err := resolveTreeDir()
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	w.Statusf("→", "materializing package %s", source)

	pkg, err := ingest.Open(ingest.Options{
		Source:    source,
		TreeDir:   dir,
		CacheSize: cfg.Ingest.CacheSize,
	})
	if err != nil {
		return err
	}
	defer func() { _ = pkg.Close() }()

	if desc, derr := pkg.Workdir().ReadDescriptor(); derr == nil && len(desc) > 0 {
		if exportType, ok := desc["exportType"]; ok {
			w.Field("export type", exportType)
		}
		if build, ok := desc["buildNumber"]; ok {
			w.Field("build number", build)
		}
	}

	w.Status("→", "ingesting entity stream")
	stats, err := pkg.Run(ctx)
	if err != nil {
		return err
	}

	printStats(w, stats)

	if buildIndex {
		if err := buildSearchIndex(ctx, pkg, w); err != nil {
			return err
		}
	}

	w.Successf("tree ready at %s", pkg.Tree().Root())
	return nil
}

func buildSearchIndex(ctx context.Context, pkg *ingest.Package, w *output.Writer) error {
	idx, err := search.Open(filepath.Join(pkg.Tree().Root(), search.IndexDirName))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	n, err := idx.IndexTree(ctx, pkg.Tree())
	if err != nil {
		return err
	}
	w.Statusf("→", "indexed %d pages for search", n)
	return nil
}

// printStats renders one pass outcome: per-class object counts in
// stable order, then drop reasons.
func printStats(w *output.Writer, stats *telemetry.Stats) {
	w.Newline()
	w.Statusf("", "objects ingested: %d in %s", stats.Total(), stats.Duration)

	classes := make([]string, 0, len(stats.Objects))
	for class := range stats.Objects {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		w.Field(class, fmt.Sprintf("%d", stats.Objects[class]))
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
	w.Newline()
}
