package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/config"
	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/search"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var jsonOutput bool
	var reindex bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over the indexed pages",
		Long: `Search queries the page index built during ingestion. Title matches
rank above body matches. Pass --reindex to rebuild the index from the
tree first, e.g. after an index corruption.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), limit, jsonOutput, reindex)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default: search.max_results from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the index from the tree before searching")

	return cmd
}

// SearchResult is the JSON shape of one search hit.
type SearchResult struct {
	PageID       int64    `json:"page_id"`
	Title        string   `json:"title"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, limit int, jsonOutput, reindex bool) error {
	if limit <= 0 {
		cfg, err := config.Load(".")
		if err != nil {
			return err
		}
		limit = cfg.Search.MaxResults
	}

	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	idx, err := search.Open(filepath.Join(t.Root(), search.IndexDirName))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	if reindex || idx.DocCount() == 0 {
		if _, err := idx.IndexTree(ctx, t); err != nil {
			return err
		}
	}

	hits, err := idx.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		results := make([]SearchResult, 0, len(hits))
		for _, hit := range hits {
			results = append(results, SearchResult{
				PageID:       hit.PageID,
				Title:        hit.Title,
				Score:        hit.Score,
				MatchedTerms: hit.MatchedTerms,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		w.Statusf("", "no pages match %q", query)
		return nil
	}
	for _, hit := range hits {
		w.Statusf("→", "%s (page %d, score %.2f)", hit.Title, hit.PageID, hit.Score)
		if len(hit.MatchedTerms) > 0 {
			w.Field("matched", strings.Join(hit.MatchedTerms, ", "))
		}
	}
	return nil
}
