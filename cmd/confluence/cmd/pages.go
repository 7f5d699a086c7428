package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/errors"
	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/tree"
)

func newPagesCmd() *cobra.Command {
	var spaceKey string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the current pages of an ingested tree",
		Long: `Pages lists the current page of every page lineage, grouped by
space. Historical revisions are excluded; use the page id with the
attachments command to inspect one page further.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPages(cmd, spaceKey, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&spaceKey, "space", "", "Restrict the listing to one space key")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// PageInfo is the JSON shape of one page listing entry.
type PageInfo struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	SpaceKey string `json:"space_key"`
	Homepage bool   `json:"homepage,omitempty"`
}

func runPages(cmd *cobra.Command, spaceKey string, jsonOutput bool) error {
	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	spaceIDs := t.Spaces()
	if spaceKey != "" {
		id, ok := t.SpaceByKey(spaceKey)
		if !ok {
			return errors.New(errors.ErrCodeBadIdentifier,
				"unknown space key "+spaceKey, nil).
				WithSuggestion("run 'confluence spaces' to list the known keys")
		}
		spaceIDs = []int64{id}
	}

	infos := make([]PageInfo, 0)
	for _, spaceID := range spaceIDs {
		key := ""
		if space, serr := t.Space(spaceID); serr == nil && space != nil {
			key = tree.SpaceKey(space)
		}
		for _, pageID := range t.PagesOf(spaceID) {
			page, perr := t.Page(pageID, false)
			if perr != nil {
				return perr
			}
			if page == nil {
				continue
			}
			infos = append(infos, PageInfo{
				ID:       pageID,
				Title:    page.GetString(tree.KeyPageTitle, ""),
				SpaceKey: key,
				Homepage: page.GetBool(tree.KeyPageHomepage, false),
			})
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := output.New(cmd.OutOrStdout())
	if len(infos) == 0 {
		w.Status("", "no current pages in tree")
		return nil
	}
	for _, info := range infos {
		marker := ""
		if info.Homepage {
			marker = " (homepage)"
		}
		w.Statusf("→", "[%s] %s%s", info.SpaceKey, info.Title, marker)
		w.Field("id", fmt.Sprintf("%d", info.ID))
	}
	return nil
}
