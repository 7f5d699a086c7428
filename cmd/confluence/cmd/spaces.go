package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/tree"
)

func newSpacesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "List the spaces of an ingested tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSpaces(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// SpaceInfo is the JSON shape of one space listing entry.
type SpaceInfo struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Pages       int    `json:"pages"`
	Permissions int    `json:"permissions"`
}

func runSpaces(cmd *cobra.Command, jsonOutput bool) error {
	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	infos := make([]SpaceInfo, 0)
	for _, spaceID := range t.Spaces() {
		space, err := t.Space(spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			continue
		}
		infos = append(infos, SpaceInfo{
			ID:          spaceID,
			Key:         tree.SpaceKey(space),
			Name:        tree.SpaceName(space),
			Pages:       len(t.PagesOf(spaceID)),
			Permissions: len(t.Permissions(spaceID)),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := output.New(cmd.OutOrStdout())
	if len(infos) == 0 {
		w.Status("", "no spaces in tree")
		return nil
	}
	for _, info := range infos {
		w.Statusf("→", "%s (%d)", info.Name, info.ID)
		w.Field("key", info.Key)
		w.Field("pages", fmt.Sprintf("%d", info.Pages))
		w.Field("permissions", fmt.Sprintf("%d", info.Permissions))
	}
	return nil
}
