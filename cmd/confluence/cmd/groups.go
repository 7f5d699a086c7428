package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/tree"
)

func newGroupsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the groups of an ingested tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGroups(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// GroupInfo is the JSON shape of one group listing entry.
type GroupInfo struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	MemberUsers  []int64 `json:"member_users,omitempty"`
	MemberGroups []int64 `json:"member_groups,omitempty"`
}

func runGroups(cmd *cobra.Command, jsonOutput bool) error {
	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	infos := make([]GroupInfo, 0)
	for _, groupID := range t.Groups() {
		group, gerr := t.Group(groupID)
		if gerr != nil {
			return gerr
		}
		if group == nil {
			continue
		}
		infos = append(infos, GroupInfo{
			ID:           groupID,
			Name:         group.GetString(tree.KeyGroupName, ""),
			MemberUsers:  group.GetLongList(tree.KeyGroupMemberUsers, nil),
			MemberGroups: group.GetLongList(tree.KeyGroupMemberGroups, nil),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := output.New(cmd.OutOrStdout())
	if len(infos) == 0 {
		w.Status("", "no groups in tree")
		return nil
	}
	for _, info := range infos {
		name := info.Name
		if name == "" {
			name = fmt.Sprintf("group %d", info.ID)
		}
		w.Statusf("→", "%s (%d)", name, info.ID)
		w.Field("member users", fmt.Sprintf("%d", len(info.MemberUsers)))
		w.Field("member groups", fmt.Sprintf("%d", len(info.MemberGroups)))
	}
	return nil
}
