package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/properties"
	"github.com/TomaszPitak/confluence/internal/tree"
)

func newUsersCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List the users of an ingested tree",
		Long: `Users lists both user populations of the export: the numeric-keyed
internal users and the string-keyed user records of newer exports. The
two populations are disjoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUsers(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// UserInfo is the JSON shape of one user listing entry.
type UserInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

func runUsers(cmd *cobra.Command, jsonOutput bool) error {
	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	infos := make([]UserInfo, 0)

	for _, userID := range t.InternalUsers() {
		user, uerr := t.InternalUser(userID)
		if uerr != nil {
			return uerr
		}
		if user == nil {
			continue
		}
		infos = append(infos, userInfo(strconv.FormatInt(userID, 10), user))
	}
	for _, key := range t.UserImpls() {
		user, uerr := t.UserImpl(key)
		if uerr != nil {
			return uerr
		}
		if user == nil {
			continue
		}
		infos = append(infos, userInfo(key, user))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := output.New(cmd.OutOrStdout())
	if len(infos) == 0 {
		w.Status("", "no users in tree")
		return nil
	}
	for _, info := range infos {
		w.Statusf("→", "%s", info.Name)
		w.Field("key", info.Key)
		if info.FullName != "" {
			w.Field("full name", info.FullName)
		}
		if info.Email != "" {
			w.Field("email", info.Email)
		}
	}
	return nil
}

func userInfo(key string, user *properties.Bag) UserInfo {
	fullName := user.GetString(tree.KeyUserDisplayName, "")
	if fullName == "" {
		first := user.GetString(tree.KeyUserFirstName, "")
		last := user.GetString(tree.KeyUserLastName, "")
		switch {
		case first != "" && last != "":
			fullName = first + " " + last
		case first != "":
			fullName = first
		default:
			fullName = last
		}
	}
	return UserInfo{
		Key:      key,
		Name:     user.GetString(tree.KeyUserName, key),
		FullName: fullName,
		Email:    user.GetString(tree.KeyUserEmail, ""),
	}
}
