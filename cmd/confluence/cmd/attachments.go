package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TomaszPitak/confluence/internal/errors"
	"github.com/TomaszPitak/confluence/internal/output"
	"github.com/TomaszPitak/confluence/internal/tree"
)

func newAttachmentsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "attachments <page-id>",
		Short: "List the attachments of one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.New(errors.ErrCodeBadIdentifier,
					"page id must be numeric, got "+args[0], err)
			}
			return runAttachments(cmd, pageID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// AttachmentInfo is the JSON shape of one attachment listing entry.
type AttachmentInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     int64  `json:"version"`
	ContentType string `json:"content_type,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

func runAttachments(cmd *cobra.Command, pageID int64, jsonOutput bool) error {
	t, err := openTree()
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	page, err := t.Page(pageID, false)
	if err != nil {
		return err
	}
	if page == nil {
		return errors.New(errors.ErrCodeBadIdentifier,
			fmt.Sprintf("no page with id %d in tree", pageID), nil).
			WithSuggestion("run 'confluence pages' to list the known ids")
	}

	infos := make([]AttachmentInfo, 0)
	for _, attachmentID := range t.Attachments(pageID) {
		attachment, aerr := t.Attachment(pageID, attachmentID)
		if aerr != nil {
			return aerr
		}
		if attachment == nil {
			continue
		}
		infos = append(infos, AttachmentInfo{
			ID:          attachmentID,
			Name:        tree.AttachmentName(attachment),
			Version:     tree.AttachmentVersion(attachment, 1),
			ContentType: attachment.GetString(tree.KeyAttachmentContentType, ""),
			FileSize:    attachment.GetLong(tree.KeyAttachmentFileSize, 0),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := output.New(cmd.OutOrStdout())
	title := page.GetString(tree.KeyPageTitle, strconv.FormatInt(pageID, 10))
	if len(infos) == 0 {
		w.Statusf("", "no attachments on %q", title)
		return nil
	}
	w.Statusf("→", "attachments of %q", title)
	for _, info := range infos {
		w.Field(info.Name, fmt.Sprintf("id %d, v%d, %s, %d bytes",
			info.ID, info.Version, info.ContentType, info.FileSize))
	}
	return nil
}
