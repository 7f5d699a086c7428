package tree

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/TomaszPitak/confluence/internal/properties"
)

// CommentBodyTypeUnknown is returned when a comment's body type cannot
// be resolved.
const CommentBodyTypeUnknown = -1

// Page returns the page record for pageID. With create set, an empty
// record is returned (and later persisted by the caller) when none
// exists yet; without it, a missing record yields nil.
func (t *Tree) Page(pageID int64, create bool) (*properties.Bag, error) {
	return t.load(t.pagePath(pageID), create)
}

// Space returns the space record for spaceID, nil when absent.
func (t *Tree) Space(spaceID int64) (*properties.Bag, error) {
	return t.load(t.spacePath(spaceID), false)
}

// Attachment returns the attachment record, nil when absent.
func (t *Tree) Attachment(pageID, attachmentID int64) (*properties.Bag, error) {
	return t.load(t.attachmentPath(pageID, attachmentID), false)
}

// Permission returns the space permission record, nil when absent.
func (t *Tree) Permission(spaceID, permissionID int64) (*properties.Bag, error) {
	return t.load(t.permissionPath(spaceID, permissionID), false)
}

// InternalUser returns the numeric-keyed user record, nil when absent.
func (t *Tree) InternalUser(userID int64) (*properties.Bag, error) {
	return t.load(t.objectPath(folderInternalUsers, userID), false)
}

// UserImpl returns the string-keyed user record, nil when absent.
func (t *Tree) UserImpl(key string) (*properties.Bag, error) {
	if key == "" {
		return nil, nil
	}
	return t.load(t.keyedPath(folderUserImpls, key), false)
}

// User resolves a user by key or id: key-keyed lookup first, then the
// numeric population when the identifier parses as a number.
func (t *Tree) User(idOrKey string) (*properties.Bag, error) {
	bag, err := t.UserImpl(idOrKey)
	if err != nil || bag != nil {
		return bag, err
	}
	id, perr := strconv.ParseInt(idOrKey, 10, 64)
	if perr != nil {
		return nil, nil
	}
	return t.InternalUser(id)
}

// Group returns the group record for groupID, nil when absent.
func (t *Tree) Group(groupID int64) (*properties.Bag, error) {
	return t.load(t.objectPath(folderGroups, groupID), false)
}

// Object returns the catch-all record for objectID, nil when absent.
func (t *Tree) Object(objectID int64) (*properties.Bag, error) {
	return t.load(t.objectPath(folderObjects, objectID), false)
}

// Attachments enumerates the attachment ids of a page in ascending
// numeric order.
func (t *Tree) Attachments(pageID int64) []int64 {
	return listNumericDirs(filepath.Join(t.root, folderPages,
		strconv.FormatInt(pageID, 10), folderAttachments))
}

// Permissions enumerates a space's permission ids in ascending order.
func (t *Tree) Permissions(spaceID int64) []int64 {
	return listNumericDirs(filepath.Join(t.root, folderSpaces,
		strconv.FormatInt(spaceID, 10), folderPermissions))
}

// Spaces enumerates all space ids in ascending order.
func (t *Tree) Spaces() []int64 {
	return listNumericDirs(filepath.Join(t.root, folderSpaces))
}

// InternalUsers enumerates the numeric-keyed user population.
func (t *Tree) InternalUsers() []int64 {
	return listNumericDirs(filepath.Join(t.root, folderInternalUsers))
}

// UserImpls enumerates the string-keyed user population, sorted.
func (t *Tree) UserImpls() []string {
	entries, err := os.ReadDir(filepath.Join(t.root, folderUserImpls))
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys
}

// Groups enumerates all group ids in ascending order.
func (t *Tree) Groups() []int64 {
	return listNumericDirs(filepath.Join(t.root, folderGroups))
}

// SpaceName returns the space's name, falling back to its key when the
// name is absent.
func SpaceName(space *properties.Bag) string {
	if name := space.GetString(KeySpaceName, ""); name != "" {
		return name
	}
	return space.GetString(KeySpaceKey, "")
}

// SpaceKey returns the space's key, falling back to its name when the
// key is absent.
func SpaceKey(space *properties.Bag) string {
	if key := space.GetString(KeySpaceKey, ""); key != "" {
		return key
	}
	return space.GetString(KeySpaceName, "")
}

// TagName resolves the display name of a labelling's label reference.
// When the label object cannot be found the numeric id doubles as the
// name; that is a data-quality defect, not a failure.
func (t *Tree) TagName(labelling *properties.Bag) string {
	tagID := labelling.GetLong(KeyLabellingLabel, -1)
	tagName := strconv.FormatInt(tagID, 10)

	label, err := t.Object(tagID)
	if err != nil || label == nil {
		slog.Warn("unable to resolve tag name, using id instead",
			slog.Int64("label", tagID))
		return tagName
	}
	return label.GetString(KeyLabelName, tagName)
}

// CommentText resolves a comment's body text. Comment bodies are merged
// into the page namespace under the comment's id, so the page lookup is
// reused; on a miss the id's string form is returned.
func (t *Tree) CommentText(commentID int64) string {
	fallback := strconv.FormatInt(commentID, 10)
	comment, err := t.Page(commentID, false)
	if err != nil || comment == nil {
		slog.Warn("unable to resolve comment text, using id instead",
			slog.Int64("comment", commentID))
		return fallback
	}
	return comment.GetString(KeyPageBody, fallback)
}

// CommentBodyType resolves a comment's body type, or
// CommentBodyTypeUnknown when the comment cannot be found.
func (t *Tree) CommentBodyType(commentID int64) int {
	comment, err := t.Page(commentID, false)
	if err != nil || comment == nil {
		slog.Warn("unable to resolve comment body type",
			slog.Int64("comment", commentID))
		return CommentBodyTypeUnknown
	}
	return comment.GetInt(KeyPageBodyType, CommentBodyTypeUnknown)
}

// AttachmentName returns the attachment's title, falling back to the
// legacy fileName key.
func AttachmentName(attachment *properties.Bag) string {
	if name := attachment.GetString(KeyAttachmentTitle, ""); name != "" {
		return name
	}
	return attachment.GetString(KeyAttachmentFileName, "")
}

// AttachmentVersion returns the attachment's version, falling back to
// the legacy attachmentVersion key.
func AttachmentVersion(attachment *properties.Bag, def int64) int64 {
	if v := attachment.GetLong(KeyAttachmentVersion, -1); v >= 0 {
		return v
	}
	return attachment.GetLong(KeyAttachmentLegacyVersion, def)
}

// AttachmentOriginalVersionID returns the id of the attachment's
// original version, preferring the modern key over the legacy one.
func AttachmentOriginalVersionID(attachment *properties.Bag, def int64) int64 {
	if v := attachment.GetLong(KeyAttachmentOriginalID, -1); v >= 0 {
		return v
	}
	return attachment.GetLong(KeyAttachmentLegacyOriginalID, def)
}

// ContentProperties flattens the ContentProperty objects referenced by
// the list under key into a single bag, applying the long-then-date-
// then-string value precedence of the export format.
func (t *Tree) ContentProperties(bag *properties.Bag, key string) (*properties.Bag, error) {
	ids := bag.GetLongList(key, nil)
	if ids == nil {
		return nil, nil
	}

	flat := properties.New()
	for _, id := range ids {
		entry, err := t.Object(id)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		name := entry.GetString(KeyContentPropName, "")
		if name == "" {
			continue
		}
		if v := entry.GetLong(KeyContentPropLong, -1); v >= 0 {
			flat.Set(name, properties.Long(v))
			continue
		}
		if v := entry.GetString(KeyContentPropDate, ""); v != "" {
			flat.Set(name, properties.String(v))
			continue
		}
		flat.Set(name, properties.String(entry.GetString(KeyContentPropString, "")))
	}
	return flat, nil
}
