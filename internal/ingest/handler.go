package ingest

import (
	"log/slog"

	"github.com/TomaszPitak/confluence/internal/properties"
	"github.com/TomaszPitak/confluence/internal/stream"
	"github.com/TomaszPitak/confluence/internal/telemetry"
	"github.com/TomaszPitak/confluence/internal/tree"
)

// Object classes with dedicated placement rules. Everything else lands
// in the generic objects namespace.
const (
	classPage             = "Page"
	classSpace            = "Space"
	classSpaceDescription = "SpaceDescription"
	classBodyContent      = "BodyContent"
	classComment          = "Comment"
	classAttachment       = "Attachment"
	classSpacePermission  = "SpacePermission"
	classInternalUser     = "InternalUser"
	classInternalGroup    = "InternalGroup"
	classMembership       = "HibernateMembership"
)

// handler routes each decoded object to its namespace in the tree and
// maintains the pass counters.
type handler struct {
	tree  *tree.Tree
	stats *telemetry.Collector
}

func (h *handler) handle(obj *stream.Object) error {
	// Memberships carry their payload in references, not in their own
	// id; every other class is unaddressable without one.
	if obj.Class != classMembership && !obj.HasID() {
		h.stats.Drop(telemetry.DropObjectNoID)
		slog.Warn("object without identifier dropped",
			slog.String("class", obj.Class))
		return nil
	}
	h.stats.Object(obj.Class)

	switch obj.Class {
	case classPage:
		return h.page(obj)
	case classSpace:
		return h.space(obj)
	case classSpaceDescription:
		return h.spaceDescription(obj)
	case classBodyContent:
		return h.bodyContent(obj)
	case classComment:
		// The comment object itself is generic metadata; its text
		// arrives separately as a BodyContent merged under the comment
		// id, which is where the comment accessors read from.
		return h.tree.SaveObject(obj.ID, obj.Bag)
	case classAttachment:
		return h.attachment(obj)
	case classSpacePermission:
		return h.permission(obj)
	case classInternalUser:
		return h.tree.SaveInternalUser(obj.ID, obj.Bag)
	case stream.ClassUserImpl:
		return h.tree.SaveUserImpl(obj.Key, obj.Bag)
	case classInternalGroup:
		// Merge-on-save folds the defining object into any membership
		// lists accumulated before it streamed by.
		return h.tree.SaveGroup(obj.ID, obj.Bag)
	case classMembership:
		return h.membership(obj)
	default:
		return h.tree.SaveObject(obj.ID, obj.Bag)
	}
}

// page persists the revision and, for current revisions, lists it under
// its space in stream order.
func (h *handler) page(obj *stream.Object) error {
	if err := h.tree.SavePage(obj.ID, obj.Bag); err != nil {
		return err
	}
	if _, historical := obj.Bag.Get(tree.KeyPageOriginal); historical {
		return nil
	}
	spaceID := obj.Bag.GetLong(tree.KeyPageSpace, -1)
	if spaceID >= 0 {
		h.tree.AddCurrentPage(spaceID, obj.ID)
	}
	return nil
}

func (h *handler) space(obj *stream.Object) error {
	if err := h.tree.SaveSpace(obj.ID, obj.Bag); err != nil {
		return err
	}
	// The slot exists even for spaces that never list a page.
	h.tree.RegisterSpace(obj.ID)
	if key := obj.Bag.GetString(tree.KeySpaceKey, ""); key != "" {
		h.tree.RegisterSpaceKey(key, obj.ID)
	}
	return nil
}

// spaceDescription promotes the description to a homepage-flagged page
// record.
func (h *handler) spaceDescription(obj *stream.Object) error {
	obj.Bag.Set(tree.KeyPageHomepage, properties.Bool(true))
	return h.tree.SavePage(obj.ID, obj.Bag)
}

// bodyContent folds the body into its owning page record, creating the
// page when the body streams by first.
func (h *handler) bodyContent(obj *stream.Object) error {
	target := obj.Bag.GetLong(tree.KeyBodyContentTarget, -1)
	if target < 0 {
		return nil
	}
	return h.tree.SavePage(target, obj.Bag)
}

// attachment resolves the containing page, preferring the modern
// containerContent reference. Attachments without a container are
// dropped without a log line.
func (h *handler) attachment(obj *stream.Object) error {
	container := obj.Bag.GetLong(tree.KeyAttachmentContainer, -1)
	if container < 0 {
		container = obj.Bag.GetLong(tree.KeyAttachmentLegacyContainer, -1)
	}
	if container < 0 {
		h.stats.Drop(telemetry.DropAttachmentNoParent)
		return nil
	}
	return h.tree.SaveAttachment(container, obj.ID, obj.Bag)
}

func (h *handler) permission(obj *stream.Object) error {
	spaceID := obj.Bag.GetLong(tree.KeyPermissionSpace, -1)
	if spaceID < 0 {
		h.stats.Drop(telemetry.DropPermissionNoSpace)
		slog.Warn("permission without space dropped",
			slog.Int64("permission", obj.ID))
		return nil
	}
	return h.tree.SavePermission(spaceID, obj.ID, obj.Bag)
}

// membership appends the member reference to the parent group's lists.
// The upsert makes accumulation independent of whether the group's
// defining object has streamed yet.
func (h *handler) membership(obj *stream.Object) error {
	parent := obj.Bag.GetLong(tree.KeyMembershipParent, -1)
	if parent < 0 {
		h.stats.Drop(telemetry.DropMembershipNoGroup)
		slog.Warn("membership without parent group dropped")
		return nil
	}
	user := obj.Bag.GetLong(tree.KeyMembershipUser, -1)
	group := obj.Bag.GetLong(tree.KeyMembershipGroup, -1)

	return h.tree.UpsertGroup(parent, func(bag *properties.Bag) {
		if user >= 0 {
			appendMember(bag, tree.KeyGroupMemberUsers, user)
		}
		if group >= 0 {
			appendMember(bag, tree.KeyGroupMemberGroups, group)
		}
	})
}

func appendMember(bag *properties.Bag, key string, id int64) {
	elems := bag.GetList(key, nil)
	bag.Set(key, properties.List(append(elems, properties.Long(id))))
}
