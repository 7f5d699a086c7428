package tree

// Property keys shared by the ingestion pass and the accessor layer.
// The export mixes several legacy naming schemes; where two keys carry
// the same meaning the accessor documents which one wins.
const (
	// Space keys.
	KeySpaceName        = "name"
	KeySpaceKey         = "key"
	KeySpaceDescription = "description"
	KeySpaceHomepage    = "homePage"

	// Page keys.
	KeyPageTitle          = "title"
	KeyPageSpace          = "space"
	KeyPageParent         = "parent"
	KeyPageHomepage       = "homepage"
	KeyPageBody           = "body"
	KeyPageBodyType       = "bodyType"
	KeyPageContents       = "bodyContents"
	KeyPageCreator        = "creator"
	KeyPageCreatorName    = "creatorName"
	KeyPageCreationDate   = "creationDate"
	KeyPageRevision       = "version"
	KeyPageModifier       = "lastModifier"
	KeyPageModifierName   = "lastModifierName"
	KeyPageModified       = "lastModificationDate"
	KeyPageRevisionNote   = "versionComment"
	KeyPageRevisions      = "historicalVersions"
	KeyPageStatus         = "contentStatus"
	KeyPageLabellings     = "labellings"
	KeyPageComments       = "comments"
	KeyPageOriginal       = "originalVersion"
	KeyBodyContentTarget  = "content"

	// Attachment keys. Container resolution prefers the modern
	// containerContent key, falling back to the legacy content key.
	KeyAttachmentTitle            = "title"
	KeyAttachmentFileName         = "fileName"
	KeyAttachmentContainer        = "containerContent"
	KeyAttachmentLegacyContainer  = "content"
	KeyAttachmentContentType      = "contentType"
	KeyAttachmentFileSize         = "fileSize"
	KeyAttachmentVersion          = "version"
	KeyAttachmentLegacyVersion    = "attachmentVersion"
	KeyAttachmentOriginalID       = "originalVersionId"
	KeyAttachmentLegacyOriginalID = "originalVersion"
	KeyAttachmentContentProps     = "contentProperties"

	// Content-property value keys (nested under contentProperties).
	KeyContentPropName   = "name"
	KeyContentPropLong   = "longValue"
	KeyContentPropDate   = "dateValue"
	KeyContentPropString = "stringValue"

	// Label / tag keys.
	KeyLabelName      = "name"
	KeyLabellingLabel = "label"

	// Group keys.
	KeyGroupName         = "name"
	KeyGroupActive       = "active"
	KeyGroupLocal        = "local"
	KeyGroupCreated      = "createdDate"
	KeyGroupUpdated      = "updatedDate"
	KeyGroupMemberUsers  = "memberusers"
	KeyGroupMemberGroups = "membergroups"

	// Membership keys (ephemeral objects, never persisted standalone).
	KeyMembershipParent = "parentGroup"
	KeyMembershipUser   = "userMember"
	KeyMembershipGroup  = "groupMember"

	// User keys.
	KeyUserName        = "name"
	KeyUserActive      = "active"
	KeyUserFirstName   = "firstName"
	KeyUserLastName    = "lastName"
	KeyUserDisplayName = "displayName"
	KeyUserEmail       = "emailAddress"
	KeyUserPassword    = "credential"
	KeyUserCreated     = "createdDate"
	KeyUserUpdated     = "updatedDate"

	// SpacePermission keys.
	KeyPermissionSpace = "space"
	KeyPermissionType  = "type"
)
