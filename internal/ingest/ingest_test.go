package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "errors"

	"github.com/TomaszPitak/confluence/internal/archive"
	"github.com/TomaszPitak/confluence/internal/errors"
	"github.com/TomaszPitak/confluence/internal/telemetry"
	"github.com/TomaszPitak/confluence/internal/tree"
)

// fixtureStream covers one space with a current page, a historical
// revision, a body with a repairable CDATA defect, attachments with and
// without a container, permissions with and without a space, and group
// memberships streaming before the group's defining object.
const fixtureStream = `<?xml version="1.0" encoding="UTF-8"?>
<hibernate-generic datetime="2012-03-07 17:16:48">
  <object class="Space" package="com.atlassian.confluence.spaces">
    <id name="id">1</id>
    <property name="key"><![CDATA[DS]]></property>
    <property name="name"><![CDATA[Demo Space]]></property>
  </object>
  <object class="SpaceDescription" package="com.atlassian.confluence.spaces">
    <id name="id">90</id>
    <property name="space" class="Space" package="com.atlassian.confluence.spaces"><id name="id">1</id></property>
  </object>
  <object class="Page" package="com.atlassian.confluence.pages">
    <id name="id">10</id>
    <property name="title"><![CDATA[Home]]></property>
    <property name="space" class="Space" package="com.atlassian.confluence.spaces"><id name="id">1</id></property>
    <property name="version">2</property>
  </object>
  <object class="Page" package="com.atlassian.confluence.pages">
    <id name="id">11</id>
    <property name="title"><![CDATA[Home]]></property>
    <property name="space" class="Space" package="com.atlassian.confluence.spaces"><id name="id">1</id></property>
    <property name="originalVersion" class="Page" package="com.atlassian.confluence.pages"><id name="id">10</id></property>
  </object>
  <object class="BodyContent" package="com.atlassian.confluence.core">
    <id name="id">100</id>
    <property name="body"><![CDATA[{{code}}
[[link]] 
{{/code}}]]></property>
    <property name="content" class="Page" package="com.atlassian.confluence.pages"><id name="id">10</id></property>
  </object>
  <object class="Comment" package="com.atlassian.confluence.pages">
    <id name="id">50</id>
    <property name="containerContent" class="Page" package="com.atlassian.confluence.pages"><id name="id">10</id></property>
  </object>
  <object class="BodyContent" package="com.atlassian.confluence.core">
    <id name="id">101</id>
    <property name="body"><![CDATA[nice writeup]]></property>
    <property name="content" class="Comment" package="com.atlassian.confluence.pages"><id name="id">50</id></property>
  </object>
  <object class="Attachment" package="com.atlassian.confluence.pages">
    <id name="id">5</id>
    <property name="title"><![CDATA[diagram.png]]></property>
    <property name="containerContent" class="Page" package="com.atlassian.confluence.pages"><id name="id">10</id></property>
    <property name="version">3</property>
  </object>
  <object class="Attachment" package="com.atlassian.confluence.pages">
    <id name="id">6</id>
    <property name="title"><![CDATA[orphan.bin]]></property>
  </object>
  <object class="SpacePermission" package="com.atlassian.confluence.security">
    <id name="id">20</id>
    <property name="space" class="Space" package="com.atlassian.confluence.spaces"><id name="id">1</id></property>
    <property name="type"><![CDATA[VIEWSPACE]]></property>
  </object>
  <object class="SpacePermission" package="com.atlassian.confluence.security">
    <id name="id">21</id>
    <property name="type"><![CDATA[EDITSPACE]]></property>
  </object>
  <object class="HibernateMembership" package="bucket.user">
    <id name="id">60</id>
    <property name="parentGroup" class="InternalGroup" package="bucket.user"><id name="id">30</id></property>
    <property name="userMember" class="InternalUser" package="bucket.user"><id name="id">40</id></property>
  </object>
  <object class="HibernateMembership" package="bucket.user">
    <id name="id">61</id>
    <property name="userMember" class="InternalUser" package="bucket.user"><id name="id">40</id></property>
  </object>
  <object class="InternalGroup" package="bucket.user">
    <id name="id">30</id>
    <property name="name"><![CDATA[confluence-users]]></property>
  </object>
  <object class="InternalUser" package="bucket.user">
    <id name="id">40</id>
    <property name="name"><![CDATA[admin]]></property>
  </object>
  <object class="ConfluenceUserImpl" package="com.atlassian.confluence.user">
    <id name="key"><![CDATA[8a8a00a87be5d6f0017be5d70b210001]]></id>
    <property name="name"><![CDATA[jane]]></property>
  </object>
  <object class="Label" package="com.atlassian.confluence.labels">
    <id name="id">70</id>
    <property name="name"><![CDATA[favourite]]></property>
  </object>
  <object class="Labelling" package="com.atlassian.confluence.labels">
    <id name="id">71</id>
    <property name="label" class="Label" package="com.atlassian.confluence.labels"><id name="id">70</id></property>
  </object>
</hibernate-generic>
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, archive.FileEntities), []byte(fixtureStream), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, archive.FileDescriptor), []byte("exportType=space\n"), 0o644))
	return dir
}

func runFixture(t *testing.T) (*Package, *telemetry.Stats) {
	t.Helper()
	p, err := Open(Options{Source: writeFixture(t), TreeDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	return p, stats
}

func TestRun_ListsOnlyCurrentPagesInStreamOrder(t *testing.T) {
	p, _ := runFixture(t)

	// The historical revision 11 carries originalVersion and stays out.
	assert.Equal(t, []int64{10}, p.Tree().PagesOf(1))

	id, ok := p.Tree().SpaceByKey("DS")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestRun_MergesBodyContentIntoPageWithRepairedCDATA(t *testing.T) {
	p, _ := runFixture(t)

	page, err := p.Tree().Page(10, false)
	require.NoError(t, err)
	require.NotNil(t, page)

	body := page.GetString(tree.KeyPageBody, "")
	assert.Contains(t, body, "[[link]]\n")
	assert.NotContains(t, body, "]] \n")
	// The merge keeps the page's own metadata.
	assert.Equal(t, "Home", page.GetString(tree.KeyPageTitle, ""))
}

func TestRun_PromotesSpaceDescriptionToHomepage(t *testing.T) {
	p, _ := runFixture(t)

	desc, err := p.Tree().Page(90, false)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.True(t, desc.GetBool(tree.KeyPageHomepage, false))
}

func TestRun_RoutesCommentObjectsToGenericNamespace(t *testing.T) {
	p, _ := runFixture(t)

	// The comment's own record is generic metadata
	comment, err := p.Tree().Object(50)
	require.NoError(t, err)
	require.NotNil(t, comment)
	assert.Equal(t, int64(10), comment.GetLong("containerContent", -1))

	// Its text arrived as a separate body merged under the comment id,
	// where the comment accessors read it
	assert.Equal(t, "nice writeup", p.Tree().CommentText(50))
}

func TestRun_PersistedIndexesSurviveReopen(t *testing.T) {
	treeDir := t.TempDir()
	p, err := Open(Options{Source: writeFixture(t), TreeDir: treeDir})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	reopened, err := tree.New(treeDir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.RebuildIndexes())

	// The reopened listing matches the pass-time one: the historical
	// revision 11 and the description record 90 stay out
	assert.Equal(t, []int64{10}, reopened.PagesOf(1))
	id, ok := reopened.SpaceByKey("DS")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestRun_PlacesAttachmentsUnderContainerAndDropsOrphansSilently(t *testing.T) {
	p, stats := runFixture(t)

	assert.Equal(t, []int64{5}, p.Tree().Attachments(10))

	att, err := p.Tree().Attachment(10, 5)
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, "diagram.png", tree.AttachmentName(att))

	// Both attachments streamed; one had no container.
	assert.Equal(t, int64(2), stats.Objects["Attachment"])
	assert.Equal(t, int64(1), stats.Dropped[telemetry.DropAttachmentNoParent])
}

func TestRun_PermissionsRequireASpace(t *testing.T) {
	p, stats := runFixture(t)

	assert.Equal(t, []int64{20}, p.Tree().Permissions(1))
	assert.Equal(t, int64(1), stats.Dropped[telemetry.DropPermissionNoSpace])
}

func TestRun_MembershipAccumulatesBeforeGroupDefinition(t *testing.T) {
	p, stats := runFixture(t)

	group, err := p.Tree().Group(30)
	require.NoError(t, err)
	require.NotNil(t, group)

	// The membership streamed before the group object; the later save
	// merged the name without clobbering the member list.
	assert.Equal(t, []int64{40}, group.GetLongList(tree.KeyGroupMemberUsers, nil))
	assert.Equal(t, "confluence-users", group.GetString(tree.KeyGroupName, ""))

	assert.Equal(t, int64(1), stats.Dropped[telemetry.DropMembershipNoGroup])
}

func TestRun_KeepsUserPopulationsDisjoint(t *testing.T) {
	p, _ := runFixture(t)

	assert.Equal(t, []int64{40}, p.Tree().InternalUsers())
	assert.Equal(t, []string{"8a8a00a87be5d6f0017be5d70b210001"}, p.Tree().UserImpls())

	byKey, err := p.Tree().User("8a8a00a87be5d6f0017be5d70b210001")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, "jane", byKey.GetString(tree.KeyUserName, ""))

	byID, err := p.Tree().User("40")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "admin", byID.GetString(tree.KeyUserName, ""))
}

func TestRun_ResolvesTagNamesThroughObjectsNamespace(t *testing.T) {
	p, _ := runFixture(t)

	labelling, err := p.Tree().Object(71)
	require.NoError(t, err)
	require.NotNil(t, labelling)
	assert.Equal(t, "favourite", p.Tree().TagName(labelling))
}

func TestRun_RecordsStatsInTreeRoot(t *testing.T) {
	p, stats := runFixture(t)

	assert.Equal(t, int64(1), stats.Objects["Space"])
	assert.Equal(t, int64(2), stats.Objects["Page"])

	store, err := telemetry.Open(filepath.Join(p.Tree().Root(), StatsDBName))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	last, err := store.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, stats.Total(), last.Total())
}

func TestOpen_SecondPassOnSameTreeIsRejected(t *testing.T) {
	src := writeFixture(t)
	treeDir := t.TempDir()

	first, err := Open(Options{Source: src, TreeDir: treeDir})
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = Open(Options{Source: src, TreeDir: treeDir})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err,
		errors.New(errors.ErrCodeWorkdirLocked, "", nil)))
}

func TestClose_KeepsCallerSuppliedTree(t *testing.T) {
	treeDir := t.TempDir()
	p, err := Open(Options{Source: writeFixture(t), TreeDir: treeDir})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// The tree survives for later accessor commands.
	reopened, err := tree.New(treeDir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	page, err := reopened.Page(10, false)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "Home", page.GetString(tree.KeyPageTitle, ""))
}

func TestRun_ContextCancellationAbortsThePass(t *testing.T) {
	p, err := Open(Options{Source: writeFixture(t), TreeDir: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
