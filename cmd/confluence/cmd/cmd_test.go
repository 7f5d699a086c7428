package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomaszPitak/confluence/internal/properties"
	"github.com/TomaszPitak/confluence/internal/tree"
	"github.com/TomaszPitak/confluence/pkg/version"
)

// execute runs the CLI with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// seedTree persists a small space with one current page and returns the
// tree directory.
func seedTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	tr, err := tree.New(dir)
	require.NoError(t, err)

	space := properties.New()
	space.Set(tree.KeySpaceKey, properties.String("DS"))
	space.Set(tree.KeySpaceName, properties.String("Demo Space"))
	require.NoError(t, tr.SaveSpace(1, space))

	page := properties.New()
	page.Set(tree.KeyPageTitle, properties.String("Installation Guide"))
	page.Set(tree.KeyPageSpace, properties.Long(1))
	page.Set(tree.KeyPageBody, properties.String("run the setup wizard"))
	require.NoError(t, tr.SavePage(10, page))

	attachment := properties.New()
	attachment.Set(tree.KeyAttachmentTitle, properties.String("setup.png"))
	attachment.Set(tree.KeyAttachmentVersion, properties.Long(1))
	require.NoError(t, tr.SaveAttachment(10, 5, attachment))

	require.NoError(t, tr.Close())
	return dir
}

func TestVersionCommand_ShortPrintsBareVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Short(), strings.TrimSpace(out))
}

func TestVersionCommand_JSONIsParseable(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestSpacesCommand_ListsSeededSpace(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "spaces", "--tree", dir, "--json")
	require.NoError(t, err)

	var infos []SpaceInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "DS", infos[0].Key)
	assert.Equal(t, "Demo Space", infos[0].Name)
	assert.Equal(t, 1, infos[0].Pages)
}

func TestPagesCommand_FiltersBySpaceKey(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "pages", "--tree", dir, "--space", "DS", "--json")
	require.NoError(t, err)

	var infos []PageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, int64(10), infos[0].ID)
	assert.Equal(t, "Installation Guide", infos[0].Title)
}

func TestPagesCommand_UnknownSpaceKeyFails(t *testing.T) {
	dir := seedTree(t)

	_, err := execute(t, "pages", "--tree", dir, "--space", "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestAttachmentsCommand_ListsPageAttachments(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "attachments", "10", "--tree", dir, "--json")
	require.NoError(t, err)

	var infos []AttachmentInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "setup.png", infos[0].Name)
}

func TestAttachmentsCommand_RejectsNonNumericPageID(t *testing.T) {
	dir := seedTree(t)

	_, err := execute(t, "attachments", "home", "--tree", dir)
	require.Error(t, err)
}

func TestVerifyCommand_WalksSeededTree(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "verify", "--tree", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "tree verified")
}

func TestStatsCommand_EmptyTreeReportsNoPass(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "stats", "--tree", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no ingestion pass recorded yet")
}

func TestSearchCommand_FindsSeededPage(t *testing.T) {
	dir := seedTree(t)

	out, err := execute(t, "search", "wizard", "--tree", dir, "--json")
	require.NoError(t, err)

	var results []SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(10), results[0].PageID)
	assert.Equal(t, "Installation Guide", results[0].Title)
}

func TestRootCommand_ConfiguredLogFileIsUsed(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "cli.log")
	t.Setenv("CONFLUENCE_LOG_FILE", logPath)

	_, err := execute(t, "version", "--short")
	require.NoError(t, err)

	// The rotating writer opens the configured file during setup
	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}

func TestQueryCommands_MissingTreeDirFail(t *testing.T) {
	_, err := execute(t, "spaces", "--tree", "/nonexistent/tree")
	require.Error(t, err)
}
