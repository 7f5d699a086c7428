package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip assembles an in-memory package archive.
func buildZip(t *testing.T, entries map[string]string, dirs ...string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, d := range dirs {
		_, err := zw.Create(d + "/")
		require.NoError(t, err)
	}
	for name, content := range entries {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestFromReader_ExtractsEntriesPreservingRelativePaths(t *testing.T) {
	// Given: a zip with nested entries and an explicit directory entry
	src := buildZip(t, map[string]string{
		"entities.xml":                  "<hibernate-generic/>",
		"exportDescriptor.properties":   "exportType=space",
		"attachments/10/5/1":            "binary-payload",
	}, "attachments")

	// When: the stream is materialized
	w, err := FromReader(src)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// Then: files land under the working directory, dirs are skipped
	assert.True(t, w.Owned())
	data, err := os.ReadFile(w.Entities())
	require.NoError(t, err)
	assert.Equal(t, "<hibernate-generic/>", string(data))

	data, err = os.ReadFile(w.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, "exportType=space", string(data))

	data, err = os.ReadFile(filepath.Join(w.Dir(), "attachments", "10", "5", "1"))
	require.NoError(t, err)
	assert.Equal(t, "binary-payload", string(data))
}

func TestFromReader_RejectsEscapingEntries(t *testing.T) {
	src := buildZip(t, map[string]string{
		"../outside.txt": "nope",
	})

	_, err := FromReader(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes working directory")
}

func TestFromPath_DirectoryIsUsedInPlaceAndNeverDeleted(t *testing.T) {
	// Given: a caller-supplied directory
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileEntities), []byte("x"), 0o644))

	w, err := FromPath(dir)
	require.NoError(t, err)
	assert.False(t, w.Owned())
	assert.Equal(t, dir, w.Dir())

	// When: the workdir is closed
	require.NoError(t, w.Close())

	// Then: the caller's directory survives
	_, err = os.Stat(filepath.Join(dir, FileEntities))
	assert.NoError(t, err)
}

func TestFromPath_ZipFileIsExtractedToOwnedTempDir(t *testing.T) {
	src := buildZip(t, map[string]string{"entities.xml": "<x/>"})
	path := filepath.Join(t.TempDir(), "export.zip")
	data := make([]byte, src.Len())
	_, err := src.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	w, err := FromPath(path)
	require.NoError(t, err)
	assert.True(t, w.Owned())

	// Teardown removes the extraction directory
	extracted := w.Dir()
	require.NoError(t, w.Close())
	_, err = os.Stat(extracted)
	assert.True(t, os.IsNotExist(err))
}

func TestFromURL_FileSchemeOnly(t *testing.T) {
	dir := t.TempDir()

	w, err := FromURL("file://" + dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	_, err = FromURL("https://example.com/export.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestWorkdir_ReadDescriptorParsesKeyValueLines(t *testing.T) {
	dir := t.TempDir()
	descriptor := "# export metadata\n" +
		"!legacy comment\n" +
		"exportType=space\n" +
		"spaceKey = DS \n" +
		"\n" +
		"not-a-pair\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, FileDescriptor), []byte(descriptor), 0o644))

	w := &Workdir{dir: dir}
	props, err := w.ReadDescriptor()
	require.NoError(t, err)

	assert.Equal(t, "space", props["exportType"])
	assert.Equal(t, "DS", props["spaceKey"])
	assert.NotContains(t, props, "not-a-pair")
}

func TestWorkdir_ReadDescriptorMissingFileIsEmpty(t *testing.T) {
	w := &Workdir{dir: t.TempDir()}

	props, err := w.ReadDescriptor()
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestWorkdir_AttachmentFileFallsBackToLegacyName(t *testing.T) {
	dir := t.TempDir()
	w := &Workdir{dir: dir}

	folder := filepath.Join(dir, "attachments", "10", "5")
	require.NoError(t, os.MkdirAll(folder, 0o755))

	// Only the legacy "1" file exists at first
	require.NoError(t, os.WriteFile(filepath.Join(folder, "1"), []byte("v1"), 0o644))
	path, err := w.AttachmentFile(10, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "1"), path)

	// A version-numbered file takes precedence once present
	require.NoError(t, os.WriteFile(filepath.Join(folder, "3"), []byte("v3"), 0o644))
	path, err = w.AttachmentFile(10, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "3"), path)

	// Neither file: a not-found condition
	_, err = w.AttachmentFile(10, 6, 1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
