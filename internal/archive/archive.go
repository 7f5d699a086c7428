// Package archive materializes an export package onto local storage. A
// package arrives as a directory, a zip file, a file URL, or a raw byte
// stream; the result is always a working directory holding the entity
// stream, the instance descriptor, and the attachment binaries.
package archive

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	// FileEntities is the name of the main object-stream file.
	FileEntities = "entities.xml"
	// FileDescriptor is the name of the instance-descriptor file.
	FileDescriptor = "exportDescriptor.properties"

	folderAttachments = "attachments"
)

// Workdir is a materialized export package on disk.
type Workdir struct {
	dir string
	// owned marks directories this package created (zip extraction
	// targets). Caller-supplied directories are never deleted.
	owned bool
}

// FromPath materializes the package at path. A directory is used as-is;
// a regular file is treated as a zip archive and extracted into a
// private temporary directory.
func FromPath(path string) (*Workdir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat package source %s: %w", path, err)
	}
	if info.IsDir() {
		return &Workdir{dir: path}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package file %s: %w", path, err)
	}
	defer f.Close()

	return FromReader(f)
}

// FromURL materializes the package behind a file-scheme URL.
func FromURL(rawURL string) (*Workdir, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid package URL %q: %w", rawURL, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("unsupported package URL scheme %q", u.Scheme)
	}
	return FromPath(u.Path)
}

// FromReader extracts a zip-compatible archive from r into a private
// temporary directory, preserving entry relative paths and skipping
// directory entries.
func FromReader(r io.Reader) (*Workdir, error) {
	// Zip needs random access; spool the stream to a scratch file first.
	spool, err := os.CreateTemp("", "confluence-package-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, r)
	if err != nil {
		return nil, fmt.Errorf("spool package stream: %w", err)
	}

	zr, err := zip.NewReader(spool, size)
	if err != nil {
		return nil, fmt.Errorf("open package archive: %w", err)
	}

	dir, err := os.MkdirTemp("", "confluence-package")
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	w := &Workdir{dir: dir, owned: true}

	if err := extract(zr, dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// Materialize resolves a source descriptor: a file URL, a directory, or
// a file path.
func Materialize(source string) (*Workdir, error) {
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		return FromURL(source)
	}
	return FromPath(source)
}

func extract(zr *zip.Reader, dir string) error {
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(entry.Name)) {
			return fmt.Errorf("archive entry escapes working directory: %q", entry.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(entry.Name))
		if err := extractEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %q: %w", entry.Name, err)
	}
	return nil
}

// Dir returns the working directory root.
func (w *Workdir) Dir() string { return w.dir }

// Owned reports whether this component created the working directory.
func (w *Workdir) Owned() bool { return w.owned }

// Entities returns the path of the main object-stream file.
func (w *Workdir) Entities() string {
	return filepath.Join(w.dir, FileEntities)
}

// Descriptor returns the path of the instance-descriptor file.
func (w *Workdir) Descriptor() string {
	return filepath.Join(w.dir, FileDescriptor)
}

// ReadDescriptor parses the instance-descriptor file into a key/value
// map. The format is the flat key=value properties dialect; comment
// lines start with "#" or "!". A missing descriptor yields an empty map
// since old exports shipped without one.
func (w *Workdir) ReadDescriptor() (map[string]string, error) {
	data, err := os.ReadFile(w.Descriptor())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

// AttachmentFile resolves the binary of an attachment revision. Old
// exports name the file after the version; recent ones always use "1".
// Only when neither exists is the attachment binary missing.
func (w *Workdir) AttachmentFile(pageID, attachmentID, version int64) (string, error) {
	folder := filepath.Join(w.dir, folderAttachments,
		strconv.FormatInt(pageID, 10), strconv.FormatInt(attachmentID, 10))

	versioned := filepath.Join(folder, strconv.FormatInt(version, 10))
	if _, err := os.Stat(versioned); err == nil {
		return versioned, nil
	}

	legacy := filepath.Join(folder, "1")
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}

	return "", fmt.Errorf("attachment file %s: %w", legacy, os.ErrNotExist)
}

// Close deletes the working directory when this component created it.
// Caller-supplied directories are left untouched.
func (w *Workdir) Close() error {
	if !w.owned {
		return nil
	}
	return os.RemoveAll(w.dir)
}
