// Package tree persists every entity of an export package as a property
// bag under a deterministic path, and exposes the read accessors the
// rendering layer consumes after ingestion. Writes happen only during
// the single ingestion pass; afterwards the tree is read-only and safe
// for concurrent, unsynchronized readers.
package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TomaszPitak/confluence/internal/properties"
)

const (
	folderPages         = "pages"
	folderSpaces        = "spaces"
	folderAttachments   = "attachments"
	folderPermissions   = "permissions"
	folderInternalUsers = "internalusers"
	folderUserImpls     = "userimpls"
	folderGroups        = "groups"
	folderObjects       = "objects"

	propertiesFilename = "properties"
	indexesFilename    = "indexes.json"
)

// defaultCacheSize bounds the number of loaded bags kept in memory.
const defaultCacheSize = 512

// Tree is the disk-backed entity index.
type Tree struct {
	root string

	// scratch marks trees rooted in a temporary directory this package
	// created; Close removes those and leaves caller-supplied roots.
	scratch bool

	// cache holds recently loaded bags keyed by backing path. Saves
	// update it in place so read-after-write during the pass is exact.
	cache   *lru.Cache[string, *properties.Bag]
	cacheMu sync.Mutex

	// pagesBySpace lists current page ids per space in first-seen order.
	pagesBySpace map[int64][]int64
	// spacesByKey maps a space key to its id.
	spacesByKey map[string]int64
}

// New creates the tree rooted at dir with the default bag cache size,
// creating the directory if needed.
func New(dir string) (*Tree, error) {
	return NewWithCacheSize(dir, 0)
}

// NewWithCacheSize creates the tree rooted at dir with a bag cache of
// the given size. A non-positive size falls back to the default.
func NewWithCacheSize(dir string, cacheSize int) (*Tree, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tree root %s: %w", dir, err)
	}
	cache, err := lru.New[string, *properties.Bag](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create bag cache: %w", err)
	}
	return &Tree{
		root:         dir,
		cache:        cache,
		pagesBySpace: make(map[int64][]int64),
		spacesByKey:  make(map[string]int64),
	}, nil
}

// NewScratch creates a tree in a fresh temporary directory that Close
// will remove.
func NewScratch() (*Tree, error) {
	dir, err := os.MkdirTemp("", "confluence-tree")
	if err != nil {
		return nil, fmt.Errorf("create scratch tree: %w", err)
	}
	t, err := New(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	t.scratch = true
	return t, nil
}

// Root returns the tree's root directory.
func (t *Tree) Root() string { return t.root }

// Close removes scratch trees from disk; caller-supplied roots survive
// so later commands can reopen the index without re-ingesting.
func (t *Tree) Close() error {
	if !t.scratch {
		return nil
	}
	return os.RemoveAll(t.root)
}

// Paths

func (t *Tree) pagePath(pageID int64) string {
	return filepath.Join(t.root, folderPages, strconv.FormatInt(pageID, 10), propertiesFilename)
}

func (t *Tree) spacePath(spaceID int64) string {
	return filepath.Join(t.root, folderSpaces, strconv.FormatInt(spaceID, 10), propertiesFilename)
}

func (t *Tree) attachmentPath(pageID, attachmentID int64) string {
	return filepath.Join(t.root, folderPages, strconv.FormatInt(pageID, 10),
		folderAttachments, strconv.FormatInt(attachmentID, 10), propertiesFilename)
}

func (t *Tree) permissionPath(spaceID, permissionID int64) string {
	return filepath.Join(t.root, folderSpaces, strconv.FormatInt(spaceID, 10),
		folderPermissions, strconv.FormatInt(permissionID, 10), propertiesFilename)
}

func (t *Tree) objectPath(folder string, objectID int64) string {
	return filepath.Join(t.root, folder, strconv.FormatInt(objectID, 10), propertiesFilename)
}

func (t *Tree) keyedPath(folder, key string) string {
	return filepath.Join(t.root, folder, key, propertiesFilename)
}

// load returns the bag backed by path, reading through the cache. When
// create is false and no backing file exists, it returns nil. Bags
// without a backing file are never cached; they become visible to later
// lookups only once a save writes them.
func (t *Tree) load(path string, create bool) (*properties.Bag, error) {
	t.cacheMu.Lock()
	cached, ok := t.cache.Get(path)
	t.cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	exists := true
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat bag %s: %w", path, err)
		}
		exists = false
	}
	if !exists && !create {
		return nil, nil
	}

	bag := properties.NewFile(path)
	if exists {
		if err := bag.Load(); err != nil {
			return nil, err
		}
		t.cacheMu.Lock()
		t.cache.Add(path, bag)
		t.cacheMu.Unlock()
	}
	return bag, nil
}

// save merges src into the bag at path and flushes it. Overlapping keys
// are overwritten key-by-key; keys absent from src survive. This is the
// single write primitive of the tree: last writer wins per path.
func (t *Tree) save(path string, src *properties.Bag) error {
	dst, err := t.load(path, true)
	if err != nil {
		return err
	}
	dst.Copy(src)
	if err := dst.Save(); err != nil {
		return err
	}
	t.cacheMu.Lock()
	t.cache.Add(path, dst)
	t.cacheMu.Unlock()
	return nil
}

// Write side, one method per namespace.

// SavePage merges bag into the page record for pageID.
func (t *Tree) SavePage(pageID int64, bag *properties.Bag) error {
	return t.save(t.pagePath(pageID), bag)
}

// SaveSpace merges bag into the space record for spaceID.
func (t *Tree) SaveSpace(spaceID int64, bag *properties.Bag) error {
	return t.save(t.spacePath(spaceID), bag)
}

// SaveAttachment merges bag into the attachment record addressed by its
// containing page and its own id.
func (t *Tree) SaveAttachment(pageID, attachmentID int64, bag *properties.Bag) error {
	return t.save(t.attachmentPath(pageID, attachmentID), bag)
}

// SavePermission merges bag into the permission record addressed by its
// space and its own id.
func (t *Tree) SavePermission(spaceID, permissionID int64, bag *properties.Bag) error {
	return t.save(t.permissionPath(spaceID, permissionID), bag)
}

// SaveInternalUser merges bag into the numeric-keyed user record.
func (t *Tree) SaveInternalUser(userID int64, bag *properties.Bag) error {
	return t.save(t.objectPath(folderInternalUsers, userID), bag)
}

// SaveUserImpl merges bag into the string-keyed user record.
func (t *Tree) SaveUserImpl(key string, bag *properties.Bag) error {
	return t.save(t.keyedPath(folderUserImpls, key), bag)
}

// SaveGroup merges bag into the group record for groupID.
func (t *Tree) SaveGroup(groupID int64, bag *properties.Bag) error {
	return t.save(t.objectPath(folderGroups, groupID), bag)
}

// SaveObject merges bag into the generic catch-all record for objectID.
func (t *Tree) SaveObject(objectID int64, bag *properties.Bag) error {
	return t.save(t.objectPath(folderObjects, objectID), bag)
}

// UpsertGroup loads (or creates) the group record, applies mutate, and
// stores it back. Membership accumulation runs through here so the merge
// is correct regardless of whether the group's defining object has been
// seen yet.
func (t *Tree) UpsertGroup(groupID int64, mutate func(bag *properties.Bag)) error {
	path := t.objectPath(folderGroups, groupID)
	bag, err := t.load(path, true)
	if err != nil {
		return err
	}
	mutate(bag)
	if err := bag.Save(); err != nil {
		return err
	}
	t.cacheMu.Lock()
	t.cache.Add(path, bag)
	t.cacheMu.Unlock()
	return nil
}

// In-memory indexes maintained during the pass.

// RegisterSpace creates the space's current-page slot, even when no page
// is ever appended to it.
func (t *Tree) RegisterSpace(spaceID int64) {
	if _, ok := t.pagesBySpace[spaceID]; !ok {
		t.pagesBySpace[spaceID] = []int64{}
	}
}

// RegisterSpaceKey indexes the space under its key.
func (t *Tree) RegisterSpaceKey(key string, spaceID int64) {
	t.spacesByKey[key] = spaceID
}

// AddCurrentPage appends pageID to its space's ordered page list.
func (t *Tree) AddCurrentPage(spaceID, pageID int64) {
	t.pagesBySpace[spaceID] = append(t.pagesBySpace[spaceID], pageID)
}

// Pages returns the space-id to current-page-ids index.
func (t *Tree) Pages() map[int64][]int64 { return t.pagesBySpace }

// PagesOf returns the ordered current page ids of one space.
func (t *Tree) PagesOf(spaceID int64) []int64 { return t.pagesBySpace[spaceID] }

// SpacesByKey returns the key to space-id index.
func (t *Tree) SpacesByKey() map[string]int64 { return t.spacesByKey }

// SpaceByKey resolves a space key to its id.
func (t *Tree) SpaceByKey(key string) (int64, bool) {
	id, ok := t.spacesByKey[key]
	return id, ok
}

// treeIndexes is the persisted form of the in-memory listing indexes.
type treeIndexes struct {
	PagesBySpace map[int64][]int64 `json:"pages_by_space"`
	SpacesByKey  map[string]int64  `json:"spaces_by_key"`
}

// SaveIndexes writes the space and current-page indexes to the tree
// root. The ingestion pass calls this at the end so reopened trees see
// the exact pass-time listing, stream order included.
func (t *Tree) SaveIndexes() error {
	data, err := json.MarshalIndent(treeIndexes{
		PagesBySpace: t.pagesBySpace,
		SpacesByKey:  t.spacesByKey,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree indexes: %w", err)
	}
	path := filepath.Join(t.root, indexesFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tree indexes: %w", err)
	}
	return nil
}

// loadIndexes restores the persisted indexes, reporting whether the
// index file was present.
func (t *Tree) loadIndexes() (bool, error) {
	data, err := os.ReadFile(filepath.Join(t.root, indexesFilename))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read tree indexes: %w", err)
	}

	var idx treeIndexes
	if err := json.Unmarshal(data, &idx); err != nil {
		return false, fmt.Errorf("parse tree indexes: %w", err)
	}
	if idx.PagesBySpace == nil {
		idx.PagesBySpace = make(map[int64][]int64)
	}
	if idx.SpacesByKey == nil {
		idx.SpacesByKey = make(map[string]int64)
	}
	t.pagesBySpace = idx.PagesBySpace
	t.spacesByKey = idx.SpacesByKey
	return true, nil
}

// RebuildIndexes restores the in-memory space and page indexes of a
// reopened tree. The indexes persisted at the end of the pass win; they
// carry the exact pass-time listing. Trees written before the index
// file existed fall back to a scan of the persisted records: current
// revisions only, promoted space descriptions excluded, ascending id
// order within each space.
func (t *Tree) RebuildIndexes() error {
	loaded, err := t.loadIndexes()
	if err != nil {
		return err
	}
	if loaded {
		return nil
	}

	t.pagesBySpace = make(map[int64][]int64)
	t.spacesByKey = make(map[string]int64)

	for _, spaceID := range t.Spaces() {
		t.RegisterSpace(spaceID)
		space, err := t.Space(spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			continue
		}
		if key := SpaceKey(space); key != "" {
			t.RegisterSpaceKey(key, spaceID)
		}
	}

	for _, pageID := range t.PageIDs() {
		page, err := t.Page(pageID, false)
		if err != nil {
			return err
		}
		if page == nil {
			continue
		}
		if _, historical := page.Get(KeyPageOriginal); historical {
			continue
		}
		if page.GetBool(KeyPageHomepage, false) {
			continue
		}
		spaceID := page.GetLong(KeyPageSpace, -1)
		if spaceID >= 0 {
			t.AddCurrentPage(spaceID, pageID)
		}
	}
	return nil
}

// PageIDs enumerates every persisted page id in ascending order. This
// includes historical revisions and merged comment records.
func (t *Tree) PageIDs() []int64 {
	return listNumericDirs(filepath.Join(t.root, folderPages))
}

// listNumericDirs returns the numeric directory names under dir in
// ascending order. Non-numeric entries are ignored.
func listNumericDirs(dir string) []int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
