// Package search maintains a full-text index over the titles and bodies
// of the ingested page tree. The index is built after a pass from the
// accessor layer; queries never touch the entity stream.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/TomaszPitak/confluence/internal/tree"
)

// IndexDirName is the index directory inside the tree root.
const IndexDirName = "search.bleve"

const (
	fieldTitle = "title"
	fieldBody  = "body"
	fieldSpace = "space"
)

// Result is one scored page hit.
type Result struct {
	PageID       int64
	Score        float64
	Title        string
	MatchedTerms []string
}

// Index wraps a bleve index over page documents.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// pageDocument is the indexed shape of one page.
type pageDocument struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Space string `json:"space"`
}

// validateIntegrity checks the on-disk index before opening it. A
// missing index is fine; a half-written one is reported as corrupt so
// the caller can rebuild instead of failing on open.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// Open creates or opens the page index at path. An empty path yields an
// in-memory index. A corrupt on-disk index is cleared and recreated;
// the pages are still in the tree, so a rebuild loses nothing.
func Open(path string) (*Index, error) {
	indexMapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("page index corrupted, rebuilding",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("clear corrupt index %s: %w", path, removeErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open page index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

// IndexTree walks every space's current pages and indexes their title,
// body, and space key. Returns the number of pages indexed.
func (i *Index) IndexTree(ctx context.Context, t *tree.Tree) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return 0, fmt.Errorf("index is closed")
	}

	batch := i.index.NewBatch()
	count := 0

	for spaceID, pageIDs := range t.Pages() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		spaceKey := ""
		if space, err := t.Space(spaceID); err == nil && space != nil {
			spaceKey = tree.SpaceKey(space)
		}

		for _, pageID := range pageIDs {
			page, err := t.Page(pageID, false)
			if err != nil {
				return count, err
			}
			if page == nil {
				continue
			}
			doc := pageDocument{
				Title: page.GetString(tree.KeyPageTitle, ""),
				Body:  page.GetString(tree.KeyPageBody, ""),
				Space: spaceKey,
			}
			if err := batch.Index(strconv.FormatInt(pageID, 10), doc); err != nil {
				return count, fmt.Errorf("index page %d: %w", pageID, err)
			}
			count++
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return count, fmt.Errorf("execute index batch: %w", err)
	}
	return count, nil
}

// Search returns pages matching query, best score first. Title matches
// outweigh body matches. An empty query matches nothing.
func (i *Index) Search(ctx context.Context, queryStr string, limit int) ([]*Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*Result{}, nil
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField(fieldTitle)
	titleQuery.SetBoost(2.0)

	bodyQuery := bleve.NewMatchQuery(queryStr)
	bodyQuery.SetField(fieldBody)

	searchRequest := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQuery, bodyQuery))
	searchRequest.Size = limit
	searchRequest.Fields = []string{fieldTitle}
	searchRequest.IncludeLocations = true

	result, err := i.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		pageID, perr := strconv.ParseInt(hit.ID, 10, 64)
		if perr != nil {
			continue
		}
		title, _ := hit.Fields[fieldTitle].(string)
		terms := make(map[string]struct{})
		for _, locations := range hit.Locations {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
		matched := make([]string, 0, len(terms))
		for term := range terms {
			matched = append(matched, term)
		}
		results = append(results, &Result{
			PageID:       pageID,
			Score:        hit.Score,
			Title:        title,
			MatchedTerms: matched,
		})
	}
	return results, nil
}

// DocCount returns the number of indexed pages.
func (i *Index) DocCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return 0
	}
	n, _ := i.index.DocCount()
	return int(n)
}

// Close closes the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	if i.index != nil {
		return i.index.Close()
	}
	return nil
}
