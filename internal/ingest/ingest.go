// Package ingest drives the single forward pass that turns a
// materialized export package into the on-disk entity tree. One Package
// owns the working directory, the tree, and the ingestion lock for the
// lifetime of a pass.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/TomaszPitak/confluence/internal/archive"
	"github.com/TomaszPitak/confluence/internal/errors"
	"github.com/TomaszPitak/confluence/internal/stream"
	"github.com/TomaszPitak/confluence/internal/telemetry"
	"github.com/TomaszPitak/confluence/internal/tree"
)

// StatsDBName is the statistics database file inside the tree root.
const StatsDBName = "stats.db"

const treeFolder = "tree"

// Options configures a Package.
type Options struct {
	// Source locates the export package: a directory, a zip file, or a
	// file URL.
	Source string
	// TreeDir is an optional persistent location for the entity tree.
	// When empty the tree lives next to the extracted package (and dies
	// with it) or in a scratch directory for in-place sources.
	TreeDir string
	// CacheSize bounds the tree's bag cache. Zero means the default.
	CacheSize int
}

// Package is an export package prepared for, or already past, the
// ingestion pass.
type Package struct {
	workdir *archive.Workdir
	tree    *tree.Tree
	lock    *Lock
}

// Open materializes the package, places the tree, and takes the
// ingestion lock.
func Open(opts Options) (*Package, error) {
	w, err := archive.Materialize(opts.Source)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveCorrupt, err).
			WithDetail("source", opts.Source)
	}

	t, err := placeTree(opts, w)
	if err != nil {
		_ = w.Close()
		return nil, errors.Wrap(errors.ErrCodeFilePermission, err)
	}

	lock := NewLock(t.Root())
	if err := lock.Acquire(); err != nil {
		_ = t.Close()
		_ = w.Close()
		return nil, err
	}

	return &Package{workdir: w, tree: t, lock: lock}, nil
}

func placeTree(opts Options, w *archive.Workdir) (*tree.Tree, error) {
	switch {
	case opts.TreeDir != "":
		return tree.NewWithCacheSize(opts.TreeDir, opts.CacheSize)
	case w.Owned():
		// Extraction directories are already temporary; the tree rides
		// along and is removed with them.
		return tree.NewWithCacheSize(filepath.Join(w.Dir(), treeFolder), opts.CacheSize)
	default:
		return tree.NewScratch()
	}
}

// Tree returns the entity tree.
func (p *Package) Tree() *tree.Tree { return p.tree }

// Workdir returns the materialized package.
func (p *Package) Workdir() *archive.Workdir { return p.workdir }

// Run performs the ingestion pass and records its statistics. The
// returned stats are valid even when persisting them failed; a stats
// write failure degrades to a warning.
func (p *Package) Run(ctx context.Context) (*telemetry.Stats, error) {
	f, err := os.Open(p.workdir.Entities())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err).
			WithDetail("path", p.workdir.Entities())
	}
	defer f.Close()

	collector := telemetry.NewCollector()
	h := &handler{tree: p.tree, stats: collector}

	if err := stream.Read(ctx, f, h.handle); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeStreamMalformed, err)
	}

	stats := collector.Finish()
	if err := p.tree.SaveIndexes(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilePermission, err)
	}
	p.recordStats(stats)

	slog.Info("ingestion pass complete",
		slog.Int64("objects", stats.Total()),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

func (p *Package) recordStats(stats *telemetry.Stats) {
	store, err := telemetry.Open(filepath.Join(p.tree.Root(), StatsDBName))
	if err != nil {
		slog.Warn("stats database unavailable", slog.Any("error", err))
		return
	}
	defer store.Close()
	if err := store.RecordRun(stats); err != nil {
		slog.Warn("stats not recorded", slog.Any("error", err))
	}
}

// Close releases the lock and tears down whatever this package owns.
// The first failure wins; later teardown steps still run.
func (p *Package) Close() error {
	var first error
	if err := p.lock.Release(); err != nil {
		first = err
	}
	if err := p.tree.Close(); err != nil && first == nil {
		first = err
	}
	if err := p.workdir.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
