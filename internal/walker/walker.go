// Package walker implements the External Walker collaborator of §6:
// given an Include plus an ExcludeManager and a cancellable context, it
// yields a folder tree and a flat file list, folders-first.
//
// This is deliberately kept outside the core (§1 "out of scope" lists
// the directory walker as an external collaborator); the core only
// depends on the Walker interface. This package gives that interface
// its default, filesystem-backed implementation.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/logger"
)

// Include mirrors the Include record §6 attributes to the
// IncludeManager: one configured scan root plus its scan options.
type Include struct {
	Path          string
	OneFileSystem bool
	Monitored     bool
	ScanAfterLoad bool
	ID            uint16
}

// Equal implements the tuple equality §6 requires of IncludeManager
// entries.
func (i Include) Equal(o Include) bool {
	return i.Path == o.Path &&
		i.OneFileSystem == o.OneFileSystem &&
		i.Monitored == o.Monitored &&
		i.ScanAfterLoad == o.ScanAfterLoad &&
		i.ID == o.ID
}

// ExcludeManager supplies "should-skip" predicates for paths visited
// during a scan (§6).
type ExcludeManager interface {
	// ShouldSkip reports whether the given absolute path (a directory or
	// a file) should be omitted from the scan.
	ShouldSkip(path string, isDir bool) bool

	// Equal checks rule equivalence, used by the Store/Scheduler to
	// decide whether a Scan request is actually a no-op Rescan (§4.6).
	Equal(other ExcludeManager) bool
}

// Walker is the external collaborator that performs one Include's scan.
type Walker interface {
	// Walk scans root, honoring excl, tagging every produced entry with
	// dbIndex. It returns folders first, then files, matching §6's
	// "yields folders-first then files". Cancellation is honored at
	// directory boundaries (§5); on cancellation, partial results are
	// discarded and ctx.Err() is returned.
	Walk(ctx context.Context, root Include, excl ExcludeManager, dbIndex uint16) (folders, files []*entry.Entry, err error)
}

// FSWalker is the default Walker, backed by filepath.WalkDir.
type FSWalker struct{}

// New returns the default filesystem-backed Walker.
func New() *FSWalker { return &FSWalker{} }

var _ Walker = (*FSWalker)(nil)

func (w *FSWalker) Walk(ctx context.Context, root Include, excl ExcludeManager, dbIndex uint16) (folders, files []*entry.Entry, err error) {
	log := logger.Named("walker")

	rootDev, oneFSOK := deviceOf(root.Path)

	rootFolder := &entry.Entry{
		Name:    filepath.Base(root.Path),
		Kind:    entry.KindFolder,
		DBIndex: dbIndex,
	}
	folders = append(folders, rootFolder)
	byPath := map[string]*entry.Entry{root.Path: rootFolder}

	walkErr := filepath.WalkDir(root.Path, func(path string, d os.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			log.Warn("walk error, skipping", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root.Path {
			return nil
		}

		if excl != nil && excl.ShouldSkip(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		parentPath := filepath.Dir(path)
		parent, ok := byPath[parentPath]
		if !ok {
			// Parent was pruned (e.g. excluded); skip this entry too.
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			log.Warn("stat failed, skipping", "path", path, "error", statErr)
			return nil
		}

		if d.IsDir() {
			if root.OneFileSystem && oneFSOK {
				if dev, ok := deviceOf(path); ok && dev != rootDev {
					return filepath.SkipDir
				}
			}

			dirEntry := &entry.Entry{
				Name:    d.Name(),
				Kind:    entry.KindFolder,
				DBIndex: dbIndex,
				Parent:  parent,
				MTime:   uint64(info.ModTime().Unix()),
			}
			parent.Children = append(parent.Children, dirEntry)
			folders = append(folders, dirEntry)
			byPath[path] = dirEntry
			return nil
		}

		fileEntry := &entry.Entry{
			Name:    d.Name(),
			Kind:    entry.KindFile,
			DBIndex: dbIndex,
			Parent:  parent,
			Size:    uint64(info.Size()),
			MTime:   uint64(info.ModTime().Unix()),
		}
		parent.Children = append(parent.Children, fileEntry)
		files = append(files, fileEntry)
		addFolderSize(parent, fileEntry.Size)

		return nil
	})

	if walkErr != nil {
		return nil, nil, walkErr
	}

	for i, f := range folders {
		f.Idx = uint32(i)
	}
	for i, f := range files {
		f.Idx = uint32(i)
	}

	return folders, files, nil
}

// addFolderSize propagates a child file's size up the parent chain, so
// a Folder's Size aggregates its contained entries as §3 requires.
func addFolderSize(parent *entry.Entry, size uint64) {
	for f := parent; f != nil; f = f.Parent {
		f.Size += size
	}
}

// deviceOf reports path's underlying device number, used to honor
// OneFileSystem's mount-boundary pruning. ok is false when the
// platform's Stat_t doesn't expose one, in which case OneFileSystem is
// silently not enforced rather than failing the whole scan.
func deviceOf(path string) (dev uint64, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}
