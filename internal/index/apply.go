package index

import (
	"path/filepath"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/monitor"
)

// applyRawEvent resolves one monitor.RawEvent against the live pool and
// emits the corresponding Index event. A created path whose parent this
// Index cannot resolve (because an intervening event was dropped, or the
// path lies outside the pool) is logged and skipped; remove and write
// events for unknown paths are ignored.
func (ix *Index) applyRawEvent(ev monitor.RawEvent) {
	log := logger.Named("index")

	ix.mu.Lock()
	defer ix.mu.Unlock()

	existing, known := ix.byPath[ev.Path]

	switch {
	case ev.Op.Has(monitor.OpRemove) || ev.Op.Has(monitor.OpRename):
		if !known {
			return
		}
		ix.removeLocked(existing)
		ix.emitLocked(Event{Kind: EntryDeleted, Entries: []*entry.Entry{existing}})

	case ev.Op.Has(monitor.OpCreate):
		if known {
			return
		}
		created, ok := ix.createLocked(ev.Path)
		if !ok {
			log.Warn("cannot resolve new path's parent, skipping", "path", ev.Path)
			return
		}
		ix.emitLocked(Event{Kind: EntryCreated, Entries: []*entry.Entry{created}})

	case ev.Op.Has(monitor.OpWrite) || ev.Op.Has(monitor.OpChmod):
		if !known {
			return
		}
		old := snapshotAttributes(existing)
		ix.refreshAttributesLocked(existing)
		ix.emitLocked(Event{Kind: EntryAttributeChanged, Entries: []*entry.Entry{existing}, Old: old})
	}
}

// removeLocked detaches e from its parent's Children and from the
// flat pool. Folders are removed along with their descendants.
func (ix *Index) removeLocked(e *entry.Entry) {
	delete(ix.byPath, e.Path())

	if e.Parent != nil {
		e.Parent.Children = removeChild(e.Parent.Children, e)
	}

	if e.Kind == entry.KindFolder {
		for _, c := range append([]*entry.Entry{}, e.Children...) {
			ix.removeLocked(c)
		}
		ix.folders = removeChild(ix.folders, e)
		return
	}
	ix.files = removeChild(ix.files, e)
}

func removeChild(list []*entry.Entry, target *entry.Entry) []*entry.Entry {
	out := list[:0]
	for _, e := range list {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

// createLocked builds a new Entry for path, which must be a direct
// child of an already-known folder. It does not recurse: a newly
// created directory's own contents arrive as separate CREATE events
// (or, if the monitor coalesced them away, via the overflow rescan
// path in StartMonitoring).
func (ix *Index) createLocked(path string) (*entry.Entry, bool) {
	parentPath := filepath.Dir(path)
	parent, ok := ix.byPath[parentPath]
	if !ok {
		return nil, false
	}

	isDir, statErr := pathIsDir(path)
	if statErr != nil {
		return nil, false
	}

	e := &entry.Entry{
		Name:    filepath.Base(path),
		DBIndex: ix.dbIndex,
		Parent:  parent,
	}
	if isDir {
		e.Kind = entry.KindFolder
		ix.folders = append(ix.folders, e)
		ix.byPath[path] = e
	} else {
		size, mtime, _ := statSizeAndMTime(path)
		e.Kind = entry.KindFile
		e.Size = size
		e.MTime = mtime
		ix.files = append(ix.files, e)
		ix.byPath[path] = e
	}
	parent.Children = append(parent.Children, e)
	return e, true
}

func (ix *Index) refreshAttributesLocked(e *entry.Entry) {
	if e.Kind != entry.KindFile {
		return
	}
	size, mtime, err := statSizeAndMTime(e.Path())
	if err != nil {
		return
	}
	e.Size = size
	e.MTime = mtime
}

func snapshotAttributes(e *entry.Entry) *entry.Entry {
	cp := *e
	return &cp
}

func (ix *Index) emitLocked(ev Event) {
	// events has ample buffer (see New); sending while holding mu keeps
	// delivery ordered with the mutation, at the cost of the Store's
	// consumer goroutine needing to keep up. This mirrors the Work
	// Scheduler's own single-consumer guarantee (§5).
	ix.events <- ev
}
