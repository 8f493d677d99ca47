// Package index implements the Index of §4.2: the owner of one scanned
// root's Entry pool, the operations that (re)populate it (Scan,
// Rescan), and the Index lifecycle events §4.7's Event Bus reports.
//
// Locking follows gcsfuse's fs/inode.DirInode: a syncutil.InvariantMutex
// guards all mutable state, with checkInvariants re-validating the pool
// after every unlock in tests and debug builds.
package index

import (
	"context"
	"fmt"

	"github.com/jacobsa/syncutil"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/monitor"
	"github.com/fsearchd/fscore/internal/walker"
)

// EventKind enumerates Index-level lifecycle occurrences. The first
// four map onto gcsfuse-adjacent scan/monitor lifecycle points; the
// remaining six are per-entry mutations an applied monitor event can
// produce, including the four the original C sources left unhandled
// (EntryRenamed, EntryMoved, EntryChanged, EntryAttributeChanged;
// see SPEC_FULL.md §4/§9 for the
// resolution this module implements: a rename or move is a delete
// paired with a create of the new name/location, and an attribute
// change updates the entry and repositions it in every Container keyed
// on that attribute, without changing its identity).
type EventKind int

const (
	ScanStarted EventKind = iota
	ScanFinished
	MonitoringStarted
	MonitoringFinished
	EntryCreated
	EntryDeleted
	EntryRenamed
	EntryMoved
	EntryChanged
	EntryAttributeChanged
)

func (k EventKind) String() string {
	switch k {
	case ScanStarted:
		return "SCAN_STARTED"
	case ScanFinished:
		return "SCAN_FINISHED"
	case MonitoringStarted:
		return "MONITORING_STARTED"
	case MonitoringFinished:
		return "MONITORING_FINISHED"
	case EntryCreated:
		return "ENTRY_CREATED"
	case EntryDeleted:
		return "ENTRY_DELETED"
	case EntryRenamed:
		return "ENTRY_RENAMED"
	case EntryMoved:
		return "ENTRY_MOVED"
	case EntryChanged:
		return "ENTRY_CHANGED"
	case EntryAttributeChanged:
		return "ENTRY_ATTRIBUTE_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is one occurrence an Index reports to its owning Store.
type Event struct {
	Kind EventKind

	// Entries lists the affected entries. For ENTRY_ATTRIBUTE_CHANGED,
	// Old holds the pre-change snapshot (detached from the pool) and
	// Entries[0] the live, already-updated entry.
	Entries []*entry.Entry
	Old     *entry.Entry
}

// Include is re-exported from walker so callers needn't import both
// packages for the one shared configuration record.
type Include = walker.Include

// Index owns one scanned root: its current Folder/File pools, the
// monitor subscription that keeps them live, and the event stream the
// Store consumes to keep its aggregate containers in sync.
type Index struct {
	mu syncutil.InvariantMutex

	include Include
	dbIndex uint16

	w Walker
	m monitor.Monitor

	// GUARDED_BY(mu)
	folders []*entry.Entry
	// GUARDED_BY(mu)
	files []*entry.Entry
	// GUARDED_BY(mu)
	byPath map[string]*entry.Entry

	monitorCancel context.CancelFunc
	events        chan Event
}

// Walker is the subset of walker.Walker an Index depends on.
type Walker interface {
	Walk(ctx context.Context, root Include, excl walker.ExcludeManager, dbIndex uint16) (folders, files []*entry.Entry, err error)
}

// New creates an Index for include, owned by dbIndex, using w to
// perform scans and m (optional, may be nil) to watch for changes.
func New(include Include, dbIndex uint16, w Walker, m monitor.Monitor) *Index {
	ix := &Index{
		include: include,
		dbIndex: dbIndex,
		w:       w,
		m:       m,
		byPath:  make(map[string]*entry.Entry),
		events:  make(chan Event, 256),
	}
	ix.mu = syncutil.NewInvariantMutex(ix.checkInvariants)
	return ix
}

func (ix *Index) checkInvariants() {
	if len(ix.folders) == 0 && len(ix.files) > 0 {
		panic("index: files present with no root folder")
	}
	for _, f := range ix.files {
		if f.Kind != entry.KindFile {
			panic(fmt.Sprintf("index: non-file entry %q in files pool", f.Name))
		}
	}
	for _, f := range ix.folders {
		if f.Kind != entry.KindFolder {
			panic(fmt.Sprintf("index: non-folder entry %q in folders pool", f.Name))
		}
	}
}

// Events returns the channel of lifecycle events this Index emits. The
// owning Store must drain it continuously; Index.emit will block a
// caller (the worker thread, during Scan, or the monitor goroutine)
// if the channel is ever allowed to fill.
func (ix *Index) Events() <-chan Event { return ix.events }

func (ix *Index) emit(ev Event) {
	ix.events <- ev
}

// DBIndex returns the stable identifier the Store uses to tag every
// Entry this Index owns.
func (ix *Index) DBIndex() uint16 { return ix.dbIndex }

// Include returns the configuration this Index was created from.
func (ix *Index) Include() Include { return ix.include }

// Lock acquires the Index's invariant mutex. Callers doing more than a
// single accessor call (e.g. the Store's start-up fan-out, which reads
// GetFolders/GetFiles while holding the lock across several Indices
// taken in fixed ID order, per §5) should call Lock/Unlock directly.
func (ix *Index) Lock()   { ix.mu.Lock() }
func (ix *Index) Unlock() { ix.mu.Unlock() }

// GetFolders and GetFiles borrow the current arrays; valid only while
// the Index is locked (§4.2).
func (ix *Index) GetFolders() []*entry.Entry { return ix.folders }
func (ix *Index) GetFiles() []*entry.Entry   { return ix.files }

// Scan performs a full (re)scan of the include root via the configured
// Walker, replacing the current pool atomically under lock. It reports
// SCAN_STARTED/SCAN_FINISHED on the event channel.
func (ix *Index) Scan(ctx context.Context, excl walker.ExcludeManager) error {
	ix.emit(Event{Kind: ScanStarted})

	folders, files, err := ix.w.Walk(ctx, ix.include, excl, ix.dbIndex)
	if err != nil {
		return err
	}

	byPath := make(map[string]*entry.Entry, len(folders)+len(files))
	for _, f := range folders {
		byPath[f.Path()] = f
	}
	for _, f := range files {
		byPath[f.Path()] = f
	}

	ix.mu.Lock()
	ix.folders = folders
	ix.files = files
	ix.byPath = byPath
	ix.mu.Unlock()

	ix.emit(Event{Kind: ScanFinished, Entries: append(append([]*entry.Entry{}, folders...), files...)})
	return nil
}

// StartMonitoring begins watching include for changes, translating raw
// filesystem events into Index events applied against the live pool.
// It is a no-op if this Index has no configured Monitor.
func (ix *Index) StartMonitoring(ctx context.Context) error {
	if ix.m == nil {
		return nil
	}

	log := logger.Named("index")
	runCtx, cancel := context.WithCancel(ctx)
	ix.monitorCancel = cancel

	raw, err := ix.m.Start(runCtx, ix.include.Path, ix.include.OneFileSystem)
	if err != nil {
		cancel()
		return err
	}

	ix.emit(Event{Kind: MonitoringStarted})

	go func() {
		defer ix.emit(Event{Kind: MonitoringFinished})
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				if ev.Path == "" {
					// Overflow signal from the monitor: the delta is too
					// large or lossy to apply incrementally.
					log.Warn("monitor overflow, rescanning", "root", ix.include.Path)
					if scanErr := ix.Scan(runCtx, nil); scanErr != nil {
						log.Error("rescan after overflow failed", "error", scanErr)
					}
					continue
				}
				ix.applyRawEvent(ev)
			}
		}
	}()

	return nil
}

// StopMonitoring cancels the monitor subscription, if any.
func (ix *Index) StopMonitoring() error {
	if ix.monitorCancel != nil {
		ix.monitorCancel()
	}
	if ix.m != nil {
		return ix.m.Stop()
	}
	return nil
}
