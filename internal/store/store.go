// Package store implements the Index Store of §4.3: it aggregates
// every admitted Index into one set of canonical per-property
// containers, applies live Index events to keep them current, and
// exposes the read-side queries the Search View Registry and Work
// Scheduler depend on.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fsearchd/fscore/internal/codec"
	"github.com/fsearchd/fscore/internal/container"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/index"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/monitor"
	"github.com/fsearchd/fscore/internal/walker"
)

// trackedProperties is the fixed property set the Store may build
// containers for, NAME always included (§4.3 step 4).
var trackedProperties = []entry.SortProperty{
	entry.SortName,
	entry.SortPath,
	entry.SortSize,
	entry.SortMTime,
	entry.SortExtension,
}

// IncludeManager supplies the ordered list of roots to admit.
type IncludeManager interface {
	Includes() []walker.Include
}

// Walker is the per-Index scan collaborator the Store wires up when
// constructing Indices during start-up.
type Walker = index.Walker

// Store aggregates admitted Indices into per-property containers.
type Store struct {
	mu sync.RWMutex

	flags   entry.Flag
	running bool

	indices []*index.Index

	folderContainers map[entry.SortProperty]*container.Container
	fileContainers   map[entry.SortProperty]*container.Container

	numFiles   int
	numFolders int

	includeMgr IncludeManager
	exclMgr    walker.ExcludeManager

	registry Registry

	refs int32

	stopEventPump chan struct{}
	eventPumpWG   sync.WaitGroup
}

// Registry is the subset of search.Registry the Store notifies inline
// with its own mutations, so that a search view never observes a
// half-applied Store event (§4.3 "informed inside the same critical
// section").
type Registry interface {
	OnEntriesCreated(folders, files []*entry.Entry)
	OnEntriesDeleted(folders, files []*entry.Entry)
}

// New creates an unstarted Store. flags is the property-tracking
// bitmask (§3); registry may be nil (a Store used outside the full
// scheduler, e.g. in tests, need not notify a registry).
func New(flags entry.Flag, registry Registry) *Store {
	if registry == nil {
		registry = noopRegistry{}
	}
	return &Store{flags: flags, registry: registry}
}

// SetRegistry rewires the Registry a Store notifies of live mutations.
// Used when the Registry itself needs the Store's HasContainer
// predicate to construct, so the two must be built in two steps: New,
// then build the Registry off the returned Store, then SetRegistry.
func (s *Store) SetRegistry(registry Registry) {
	if registry == nil {
		registry = noopRegistry{}
	}
	s.mu.Lock()
	s.registry = registry
	s.mu.Unlock()
}

type noopRegistry struct{}

func (noopRegistry) OnEntriesCreated(folders, files []*entry.Entry) {}
func (noopRegistry) OnEntriesDeleted(folders, files []*entry.Entry) {}

// Running reports whether Start has completed successfully.
func (s *Store) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Flags returns the property-tracking bitmask this Store was built
// with.
func (s *Store) Flags() entry.Flag { return s.flags }

// Start implements §4.3's start-up algorithm: for every configured
// Include, build and scan an Index; admit only those that succeed and
// whose id is not already present; aggregate the admitted Indices'
// arrays into per-property containers; mark running.
func (s *Store) Start(ctx context.Context, includeMgr IncludeManager, exclMgr walker.ExcludeManager, w Walker, newMonitor func() monitor.Monitor) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	log := logger.Named("store")

	seen := make(map[uint16]bool)
	var admitted []*index.Index

	for _, inc := range includeMgr.Includes() {
		if seen[inc.ID] {
			continue
		}

		var mon monitor.Monitor
		if inc.Monitored && newMonitor != nil {
			mon = newMonitor()
		}

		ix := index.New(inc, inc.ID, w, mon)
		if err := ix.Scan(ctx, exclMgr); err != nil {
			select {
			case <-ctx.Done():
				log.Info("store start cancelled", "include", inc.Path)
				return ctx.Err()
			default:
			}
			log.Warn("scan failed, not admitting include", "include", inc.Path, "error", err)
			continue
		}

		admitted = append(admitted, ix)
		seen[inc.ID] = true
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Lock every admitted Index, in fixed id order, matching §5's
	// "Store takes all Index locks (in a fixed order by Index id)".
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].DBIndex() < admitted[j].DBIndex() })
	for _, ix := range admitted {
		ix.Lock()
	}

	var allFolders, allFiles []*entry.Entry
	for _, ix := range admitted {
		allFolders = append(allFolders, ix.GetFolders()...)
		allFiles = append(allFiles, ix.GetFiles()...)
	}

	for _, ix := range admitted {
		ix.Unlock()
	}

	folderContainers := make(map[entry.SortProperty]*container.Container)
	fileContainers := make(map[entry.SortProperty]*container.Container)

	for _, p := range trackedProperties {
		if p != entry.SortName && !s.flags.Has(entry.FlagForProperty(p)) {
			continue
		}
		folderContainers[p] = container.Join(entry.KindFolder, p, entry.SortNone, allFolders)
		fileContainers[p] = container.Join(entry.KindFile, p, entry.SortNone, allFiles)
	}

	s.mu.Lock()
	s.indices = admitted
	s.folderContainers = folderContainers
	s.fileContainers = fileContainers
	s.numFiles = len(allFiles)
	s.numFolders = len(allFolders)
	s.includeMgr = includeMgr
	s.exclMgr = exclMgr
	s.running = true
	s.mu.Unlock()

	s.startEventPump(admitted)

	for _, ix := range admitted {
		if err := ix.StartMonitoring(ctx); err != nil {
			log.Warn("starting monitor failed, include stays unwatched", "include", ix.Include().Path, "error", err)
		}
	}

	log.Info("store started", "num_indices", len(admitted), "num_files", s.numFiles, "num_folders", s.numFolders)
	return nil
}

// startEventPump launches one goroutine per admitted Index that drains
// its event channel and applies ENTRY_CREATED / ENTRY_DELETED /
// ENTRY_ATTRIBUTE_CHANGED mutations to the Store's shared containers,
// informing the registry inside the same critical section (§4.3).
func (s *Store) startEventPump(indices []*index.Index) {
	s.stopEventPump = make(chan struct{})
	for _, ix := range indices {
		ix := ix
		s.eventPumpWG.Add(1)
		go func() {
			defer s.eventPumpWG.Done()
			for {
				select {
				case <-s.stopEventPump:
					return
				case ev, ok := <-ix.Events():
					if !ok {
						return
					}
					s.applyIndexEvent(ev)
				}
			}
		}()
	}
}

func (s *Store) applyIndexEvent(ev index.Event) {
	switch ev.Kind {
	case index.EntryCreated:
		folders, files := splitByKind(ev.Entries)
		s.mu.Lock()
		for _, c := range s.folderContainers {
			for _, f := range folders {
				c.Insert(f)
			}
		}
		for _, c := range s.fileContainers {
			for _, f := range files {
				c.Insert(f)
			}
		}
		s.numFolders += len(folders)
		s.numFiles += len(files)
		s.registry.OnEntriesCreated(folders, files)
		s.mu.Unlock()

	case index.EntryDeleted:
		folders, files := splitByKind(ev.Entries)
		s.mu.Lock()
		for _, c := range s.folderContainers {
			for _, f := range folders {
				c.Steal(f)
			}
		}
		for _, c := range s.fileContainers {
			for _, f := range files {
				c.Steal(f)
			}
		}
		s.numFolders -= len(folders)
		s.numFiles -= len(files)
		s.registry.OnEntriesDeleted(folders, files)
		s.mu.Unlock()

	case index.EntryAttributeChanged:
		// §9's resolution: update in place, then re-position in every
		// container keyed on the changed attribute. The entry pointer's
		// fields were already updated by the Index before this event was
		// emitted, so re-positioning steals the live entry by identity
		// and reinserts it under its new sort key.
		if len(ev.Entries) == 0 {
			return
		}
		live := ev.Entries[0]
		containers := s.fileContainers
		if live.Kind == entry.KindFolder {
			containers = s.folderContainers
		}
		s.mu.Lock()
		for p, c := range containers {
			if p == entry.SortSize || p == entry.SortMTime {
				s.repositionLocked(c, ev.Old, live)
			}
		}
		s.mu.Unlock()

	case index.EntryRenamed, index.EntryMoved:
		// Resolved per §9 as remove-then-insert; Index already reports
		// these as a paired EntryDeleted/EntryCreated, so no additional
		// handling is required here.
	}
}

// repositionLocked removes live from c and reinserts it under its
// current sort key. Steal finds live by identity, falling back to a
// full scan when live's new key no longer points at its old segment;
// old (the detached pre-change copy) is only checked for nil.
func (s *Store) repositionLocked(c *container.Container, old, live *entry.Entry) {
	if old == nil {
		return
	}
	if c.Steal(live) {
		c.Insert(live)
	}
}

func splitByKind(entries []*entry.Entry) (folders, files []*entry.Entry) {
	for _, e := range entries {
		if e.Kind == entry.KindFolder {
			folders = append(folders, e)
		} else {
			files = append(files, e)
		}
	}
	return folders, files
}

// NumFiles, NumFolders and NumFastSortProperties answer the Store
// queries §4.3 names.
func (s *Store) NumFiles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numFiles
}

func (s *Store) NumFolders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numFolders
}

func (s *Store) NumFastSortProperties() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fileContainers)
}

// GetFiles and GetFolders return the shared container for property p,
// or nil if the Store built none for it.
func (s *Store) GetFiles(p entry.SortProperty) *container.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileContainers[p]
}

func (s *Store) GetFolders(p entry.SortProperty) *container.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderContainers[p]
}

// HasContainer reports whether c is one of this Store's own shared
// containers (identity comparison, per §9's "preserve this identity
// check" warning).
func (s *Store) HasContainer(c *container.Container) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fc := range s.folderContainers {
		if fc == c {
			return true
		}
	}
	for _, fc := range s.fileContainers {
		if fc == c {
			return true
		}
	}
	return false
}

// Managers reports the IncludeManager/ExcludeManager this Store was
// started with, so the Scheduler's Scan handler can decide whether a
// new Scan request is actually a no-op (§4.6).
func (s *Store) Managers() (IncludeManager, walker.ExcludeManager) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.includeMgr, s.exclMgr
}

// AddRef / Release implement §4.3's reference counting: the Store is
// freed (its event pump stopped and its Indices' monitors released)
// only after the last referent calls Release.
func (s *Store) AddRef() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

func (s *Store) Release() {
	s.mu.Lock()
	s.refs--
	remaining := s.refs
	s.mu.Unlock()

	if remaining <= 0 {
		s.Close()
	}
}

// Snapshot captures the Store's current contents in the shape the
// Binary Snapshot Codec persists: the NAME-ordered folder/file arrays
// plus, for every tracked property (NAME included, as the identity
// permutation), the permutation that sorts them by that property (§4.4).
func (s *Store) Snapshot() *codec.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folders := s.folderContainers[entry.SortName].Joined()
	files := s.fileContainers[entry.SortName].Joined()

	folderIdx := make(map[*entry.Entry]uint32, len(folders))
	for i, f := range folders {
		folderIdx[f] = uint32(i)
	}
	fileIdx := make(map[*entry.Entry]uint32, len(files))
	for i, f := range files {
		fileIdx[f] = uint32(i)
	}

	arrays := make(map[entry.SortProperty]codec.Permutation)
	for p, c := range s.folderContainers {
		perm := codec.Permutation{FolderPerm: permutationOf(c.Joined(), folderIdx)}
		if fc := s.fileContainers[p]; fc != nil {
			perm.FilePerm = permutationOf(fc.Joined(), fileIdx)
		}
		arrays[p] = perm
	}

	return &codec.Snapshot{
		Flags:        s.flags,
		Folders:      folders,
		Files:        files,
		SortedArrays: arrays,
	}
}

func permutationOf(sorted []*entry.Entry, idx map[*entry.Entry]uint32) []uint32 {
	perm := make([]uint32, len(sorted))
	for i, e := range sorted {
		perm[i] = idx[e]
	}
	return perm
}

// FromSnapshot rebuilds a started, unmonitored Store from a loaded
// snapshot: the NAME order is taken as canonical and every stored
// property's container, NAME included, is rebuilt from its permutation.
func FromSnapshot(snap *codec.Snapshot) *Store {
	folderContainers := make(map[entry.SortProperty]*container.Container)
	fileContainers := make(map[entry.SortProperty]*container.Container)

	for p, perm := range snap.SortedArrays {
		folderContainers[p] = container.BuildSorted(entry.KindFolder, p, entry.SortNone, applyPermutation(snap.Folders, perm.FolderPerm))
		if len(perm.FilePerm) > 0 || len(snap.Files) == 0 {
			fileContainers[p] = container.BuildSorted(entry.KindFile, p, entry.SortNone, applyPermutation(snap.Files, perm.FilePerm))
		}
	}

	st := New(snap.Flags, nil)
	st.folderContainers = folderContainers
	st.fileContainers = fileContainers
	st.numFolders = len(snap.Folders)
	st.numFiles = len(snap.Files)
	st.running = true
	return st
}

func applyPermutation(base []*entry.Entry, perm []uint32) []*entry.Entry {
	out := make([]*entry.Entry, len(perm))
	for i, p := range perm {
		out[i] = base[p]
	}
	return out
}

// Close stops the event pump and every admitted Index's monitor. Safe
// to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	indices := s.indices
	stopCh := s.stopEventPump
	s.indices = nil
	s.stopEventPump = nil
	s.running = false
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	s.eventPumpWG.Wait()

	for _, ix := range indices {
		_ = ix.StopMonitoring()
	}
}
