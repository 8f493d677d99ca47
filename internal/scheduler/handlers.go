package scheduler

import (
	"context"

	"github.com/fsearchd/fscore/internal/codec"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/ferrors"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/search"
	"github.com/fsearchd/fscore/internal/store"
	"github.com/fsearchd/fscore/internal/walker"
)

func (s *Scheduler) emit(ev events.Event) {
	if s.bus != nil {
		s.bus.Emit(ev)
	}
}

func databaseInfo(st *store.Store) *events.DatabaseInfo {
	return &events.DatabaseInfo{
		NumFiles:              uint32(st.NumFiles()),
		NumFolders:            uint32(st.NumFolders()),
		NumFastSortProperties: st.NumFastSortProperties(),
		IsSorted:              true,
	}
}

// handleScan implements §4.6's Scan (and, with reuseManagers, Rescan):
// no-op if the requested managers equal the running Store's; otherwise
// build a new Store outside any lock, then swap it in.
func (s *Scheduler) handleScan(item Item, reuseManagers bool) error {
	cur, _ := s.currentStore()

	includeMgr := item.IncludeMgr
	exclMgr := item.ExcludeMgr
	flags := item.Flags
	if flags == 0 {
		flags = s.flags
	}

	if reuseManagers && cur != nil {
		includeMgr, exclMgr = cur.Managers()
	} else if cur != nil {
		curInc, curExcl := cur.Managers()
		if sameManagers(curInc, includeMgr) && sameExclude(curExcl, exclMgr) {
			return nil
		}
	}

	s.emit(events.Event{Kind: events.ScanStarted})

	// Set for the duration of the heavy build-and-scan phase below, so
	// a concurrent try_get sees BUSY (§8 scenario 6) instead of racing
	// storeMu and very likely winning against the still-running scan.
	s.scanning.Store(true)
	defer s.scanning.Store(false)

	// The Registry needs the new Store's HasContainer predicate, which
	// only exists once the Store is constructed; the Store itself takes
	// no registry reference until Start, so build it, wire the Registry
	// off its bound method, then Start.
	newStore := store.New(flags, nil)
	registry := search.NewRegistry(newStore.HasContainer, s.matcher)
	newStore.SetRegistry(registry)

	ctx := item.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := newStore.Start(ctx, includeMgr, exclMgr, s.walker, newMonitorFactory()); err != nil {
		return err
	}

	s.swapStore(newStore, registry)
	newStore.AddRef()

	s.emit(events.Event{Kind: events.ScanFinished, Database: databaseInfo(newStore)})
	return nil
}

func sameManagers(a, b store.IncludeManager) bool {
	if a == nil || b == nil {
		return a == b
	}
	ai, bi := a.Includes(), b.Includes()
	if len(ai) != len(bi) {
		return false
	}
	for i := range ai {
		if !ai[i].Equal(bi[i]) {
			return false
		}
	}
	return true
}

func sameExclude(a, b walker.ExcludeManager) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

func (s *Scheduler) handleLoad(item Item) error {
	s.emit(events.Event{Kind: events.LoadStarted})

	path := item.FilePath
	if path == "" {
		path = s.snapshotPath
	}

	snap, err := codec.Load(path)
	if err != nil {
		logger.Named("scheduler").Warn("load failed, falling back to default managers", "path", path, "error", err)
		newStore := store.New(s.flags, nil)
		reg := search.NewRegistry(newStore.HasContainer, s.matcher)
		newStore.SetRegistry(reg)
		s.swapStore(newStore, reg)
		s.emit(events.Event{Kind: events.LoadFinished, Database: databaseInfo(newStore)})
		return err
	}

	st := store.FromSnapshot(snap)
	reg := search.NewRegistry(st.HasContainer, s.matcher)
	st.SetRegistry(reg)
	s.swapStore(st, reg)
	st.AddRef()

	s.emit(events.Event{Kind: events.LoadFinished, Database: databaseInfo(st)})
	return nil
}

func (s *Scheduler) handleSave(item Item) error {
	s.emit(events.Event{Kind: events.SaveStarted})

	st, _ := s.currentStore()
	if st == nil {
		s.emit(events.Event{Kind: events.SaveFinished})
		return ferrors.ErrFailed
	}

	path := item.FilePath
	if path == "" {
		path = s.snapshotPath
	}

	snap := st.Snapshot()
	err := codec.Save(path, snap)
	s.emit(events.Event{Kind: events.SaveFinished})
	return err
}

func (s *Scheduler) handleSearch(item Item) error {
	st, reg := s.currentStore()
	if st == nil {
		return ferrors.ErrFailed
	}

	s.emit(events.Event{Kind: events.SearchStarted, ViewID: item.ViewID})

	effective := item.SortOrder
	storeFolders := st.GetFolders(effective)
	storeFiles := st.GetFiles(effective)
	if storeFolders == nil || storeFiles == nil {
		effective = entry.SortName
		storeFolders = st.GetFolders(effective)
		storeFiles = st.GetFiles(effective)
	}

	ctx := item.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := search.Search(ctx, reg, s.matcher, item.ViewID, item.Query,
		storeFolders, storeFiles,
		item.SortOrder, item.SecondarySortOrder, item.SortType,
		func(p entry.SortProperty) bool { return st.GetFiles(p) != nil })
	if err != nil {
		return err
	}

	info := &events.SearchInfo{
		ViewID:     item.ViewID,
		NumFiles:   uint32(v.NumResults(entry.KindFile)),
		NumFolders: uint32(v.NumResults(entry.KindFolder)),
	}
	s.emit(events.Event{Kind: events.SearchFinished, ViewID: item.ViewID, Search: info})
	return nil
}

func (s *Scheduler) handleSort(item Item) error {
	_, reg := s.currentStore()
	if reg == nil {
		return ferrors.ErrFailed
	}

	v := reg.Lookup(item.ViewID)
	if v == nil {
		return ferrors.ErrUnknownSearchView
	}

	s.emit(events.Event{Kind: events.SortStarted, ViewID: item.ViewID})
	search.Resort(v, item.SortOrder, item.SecondarySortOrder, item.SortType)

	info := &events.SearchInfo{
		ViewID:     item.ViewID,
		NumFiles:   uint32(v.NumResults(entry.KindFile)),
		NumFolders: uint32(v.NumResults(entry.KindFolder)),
	}
	s.emit(events.Event{Kind: events.SortFinished, ViewID: item.ViewID, Search: info})
	return nil
}

func (s *Scheduler) handleModifySelection(item Item) error {
	_, reg := s.currentStore()
	if reg == nil {
		return ferrors.ErrFailed
	}

	v := reg.Lookup(item.ViewID)
	if v == nil {
		return ferrors.ErrUnknownSearchView
	}

	if err := search.ModifySelection(v, item.SelectionOp, item.SelectionIdx, item.SelectionIdx2); err != nil {
		return err
	}

	info := &events.SearchInfo{
		ViewID:           item.ViewID,
		NumFiles:         uint32(v.NumResults(entry.KindFile)),
		NumFolders:       uint32(v.NumResults(entry.KindFolder)),
		NumSelectedFiles: uint32(v.NumSelectedFiles()),
		NumSelectedDirs:  uint32(v.NumSelectedDirs()),
	}
	s.emit(events.Event{Kind: events.SelectionChanged, ViewID: item.ViewID, Search: info})
	return nil
}

func (s *Scheduler) handleGetItemInfo(item Item) error {
	_, reg := s.currentStore()
	if reg == nil {
		return ferrors.ErrFailed
	}

	v := reg.Lookup(item.ViewID)
	if v == nil {
		return ferrors.ErrUnknownSearchView
	}

	info, err := search.ItemInfo(v, item.ItemIdx, item.ItemFlags)
	if err != nil {
		return err
	}

	s.emit(events.Event{Kind: events.ItemInfoReady, ViewID: item.ViewID, Entry: info})
	return nil
}
