package scheduler

import (
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/ferrors"
	"github.com/fsearchd/fscore/internal/search"
)

// TryGetDatabaseInfo, TryGetSearchInfo and TryGetItemInfo implement
// §4.6's three non-blocking inquiry paths: they take storeMu with
// TryRLock and return ErrBusy immediately rather than queueing behind
// the worker, since an inquiry is allowed to just retry later instead
// of stalling its caller.
func (s *Scheduler) TryGetDatabaseInfo() (*events.DatabaseInfo, error) {
	if s.scanning.Load() || !s.storeMu.TryRLock() {
		return nil, ferrors.ErrBusy
	}
	defer s.storeMu.RUnlock()

	if s.store == nil {
		return nil, ferrors.ErrFailed
	}
	return databaseInfo(s.store), nil
}

func (s *Scheduler) TryGetSearchInfo(viewID string) (*events.SearchInfo, error) {
	if s.scanning.Load() || !s.storeMu.TryRLock() {
		return nil, ferrors.ErrBusy
	}
	defer s.storeMu.RUnlock()

	if s.registry == nil {
		return nil, ferrors.ErrFailed
	}
	v := s.registry.Lookup(viewID)
	if v == nil {
		return nil, ferrors.ErrUnknownSearchView
	}

	return &events.SearchInfo{
		ViewID:           viewID,
		NumFiles:         uint32(v.NumResults(entry.KindFile)),
		NumFolders:       uint32(v.NumResults(entry.KindFolder)),
		NumSelectedFiles: uint32(v.NumSelectedFiles()),
		NumSelectedDirs:  uint32(v.NumSelectedDirs()),
	}, nil
}

func (s *Scheduler) TryGetItemInfo(viewID string, idx int, flags entry.Flag) (*events.EntryInfo, error) {
	if s.scanning.Load() || !s.storeMu.TryRLock() {
		return nil, ferrors.ErrBusy
	}
	defer s.storeMu.RUnlock()

	if s.registry == nil {
		return nil, ferrors.ErrFailed
	}
	v := s.registry.Lookup(viewID)
	if v == nil {
		return nil, ferrors.ErrUnknownSearchView
	}
	return search.ItemInfo(v, idx, flags)
}
