package search

import (
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
)

// ItemInfoFlags selects which attributes ItemInfo populates, using
// entry.Flag's bit layout; NAME and IsFolder are always populated, PATH
// only when FlagPath is set.
type ItemInfoFlags = entry.Flag

// ItemInfo resolves a view-visible index to an EntryInfo snapshot
// carrying the requested attribute subset (§4.5's "Item info").
func ItemInfo(v *View, idx int, flags ItemInfoFlags) (*events.EntryInfo, error) {
	e, err := EntryForVisibleIndex(v, idx)
	if err != nil {
		return nil, err
	}

	info := &events.EntryInfo{
		Name:     e.Name,
		IsFolder: e.Kind == entry.KindFolder,
	}
	if flags.Has(entry.FlagPath) {
		info.Path = e.Path()
	}
	if flags.Has(entry.FlagSize) {
		info.Size = e.Size
	}
	if flags.Has(entry.FlagMTime) {
		info.MTime = e.MTime
	}
	if flags.Has(entry.FlagExtension) {
		info.Extension = e.Extension()
	}
	return info, nil
}
