// Package search implements the Search View Registry of §4.5: named,
// per-query result containers with selection state, kept live against
// Store mutations and re-sortable in place.
package search

import (
	"context"
	"sync"

	"github.com/fsearchd/fscore/internal/container"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/ferrors"
	"github.com/fsearchd/fscore/internal/query"
)

// SortType selects the direction a view's visible order is presented
// in (§4.5's view-visible index inversion).
type SortType int

const (
	Ascending SortType = iota
	Descending
)

// View is one named search result set: its own per-property
// containers (private, or a Store-shared handle for the "everything"
// query — see hasSharedContainer), plus file/folder selection sets.
type View struct {
	ID string

	Query query.Query

	folders *container.Container
	files   *container.Container

	// sharedFolders/sharedFiles record whether the corresponding
	// container above is a Store-owned handle rather than a private
	// copy (§9's "shared-vs-private" identity check).
	sharedFolders bool
	sharedFiles   bool

	sortOrder          entry.SortProperty
	secondarySortOrder entry.SortProperty
	sortType           SortType

	fileSelection   map[*entry.Entry]bool
	folderSelection map[*entry.Entry]bool
}

// NumResults returns the number of results of kind k (file or folder)
// this view currently holds.
func (v *View) NumResults(k entry.Kind) int {
	if k == entry.KindFolder {
		return v.folders.NumEntries()
	}
	return v.files.NumEntries()
}

func (v *View) numSelected(sel map[*entry.Entry]bool) int {
	n := 0
	for _, on := range sel {
		if on {
			n++
		}
	}
	return n
}

// NumSelectedFiles and NumSelectedDirs report current selection counts.
func (v *View) NumSelectedFiles() int { return v.numSelected(v.fileSelection) }
func (v *View) NumSelectedDirs() int  { return v.numSelected(v.folderSelection) }

// HasContainer is the Store-provided identity predicate: views built
// from IsContainer dependency injection check it to decide whether
// their container is Store-shared.
type HasContainer func(c *container.Container) bool

// Registry holds every live View, keyed by id.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View

	hasStoreContainer HasContainer
	matcher           query.Matcher
}

// NewRegistry builds an empty Registry. hasStoreContainer lets the
// Registry recognise when a view's container is actually one of the
// Store's shared per-property containers (see Create), so live
// propagation can skip views the Store already updated.
func NewRegistry(hasStoreContainer HasContainer, matcher query.Matcher) *Registry {
	if matcher == nil {
		matcher = query.DefaultMatcher{}
	}
	return &Registry{
		views:             make(map[string]*View),
		hasStoreContainer: hasStoreContainer,
		matcher:           matcher,
	}
}

// Create builds a view over the given already-filtered result arrays,
// private sorted containers around them, and registers it under id.
// If sharedFolders/sharedFiles are non-nil, they are adopted
// directly (Store-shared, per an "everything" query short-circuit)
// instead of being rebuilt from the raw arrays.
func (r *Registry) Create(id string, q query.Query, files, folders []*entry.Entry, sortOrder, secondary entry.SortProperty, sortType SortType, sharedFolders, sharedFiles *container.Container) *View {
	v := &View{
		ID:                 id,
		Query:              q,
		sortOrder:          sortOrder,
		secondarySortOrder: secondary,
		sortType:           sortType,
		fileSelection:      make(map[*entry.Entry]bool),
		folderSelection:    make(map[*entry.Entry]bool),
	}

	if sharedFolders != nil {
		v.folders = sharedFolders
		v.sharedFolders = true
	} else {
		v.folders = container.Join(entry.KindFolder, sortOrder, secondary, folders)
	}

	if sharedFiles != nil {
		v.files = sharedFiles
		v.sharedFiles = true
	} else {
		v.files = container.Join(entry.KindFile, sortOrder, secondary, files)
	}

	r.mu.Lock()
	r.views[id] = v
	r.mu.Unlock()
	return v
}

// Lookup returns the view registered under id, or nil.
func (r *Registry) Lookup(id string) *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.views[id]
}

// Free drops the view and its containers/selections. The entries
// themselves remain valid, owned by their Indices.
func (r *Registry) Free(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
}

// OnEntriesCreated implements the Store's ENTRY_CREATED fan-out to
// every view (§4.5's "Live propagation"): private containers whose
// query matches the new entry get it inserted; Store-shared ones are
// skipped, since the Store already updated them.
func (r *Registry) OnEntriesCreated(folders, files []*entry.Entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.views {
		if !v.sharedFolders {
			for _, f := range folders {
				if r.matcher.Match(v.Query, f) {
					v.folders.Insert(f)
				}
			}
		}
		if !v.sharedFiles {
			for _, f := range files {
				if r.matcher.Match(v.Query, f) {
					v.files.Insert(f)
				}
			}
		}
	}
}

// OnEntriesDeleted is ENTRY_CREATED's exact dual: steal from private
// containers and drop from selection.
func (r *Registry) OnEntriesDeleted(folders, files []*entry.Entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.views {
		if !v.sharedFolders {
			for _, f := range folders {
				if r.matcher.Match(v.Query, f) {
					if v.folders.Steal(f) {
						delete(v.folderSelection, f)
					}
				}
			}
		}
		if !v.sharedFiles {
			for _, f := range files {
				if r.matcher.Match(v.Query, f) {
					if v.files.Steal(f) {
						delete(v.fileSelection, f)
					}
				}
			}
		}
	}
}

// Search runs q against the effective containers for sortOrder
// (falling back to NAME if the Store has no fast-sort container for
// it), filters via the external matcher across the external thread
// pool, and constructs+registers the resulting view.
func Search(ctx context.Context, r *Registry, matcher query.Matcher, id string, q query.Query, storeFolders, storeFiles *container.Container, sortOrder, secondary entry.SortProperty, sortType SortType, storeHasFastSort func(entry.SortProperty) bool) (*View, error) {
	effectiveSort := sortOrder
	if storeHasFastSort != nil && !storeHasFastSort(sortOrder) {
		effectiveSort = entry.SortName
	}

	if q.Pattern == "" {
		// "Everything" query: take the Store's containers by reference
		// instead of copying, per §9's shared-container optimization,
		// whenever they really are Store-owned at this sort order (the
		// Registry's own identity check decides that, not a guess here).
		var sharedFolders, sharedFiles *container.Container
		if r.hasStoreContainer != nil && r.hasStoreContainer(storeFolders) {
			sharedFolders = storeFolders
		}
		if r.hasStoreContainer != nil && r.hasStoreContainer(storeFiles) {
			sharedFiles = storeFiles
		}
		return r.Create(id, q, storeFiles.Joined(), storeFolders.Joined(), effectiveSort, secondary, sortType, sharedFolders, sharedFiles), nil
	}

	folders, err := query.FilterContainer(ctx, matcher, q, storeFolders.Joined())
	if err != nil {
		return nil, err
	}
	files, err := query.FilterContainer(ctx, matcher, q, storeFiles.Joined())
	if err != nil {
		return nil, err
	}

	return r.Create(id, q, files, folders, effectiveSort, secondary, sortType, nil, nil), nil
}

// Resort replaces v's containers with private copies sorted to
// (newOrder, newSecondary, newType).
func Resort(v *View, newOrder, newSecondary entry.SortProperty, newType SortType) {
	v.folders = container.Join(entry.KindFolder, newOrder, newSecondary, v.folders.Joined())
	v.files = container.Join(entry.KindFile, newOrder, newSecondary, v.files.Joined())
	v.sharedFolders = false
	v.sharedFiles = false
	v.sortOrder = newOrder
	v.secondarySortOrder = newSecondary
	v.sortType = newType
}

// visibleIndex maps a view-visible index (folders first, then files,
// direction-adjusted) to a (kind, index-within-kind) pair, per §4.5.
func visibleIndex(v *View, i int) (entry.Kind, int, bool) {
	numFolders := v.folders.NumEntries()
	numFiles := v.files.NumEntries()
	total := numFolders + numFiles

	if v.sortType == Descending {
		i = total - (i + 1)
	}
	if i < 0 || i >= total {
		return 0, 0, false
	}
	if i < numFolders {
		return entry.KindFolder, i, true
	}
	return entry.KindFile, i - numFolders, true
}

// EntryForVisibleIndex resolves view-visible index i to its Entry.
func EntryForVisibleIndex(v *View, i int) (*entry.Entry, error) {
	kind, local, ok := visibleIndex(v, i)
	if !ok {
		return nil, ferrors.ErrEntryNotFound
	}
	if kind == entry.KindFolder {
		return v.folders.GetEntry(local), nil
	}
	return v.files.GetEntry(local), nil
}
