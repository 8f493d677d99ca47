package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fscore/internal/container"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/query"
)

func files(names ...string) []*entry.Entry {
	var out []*entry.Entry
	for _, n := range names {
		out = append(out, &entry.Entry{Name: n, Kind: entry.KindFile})
	}
	return out
}

func TestCreateAndLiveInsertOnPrivateContainer(t *testing.T) {
	reg := NewRegistry(func(c *container.Container) bool { return false }, query.DefaultMatcher{})
	v := reg.Create("v1", query.Query{Pattern: "a"}, files("a.txt", "cat.go"), nil, entry.SortName, entry.SortNone, Ascending, nil, nil)

	assert.Equal(t, 2, v.NumResults(entry.KindFile))

	reg.OnEntriesCreated(nil, []*entry.Entry{{Name: "apple.txt", Kind: entry.KindFile}})
	assert.Equal(t, 3, v.NumResults(entry.KindFile))

	nonMatch := &entry.Entry{Name: "xyz.txt", Kind: entry.KindFile}
	reg.OnEntriesCreated(nil, []*entry.Entry{nonMatch})
	assert.Equal(t, 3, v.NumResults(entry.KindFile))
}

func TestViewVisibleIndexInversion(t *testing.T) {
	reg := NewRegistry(func(c *container.Container) bool { return false }, query.DefaultMatcher{})
	asc := reg.Create("asc", query.Query{}, files("a", "b", "c"), nil, entry.SortName, entry.SortNone, Ascending, nil, nil)
	desc := reg.Create("desc", query.Query{}, files("a", "b", "c"), nil, entry.SortName, entry.SortNone, Descending, nil, nil)

	n := asc.NumResults(entry.KindFile)
	for i := 0; i < n; i++ {
		eAsc, err := EntryForVisibleIndex(asc, i)
		require.NoError(t, err)
		eDesc, err := EntryForVisibleIndex(desc, n-1-i)
		require.NoError(t, err)
		assert.Same(t, eAsc, eDesc)
	}
}

func TestSelectRangeIsInclusive(t *testing.T) {
	reg := NewRegistry(func(c *container.Container) bool { return false }, query.DefaultMatcher{})
	v := reg.Create("v", query.Query{}, files("a", "b", "c", "d"), nil, entry.SortName, entry.SortNone, Ascending, nil, nil)

	require.NoError(t, ModifySelection(v, SelectRange, 1, 2))
	assert.Equal(t, 2, v.NumSelectedFiles())
}

// TestSearchSharesStoreContainerOnEmptyPattern covers §9's "share by
// reference" path: when the Store's own containers are passed in and
// the query pattern is empty, Search must adopt them directly rather
// than build a private copy, so a later Store-side mutation is visible
// through the view without going through OnEntriesCreated/Deleted.
func TestSearchSharesStoreContainerOnEmptyPattern(t *testing.T) {
	storeFolders := container.Join(entry.KindFolder, entry.SortName, entry.SortNone, nil)
	storeFiles := container.Join(entry.KindFile, entry.SortName, entry.SortNone, files("a.txt", "b.txt"))

	reg := NewRegistry(func(c *container.Container) bool {
		return c == storeFolders || c == storeFiles
	}, query.DefaultMatcher{})

	v, err := Search(context.Background(), reg, query.DefaultMatcher{}, "v1", query.Query{},
		storeFolders, storeFiles, entry.SortName, entry.SortNone, Ascending, nil)
	require.NoError(t, err)

	assert.Same(t, storeFiles, v.files)
	assert.True(t, v.sharedFiles)
	assert.Same(t, storeFolders, v.folders)
	assert.True(t, v.sharedFolders)
}

// TestSearchPrivateWhenContainerNotStoreOwned ensures the empty-pattern
// path still falls back to a private copy when hasStoreContainer says
// the given container isn't actually one of the Store's.
func TestSearchPrivateWhenContainerNotStoreOwned(t *testing.T) {
	storeFolders := container.Join(entry.KindFolder, entry.SortName, entry.SortNone, nil)
	storeFiles := container.Join(entry.KindFile, entry.SortName, entry.SortNone, files("a.txt"))

	reg := NewRegistry(func(c *container.Container) bool { return false }, query.DefaultMatcher{})

	v, err := Search(context.Background(), reg, query.DefaultMatcher{}, "v1", query.Query{},
		storeFolders, storeFiles, entry.SortName, entry.SortNone, Ascending, nil)
	require.NoError(t, err)

	assert.NotSame(t, storeFiles, v.files)
	assert.False(t, v.sharedFiles)
}
