package container

import (
	"fmt"
	"testing"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFile(name string, size uint64, idx uint32) *entry.Entry {
	return &entry.Entry{Name: name, Size: size, Idx: idx, Kind: entry.KindFile}
}

func TestInsertMaintainsOrder(t *testing.T) {
	c := New(entry.KindFile, entry.SortName, entry.SortNone)

	names := []string{"delta", "alpha", "charlie", "bravo"}
	for i, n := range names {
		c.Insert(newFile(n, 0, uint32(i)))
	}

	require.Equal(t, 4, c.NumEntries())
	got := c.Joined()
	want := []string{"alpha", "bravo", "charlie", "delta"}
	for i, w := range want {
		assert.Equal(t, w, got[i].Name)
	}
}

func TestInsertRejectsDuplicateKind(t *testing.T) {
	c := New(entry.KindFile, entry.SortName, entry.SortNone)
	folder := &entry.Entry{Name: "x", Kind: entry.KindFolder}
	assert.Panics(t, func() { c.Insert(folder) })
}

func TestStealByIdentity(t *testing.T) {
	c := New(entry.KindFile, entry.SortSize, entry.SortNone)
	a := newFile("a", 1, 0)
	b := newFile("b", 2, 1)
	c.Insert(a)
	c.Insert(b)

	assert.True(t, c.Steal(a))
	assert.Equal(t, 1, c.NumEntries())
	assert.False(t, c.Steal(a), "second steal of the same entry must fail")

	// A distinct entry with identical sort key must not be stolen by
	// value equality.
	b2 := newFile("b", 2, 2)
	assert.False(t, c.Steal(b2))
	assert.True(t, c.Steal(b))
}

func TestGetEntryPositional(t *testing.T) {
	c := New(entry.KindFile, entry.SortName, entry.SortNone)
	for i := 0; i < 1000; i++ {
		c.Insert(newFile(fmt.Sprintf("n%04d", i), 0, uint32(i)))
	}

	assert.Nil(t, c.GetEntry(-1))
	assert.Nil(t, c.GetEntry(1000))
	e := c.GetEntry(500)
	require.NotNil(t, e)
	assert.Equal(t, "n0500", e.Name)
}

func TestSplitAcrossSegments(t *testing.T) {
	c := New(entry.KindFile, entry.SortName, entry.SortNone)
	for i := 0; i < 2000; i++ {
		c.Insert(newFile(fmt.Sprintf("n%04d", i), 0, uint32(i)))
	}
	assert.Greater(t, len(c.segments), 1, "container should have split into multiple segments")
	assert.Equal(t, 2000, c.NumEntries())

	// Reconstituted join must still be fully ordered across segments.
	joined := c.Joined()
	for i := 1; i < len(joined); i++ {
		assert.LessOrEqual(t, entry.Compare(joined[i-1], joined[i], entry.SortName, entry.SortNone), 0)
	}
}

func TestJoinBuildsAggregateSortedByProperty(t *testing.T) {
	part1 := []*entry.Entry{newFile("z", 0, 0), newFile("a", 0, 1)}
	part2 := []*entry.Entry{newFile("m", 0, 2)}

	c := Join(entry.KindFile, entry.SortName, entry.SortNone, part1, part2)
	require.Equal(t, 3, c.NumEntries())
	joined := c.Joined()
	assert.Equal(t, []string{"a", "m", "z"}, []string{joined[0].Name, joined[1].Name, joined[2].Name})
}
