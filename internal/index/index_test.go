package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/walker"
)

type fakeWalker struct {
	folders, files []*entry.Entry
	err            error
}

func (f *fakeWalker) Walk(ctx context.Context, root Include, excl walker.ExcludeManager, dbIndex uint16) ([]*entry.Entry, []*entry.Entry, error) {
	return f.folders, f.files, f.err
}

func newTree(dbIndex uint16) (folders, files []*entry.Entry) {
	root := &entry.Entry{Name: "home", Kind: entry.KindFolder, DBIndex: dbIndex}
	sub := &entry.Entry{Name: "docs", Kind: entry.KindFolder, DBIndex: dbIndex, Parent: root}
	root.Children = append(root.Children, sub)
	f1 := &entry.Entry{Name: "a.txt", Kind: entry.KindFile, DBIndex: dbIndex, Parent: sub, Size: 10}
	sub.Children = append(sub.Children, f1)
	return []*entry.Entry{root, sub}, []*entry.Entry{f1}
}

func TestScanReplacesPoolAndEmitsEvents(t *testing.T) {
	folders, files := newTree(3)
	w := &fakeWalker{folders: folders, files: files}
	ix := New(Include{Path: "/home", ID: 3}, 3, w, nil)

	done := make(chan []Event, 1)
	go func() {
		var got []Event
		for i := 0; i < 2; i++ {
			got = append(got, <-ix.Events())
		}
		done <- got
	}()

	require.NoError(t, ix.Scan(context.Background(), nil))
	got := <-done

	assert.Equal(t, ScanStarted, got[0].Kind)
	assert.Equal(t, ScanFinished, got[1].Kind)

	ix.Lock()
	defer ix.Unlock()
	assert.Len(t, ix.GetFolders(), 2)
	assert.Len(t, ix.GetFiles(), 1)
}
