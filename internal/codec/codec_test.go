package codec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/ferrors"
)

func buildSnapshot() *Snapshot {
	root := &entry.Entry{Name: "home", Kind: entry.KindFolder, DBIndex: 1}
	sub := &entry.Entry{Name: "docs", Kind: entry.KindFolder, DBIndex: 1, Parent: root}
	root.Idx, sub.Idx = 0, 1

	f1 := &entry.Entry{Name: "a.txt", Kind: entry.KindFile, Parent: sub, Size: 10, MTime: 100}
	f2 := &entry.Entry{Name: "ab.txt", Kind: entry.KindFile, Parent: sub, Size: 20, MTime: 200}

	return &Snapshot{
		Flags:   entry.FlagSize | entry.FlagMTime,
		Folders: []*entry.Entry{root, sub},
		Files:   []*entry.Entry{f1, f2},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")

	snap := buildSnapshot()
	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Len(t, loaded.Folders, 2)
	require.Len(t, loaded.Files, 2)

	assert.Equal(t, "home", loaded.Folders[0].Name)
	assert.Nil(t, loaded.Folders[0].Parent)
	assert.Equal(t, "docs", loaded.Folders[1].Name)
	assert.Same(t, loaded.Folders[0], loaded.Folders[1].Parent)

	assert.Equal(t, "a.txt", loaded.Files[0].Name)
	assert.Equal(t, uint64(10), loaded.Files[0].Size)
	assert.Equal(t, uint64(100), loaded.Files[0].MTime)
	assert.Equal(t, "ab.txt", loaded.Files[1].Name)
	assert.Equal(t, uint64(20), loaded.Files[1].Size)
	assert.Same(t, loaded.Folders[1], loaded.Files[1].Parent)
}

// TestSaveLoadRoundTripFileParentNameOrderSkew covers a folder whose
// scan-assigned Idx differs from its NAME-order slot: root "z" (scan
// Idx 0) has child "a" (scan Idx 1), so NAME order is [a, z] while
// scan order is [z, a]. A file under "z" must still resolve to "z"
// after a round trip, not to whatever folder happens to sit at
// NAME-order slot 0.
func TestSaveLoadRoundTripFileParentNameOrderSkew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")

	z := &entry.Entry{Name: "z", Kind: entry.KindFolder, Idx: 0}
	a := &entry.Entry{Name: "a", Kind: entry.KindFolder, Parent: z, Idx: 1}
	f := &entry.Entry{Name: "f.txt", Kind: entry.KindFile, Parent: z}

	snap := &Snapshot{
		Folders: []*entry.Entry{a, z}, // NAME order: "a" before "z"
		Files:   []*entry.Entry{f},
	}
	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Len(t, loaded.Folders, 2)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, "a", loaded.Folders[0].Name)
	assert.Equal(t, "z", loaded.Folders[1].Name)
	assert.Same(t, loaded.Folders[1], loaded.Files[0].Parent)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.db")
	require.NoError(t, os.WriteFile(path, []byte("NOPEjunkjunkjunk"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	var ce *ferrors.CodecError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ferrors.CodecCauseMagicMismatch, ce.Cause)
	assert.True(t, errors.Is(err, ferrors.ErrFailed))
}

func TestLoadRejectsFutureMinorVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "future.db")

	snap := buildSnapshot()
	require.NoError(t, Save(path, snap))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Corrupt just the minor_ver byte (offset 5: magic(4)+major(1)).
	raw[5] = 255
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Load(path)
	require.Error(t, err)

	var ce *ferrors.CodecError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ferrors.CodecCauseVersionMismatch, ce.Cause)
}
