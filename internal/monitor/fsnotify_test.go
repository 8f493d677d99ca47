package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fscore/clock"
)

func TestFSMonitorDebouncesBurstsOfWrites(t *testing.T) {
	dir := t.TempDir()
	fake := &clock.FakeClock{WaitTime: time.Millisecond}

	m := NewWithClock(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := m.Start(ctx, dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "a.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	select {
	case ev, ok := <-out:
		require.True(t, ok)
		assert.Equal(t, path, ev.Path)
		assert.True(t, ev.Op.Has(OpCreate) || ev.Op.Has(OpWrite))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	require.NoError(t, m.Stop())
}

func TestOpHas(t *testing.T) {
	op := OpCreate | OpWrite
	assert.True(t, op.Has(OpCreate))
	assert.True(t, op.Has(OpWrite))
	assert.False(t, op.Has(OpRemove))
}
