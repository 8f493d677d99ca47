package monitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fsearchd/fscore/clock"
	"github.com/fsearchd/fscore/internal/logger"
)

// maxWatchDirs caps the number of directories a single FSMonitor will
// register with the kernel's watch facility, so a very large tree
// can't exhaust inotify's per-user watch limit.
const maxWatchDirs = 8192

// debounceInterval coalesces bursts of raw fsnotify events (e.g. an
// editor's save-via-rename dance) into one notification per path.
const debounceInterval = 150 * time.Millisecond

// FSMonitor is the default Monitor, backed by fsnotify.
type FSMonitor struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	watched map[string]struct{}

	pendingMu sync.Mutex
	pending   map[string]Op

	overflowed atomic.Bool

	clk  clock.Clock
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ Monitor = (*FSMonitor)(nil)

// New returns an unstarted fsnotify-backed Monitor using the real
// system clock for debounce timing.
func New() *FSMonitor {
	return NewWithClock(clock.RealClock{})
}

// NewWithClock is New, with an injectable Clock so tests can drive the
// debounce loop deterministically instead of sleeping real time.
func NewWithClock(clk clock.Clock) *FSMonitor {
	return &FSMonitor{pending: make(map[string]Op), clk: clk}
}

func (m *FSMonitor) Start(ctx context.Context, root string, oneFileSystem bool) (<-chan RawEvent, error) {
	log := logger.Named("monitor")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.watcher = w
	m.watched = make(map[string]struct{})
	m.mu.Unlock()

	added := m.addTree(root)
	log.Info("watching started", "root", root, "watched_dirs", added)

	out := make(chan RawEvent, 256)
	m.stop = make(chan struct{})
	watchDone := make(chan struct{})

	m.wg.Add(2)
	go m.debounceLoop(out, watchDone)
	go func() {
		defer m.wg.Done()
		defer close(watchDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				m.recordEvent(ev)
				if ev.Op&fsnotify.Create != 0 {
					if fi, statErr := statIsDir(ev.Name); statErr == nil && fi {
						m.mu.Lock()
						n := len(m.watched)
						m.mu.Unlock()
						if n < maxWatchDirs {
							_ = w.Add(ev.Name)
							m.mu.Lock()
							m.watched[ev.Name] = struct{}{}
							m.mu.Unlock()
						}
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "error", err)
			}
		}
	}()

	return out, nil
}

// debounceLoop is the only sender on out, so it closes out itself after
// a final flush once the watch goroutine has exited.
func (m *FSMonitor) debounceLoop(out chan<- RawEvent, watchDone <-chan struct{}) {
	defer m.wg.Done()
	defer close(out)

	for {
		select {
		case <-watchDone:
			m.flush(out)
			return
		case <-m.clk.After(debounceInterval):
			m.flush(out)
		}
	}
}

func (m *FSMonitor) flush(out chan<- RawEvent) {
	m.pendingMu.Lock()
	if len(m.pending) == 0 {
		m.pendingMu.Unlock()
		return
	}
	batch := m.pending
	m.pending = make(map[string]Op)
	overflow := m.overflowed.Swap(false)
	m.pendingMu.Unlock()

	if overflow {
		// The caller (Index) should treat this as "unknown changes
		// somewhere under root" and fall back to a full rescan rather
		// than trusting the (incomplete) batch below.
		select {
		case out <- RawEvent{Path: "", Op: 0}:
		default:
		}
		return
	}

	for path, op := range batch {
		select {
		case out <- RawEvent{Path: path, Op: op}:
		default:
			// Consumer fell behind; drop and mark for full rescan next
			// time rather than block the watch goroutine.
			m.overflowed.Store(true)
		}
	}
}

func (m *FSMonitor) recordEvent(ev fsnotify.Event) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	const maxPending = 100000
	if len(m.pending) >= maxPending {
		m.overflowed.Store(true)
		m.pending = make(map[string]Op)
		return
	}
	m.pending[ev.Name] |= translateOp(ev.Op)
}

func translateOp(op fsnotify.Op) Op {
	var out Op
	if op&fsnotify.Create != 0 {
		out |= OpCreate
	}
	if op&fsnotify.Remove != 0 {
		out |= OpRemove
	}
	if op&fsnotify.Rename != 0 {
		out |= OpRename
	}
	if op&fsnotify.Write != 0 {
		out |= OpWrite
	}
	if op&fsnotify.Chmod != 0 {
		out |= OpChmod
	}
	return out
}

func (m *FSMonitor) addTree(root string) int {
	added := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		m.mu.Lock()
		full := len(m.watched) >= maxWatchDirs
		if !full {
			if addErr := m.watcher.Add(path); addErr == nil {
				m.watched[path] = struct{}{}
				added++
			}
		}
		m.mu.Unlock()

		if full {
			return filepath.SkipDir
		}
		return nil
	})
	return added
}

func statIsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func (m *FSMonitor) Stop() error {
	if m.stop != nil {
		close(m.stop)
	}
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
