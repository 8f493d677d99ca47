// Package events implements the Event Bus of §4.7: a small set of
// typed lifecycle events, delivered on the caller's event context
// rather than the worker thread that produced them, so that observers
// (typically a UI thread) are never re-entered from inside the worker
// loop (§9 "Suspension / async").
package events

import "sync"

// Kind enumerates the Event Bus's event kinds, exactly as listed in
// §4.7.
type Kind int

const (
	LoadStarted Kind = iota
	LoadFinished
	SaveStarted
	SaveFinished
	ScanStarted
	ScanFinished
	SearchStarted
	SearchFinished
	SortStarted
	SortFinished
	SelectionChanged
	DatabaseChanged
	ItemInfoReady
)

func (k Kind) String() string {
	switch k {
	case LoadStarted:
		return "LOAD_STARTED"
	case LoadFinished:
		return "LOAD_FINISHED"
	case SaveStarted:
		return "SAVE_STARTED"
	case SaveFinished:
		return "SAVE_FINISHED"
	case ScanStarted:
		return "SCAN_STARTED"
	case ScanFinished:
		return "SCAN_FINISHED"
	case SearchStarted:
		return "SEARCH_STARTED"
	case SearchFinished:
		return "SEARCH_FINISHED"
	case SortStarted:
		return "SORT_STARTED"
	case SortFinished:
		return "SORT_FINISHED"
	case SelectionChanged:
		return "SELECTION_CHANGED"
	case DatabaseChanged:
		return "DATABASE_CHANGED"
	case ItemInfoReady:
		return "ITEM_INFO_READY"
	default:
		return "UNKNOWN"
	}
}

// DatabaseInfo is the snapshot of Store-level counts carried by
// LOAD_FINISHED, SCAN_FINISHED and DATABASE_CHANGED.
type DatabaseInfo struct {
	NumFiles              uint32
	NumFolders            uint32
	NumFastSortProperties int
	IsSorted              bool
}

// SearchInfo is the snapshot of a Search View's result shape carried by
// SEARCH_FINISHED, SORT_FINISHED and SELECTION_CHANGED.
type SearchInfo struct {
	ViewID           string
	NumFiles         uint32
	NumFolders       uint32
	NumSelectedFiles uint32
	NumSelectedDirs  uint32
}

// EntryInfo is the attribute snapshot carried by ITEM_INFO_READY; which
// fields are populated is controlled by the request's flag mask.
type EntryInfo struct {
	Name      string
	Path      string
	Size      uint64
	MTime     uint64
	IsFolder  bool
	Extension string
}

// Event is a single emitted occurrence. Only the fields relevant to
// Kind are populated; the rest are zero values.
type Event struct {
	Kind     Kind
	ViewID   string
	Database *DatabaseInfo
	Search   *SearchInfo
	Entry    *EntryInfo
}

// Handler receives emitted events on the Bus's dispatch goroutine — the
// "caller's event context" — never on the emitter's own goroutine.
type Handler func(Event)

// Bus decouples producers (the Work Scheduler) from observers: Emit
// enqueues and returns immediately; a single dispatch goroutine drains
// the queue and invokes every subscribed Handler in emit order, which
// gives "within one work item, observer events ... are delivered in
// emit order" (§5) for free, since one Bus serialises all delivery.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewBus starts the dispatch goroutine with the given queue depth.
func NewBus(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	b := &Bus{
		queue: make(chan Event, queueDepth),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.queue {
		b.mu.RLock()
		handlers := append([]Handler(nil), b.handlers...)
		b.mu.RUnlock()

		for _, h := range handlers {
			if h == nil {
				continue
			}
			h(ev)
		}
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
	id := len(b.handlers) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if id < len(b.handlers) {
			b.handlers[id] = nil
		}
	}
}

// Emit enqueues ev for delivery. It blocks only if the queue is full,
// which would indicate observers falling far behind; callers on the
// worker thread should size queueDepth generously to avoid this
// becoming a suspension point (§5 enumerates the worker's suspension
// points and this is deliberately not one of them under normal load).
func (b *Bus) Emit(ev Event) {
	b.queue <- ev
}

// Close stops accepting new events (an Emit after Close panics), then
// waits until every already-queued event has been delivered and the
// dispatch goroutine has exited.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.queue)
	})
	<-b.done
}
