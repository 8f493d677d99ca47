// Package scheduler implements the Work Scheduler of §4.6: one
// dedicated worker goroutine draining a single work queue, dispatching
// each item to its handler, and emitting the corresponding lifecycle
// events. Grounded on the teacher's common.Queue[T] for the underlying
// queue and on fs/garbage_collect.go's single-goroutine periodic-job
// shape for the worker loop itself.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsearchd/fscore/common"
	"github.com/fsearchd/fscore/internal/codec"
	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/ferrors"
	"github.com/fsearchd/fscore/internal/logger"
	"github.com/fsearchd/fscore/internal/metrics"
	"github.com/fsearchd/fscore/internal/monitor"
	"github.com/fsearchd/fscore/internal/query"
	"github.com/fsearchd/fscore/internal/search"
	"github.com/fsearchd/fscore/internal/store"
	"github.com/fsearchd/fscore/internal/walker"
)

// Kind enumerates the work items §4.6 names.
type Kind int

const (
	Quit Kind = iota
	LoadFromFile
	SaveToFile
	Scan
	Rescan
	Search
	Sort
	ModifySelection
	GetItemInfo
)

// Item is one request enqueued onto the Scheduler.
type Item struct {
	Kind Kind
	Ctx  context.Context

	// Scan / Rescan
	IncludeMgr store.IncludeManager
	ExcludeMgr walker.ExcludeManager
	Flags      entry.Flag

	// Load / Save
	FilePath string

	// Search / Sort / ModifySelection / GetItemInfo
	ViewID             string
	Query              query.Query
	SortOrder          entry.SortProperty
	SecondarySortOrder entry.SortProperty
	SortType           search.SortType
	SelectionOp        search.SelectionOp
	SelectionIdx       int
	SelectionIdx2      int
	ItemIdx            int
	ItemFlags          entry.Flag

	// Done, if non-nil, receives the handler's result. The Scheduler
	// never blocks sending on it beyond one buffered slot.
	Done chan Result
}

// Result carries a work item's outcome back to its caller and/or the
// event bus.
type Result struct {
	Err error
}

// Scheduler owns the one work queue and its dedicated worker.
type Scheduler struct {
	mu    sync.Mutex
	queue common.Queue[Item]
	cond  *sync.Cond

	bus     *events.Bus
	metrics metrics.Handle

	walker  walker.Walker
	matcher query.Matcher

	store    *store.Store
	registry *search.Registry
	storeMu  sync.RWMutex // guards store/registry swap, distinct from queue mu
	scanning atomic.Bool  // true while handleScan's heavy phase runs, for try_get BUSY (§8 scenario 6)
	wg       sync.WaitGroup

	flags        entry.Flag
	snapshotPath string
}

// Config supplies the Scheduler's fixed collaborators.
type Config struct {
	Bus          *events.Bus
	Metrics      metrics.Handle
	Walker       walker.Walker
	Matcher      query.Matcher
	Flags        entry.Flag
	SnapshotPath string
}

// New builds a Scheduler and starts its worker goroutine.
func New(cfg Config) *Scheduler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Matcher == nil {
		cfg.Matcher = query.DefaultMatcher{}
	}

	s := &Scheduler{
		queue:        common.NewLinkedListQueue[Item](),
		bus:          cfg.Bus,
		metrics:      cfg.Metrics,
		walker:       cfg.Walker,
		matcher:      cfg.Matcher,
		flags:        cfg.Flags,
		snapshotPath: cfg.SnapshotPath,
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue adds item to the tail of the work queue. Items execute
// strictly in enqueue order (§5).
func (s *Scheduler) Enqueue(item Item) {
	s.mu.Lock()
	s.queue.Push(item)
	s.cond.Signal()
	s.mu.Unlock()
}

// Wait blocks until the worker goroutine exits (after a Quit item has
// been processed).
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run() {
	defer s.wg.Done()
	log := logger.Named("scheduler")

	for {
		item := s.dequeue()

		start := time.Now()
		result := s.dispatch(item)
		s.metrics.WorkItemLatency(context.Background(), kindName(item.Kind), time.Since(start))
		s.metrics.WorkItemCount(context.Background(), kindName(item.Kind), outcomeName(result.Err))

		if result.Err != nil {
			log.Warn("work item failed", "kind", kindName(item.Kind), "error", result.Err)
		}

		if item.Done != nil {
			select {
			case item.Done <- result:
			default:
			}
		}

		if item.Kind == Quit {
			return
		}
	}
}

// dequeue blocks (the worker thread's one suspension point on the
// queue itself, per §5) until an item is available.
func (s *Scheduler) dequeue() Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.IsEmpty() {
		s.cond.Wait()
	}
	return s.queue.Pop()
}

func (s *Scheduler) dispatch(item Item) Result {
	switch item.Kind {
	case Quit:
		return Result{}
	case Scan:
		return Result{Err: s.handleScan(item, false)}
	case Rescan:
		return Result{Err: s.handleScan(item, true)}
	case LoadFromFile:
		return Result{Err: s.handleLoad(item)}
	case SaveToFile:
		return Result{Err: s.handleSave(item)}
	case Search:
		return Result{Err: s.handleSearch(item)}
	case Sort:
		return Result{Err: s.handleSort(item)}
	case ModifySelection:
		return Result{Err: s.handleModifySelection(item)}
	case GetItemInfo:
		return Result{Err: s.handleGetItemInfo(item)}
	default:
		return Result{Err: ferrors.ErrFailed}
	}
}

func kindName(k Kind) string {
	switch k {
	case Quit:
		return "QUIT"
	case LoadFromFile:
		return "LOAD_FROM_FILE"
	case SaveToFile:
		return "SAVE_TO_FILE"
	case Scan:
		return "SCAN"
	case Rescan:
		return "RESCAN"
	case Search:
		return "SEARCH"
	case Sort:
		return "SORT"
	case ModifySelection:
		return "MODIFY_SELECTION"
	case GetItemInfo:
		return "GET_ITEM_INFO"
	default:
		return "UNKNOWN"
	}
}

func outcomeName(err error) string {
	if err == nil {
		return "ok"
	}
	return "failed"
}

// currentStore and currentRegistry provide the try-get-able snapshot
// of the Scheduler's swappable Store/Registry pair.
func (s *Scheduler) currentStore() (*store.Store, *search.Registry) {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	return s.store, s.registry
}

func (s *Scheduler) swapStore(st *store.Store, reg *search.Registry) {
	s.storeMu.Lock()
	old := s.store
	s.store = st
	s.registry = reg
	s.storeMu.Unlock()

	if old != nil {
		old.Release()
	}
}

func newMonitorFactory() func() monitor.Monitor {
	return func() monitor.Monitor { return monitor.New() }
}
