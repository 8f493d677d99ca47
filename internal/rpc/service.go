package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/query"
	"github.com/fsearchd/fscore/internal/scheduler"
	"github.com/fsearchd/fscore/internal/search"
)

// SearchServer is the hand-written equivalent of a protoc-generated
// server interface: one method per RPC, matching serviceDesc below.
type SearchServer interface {
	Search(context.Context, *SearchRequest) (*SearchReply, error)
	Sort(context.Context, *SortRequest) (*SortReply, error)
	ModifySelection(context.Context, *ModifySelectionRequest) (*ModifySelectionReply, error)
	GetItemInfo(context.Context, *GetItemInfoRequest) (*ItemInfoReply, error)
	DatabaseInfo(context.Context, *DatabaseInfoRequest) (*DatabaseInfoReply, error)
}

// Server adapts the Work Scheduler to SearchServer: every RPC enqueues
// the matching work item, waits on the item's Result channel, and then
// takes its reply from the matching Event Bus completion event, since
// the scheduler's Result only reports success/failure, not the
// resulting view shape.
type Server struct {
	sched *scheduler.Scheduler
	bus   *events.Bus
}

// NewServer builds a Server bound to sched's queue and bus's event
// stream.
func NewServer(sched *scheduler.Scheduler, bus *events.Bus) *Server {
	return &Server{sched: sched, bus: bus}
}

// RegisterServer mounts s onto grpcServer under the json codec.
func RegisterServer(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}

func (s *Server) Search(ctx context.Context, req *SearchRequest) (*SearchReply, error) {
	waitEv, waitErr := s.watchAndEnqueue(ctx, events.SearchFinished, req.ViewID, scheduler.Item{
		Kind:   scheduler.Search,
		Ctx:    ctx,
		ViewID: req.ViewID,
		Query: query.Query{
			Pattern:       req.Pattern,
			Mode:          query.Mode(req.Mode),
			CaseSensitive: req.CaseSensitive,
			MatchPath:     req.MatchPath,
		},
		SortOrder:          entry.SortProperty(req.SortOrder),
		SecondarySortOrder: entry.SortProperty(req.SecondarySortOrder),
		SortType:           search.SortType(req.SortType),
	})
	if waitErr != nil {
		return nil, waitErr
	}
	info := waitEv.Search
	return &SearchReply{ViewID: info.ViewID, NumFiles: info.NumFiles, NumFolders: info.NumFolders}, nil
}

func (s *Server) Sort(ctx context.Context, req *SortRequest) (*SortReply, error) {
	ev, err := s.watchAndEnqueue(ctx, events.SortFinished, req.ViewID, scheduler.Item{
		Kind:               scheduler.Sort,
		Ctx:                ctx,
		ViewID:             req.ViewID,
		SortOrder:          entry.SortProperty(req.SortOrder),
		SecondarySortOrder: entry.SortProperty(req.SecondarySortOrder),
		SortType:           search.SortType(req.SortType),
	})
	if err != nil {
		return nil, err
	}
	info := ev.Search
	return &SortReply{ViewID: info.ViewID, NumFiles: info.NumFiles, NumFolders: info.NumFolders}, nil
}

func (s *Server) ModifySelection(ctx context.Context, req *ModifySelectionRequest) (*ModifySelectionReply, error) {
	ev, err := s.watchAndEnqueue(ctx, events.SelectionChanged, req.ViewID, scheduler.Item{
		Kind:          scheduler.ModifySelection,
		Ctx:           ctx,
		ViewID:        req.ViewID,
		SelectionOp:   search.SelectionOp(req.Op),
		SelectionIdx:  int(req.Idx),
		SelectionIdx2: int(req.Idx2),
	})
	if err != nil {
		return nil, err
	}
	info := ev.Search
	return &ModifySelectionReply{ViewID: info.ViewID, NumSelectedFiles: info.NumSelectedFiles, NumSelectedDirs: info.NumSelectedDirs}, nil
}

func (s *Server) GetItemInfo(ctx context.Context, req *GetItemInfoRequest) (*ItemInfoReply, error) {
	ev, err := s.watchAndEnqueue(ctx, events.ItemInfoReady, req.ViewID, scheduler.Item{
		Kind:      scheduler.GetItemInfo,
		Ctx:       ctx,
		ViewID:    req.ViewID,
		ItemIdx:   int(req.ItemIdx),
		ItemFlags: entry.Flag(req.ItemFlags),
	})
	if err != nil {
		return nil, err
	}
	info := ev.Entry
	return &ItemInfoReply{
		Name:      info.Name,
		Path:      info.Path,
		Size:      info.Size,
		MTime:     info.MTime,
		IsFolder:  info.IsFolder,
		Extension: info.Extension,
	}, nil
}

// DatabaseInfo is a non-blocking inquiry; it never enqueues a work
// item, matching §4.6's try-get paths that never suspend behind the
// worker's current item.
func (s *Server) DatabaseInfo(ctx context.Context, _ *DatabaseInfoRequest) (*DatabaseInfoReply, error) {
	info, err := s.sched.TryGetDatabaseInfo()
	if err != nil {
		return nil, err
	}
	return &DatabaseInfoReply{
		NumFiles:              info.NumFiles,
		NumFolders:            info.NumFolders,
		NumFastSortProperties: int32(info.NumFastSortProperties),
		IsSorted:              info.IsSorted,
	}, nil
}

// watchAndEnqueue subscribes for kind/viewID before enqueueing item, so
// a fast worker can never finish and emit before the subscription
// exists.
func (s *Server) watchAndEnqueue(ctx context.Context, kind events.Kind, viewID string, item scheduler.Item) (events.Event, error) {
	result := make(chan events.Event, 1)
	unsubscribe := s.bus.Subscribe(func(ev events.Event) {
		if ev.Kind == kind && ev.ViewID == viewID {
			select {
			case result <- ev:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan scheduler.Result, 1)
	item.Done = done
	s.sched.Enqueue(item)

	if res := <-done; res.Err != nil {
		return events.Event{}, res.Err
	}

	select {
	case ev := <-result:
		return ev, nil
	case <-ctx.Done():
		return events.Event{}, ctx.Err()
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "fsearchd.rpc.Search",
	HandlerType: (*SearchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: searchHandler},
		{MethodName: "Sort", Handler: sortHandler},
		{MethodName: "ModifySelection", Handler: modifySelectionHandler},
		{MethodName: "GetItemInfo", Handler: getItemInfoHandler},
		{MethodName: "DatabaseInfo", Handler: databaseInfoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/service.go",
}

func searchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fsearchd.rpc.Search/Search"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServer).Search(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func sortHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServer).Sort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fsearchd.rpc.Search/Sort"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServer).Sort(ctx, req.(*SortRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func modifySelectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ModifySelectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServer).ModifySelection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fsearchd.rpc.Search/ModifySelection"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServer).ModifySelection(ctx, req.(*ModifySelectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getItemInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetItemInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServer).GetItemInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fsearchd.rpc.Search/GetItemInfo"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServer).GetItemInfo(ctx, req.(*GetItemInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func databaseInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DatabaseInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServer).DatabaseInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fsearchd.rpc.Search/DatabaseInfo"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServer).DatabaseInfo(ctx, req.(*DatabaseInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _ SearchServer = (*Server)(nil)
