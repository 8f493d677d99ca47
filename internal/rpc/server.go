package rpc

import (
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/fsearchd/fscore/internal/events"
	"github.com/fsearchd/fscore/internal/scheduler"
)

// ListenAndServe starts a gRPC server on a Unix domain socket at
// socketPath, mounts a Server wired to sched/bus, and blocks until the
// listener fails or the server is stopped. Any stale socket file left
// behind by a previous, uncleanly-terminated run is removed first.
func ListenAndServe(socketPath string, sched *scheduler.Scheduler, bus *events.Bus) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	RegisterServer(grpcServer, NewServer(sched, bus))
	return grpcServer.Serve(lis)
}
