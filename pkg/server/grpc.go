//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"context"
	"fmt"
	"net"

	"github.com/manetu/auditinterceptor/pkg/auditor"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer is a gRPC server with the audit interceptors installed.  It
// always serves the standard health and reflection services.
type GRPCServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	done       chan struct{}
}

// CreateGRPCServer starts serving on port, which may be 0 to pick a free
// one.  Each register function adds application services before serving starts.
func CreateGRPCServer(a *auditor.Auditor, port int, register ...func(grpc.ServiceRegistrar)) (*GRPCServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrap(err, "failed to start gRPC server")
	}

	s := &GRPCServer{
		grpcServer: grpc.NewServer(a.ServerOptions()...),
		health:     health.NewServer(),
		listener:   listener,
		done:       make(chan struct{}),
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	for _, fn := range register {
		fn(s.grpcServer)
	}

	go s.serve()

	return s, nil
}

func (s *GRPCServer) serve() {
	defer func() {
		close(s.done)
		logger.SysInfof("Stopped gRPC server")
	}()

	logger.SysInfof("Starting gRPC server at %s", s.listener.Addr())
	if err := s.grpcServer.Serve(s.listener); err != nil {
		logger.Errorf(agent, "grpc.serve", "Failed to serve gRPC server: %v", err)
	}
}

// Port returns the TCP port the server is bound to
func (s *GRPCServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop marks every service as not serving and drains in-flight calls.  Calls
// still running when ctx is done are cancelled.
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	<-s.done

	return nil
}
