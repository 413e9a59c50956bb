//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package server hosts an audited gRPC service and the HTTP endpoint that
// exports its metrics.
//
// # Usage
//
//	a, _ := auditor.New(options.WithMetrics(reg))
//	srv, _ := server.CreateGRPCServer(a, 9000, func(s grpc.ServiceRegistrar) {
//	    librarypb.RegisterLibraryServer(s, impl)
//	})
//	defer srv.Stop(ctx)
package server

import (
	"context"

	"github.com/manetu/auditinterceptor/internal/logging"
)

var logger = logging.GetLogger("auditinterceptor.server")

const agent = "server"

// Server is a network service that can be gracefully stopped.
//
// Implementations must ensure that [Stop] completes any in-flight requests
// before returning.
type Server interface {
	// Stop gracefully shuts down the server, waiting for active requests
	// to complete or until the context is cancelled.
	Stop(context.Context) error
}
