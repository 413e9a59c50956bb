//
//  Copyright © Manetu Inc. All rights reserved.
//

package serve

import (
	"context"
	"os"
	"os/signal"

	"github.com/manetu/auditinterceptor/cmd/mai/common"
	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/auditor"
	"github.com/manetu/auditinterceptor/pkg/options"
	"github.com/manetu/auditinterceptor/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("auditinterceptor")

const agent string = "serve"

// Execute runs the serve command, starting an audited gRPC server and,
// unless --metrics-port is 0, a metrics server.  It gracefully shuts down on
// interrupt signals.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := common.ApplyConfigFlag(cmd); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := auditor.New(options.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer a.Close()

	servers := []server.Server{}

	grpcServer, err := server.CreateGRPCServer(a, cmd.Int("port"))
	if err != nil {
		return err
	}
	servers = append(servers, grpcServer)

	if port := cmd.Int("metrics-port"); port != 0 {
		metricsServer, err := server.CreateMetricsServer(reg, port)
		if err != nil {
			return err
		}
		servers = append(servers, metricsServer)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info(agent, "shutdown", "Shutting down server...")

	for _, s := range servers {
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}

	logger.Info(agent, "shutdown", "Server exited gracefully.")
	return nil
}
