//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes Prometheus metrics on /metrics and a liveness probe on /healthz
type MetricsServer struct {
	echo *echo.Echo
}

func newMetricsServer(g prometheus.Gatherer) *MetricsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return &MetricsServer{echo: e}
}

// CreateMetricsServer starts serving the metrics gathered by g on port
func CreateMetricsServer(g prometheus.Gatherer, port int) (*MetricsServer, error) {
	s := newMetricsServer(g)

	// Start server in goroutine since e.Start() blocks
	go func() {
		logger.Infof(agent, "metrics.start", "Starting metrics server on :%d", port)
		if err := s.echo.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
			logger.Errorf(agent, "metrics.start", "Failed to serve metrics: %v", err)
		}
	}()

	return s, nil
}

// Handler returns the HTTP handler of the server
func (s *MetricsServer) Handler() http.Handler {
	return s.echo
}

// Stop gracefully stops the MetricsServer by shutting down the Echo HTTP server.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
