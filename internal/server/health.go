// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"querycraft/cli/internal/logging"
)

// ServiceName is the name reported by the gRPC health service besides the
// overall ("") status.
const ServiceName = "querycraft.v1.QueryService"

// DefaultHealthInterval is how often the health watcher pings the database.
const DefaultHealthInterval = 10 * time.Second

// NewGRPCServer returns a gRPC server with the health service registered. Both
// statuses start as NOT_SERVING until WatchHealth reports a successful ping.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// WatchHealth pings db every interval and mirrors the result into hs until ctx
// is done, then marks everything NOT_SERVING.
func WatchHealth(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration, logger *pterm.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	last := healthpb.HealthCheckResponse_UNKNOWN
	check := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if db != nil {
			pctx, cancel := context.WithTimeout(ctx, min(interval, 2*time.Second))
			err := db.Ping(pctx)
			cancel()
			if err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				if last != status {
					logger.Warn("database unreachable", logger.Args("error", logging.Mask(err.Error())))
				}
			}
		}
		if status != last {
			logger.Debug("health status changed", logger.Args("status", status.String()))
			last = status
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for check(); ; {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return nil
		case <-ticker.C:
			check()
		}
	}
}
