// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"querycraft/cli/internal/logging"
)

// Options configures Run.
type Options struct {
	// HTTPAddr is required. GRPCAddr may be empty to skip the health service.
	HTTPAddr string
	GRPCAddr string

	Handler        *gin.Engine
	DB             Pinger
	HealthInterval time.Duration
	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration
	// Jobs run alongside the servers and stop with them, e.g. a schema watcher.
	Jobs   []func(ctx context.Context) error
	Logger *pterm.Logger
}

// Run serves until ctx is done or a server or job fails, then shuts everything
// down. A clean shutdown returns nil.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	httpLn, err := net.Listen("tcp", opts.HTTPAddr)
	if err != nil {
		return err
	}
	var grpcLn net.Listener
	if opts.GRPCAddr != "" {
		if grpcLn, err = net.Listen("tcp", opts.GRPCAddr); err != nil {
			httpLn.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{Handler: opts.Handler, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		logger.Info("http server listening", logger.Args("addr", httpLn.Addr().String()))
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), opts.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	if grpcLn != nil {
		grpcSrv, hs := NewGRPCServer()
		g.Go(func() error {
			logger.Info("grpc health service listening", logger.Args("addr", grpcLn.Addr().String()))
			return grpcSrv.Serve(grpcLn)
		})
		g.Go(func() error {
			return WatchHealth(gctx, hs, opts.DB, opts.HealthInterval, logger)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	for _, job := range opts.Jobs {
		g.Go(func() error { return job(gctx) })
	}

	err = g.Wait()
	logger.Info("servers stopped")
	return err
}
