// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/server"
)

var (
	serveHTTPAddr string
	serveGRPCAddr string
)

// serveCmd runs the HTTP API and, when configured, the gRPC health service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `The serve command exposes the pipeline over HTTP:

  POST /api/query     {"question": "...", "language": "en", "max_rows": 50}
  GET  /api/schema    schema description given to the SQL generator
  GET  /api/history   recently answered questions (?limit=n)
  GET  /health        database reachability

With --grpc-addr a grpc.health.v1 service reports SERVING while the database
answers pings. The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("http-addr") {
			cfg.Server.HTTPAddr = serveHTTPAddr
		}
		if cmd.Flags().Changed("grpc-addr") {
			cfg.Server.GRPCAddr = serveGRPCAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{history: true, lazyDB: true})
		if err != nil {
			logger.Error("startup failed", logger.Args("error", logging.Mask(err.Error())))
			return presented(err)
		}
		defer a.Close()

		if err := a.db.Ping(ctx); err != nil {
			// Keep serving: /health and the gRPC health service report the outage.
			logger.Warn("database not reachable at startup", logger.Args("error", logging.Mask(err.Error())))
		}

		gin.SetMode(gin.ReleaseMode)
		deps := server.Deps{
			Pipeline: a.pipeline,
			Schema:   a.schema,
			DB:       a.db,
			Logger:   logger,
		}
		if a.history != nil {
			deps.History = a.history
		}
		if !(len(cfg.Server.AllowOrigins) == 1 && cfg.Server.AllowOrigins[0] == "*") {
			deps.CORSOrigins = cfg.Server.AllowOrigins
		}

		logger.Info("starting querycraft", logger.Args("version", Version, "dialect", string(a.db.Dialect())))
		return server.Run(ctx, server.Options{
			HTTPAddr: cfg.Server.HTTPAddr,
			GRPCAddr: cfg.Server.GRPCAddr,
			Handler:  server.NewRouter(deps),
			DB:       a.db,
			Jobs:     a.jobs,
			Logger:   logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP listen address (default from config, :8000)")
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc-addr", "", "gRPC health service listen address (disabled when empty)")
}
