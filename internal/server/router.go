// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package server exposes the query pipeline over HTTP (gin) and reports
// liveness over the standard gRPC health protocol.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/history"
	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/pipeline"
	"querycraft/cli/internal/schema"
)

// DefaultMaxBodyBytes bounds POST /api/query bodies.
const DefaultMaxBodyBytes = 64 << 10

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HistoryLister reads recorded runs. *history.Store implements it.
type HistoryLister interface {
	List(limit int) ([]history.Entry, error)
}

// Deps are the collaborators the HTTP handlers use. Pipeline and Schema are
// required; History may be nil to disable /api/history.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Schema   schema.Provider
	DB       Pinger
	History  HistoryLister
	Logger   *pterm.Logger
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins  []string
	MaxBodyBytes int64
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine serving the API.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(requestID(), accessLog(d.Logger), recovery(d.Logger), corsMiddleware(d.CORSOrigins))

	r.GET("/health", h.health)
	api := r.Group("/api")
	api.POST("/query", h.query)
	api.GET("/schema", h.schema)
	if d.History != nil {
		api.GET("/history", h.history)
	}
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// query handles POST /api/query. The status code follows the envelope's stage.
func (h *handlers) query(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.Request, Message: "Request body is too large."})
			return
		}
		h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.Request, Message: "Invalid JSON payload.", Err: err})
		return
	}

	req, err := pipeline.ParseRequest(body, h.Pipeline.Limits())
	if err != nil {
		h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.KindOf(err), Message: qerrors.MessageOf(err), Err: err})
		return
	}
	req.ID = RequestIDFrom(c)

	env := h.Pipeline.Run(c.Request.Context(), req)
	c.JSON(env.HTTPStatus(), env)
}

func (h *handlers) writeEnvelope(c *gin.Context, o pipeline.Outcome) {
	env := pipeline.Format(o)
	c.JSON(env.HTTPStatus(), env)
}

func (h *handlers) health(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "not_configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		h.Logger.Warn("health check failed", h.Logger.Args("error", logging.Mask(err.Error())))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

func (h *handlers) schema(c *gin.Context) {
	desc, err := h.Schema.Describe(c.Request.Context())
	if err != nil {
		h.Logger.Error("describe schema", h.Logger.Args("request_id", RequestIDFrom(c), "error", logging.Mask(err.Error())))
		h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.Server, Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pipeline.StatusOK, "schema": desc})
}

func (h *handlers) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.Request, Message: "`limit` must be a positive integer."})
			return
		}
		limit = n
	}

	entries, err := h.History.List(limit)
	if err != nil {
		h.Logger.Error("list history", h.Logger.Args("request_id", RequestIDFrom(c), "error", err.Error()))
		h.writeEnvelope(c, pipeline.Failure{Stage: qerrors.Server, Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pipeline.StatusOK, "entries": entries})
}
