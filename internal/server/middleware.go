// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pterm/pterm"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/pipeline"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID accepts a well-formed caller id or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || r == '.' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return false
		}
	}
	return true
}

// RequestIDFrom returns the id assigned by the request id middleware.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func accessLog(logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request", logger.Args(
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFrom(c),
		))
	}
}

// recovery turns a handler panic into the server failure envelope.
func recovery(logger *pterm.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("handler panic", logger.Args("request_id", RequestIDFrom(c), "panic", fmt.Sprint(recovered)))
		env := pipeline.Format(pipeline.Failure{Stage: qerrors.Server})
		c.AbortWithStatusJSON(http.StatusInternalServerError, env)
	})
}
