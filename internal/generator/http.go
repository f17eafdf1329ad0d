// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/logging"
)

// HTTPConfig configures an OpenAI-compatible chat completions backend.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	Model   string
	APIKey  string
	// Timeout bounds one attempt; the caller's context bounds the whole call.
	Timeout time.Duration
	// MaxRetries is how many times a 429 or 503 response is retried.
	MaxRetries int
	// Client overrides the HTTP client; used by tests.
	Client *http.Client
}

// HTTP implements Generator over POST {base}/chat/completions.
type HTTP struct {
	// baseURL is the API root without a trailing slash
	baseURL string
	model   string
	apiKey  string
	retries int
	// backoff is the delay before the first retry; it doubles per attempt
	backoff time.Duration
	client  *http.Client
	logger  *pterm.Logger
}

// NewHTTP creates an HTTP generator.
func NewHTTP(cfg HTTPConfig, logger *pterm.Logger) *HTTP {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTP{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		retries: max(cfg.MaxRetries, 0),
		backoff: 500 * time.Millisecond,
		client:  client,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate asks the model for SQL answering question. The raw completion is
// returned; use ExtractSQL to strip formatting.
func (h *HTTP) Generate(ctx context.Context, question, language, schema string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: h.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildPrompt(language, schema)},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", qerrors.Wrap(qerrors.Generation, "SQL generation request failed.", err)
	}

	for attempt := 0; ; attempt++ {
		out, retryAfter, err := h.do(ctx, body)
		if err == nil {
			return out, nil
		}
		if retryAfter < 0 || attempt >= h.retries {
			return "", err
		}

		delay := h.backoff * time.Duration(1<<attempt)
		if retryAfter > delay {
			delay = retryAfter
		}
		h.logger.Debug("retrying SQL generation", h.logger.Args("attempt", attempt+1, "delay", delay.String()))
		select {
		case <-ctx.Done():
			return "", transportError(ctx.Err())
		case <-time.After(delay):
		}
	}
}

// do performs one attempt. retryAfter is negative when the failure must not be
// retried, otherwise the delay the server asked for (zero if none).
func (h *HTTP) do(ctx context.Context, body []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", -1, qerrors.Wrap(qerrors.Generation, "SQL generation request failed.", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("generation request failed", h.logger.Args("error", logging.Mask(err.Error())))
		return "", -1, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", -1, transportError(err)
	}
	h.logger.Debug("generation response", h.logger.Args(
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	))

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		detail := ""
		if decodeErr == nil && parsed.Error != nil {
			detail = parsed.Error.Message
		}
		retryAfter := time.Duration(-1)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return "", retryAfter, statusError(resp.StatusCode, logging.Mask(detail))
	}

	if decodeErr != nil {
		return "", -1, qerrors.Wrap(qerrors.Generation, "The SQL generation service returned an unreadable response.", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return "", -1, qerrors.Wrap(qerrors.Generation, "The SQL generator returned an empty response.",
			fmt.Errorf("%w: no choices", ErrEmptyCompletion))
	}
	return parsed.Choices[0].Message.Content, 0, nil
}

// parseRetryAfter reads a Retry-After header given in seconds, capped at 30s.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, 30*time.Second)
}
