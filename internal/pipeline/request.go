// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	qerrors "querycraft/cli/internal/errors"
)

// Limits bounds max_rows. Values above MaxRowsCap are clamped, never trusted.
type Limits struct {
	DefaultMaxRows int
	MaxRowsCap     int
}

// DefaultLimits matches the built-in configuration.
var DefaultLimits = Limits{DefaultMaxRows: 200, MaxRowsCap: 1000}

// Clamp returns n bounded to [1, MaxRowsCap], or the default for n == 0.
func (l Limits) Clamp(n int) int {
	capRows := l.MaxRowsCap
	if capRows <= 0 {
		capRows = DefaultLimits.MaxRowsCap
	}
	if n == 0 {
		n = l.DefaultMaxRows
		if n <= 0 {
			n = DefaultLimits.DefaultMaxRows
		}
	}
	return min(max(n, 1), capRows)
}

// Request is a validated query request.
type Request struct {
	// ID correlates log lines and history entries; generated when empty.
	ID       string
	Question string
	// Language is a canonical BCP 47 tag.
	Language string
	// MaxRows is already clamped to the server cap.
	MaxRows int
}

const maxLanguageLen = 10

func requestError(msg string) error { return qerrors.New(qerrors.Request, msg) }

// NewRequest validates CLI-style input. A nil maxRows selects the default.
func NewRequest(question, lang string, maxRows *int, limits Limits) (Request, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return Request{}, requestError("`question` is required.")
	}
	tag, err := normalizeLanguage(lang)
	if err != nil {
		return Request{}, err
	}
	rows := limits.Clamp(0)
	if maxRows != nil {
		if *maxRows <= 0 {
			return Request{}, requestError("`max_rows` must be greater than zero.")
		}
		rows = limits.Clamp(*maxRows)
	}
	return Request{Question: q, Language: tag, MaxRows: rows}, nil
}

func normalizeLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en", nil
	}
	if len(lang) > maxLanguageLen {
		return "", requestError("`language` value is too long.")
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", requestError("`language` must be a valid language tag.")
	}
	return tag.String(), nil
}

// ParseRequest decodes and validates a JSON request body:
//
//	{"question": "...", "language": "en", "max_rows": 50}
//
// Every failure is an errors.Request error with a caller-facing message.
func ParseRequest(body []byte, limits Limits) (Request, error) {
	payload := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		var raw any
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil || dec.More() {
			return Request{}, requestError("Invalid JSON payload.")
		}
		if _, ok := raw.(map[string]any); !ok {
			return Request{}, requestError("JSON payload must be an object.")
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return Request{}, requestError("Invalid JSON payload.")
		}
	}

	question, present, ok := stringField(payload, "question")
	if !present {
		return Request{}, requestError("`question` is required.")
	}
	if !ok {
		return Request{}, requestError("`question` must be a string.")
	}

	lang, _, ok := stringField(payload, "language")
	if !ok {
		return Request{}, requestError("`language` must be a string.")
	}

	var maxRows *int
	if raw, found := payload["max_rows"]; found && !isNull(raw) {
		n, ok := integerValue(raw)
		if !ok {
			return Request{}, requestError("`max_rows` must be an integer.")
		}
		maxRows = &n
	}

	return NewRequest(question, lang, maxRows, limits)
}

// stringField reports whether key is present and non-null, and whether its
// value is a string.
func stringField(payload map[string]json.RawMessage, key string) (value string, present, ok bool) {
	raw, found := payload[key]
	if !found || isNull(raw) {
		return "", false, true
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, false
	}
	return value, true, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// integerValue accepts a JSON integer, a float with no fraction, or a string
// holding an integer.
func integerValue(raw json.RawMessage) (int, bool) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if n, err := num.Int64(); err == nil {
			return clampInt(n), true
		}
		f, err := num.Float64()
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f > math.MaxInt32 {
			return math.MaxInt32, true
		}
		if f < math.MinInt32 {
			return math.MinInt32, true
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, false
		}
		return clampInt(n), true
	}
	return 0, false
}

func clampInt(n int64) int {
	return int(min(max(n, math.MinInt32), math.MaxInt32))
}
