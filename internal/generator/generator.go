// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package generator turns a natural-language question into candidate SQL text by
// calling an external model. Its output is untrusted: callers pass it through
// ExtractSQL and then the sqlguard validator before anything runs.
package generator

import (
	"context"
	"errors"
	"strings"

	qerrors "querycraft/cli/internal/errors"
)

// Generator produces candidate SQL for a question.
type Generator interface {
	Generate(ctx context.Context, question, language, schema string) (string, error)
}

// Func adapts an ordinary function to Generator.
type Func func(ctx context.Context, question, language, schema string) (string, error)

func (f Func) Generate(ctx context.Context, question, language, schema string) (string, error) {
	return f(ctx, question, language, schema)
}

var (
	// ErrEmptyCompletion means the model answered with nothing usable.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrNotSQL means the completion does not start with a SQL statement.
	ErrNotSQL = errors.New("completion is not a SQL statement")
)

// statementVerbs are the words a SQL statement may start with. Destructive verbs
// are included so that the validator, not the extractor, rejects them.
var statementVerbs = map[string]bool{
	"SELECT": true, "WITH": true, "VALUES": true, "TABLE": true, "SHOW": true,
	"EXPLAIN": true, "DESCRIBE": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "ALTER": true, "TRUNCATE": true, "GRANT": true, "REVOKE": true,
	"CREATE": true, "EXEC": true, "EXECUTE": true, "CALL": true, "MERGE": true,
	"ATTACH": true, "COPY": true, "VACUUM": true, "REPLACE": true, "SET": true,
	"PRAGMA": true, "DO": true, "BEGIN": true, "COMMIT": true,
}

// fenceLanguages are the info strings dropped from an opening code fence.
var fenceLanguages = map[string]bool{
	"": true, "sql": true, "postgresql": true, "postgres": true, "psql": true,
	"pgsql": true, "mysql": true, "mariadb": true, "sqlite": true, "sqlite3": true,
}

// ExtractSQL pulls the statement out of a model completion. It strips a markdown
// code fence and a leading "SQL:" label, and otherwise leaves the text as is.
func ExtractSQL(completion string) (string, error) {
	text := strings.TrimSpace(completion)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		// Drop the info string (```sql).
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && fenceLanguages[strings.ToLower(strings.TrimSpace(body[:nl]))] {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}

	for _, label := range []string{"sql:", "query:"} {
		if len(text) >= len(label) && strings.EqualFold(text[:len(label)], label) {
			text = strings.TrimSpace(text[len(label):])
		}
	}

	if text == "" {
		return "", qerrors.Wrap(qerrors.Generation, "The SQL generator returned an empty response.", ErrEmptyCompletion)
	}

	if !startsStatement(text) {
		return "", qerrors.Wrap(qerrors.Generation, "The SQL generator did not return a SQL statement.", ErrNotSQL)
	}
	return text, nil
}

// startsStatement reports whether text opens like SQL: a statement verb, a
// parenthesized query or a comment (left for the validator to judge).
func startsStatement(text string) bool {
	for _, p := range []string{"(", "--", "/*"} {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return statementVerbs[strings.ToUpper(leadingWord(text))]
}

func leadingWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
