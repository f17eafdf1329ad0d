// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlguard decides whether an untrusted SQL string may run against the
// database. Validate is a pure function: it tokenizes the text with a quoting-aware
// lexer, applies the read-only policy rules in a fixed order (first violation wins)
// and, when the statement is accepted, returns it with a row limit no greater
// than the caller's maximum.
//
// The text is lexed twice, once with standard-conforming quoting and once with
// MySQL's backslash escapes and comment syntax. Structural rules must pass under
// both readings, so a statement cannot hide a separator or a forbidden keyword
// behind a quoting difference between engines.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

// Forbidden lists the words that may not appear as a standalone token anywhere in
// a statement.
var Forbidden = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
	"CREATE", "EXEC", "EXECUTE", "CALL", "MERGE", "ATTACH", "COPY", "VACUUM",
}

// selectInto words turn a SELECT into a write (SELECT ... INTO new_table,
// SELECT ... INTO OUTFILE) and are rejected like the Forbidden words.
var selectInto = []string{"INTO", "OUTFILE", "DUMPFILE"}

var forbiddenSet = func() map[string]bool {
	m := make(map[string]bool, len(Forbidden)+len(selectInto))
	for _, w := range Forbidden {
		m[w] = true
	}
	for _, w := range selectInto {
		m[w] = true
	}
	return m
}()

// ErrInvalidMaxRows is returned when Validate is called with a limit below one.
var ErrInvalidMaxRows = errors.New("sqlguard: max allowed rows must be at least 1")

// Accepted is the result of a successful validation.
type Accepted struct {
	// SQL is the statement to execute: trimmed, without a trailing terminator or
	// trailing comments, and with its row limit enforced.
	SQL string
	// Limit is the row limit embedded in SQL; never above the maximum.
	Limit int
	// Rewritten reports whether a LIMIT was appended or lowered.
	Rewritten bool
}

// Validate applies the read-only policy to sql. It returns Accepted, or a
// *Violation describing the first rule the statement breaks.
func Validate(sql string, maxAllowedRows int) (Accepted, error) {
	if maxAllowedRows < 1 {
		return Accepted{}, ErrInvalidMaxRows
	}

	// Rule 1: empty input.
	if strings.TrimSpace(sql) == "" {
		return Accepted{}, &Violation{Kind: Empty}
	}

	primary, err := Standard.Lex(sql)
	if err != nil {
		var lexErr *LexError
		errors.As(err, &lexErr)
		return Accepted{}, &Violation{Kind: Malformed, Detail: lexErr.What, Pos: lexErr.Pos}
	}
	if len(significant(primary)) == 0 {
		return Accepted{}, &Violation{Kind: Empty}
	}

	// The alternate reading may fail to lex where the standard one does not
	// (e.g. 'C:\'); the tokens up to the failure still take part in the checks.
	alternate, _ := MySQL.Lex(sql)
	readings := [][]Token{primary, alternate}

	// Rule 2: statement stacking.
	for _, toks := range readings {
		if v := checkSingleStatement(toks); v != nil {
			return Accepted{}, v
		}
	}

	// Rule 4 runs before rule 3 so a destructive statement is reported by the
	// keyword it uses rather than as a generic non-query.
	for _, toks := range readings {
		if v := checkForbidden(toks); v != nil {
			return Accepted{}, v
		}
	}

	// Rule 3: leading keyword.
	if first := significant(primary)[0]; !first.Is("SELECT") {
		return Accepted{}, &Violation{Kind: NotAQuery, Detail: first.Text, Pos: first.Start}
	}

	// Rule 5: comment obfuscation.
	for _, toks := range readings {
		if v := checkComments(toks); v != nil {
			return Accepted{}, v
		}
	}

	// Rule 6: row limit.
	return enforceLimit(sql, primary, maxAllowedRows)
}

// significant drops comments and a single trailing statement terminator.
func significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != Comment {
			out = append(out, t)
		}
	}
	if n := len(out); n > 0 && out[n-1].IsPunct(";") {
		out = out[:n-1]
	}
	return out
}

func checkSingleStatement(toks []Token) *Violation {
	for i, t := range toks {
		if !t.IsPunct(";") {
			continue
		}
		if i+1 < len(toks) {
			return &Violation{Kind: MultipleStatements, Pos: t.Start}
		}
	}
	return nil
}

func checkForbidden(toks []Token) *Violation {
	for _, t := range toks {
		if t.IsWord() && forbiddenSet[t.Upper()] {
			return &Violation{Kind: ForbiddenKeyword, Keyword: t.Upper(), Pos: t.Start}
		}
	}
	return nil
}

func checkComments(toks []Token) *Violation {
	for i, t := range toks {
		if t.Kind != Comment {
			continue
		}

		if strings.HasPrefix(t.Text, "/*!") || strings.HasPrefix(t.Text, "/*+") {
			return &Violation{Kind: SuspiciousComment, Detail: "executable or hint comment", Pos: t.Start}
		}

		// Quoting inside a comment means nothing to the engine, so the body is
		// split on every non-word character.
		for _, w := range strings.FieldsFunc(commentBody(t.Text), func(r rune) bool { return !isWordPart(r) }) {
			if up := strings.ToUpper(w); forbiddenSet[up] {
				return &Violation{Kind: SuspiciousComment, Keyword: up, Detail: "keyword inside comment", Pos: t.Start}
			}
		}

		if strings.HasPrefix(t.Text, "/*") && i > 0 && i+1 < len(toks) {
			prev, next := toks[i-1], toks[i+1]
			if prev.End == t.Start && next.Start == t.End && gluable(prev) && gluable(next) {
				return &Violation{Kind: SuspiciousComment, Detail: "comment splits a word", Pos: t.Start}
			}
		}
	}
	return nil
}

func gluable(t Token) bool {
	return t.IsWord() || t.Kind == Number
}

func commentBody(text string) string {
	switch {
	case strings.HasPrefix(text, "--"):
		return text[2:]
	case strings.HasPrefix(text, "#"):
		return text[1:]
	case strings.HasPrefix(text, "/*"):
		body := text[2:]
		return strings.TrimSuffix(body, "*/")
	}
	return text
}

// Explain returns the caller-facing explanation for err when it is a
// *Violation, or a generic message otherwise.
func Explain(err error) string {
	var v *Violation
	if errors.As(err, &v) {
		return v.Explanation()
	}
	return fmt.Sprintf("SQL validation failed: %v", err)
}
