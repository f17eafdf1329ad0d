// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlguard

import "fmt"

// ViolationKind names a policy rule a statement broke.
type ViolationKind string

const (
	Empty              ViolationKind = "empty"
	Malformed          ViolationKind = "malformed"
	MultipleStatements ViolationKind = "multiple_statements"
	NotAQuery          ViolationKind = "not_a_query"
	ForbiddenKeyword   ViolationKind = "forbidden_keyword"
	SuspiciousComment  ViolationKind = "suspicious_comment"
	InvalidLimit       ViolationKind = "invalid_limit"
)

// Violation is the rejection reason returned by Validate.
type Violation struct {
	Kind ViolationKind
	// Keyword is set for ForbiddenKeyword and, when a keyword triggered it,
	// SuspiciousComment. Always upper case.
	Keyword string
	Detail  string
	// Pos is the byte offset in the input where the violation was found.
	Pos int
}

func (v *Violation) Error() string {
	return fmt.Sprintf("sql policy violation (%s at offset %d): %s", v.Kind, v.Pos, v.Explanation())
}

// Explanation is a human-readable message that is safe to return to callers.
func (v *Violation) Explanation() string {
	switch v.Kind {
	case Empty:
		return "SQL text cannot be empty."
	case Malformed:
		if v.Detail != "" {
			return fmt.Sprintf("SQL text could not be parsed: unterminated %s.", v.Detail)
		}
		return "SQL text could not be parsed."
	case MultipleStatements:
		return "Multiple SQL statements are not allowed."
	case NotAQuery:
		return "Only SELECT statements are permitted."
	case ForbiddenKeyword:
		return fmt.Sprintf("The keyword %s is not permitted in a read-only query.", v.Keyword)
	case SuspiciousComment:
		return "Comments that could hide SQL keywords are not permitted."
	case InvalidLimit:
		return "LIMIT must be a whole number of rows."
	default:
		return "SQL text was rejected."
	}
}
