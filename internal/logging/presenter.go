// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatFailure renders a pipeline failure for the terminal: a title naming the
// stage, the caller-safe message and a hint on what to try next.
func FormatFailure(stage, message string) string {
	var b strings.Builder

	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(failureTitle(stage)))
	b.WriteString("\n\n")
	b.WriteString(Mask(message))
	b.WriteString("\n\n")
	b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + failureHint(stage)))
	b.WriteString("\n")
	return b.String()
}

func failureTitle(stage string) string {
	switch stage {
	case "request":
		return "Invalid Request"
	case "generate_sql":
		return "SQL Generation Failed"
	case "validate_sql":
		return "Query Rejected"
	case "execute_sql":
		return "Query Failed"
	default:
		return "Internal Error"
	}
}

func failureHint(stage string) string {
	switch stage {
	case "request":
		return "Check the question and flags, then try again"
	case "generate_sql":
		return "Check the LLM endpoint and API key ('querycraft login'), or rephrase the question"
	case "validate_sql":
		return "Only read-only SELECT queries are allowed; try rephrasing the question"
	case "execute_sql":
		return "Run 'querycraft dbinfo' to check the database, or ask for fewer rows"
	default:
		return "Re-run with --log-level debug for details"
	}
}
