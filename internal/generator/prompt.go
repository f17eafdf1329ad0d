// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package generator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// BuildPrompt returns the system prompt for a question in the given BCP 47
// language, with the schema description appended verbatim.
func BuildPrompt(lang, schema string) string {
	var b strings.Builder
	b.WriteString("You translate business questions into SQL.\n")
	b.WriteString("Answer with exactly one read-only SELECT statement and nothing else.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use only the tables and columns listed in the schema.\n")
	b.WriteString("- Never modify data or schema; a single statement only.\n")
	b.WriteString("- Do not wrap the SQL in markdown and do not explain it.\n")
	fmt.Fprintf(&b, "- The question is written in %s. Keep literal values in that language when they refer to stored data.\n", LanguageName(lang))
	b.WriteString("\nSchema:\n")
	b.WriteString(strings.TrimSpace(schema))
	b.WriteString("\n")
	return b.String()
}

// LanguageName returns the English name of a language tag, such as "Persian"
// for "fa". Unknown tags are returned unchanged.
func LanguageName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return fmt.Sprintf("%s (%s)", name, tag)
	}
	return tag.String()
}
