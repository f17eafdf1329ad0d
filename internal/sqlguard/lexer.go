// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlguard

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	Keyword TokenKind = iota
	Identifier
	QuotedIdentifier
	StringLiteral
	Number
	Comment
	Punctuation
)

func (k TokenKind) String() string {
	switch k {
	case Keyword:
		return "Keyword"
	case Identifier:
		return "Identifier"
	case QuotedIdentifier:
		return "QuotedIdentifier"
	case StringLiteral:
		return "StringLiteral"
	case Number:
		return "Number"
	case Comment:
		return "Comment"
	case Punctuation:
		return "Punctuation"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a lexeme with its byte span in the source text.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Upper returns the token text upper-cased; only meaningful for words.
func (t Token) Upper() string { return strings.ToUpper(t.Text) }

// IsWord reports whether the token is an unquoted keyword or identifier.
func (t Token) IsWord() bool { return t.Kind == Keyword || t.Kind == Identifier }

// Is reports whether the token is the given unquoted word (case-insensitive).
func (t Token) Is(word string) bool { return t.IsWord() && strings.EqualFold(t.Text, word) }

// IsPunct reports whether the token is the given punctuation.
func (t Token) IsPunct(p string) bool { return t.Kind == Punctuation && t.Text == p }

// LexError reports text that cannot be tokenized, such as an unterminated literal.
type LexError struct {
	Pos  int
	What string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unterminated %s starting at offset %d", e.What, e.Pos)
}

// Dialect selects the quoting and comment rules the lexer applies.
type Dialect struct {
	// BackslashEscapes makes '\' escape the next character inside '...' and "...".
	BackslashEscapes bool
	// HashComments treats '#' as the start of a line comment.
	HashComments bool
	// NestedComments lets /* ... */ nest.
	NestedComments bool
	// DollarQuotes enables $tag$...$tag$ strings and $n parameters. Without it
	// '$' is part of a word.
	DollarQuotes bool
}

var (
	// Standard follows PostgreSQL / SQLite rules: standard-conforming strings,
	// nested block comments, dollar quoting and '#' as an operator.
	Standard = Dialect{NestedComments: true, DollarQuotes: true}
	// MySQL follows MySQL's default sql_mode, where $a$ is an identifier.
	MySQL = Dialect{BackslashEscapes: true, HashComments: true}
)

// Lex tokenizes src under the Standard dialect.
func Lex(src string) ([]Token, error) {
	return Standard.Lex(src)
}

// Lex tokenizes src. Whitespace is dropped; every other byte of src belongs to
// exactly one token. On error the tokens lexed so far are returned.
func (d Dialect) Lex(src string) ([]Token, error) {
	l := lexer{src: src, d: d}
	for l.pos < len(l.src) {
		if err := l.next(); err != nil {
			return l.tokens, err
		}
	}
	return l.tokens, nil
}

type lexer struct {
	src    string
	pos    int
	d      Dialect
	tokens []Token
}

func (l *lexer) emit(kind TokenKind, start int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: l.src[start:l.pos], Start: start, End: l.pos})
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) next() error {
	start := l.pos
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])

	switch {
	case unicode.IsSpace(r):
		l.pos += size
		return nil

	case r == '-' && l.peek(1) == '-':
		l.lineComment()
		l.emit(Comment, start)
		return nil

	case r == '#' && l.d.HashComments:
		l.lineComment()
		l.emit(Comment, start)
		return nil

	case r == '/' && l.peek(1) == '*':
		if err := l.blockComment(); err != nil {
			return err
		}
		l.emit(Comment, start)
		return nil

	case r == '\'':
		if err := l.quoted('\'', l.d.BackslashEscapes, "string literal"); err != nil {
			return err
		}
		l.emit(StringLiteral, start)
		return nil

	case r == '"':
		if err := l.quoted('"', l.d.BackslashEscapes, "quoted identifier"); err != nil {
			return err
		}
		l.emit(QuotedIdentifier, start)
		return nil

	case r == '`':
		if err := l.quoted('`', false, "quoted identifier"); err != nil {
			return err
		}
		l.emit(QuotedIdentifier, start)
		return nil

	case r == '$' && l.d.DollarQuotes:
		return l.dollar()

	case r == '$':
		return l.word()

	case isDigit(r) || (r == '.' && isDigit(rune(l.peek(1)))):
		l.number()
		l.emit(Number, start)
		return nil

	case isWordStart(r):
		return l.word()

	default:
		l.pos += size
		l.emit(Punctuation, start)
		return nil
	}
}

func (l *lexer) lineComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func (l *lexer) blockComment() error {
	start := l.pos
	l.pos += 2
	depth := 1
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '*' && l.peek(1) == '/':
			l.pos += 2
			depth--
			if depth == 0 || !l.d.NestedComments {
				return nil
			}
		case l.src[l.pos] == '/' && l.peek(1) == '*' && l.d.NestedComments:
			l.pos += 2
			depth++
		default:
			l.pos++
		}
	}
	return &LexError{Pos: start, What: "block comment"}
}

// quoted consumes a literal delimited by q. A doubled delimiter is an escaped
// delimiter; with backslash set, '\' escapes the following byte.
func (l *lexer) quoted(q byte, backslash bool, what string) error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case backslash && c == '\\':
			l.pos += 2
		case c == q && l.peek(1) == q:
			l.pos += 2
		case c == q:
			l.pos++
			return nil
		default:
			l.pos++
		}
	}
	l.pos = len(l.src)
	return &LexError{Pos: start, What: what}
}

// dollar handles positional parameters ($1) and dollar-quoted strings ($$...$$,
// $tag$...$tag$). A lone '$' is punctuation.
func (l *lexer) dollar() error {
	start := l.pos
	if isDigit(rune(l.peek(1))) {
		l.pos++
		for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
			l.pos++
		}
		l.emit(Punctuation, start)
		return nil
	}

	end := l.pos + 1
	for end < len(l.src) && (isWordPart(rune(l.src[end])) && l.src[end] != '$') {
		end++
	}
	if end >= len(l.src) || l.src[end] != '$' || (end > l.pos+1 && isDigit(rune(l.src[l.pos+1]))) {
		l.pos++
		l.emit(Punctuation, start)
		return nil
	}

	tag := l.src[l.pos : end+1]
	closing := strings.Index(l.src[end+1:], tag)
	if closing < 0 {
		l.pos = len(l.src)
		return &LexError{Pos: start, What: "dollar-quoted string"}
	}
	l.pos = end + 1 + closing + len(tag)
	l.emit(StringLiteral, start)
	return nil
}

func (l *lexer) number() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(rune(c)) || c == '.' || c == '_':
			l.pos++
		case (c == 'e' || c == 'E') && (isDigit(rune(l.peek(1))) || ((l.peek(1) == '+' || l.peek(1) == '-') && isDigit(rune(l.peek(2))))):
			l.pos += 2
		default:
			return
		}
	}
}

func (l *lexer) word() error {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isWordPart(r) {
			break
		}
		l.pos += size
	}

	// Prefixed string literals: E'..' (escape string), N'..', B'..', X'..'.
	if l.pos-start == 1 && l.peek(0) == '\'' {
		switch l.src[start] {
		case 'E', 'e':
			if err := l.quoted('\'', true, "string literal"); err != nil {
				return err
			}
			l.emit(StringLiteral, start)
			return nil
		case 'N', 'n', 'B', 'b', 'X', 'x':
			if err := l.quoted('\'', l.d.BackslashEscapes, "string literal"); err != nil {
				return err
			}
			l.emit(StringLiteral, start)
			return nil
		}
	}

	if reserved[strings.ToUpper(l.src[start:l.pos])] {
		l.emit(Keyword, start)
	} else {
		l.emit(Identifier, start)
	}
	return nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// reserved is the set of words lexed as Keyword rather than Identifier. The
// policy rules match on word text, so this only affects token classification.
var reserved = func() map[string]bool {
	words := []string{
		"ALL", "AND", "ANY", "AS", "ASC", "BETWEEN", "BY", "CASE", "CAST", "CROSS",
		"CURRENT", "DESC", "DISTINCT", "ELSE", "END", "EXCEPT", "EXISTS", "FALSE",
		"FETCH", "FIRST", "FOR", "FROM", "FULL", "GROUP", "HAVING", "ILIKE", "IN",
		"INNER", "INTERSECT", "INTERVAL", "INTO", "IS", "JOIN", "LATERAL", "LEFT",
		"LIKE", "LIMIT", "NATURAL", "NEXT", "NOT", "NULL", "NULLS", "OFFSET", "ON",
		"ONLY", "OR", "ORDER", "OUTER", "OVER", "PARTITION", "RIGHT", "ROW", "ROWS",
		"SELECT", "SET", "SOME", "TABLE", "THEN", "TIES", "TRUE", "UNION", "USING",
		"VALUES", "WHEN", "WHERE", "WINDOW", "WITH",
	}
	m := make(map[string]bool, len(words)+len(Forbidden))
	for _, w := range words {
		m[w] = true
	}
	for _, w := range Forbidden {
		m[w] = true
	}
	return m
}()
