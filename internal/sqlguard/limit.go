// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlguard

import (
	"sort"
	"strconv"
	"strings"
)

// limitClause is a top-level LIMIT or FETCH FIRST clause. count is the token
// holding the row count; it is the zero Token for FETCH FIRST ROW ONLY, which
// always means one row.
type limitClause struct {
	count Token
	value int
	all   bool
}

type edit struct {
	start, end int
	text       string
}

// enforceLimit trims the statement and makes sure its top-level row limit does
// not exceed max, appending a LIMIT clause when there is none.
func enforceLimit(sql string, toks []Token, max int) (Accepted, error) {
	sig := significant(toks)
	end := sig[len(sig)-1].End

	clauses, v := findLimits(sig)
	if v != nil {
		return Accepted{}, v
	}

	if len(clauses) == 0 {
		sep := " "
		for _, t := range sig {
			// MySQL would read an appended clause as part of a '#' comment.
			if t.IsPunct("#") {
				sep = "\n"
				break
			}
		}
		out := strings.TrimSpace(sql[:end]) + sep + "LIMIT " + strconv.Itoa(max)
		return Accepted{SQL: out, Limit: max, Rewritten: true}, nil
	}

	var edits []edit
	for _, c := range clauses {
		if !c.all && c.value <= max {
			continue
		}
		edits = append(edits, edit{start: c.count.Start, end: c.count.End, text: strconv.Itoa(max)})
	}

	last := clauses[len(clauses)-1]
	limit := max
	if !last.all && last.value < max {
		limit = last.value
	}

	out := applyEdits(sql[:end], edits)
	return Accepted{SQL: strings.TrimSpace(out), Limit: limit, Rewritten: len(edits) > 0}, nil
}

func applyEdits(s string, edits []edit) string {
	if len(edits) == 0 {
		return s
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	prev := 0
	for _, e := range edits {
		b.WriteString(s[prev:e.start])
		b.WriteString(e.text)
		prev = e.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// findLimits returns the LIMIT and FETCH clauses at parenthesis depth 0, in order.
func findLimits(sig []Token) ([]limitClause, *Violation) {
	var clauses []limitClause
	depth := 0
	for i := 0; i < len(sig); i++ {
		t := sig[i]
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth != 0:
		case t.Is("LIMIT"):
			c, v := parseLimit(sig, i)
			if v != nil {
				return nil, v
			}
			clauses = append(clauses, c)
		case t.Is("FETCH"):
			c, ok, v := parseFetch(sig, i)
			if v != nil {
				return nil, v
			}
			if ok {
				clauses = append(clauses, c)
			}
		}
	}
	return clauses, nil
}

// parseLimit reads "LIMIT n", "LIMIT ALL" and MySQL's "LIMIT offset, n". The
// count must be followed by the end of the clause, so "LIMIT 10 * 1000" is
// rejected rather than read as 10.
func parseLimit(sig []Token, i int) (limitClause, *Violation) {
	bad := &Violation{Kind: InvalidLimit, Pos: sig[i].Start}
	if i+1 >= len(sig) {
		return limitClause{}, bad
	}
	arg := sig[i+1]
	if arg.Is("ALL") {
		if !endsLimit(sig, i+2) {
			return limitClause{}, bad
		}
		return limitClause{count: arg, all: true}, nil
	}
	n, ok := wholeNumber(arg)
	if !ok {
		return limitClause{}, bad
	}
	if i+2 < len(sig) && sig[i+2].IsPunct(",") {
		if i+3 >= len(sig) {
			return limitClause{}, bad
		}
		count := sig[i+3]
		m, ok := wholeNumber(count)
		if !ok || !endsLimit(sig, i+4) {
			return limitClause{}, bad
		}
		return limitClause{count: count, value: m}, nil
	}
	if !endsLimit(sig, i+2) {
		return limitClause{}, bad
	}
	return limitClause{count: arg, value: n}, nil
}

// endsLimit reports whether sig[j] may follow a LIMIT count.
func endsLimit(sig []Token, j int) bool {
	if j >= len(sig) {
		return true
	}
	t := sig[j]
	return t.Is("OFFSET") || t.Is("FOR") || t.IsPunct(")") || t.IsPunct(";")
}

// parseFetch reads "FETCH {FIRST|NEXT} [n] {ROW|ROWS} {ONLY|WITH TIES}". A FETCH
// that is not followed by FIRST or NEXT is not a limit clause.
func parseFetch(sig []Token, i int) (limitClause, bool, *Violation) {
	if i+1 >= len(sig) || !(sig[i+1].Is("FIRST") || sig[i+1].Is("NEXT")) {
		return limitClause{}, false, nil
	}
	bad := &Violation{Kind: InvalidLimit, Pos: sig[i].Start}
	if i+2 >= len(sig) {
		return limitClause{}, false, bad
	}
	arg := sig[i+2]
	if arg.Is("ROW") || arg.Is("ROWS") {
		return limitClause{value: 1}, true, nil
	}
	n, ok := wholeNumber(arg)
	if !ok || i+3 >= len(sig) || !(sig[i+3].Is("ROW") || sig[i+3].Is("ROWS")) {
		return limitClause{}, false, bad
	}
	return limitClause{count: arg, value: n}, true, nil
}

func wholeNumber(t Token) (int, bool) {
	if t.Kind != Number || strings.ContainsAny(t.Text, ".eE_") {
		return 0, false
	}
	n, err := strconv.Atoi(t.Text)
	if err != nil {
		// Too large for int: certainly above any cap.
		if strings.Trim(t.Text, "0123456789") == "" {
			return int(^uint(0) >> 1), true
		}
		return 0, false
	}
	return n, true
}
