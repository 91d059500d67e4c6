package dbconn

import (
	"strings"
	"unicode"
)

var readKeywords = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"SHOW":     {},
	"PRAGMA":   {},
	"DESCRIBE": {},
	"DESC":     {},
	"EXPLAIN":  {},
	"VALUES":   {},
	"TABLE":    {},
}

// IsReadQuery reports whether a statement produces a row set, judged by its
// leading keyword. Leading whitespace, comments and opening parentheses are skipped.
func IsReadQuery(query string) bool {
	kw := LeadingKeyword(query)
	_, ok := readKeywords[kw]
	return ok
}

// LeadingKeyword returns the first keyword of query, upper-cased.
func LeadingKeyword(query string) string {
	q := query
	for {
		q = strings.TrimLeftFunc(q, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(q, "--"):
			if i := strings.IndexByte(q, '\n'); i >= 0 {
				q = q[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(q, "/*"):
			if i := strings.Index(q, "*/"); i >= 0 {
				q = q[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(q, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(q)
	}
	return strings.ToUpper(q[:end])
}
