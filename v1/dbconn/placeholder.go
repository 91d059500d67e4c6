package dbconn

import (
	"strconv"
	"strings"
)

// Style is a native bind-marker syntax.
type Style int

const (
	// Question is the positional "?" marker (MySQL, SQLite).
	Question Style = iota
	// Dollar is "$1..$n" (PostgreSQL).
	Dollar
	// Colon is ":1..:n" (Oracle).
	Colon
	// AtP is "@p1..@pN" (SQL Server).
	AtP
)

// TranslatePlaceholders rewrites the canonical markers "?" and "%s" into the
// given style. Markers inside single-quoted literals, quoted identifiers
// and comments are left untouched, and "%%" collapses
// to a literal "%" when any "%s" marker is present in the statement.
func TranslatePlaceholders(query string, style Style) string {
	percentStyle := hasPercentMarker(query)
	if style == Question && !percentStyle {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	emit := func() {
		n++
		switch style {
		case Dollar:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		case Colon:
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(n))
		case AtP:
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte('?')
		}
	}

	s := newScanner(query)
	for !s.done() {
		if seg, ok := s.skipOpaque(); ok {
			b.WriteString(seg)
			continue
		}
		c := s.next()
		switch {
		case c == '?':
			emit()
		case c == '%' && percentStyle && s.peek() == 's':
			s.next()
			emit()
		case c == '%' && percentStyle && s.peek() == '%':
			s.next()
			b.WriteByte('%')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CountPlaceholders returns how many canonical markers query contains.
func CountPlaceholders(query string) int {
	percentStyle := hasPercentMarker(query)
	n := 0
	s := newScanner(query)
	for !s.done() {
		if _, ok := s.skipOpaque(); ok {
			continue
		}
		c := s.next()
		switch {
		case c == '?':
			n++
		case c == '%' && percentStyle && s.peek() == 's':
			s.next()
			n++
		case c == '%' && percentStyle && s.peek() == '%':
			s.next()
		}
	}
	return n
}

func hasPercentMarker(query string) bool {
	s := newScanner(query)
	for !s.done() {
		if _, ok := s.skipOpaque(); ok {
			continue
		}
		c := s.next()
		if c == '%' {
			switch s.peek() {
			case 's':
				return true
			case '%':
				s.next()
			}
		}
	}
	return false
}

// scanner walks SQL text and recognises regions where markers must not be rewritten.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner { return &scanner{src: src} }

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) next() byte {
	c := s.src[s.pos]
	s.pos++
	return c
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// skipOpaque consumes a literal, quoted identifier or comment starting at the
// current position and returns it verbatim.
func (s *scanner) skipOpaque() (string, bool) {
	start := s.pos
	switch c := s.src[s.pos]; {
	case c == '\'' || c == '"' || c == '`':
		s.pos++
		for s.pos < len(s.src) {
			if s.src[s.pos] == c {
				// doubled quote is an escaped quote
				if s.pos+1 < len(s.src) && s.src[s.pos+1] == c {
					s.pos += 2
					continue
				}
				s.pos++
				return s.src[start:s.pos], true
			}
			s.pos++
		}
		return s.src[start:], true
	case c == '-' && strings.HasPrefix(s.src[s.pos:], "--"):
		end := strings.IndexByte(s.src[s.pos:], '\n')
		if end < 0 {
			s.pos = len(s.src)
		} else {
			s.pos += end
		}
		return s.src[start:s.pos], true
	case c == '/' && strings.HasPrefix(s.src[s.pos:], "/*"):
		end := strings.Index(s.src[s.pos+2:], "*/")
		if end < 0 {
			s.pos = len(s.src)
		} else {
			s.pos += end + 4
		}
		return s.src[start:s.pos], true
	}
	return "", false
}
