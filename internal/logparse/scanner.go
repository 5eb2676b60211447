package logparse

import (
	"unicode"
	"unicode/utf8"
)

// scanner is a cursor over a single line. All methods either consume input
// and report success, or leave the cursor untouched.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *scanner) rest() string { return sc.s[sc.pos:] }

// blanks consumes spaces and tabs and returns how many were skipped.
func (sc *scanner) blanks() int {
	start := sc.pos
	for sc.pos < len(sc.s) && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
	return sc.pos - start
}

// whitespace consumes any unicode whitespace, including line breaks.
func (sc *scanner) whitespace() int {
	start := sc.pos
	for sc.pos < len(sc.s) {
		r, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		sc.pos += size
	}
	return sc.pos - start
}

func (sc *scanner) digits() string {
	start := sc.pos
	for sc.pos < len(sc.s) && isDigit(sc.s[sc.pos]) {
		sc.pos++
	}
	return sc.s[start:sc.pos]
}

// token consumes a run of non-whitespace characters.
func (sc *scanner) token() string {
	return sc.until(unicode.IsSpace)
}

// until consumes runes up to (not including) the first one matching stop.
func (sc *scanner) until(stop func(rune) bool) string {
	start := sc.pos
	for sc.pos < len(sc.s) {
		r, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
		if stop(r) {
			break
		}
		sc.pos += size
	}
	return sc.s[start:sc.pos]
}

func (sc *scanner) literal(lit string) bool {
	if len(sc.s)-sc.pos < len(lit) || sc.s[sc.pos:sc.pos+len(lit)] != lit {
		return false
	}
	sc.pos += len(lit)
	return true
}

func (sc *scanner) peek() (byte, bool) {
	if sc.done() {
		return 0, false
	}
	return sc.s[sc.pos], true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isAlnum(c byte) bool { return isDigit(c) || isUpper(c) || isLower(c) }
