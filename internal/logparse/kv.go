package logparse

import (
	"errors"
	"strings"
	"unicode"
)

type Pair struct {
	Key   string
	Value string
}

// Pairs keeps key=value pairs in line order.
type Pairs []Pair

// Get returns the value of the last pair with the given key.
func (p Pairs) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}

// Lookup is Get without the presence flag.
func (p Pairs) Lookup(key string) string {
	v, _ := p.Get(key)
	return v
}

var ErrNoPairs = errors.New("no key=value pairs")

// ParseKeyValuePairs reads as many key=value tokens as it can from the start
// of text. Values are either double quoted (no escapes) or a bare
// non-whitespace run. Text that does not continue the sequence is returned
// as remainder; callers that need the whole line consumed must check it.
func ParseKeyValuePairs(text string) (Pairs, string, error) {
	sc := &scanner{s: text}
	var pairs Pairs
	for {
		sc.blanks()
		mark := sc.pos
		pair, ok := parsePair(sc)
		if !ok {
			sc.pos = mark
			break
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return nil, text, ErrNoPairs
	}
	return pairs, sc.rest(), nil
}

func parsePair(sc *scanner) (Pair, bool) {
	key := sc.until(func(r rune) bool { return !isKeyRune(r) })
	if key == "" || !sc.literal("=") {
		return Pair{}, false
	}
	if value, ok := quotedValue(sc); ok {
		return Pair{Key: key, Value: value}, true
	}
	value := sc.token()
	if value == "" {
		return Pair{}, false
	}
	return Pair{Key: key, Value: value}, true
}

// quotedValue consumes `"..."` with at least one character inside.
func quotedValue(sc *scanner) (string, bool) {
	if c, ok := sc.peek(); !ok || c != '"' {
		return "", false
	}
	end := strings.IndexByte(sc.s[sc.pos+1:], '"')
	if end <= 0 {
		return "", false
	}
	value := sc.s[sc.pos+1 : sc.pos+1+end]
	sc.pos += end + 2
	return value, true
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '#'
}
