package logparse

import (
	"errors"
	"strings"
)

// DynoError is a platform error code line, see
// https://devcenter.heroku.com/articles/error-codes
type DynoError struct {
	Code        string
	Name        string
	Description string
}

var ErrNotDynoError = errors.New("not a dyno error")

// ParseDynoError reads lines like
//
//	Error R10 (Boot timeout) -> Web process failed to bind to $PORT within 60 seconds of launch
//
// The "-> description" tail is optional.
func ParseDynoError(text string) (DynoError, error) {
	sc := &scanner{s: text}
	sc.whitespace()
	if !sc.literal("Error") || sc.blanks() == 0 {
		return DynoError{}, ErrNotDynoError
	}
	code := sc.token()
	if code == "" || sc.blanks() == 0 || !sc.literal("(") {
		return DynoError{}, ErrNotDynoError
	}
	name := sc.until(func(r rune) bool { return r == ')' })
	if name == "" || !sc.literal(")") {
		return DynoError{}, ErrNotDynoError
	}

	result := DynoError{Code: code, Name: name}
	if sc.blanks() > 0 && sc.literal("->") {
		result.Description = strings.TrimSpace(sc.rest())
		return result, nil
	}
	if strings.TrimSpace(sc.rest()) != "" {
		return DynoError{}, ErrNotDynoError
	}
	return result, nil
}
