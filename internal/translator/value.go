package translator

import (
	"errors"
	"fmt"
	"strconv"

	"logdrain-agent/internal/model"
)

var ErrInvalidValue = errors.New("invalid metric value")

// splitNumber returns the leading float literal of raw and what follows it.
// An exponent is only taken when digits follow the "e", so "5e" reads as 5
// with unit "e".
func splitNumber(raw string) (number, suffix string) {
	i := 0
	if i < len(raw) && (raw[i] == '+' || raw[i] == '-') {
		i++
	}
	digits := 0
	for i < len(raw) && isDigit(raw[i]) {
		i++
		digits++
	}
	if i < len(raw) && raw[i] == '.' {
		i++
		for i < len(raw) && isDigit(raw[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return "", raw
	}
	if i < len(raw) && (raw[i] == 'e' || raw[i] == 'E') {
		j := i + 1
		if j < len(raw) && (raw[j] == '+' || raw[j] == '-') {
			j++
		}
		if j < len(raw) && isDigit(raw[j]) {
			for j < len(raw) && isDigit(raw[j]) {
				j++
			}
			i = j
		}
	}
	return raw[:i], raw[i:]
}

// ParseValue splits a value like "196.79MB" into 196.79 and UnitMebibyte.
// known is false when the suffix was kept as a custom unit.
func ParseValue(raw string) (value float64, unit model.Unit, known bool, err error) {
	number, suffix := splitNumber(raw)
	if number == "" {
		return 0, model.Unit{}, false, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	value, err = strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, model.Unit{}, false, fmt.Errorf("%w: %q: %v", ErrInvalidValue, raw, err)
	}
	unit, known = model.ParseUnit(suffix)
	return value, unit, known, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
