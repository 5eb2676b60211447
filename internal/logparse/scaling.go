package logparse

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"logdrain-agent/internal/model"
)

var ErrNotScalingEvent = errors.New("not a scaling event")

// ParseScalingEvent reads a formation change such as
//
//	Scaled to web@4:Standard-1X worker@3:Standard-2X by user someone@example.com
//
// and returns the entries plus the acting identity.
func ParseScalingEvent(text string) ([]model.ScalingEvent, string, error) {
	sc := &scanner{s: text}
	sc.whitespace()
	if !sc.literal("Scaled to") {
		return nil, "", ErrNotScalingEvent
	}

	var events []model.ScalingEvent
	for {
		mark := sc.pos
		if sc.whitespace() == 0 {
			break
		}
		event, ok := parseScalingEntry(sc.token())
		if !ok {
			sc.pos = mark
			break
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil, "", ErrNotScalingEvent
	}

	if sc.whitespace() == 0 || !sc.literal("by user") || sc.whitespace() == 0 {
		return nil, "", ErrNotScalingEvent
	}
	return events, sc.rest(), nil
}

// parseScalingEntry decodes "proc@count:size".
func parseScalingEntry(token string) (model.ScalingEvent, bool) {
	proc, rest, ok := strings.Cut(token, "@")
	if !ok || proc == "" {
		return model.ScalingEvent{}, false
	}
	count, size, ok := strings.Cut(rest, ":")
	if !ok || size == "" || !IsPositiveInteger(count) {
		return model.ScalingEvent{}, false
	}
	n, err := strconv.ParseUint(count, 10, 16)
	if err != nil {
		return model.ScalingEvent{}, false
	}
	if strings.IndexFunc(size, unicode.IsSpace) >= 0 {
		return model.ScalingEvent{}, false
	}
	return model.ScalingEvent{Proc: proc, Count: uint16(n), Size: size}, true
}
