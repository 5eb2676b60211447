package logparse

import (
	"errors"
	"fmt"
	"time"
)

// Kind tells platform-generated lines apart from application output.
type Kind int

const (
	KindPlatform Kind = iota + 1
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "heroku"
	case KindApplication:
		return "app"
	default:
		return "unknown"
	}
}

// Frame is one drained log line with its syslog envelope decoded.
type Frame struct {
	Timestamp time.Time
	Kind      Kind
	Source    string
	Text      string
}

var ErrMalformedFrame = errors.New("malformed frame")

func frameError(field string, sc *scanner) error {
	return fmt.Errorf("%w: expected %s at offset %d", ErrMalformedFrame, field, sc.pos)
}

// ParseFrame decodes a single line of the form
//
//	<len> <<prio>>1 <rfc3339> host <heroku|app> <source> - <text>
//
// Frame length, priority and version are validated and dropped.
func ParseFrame(line string) (Frame, error) {
	sc := &scanner{s: line}
	sc.whitespace()

	if sc.digits() == "" {
		return Frame{}, frameError("frame length", sc)
	}
	if sc.blanks() == 0 || !sc.literal("<") {
		return Frame{}, frameError("priority", sc)
	}
	if sc.digits() == "" || !sc.literal(">") {
		return Frame{}, frameError("priority", sc)
	}
	if sc.digits() == "" {
		return Frame{}, frameError("version", sc)
	}
	if sc.blanks() == 0 {
		return Frame{}, frameError("timestamp", sc)
	}
	raw := sc.token()
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: invalid timestamp %q: %v", ErrMalformedFrame, raw, err)
	}
	if sc.blanks() == 0 || sc.token() != "host" {
		return Frame{}, frameError(`"host"`, sc)
	}
	if sc.blanks() == 0 {
		return Frame{}, frameError("kind", sc)
	}
	var kind Kind
	switch tok := sc.token(); tok {
	case "heroku":
		kind = KindPlatform
	case "app":
		kind = KindApplication
	default:
		return Frame{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedFrame, tok)
	}
	if sc.blanks() == 0 {
		return Frame{}, frameError("source", sc)
	}
	source := sc.token()
	if source == "" {
		return Frame{}, frameError("source", sc)
	}
	if sc.blanks() == 0 || !sc.literal("-") {
		return Frame{}, frameError(`"-"`, sc)
	}
	sc.blanks()

	return Frame{
		Timestamp: ts,
		Kind:      kind,
		Source:    source,
		Text:      sc.rest(),
	}, nil
}
