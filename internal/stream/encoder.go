package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"logdrain-agent/internal/model"
)

type libratoMeasurement struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Source      string  `json:"source"`
	MeasureTime int64   `json:"measure_time"`
}

// libratoFallbackSource is used for records without a source, dyno or proc
// tag, which are emitted by the platform rather than a dyno.
const libratoFallbackSource = "heroku"

type libratoFrame struct {
	Gauges   []libratoMeasurement `json:"gauges"`
	Counters []libratoMeasurement `json:"counters"`
}

// newLibratoFrame splits a batch into gauges and counters. Librato has no
// distribution type, distributions are reported as gauges. Records without a
// time are stamped with sentAt.
func newLibratoFrame(batch []model.MetricRecord, sentAt time.Time) libratoFrame {
	frame := libratoFrame{
		Gauges:   make([]libratoMeasurement, 0, len(batch)),
		Counters: make([]libratoMeasurement, 0),
	}
	for _, r := range batch {
		m := libratoMeasurement{
			Name:        r.Name,
			Value:       r.Value,
			Source:      r.Source(),
			MeasureTime: r.Time.Unix(),
		}
		if m.Source == "" {
			m.Source = libratoFallbackSource
		}
		if r.Time.IsZero() {
			m.MeasureTime = sentAt.Unix()
		}
		if r.Kind == model.MetricKindCounter {
			frame.Counters = append(frame.Counters, m)
		} else {
			frame.Gauges = append(frame.Gauges, m)
		}
	}
	return frame
}

func EncodeLibrato(batch []model.MetricRecord, sentAt time.Time) ([]byte, error) {
	return json.Marshal(newLibratoFrame(batch, sentAt))
}

// EncodeGraphiteLine renders "<prefix>.<name> <value> [<unix-time>]" without
// the trailing newline.
func EncodeGraphiteLine(prefix string, r model.MetricRecord) []byte {
	var b []byte
	if prefix != "" {
		b = append(b, prefix...)
		b = append(b, '.')
	}
	b = append(b, r.Name...)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, r.Value, 'f', -1, 64)
	if !r.Time.IsZero() {
		b = append(b, ' ')
		b = strconv.AppendInt(b, r.Time.Unix(), 10)
	}
	return b
}

func EncodeGraphite(prefix string, batch []model.MetricRecord) []byte {
	var buf bytes.Buffer
	buf.Grow(64 * len(batch))
	for _, r := range batch {
		buf.Write(EncodeGraphiteLine(prefix, r))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
