package model

import (
	"strings"
	"time"
)

type MetricKind int

const (
	MetricKindCounter MetricKind = iota
	MetricKindGauge
	MetricKindDistribution
)

func (k MetricKind) String() string {
	switch k {
	case MetricKindCounter:
		return "counter"
	case MetricKindGauge:
		return "gauge"
	case MetricKindDistribution:
		return "distribution"
	default:
		return "unknown"
	}
}

// Unit is a measurement unit. Known units use the constants below; anything
// else is carried verbatim via CustomUnit.
type Unit struct {
	name   string
	custom bool
}

var (
	UnitNone        = Unit{name: "none"}
	UnitByte        = Unit{name: "byte"}
	UnitKibibyte    = Unit{name: "kibibyte"}
	UnitMebibyte    = Unit{name: "mebibyte"}
	UnitMillisecond = Unit{name: "millisecond"}
	UnitSecond      = Unit{name: "second"}
	UnitPages       = Unit{name: "pages"}
)

func CustomUnit(name string) Unit {
	return Unit{name: name, custom: true}
}

func (u Unit) String() string { return u.name }

func (u Unit) IsCustom() bool { return u.custom }

// ParseUnit maps a value suffix like "MB" or "ms" to a Unit. ok is false when
// the suffix is not one of the known units and a custom unit was returned.
func ParseUnit(suffix string) (unit Unit, ok bool) {
	switch strings.ToLower(suffix) {
	case "":
		return UnitNone, true
	case "ms":
		return UnitMillisecond, true
	case "s":
		return UnitSecond, true
	case "mb":
		return UnitMebibyte, true
	case "kb":
		return UnitKibibyte, true
	case "bytes":
		return UnitByte, true
	case "pages":
		return UnitPages, true
	default:
		return CustomUnit(suffix), false
	}
}

// MetricRecord is one translated measurement, consumed by the delivery
// clients of a destination.
type MetricRecord struct {
	Name  string            `json:"name"`
	Value float64           `json:"value"`
	Kind  MetricKind        `json:"kind"`
	Unit  Unit              `json:"-"`
	Tags  map[string]string `json:"tags,omitempty"`
	Time  time.Time         `json:"time"`
}

// Source picks the tag that best identifies the emitting process, used by
// backends that have a single "source" dimension.
func (m MetricRecord) Source() string {
	for _, key := range []string{"source", "dyno", "proc"} {
		if v := m.Tags[key]; v != "" {
			return v
		}
	}
	return ""
}
