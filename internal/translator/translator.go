// Package translator turns the key=value pairs of a log line into metric
// records. It understands the platform's log-based metric convention
// (sample#, count#, measure#) and derives request metrics from router lines.
package translator

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"logdrain-agent/internal/logparse"
	"logdrain-agent/internal/model"
)

var metricKinds = map[string]model.MetricKind{
	"sample":  model.MetricKindGauge,
	"count":   model.MetricKindCounter,
	"measure": model.MetricKindDistribution,
}

// routerTagKeys bounds the cardinality of metrics derived from router lines.
var routerTagKeys = []string{"at", "method", "dyno", "protocol", "code"}

type Translator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Translator {
	return &Translator{logger: logger}
}

func isMetricKey(key string) bool {
	return strings.Contains(key, "#")
}

// Metrics converts every "<prefix>#<name>=<value>" pair into a record.
// The remaining pairs become tags shared by all records of the line.
func (t *Translator) Metrics(pairs logparse.Pairs, at time.Time) []model.MetricRecord {
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if !isMetricKey(p.Key) {
			tags[p.Key] = p.Value
		}
	}
	addProcTag(tags)

	var out []model.MetricRecord
	for _, p := range pairs {
		if !isMetricKey(p.Key) {
			continue
		}
		prefix, name, _ := strings.Cut(p.Key, "#")
		kind, ok := metricKinds[prefix]
		if !ok || name == "" {
			t.logger.Warn("dropping metric with unknown prefix", "key", p.Key, "value", p.Value)
			continue
		}
		value, unit, ok := t.parseValue(p.Key, p.Value)
		if !ok {
			continue
		}
		out = append(out, model.MetricRecord{
			Name:  name,
			Value: value,
			Kind:  kind,
			Unit:  unit,
			Tags:  copyTags(tags),
			Time:  at,
		})
	}
	return out
}

// RouterMetrics derives request metrics from a router line. It ignores the
// "#" convention and only looks at bytes, connect, service and status.
func (t *Translator) RouterMetrics(pairs logparse.Pairs, at time.Time) []model.MetricRecord {
	tags := make(map[string]string, len(routerTagKeys)+1)
	for _, key := range routerTagKeys {
		if v, ok := pairs.Get(key); ok {
			tags[key] = v
		}
	}
	addProcTag(tags)

	var out []model.MetricRecord
	emit := func(name string, value float64, kind model.MetricKind, unit model.Unit) {
		out = append(out, model.MetricRecord{
			Name:  name,
			Value: value,
			Kind:  kind,
			Unit:  unit,
			Tags:  copyTags(tags),
			Time:  at,
		})
	}

	for _, p := range pairs {
		switch p.Key {
		case "bytes":
			n, err := strconv.ParseUint(p.Value, 10, 64)
			if err != nil {
				t.logger.Warn("could not parse router bytes", "value", p.Value)
				continue
			}
			emit("router.bytes", float64(n), model.MetricKindDistribution, model.UnitByte)
		case "connect", "service":
			value, unit, ok := t.parseValue(p.Key, p.Value)
			if !ok {
				continue
			}
			emit("router."+p.Key, value, model.MetricKindDistribution, unit)
		case "status":
			status, err := strconv.ParseUint(p.Value, 10, 16)
			if err != nil {
				t.logger.Warn("could not parse router status", "value", p.Value)
				continue
			}
			emit(statusMetricName(status), 1, model.MetricKindCounter, model.UnitNone)
		}
	}
	return out
}

// ScalingMetrics reports the dyno count of every process type as a gauge.
func ScalingMetrics(events []model.ScalingEvent, at time.Time) []model.MetricRecord {
	out := make([]model.MetricRecord, 0, len(events))
	for _, e := range events {
		out = append(out, model.MetricRecord{
			Name:  "scaling." + e.Proc,
			Value: float64(e.Count),
			Kind:  model.MetricKindGauge,
			Unit:  model.UnitNone,
			Tags:  map[string]string{"proc": e.Proc, "size": e.Size},
			Time:  at,
		})
	}
	return out
}

func (t *Translator) parseValue(key, raw string) (float64, model.Unit, bool) {
	value, unit, known, err := ParseValue(raw)
	if err != nil {
		t.logger.Warn("could not parse metric value", "key", key, "value", raw, "error", err)
		return 0, model.Unit{}, false
	}
	if !known {
		t.logger.Warn("got custom metric unit", "key", key, "unit", unit.String())
	}
	return value, unit, true
}

func statusMetricName(status uint64) string {
	switch {
	case status >= 200 && status < 300:
		return "router.status.2xx"
	case status >= 300 && status < 400:
		return "router.status.3xx"
	case status >= 400 && status < 500:
		return "router.status.4xx"
	case status >= 500 && status < 600:
		return "router.status.5xx"
	default:
		return "router.status.xxx"
	}
}

// addProcTag sets proc to the process type of source (or dyno), e.g. "web"
// for "web.1".
func addProcTag(tags map[string]string) {
	origin := tags["source"]
	if origin == "" {
		origin = tags["dyno"]
	}
	if origin == "" {
		return
	}
	proc, _, _ := strings.Cut(origin, ".")
	tags["proc"] = proc
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
