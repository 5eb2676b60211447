// Package alert builds error-tracking alerts from parsed log lines and
// reports them to Sentry.
package alert

import (
	"fmt"
	"strings"

	"logdrain-agent/internal/logparse"
	"logdrain-agent/internal/model"
)

const routerTimeoutCode = "H12"

// IsRouterLine reports whether frame was emitted by the platform router.
func IsRouterLine(frame logparse.Frame) bool {
	return frame.Kind == logparse.KindPlatform && frame.Source == "router"
}

// RouterTimeout builds an alert for a router line reporting an H12 request
// timeout. ok is false when the line is not a timeout or lacks host or path.
func RouterTimeout(frame logparse.Frame, pairs logparse.Pairs) (model.Alert, bool) {
	if !IsRouterLine(frame) {
		return model.Alert{}, false
	}
	if pairs.Lookup("at") != "error" || pairs.Lookup("code") != routerTimeoutCode {
		return model.Alert{}, false
	}
	host, ok := pairs.Get("host")
	if !ok || host == "" {
		return model.Alert{}, false
	}
	path, ok := pairs.Get("path")
	if !ok || path == "" {
		return model.Alert{}, false
	}

	// The router logs the path as received; keep it undecoded so escaped
	// separators stay inside their segment.
	rawPath, _, _ := strings.Cut(path, "?")
	route := logparse.NormalizeRoute(rawPath)
	tags := map[string]string{
		"transaction": route,
		"url":         "https://" + host + path,
	}
	if id, ok := pairs.Get("request_id"); ok {
		tags["request_id"] = id
	}
	if dyno, ok := pairs.Get("dyno"); ok {
		tags["server_name"] = dyno
	}
	return model.Alert{
		Message:     fmt.Sprintf("request timeout on %s\n%s", route, frame.Text),
		Tags:        tags,
		Fingerprint: []string{"router-request-timeout", route},
	}, true
}

// DynoError builds an alert for an "Error R14 (Memory quota exceeded)" line.
func DynoError(frame logparse.Frame) (model.Alert, bool) {
	dynoErr, err := logparse.ParseDynoError(frame.Text)
	if err != nil {
		return model.Alert{}, false
	}
	return model.Alert{
		Message: fmt.Sprintf("%s (%s) on %s\n%s", dynoErr.Name, dynoErr.Code, frame.Source, frame.Text),
		Tags:    map[string]string{"server_name": frame.Source},
		Fingerprint: []string{
			"dyno-error-" + strings.ToLower(dynoErr.Code),
			frame.Source,
		},
	}, true
}
