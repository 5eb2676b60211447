package logparse

import "strings"

const (
	PlaceholderNumber         = "{number}"
	PlaceholderUUID           = "{uuid}"
	PlaceholderSFID           = "{sfid}"
	PlaceholderProjectRef     = "{project_reference}"
	PlaceholderOfferNumber    = "{offer_number}"
	PlaceholderOfferExtNumber = "{offer_extension_number}"
)

// segmentMatchers is ordered: the first match wins.
var segmentMatchers = []struct {
	match       func(string) bool
	placeholder string
}{
	{IsPositiveInteger, PlaceholderNumber},
	{IsUUID, PlaceholderUUID},
	{IsSFID, PlaceholderSFID},
	{IsProjectReference, PlaceholderProjectRef},
	{IsOfferNumber, PlaceholderOfferNumber},
	{IsOfferExtensionNumber, PlaceholderOfferExtNumber},
}

// NormalizeRoute replaces identifier-like path segments with placeholders so
// that requests to the same endpoint share one route. Empty segments, and so
// leading and trailing slashes, are preserved.
func NormalizeRoute(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		for _, m := range segmentMatchers {
			if m.match(segment) {
				segments[i] = m.placeholder
				break
			}
		}
	}
	return strings.Join(segments, "/")
}
