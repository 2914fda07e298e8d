// Package placeid extracts Google place identifiers from store-locator links.
package placeid

import (
	"regexp"
	"strings"
)

const (
	markerPlaceID = "place_id:"
	markerPlace   = "/place/"
	minIDLength   = 20
	linkMarker    = "https://"
)

var placeIDPattern = regexp.MustCompile(`place_id:([^&.?]+)`)

// Extract returns the place identifier embedded in a store-locator URL.
//
// A "place_id:" marker wins and yields everything up to the next '&', '.'
// or '?'. Otherwise, for "/place/" URLs, path segments are scanned from the
// end for a ChIJ/GhIJ token longer than 20 characters. Anything else fails.
func Extract(s string) (string, bool) {
	if m := placeIDPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if strings.Contains(s, markerPlaceID) || !strings.Contains(s, markerPlace) {
		return "", false
	}

	parts := strings.Split(s, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		candidate, _, _ := strings.Cut(parts[i], "?")
		candidate, _, _ = strings.Cut(candidate, "!")
		if (strings.HasPrefix(candidate, "ChIJ") || strings.HasPrefix(candidate, "GhIJ")) && len(candidate) > minIDLength {
			return candidate, true
		}
	}
	return "", false
}

// Resolve turns an input cell into a place identifier. Values containing
// "https://" are parsed with Extract; any other non-empty value, plain
// http links included, is taken to be the identifier itself.
func Resolve(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.Contains(raw, linkMarker) {
		return Extract(raw)
	}
	return raw, true
}
