// Package urlutil holds the URL normalization rules shared by the capture
// agent and the metadata API. Stable comparison of URLs requires stripping
// transient query and fragment components.
package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Normalize strips the query and fragment from a URL, leaving the scheme,
// host and path untouched. Inputs that are not parseable URLs are cut at
// the first '?' or '#' instead.
func Normalize(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i != -1 {
		return raw[:i]
	}
	return raw
}

// FileName extracts the last path component of a URL for use as a display
// title. Falls back to "image" when the URL has no usable path.
func FileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "image"
	}
	name := u.Path
	if i := strings.LastIndex(name, "/"); i != -1 {
		name = name[i+1:]
	}
	if name == "" {
		return "image"
	}
	return name
}

// Hostname returns the host component of a URL, or "" if unparseable.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SanitizeName replaces every character outside [A-Za-z0-9._-] with '_',
// producing a name safe to embed in a storage key.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}
