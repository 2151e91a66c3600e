package discovery

import (
	"strconv"
	"strings"
	"unicode"
)

// invalidTLDs are file extensions that commonly look like hostnames in
// binaries.
var invalidTLDs = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
	"exe": true, "dll": true, "lib": true, "obj": true, "pdb": true,
	"wav": true, "mp3": true, "ogg": true, "zip": true, "rar": true,
	"pak": true, "dat": true, "bin": true, "cfg": true, "ini": true,
	"xml": true, "json": true, "html": true, "css": true, "js": true,
	"cpp": true, "h": true, "cs": true,
}

// Clean strips a scheme, cuts at the first path or port separator and
// trims surrounding dots.
func Clean(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i > 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i > 0 {
		s = s[:i]
	}
	return strings.Trim(s, ".")
}

// IsValidDomain reports whether s is a plausible hostname.
func IsValidDomain(s string) bool {
	if len(s) < 5 || !strings.Contains(s, ".") {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	name := labels[len(labels)-2]

	if invalidTLDs[strings.ToLower(tld)] {
		return false
	}
	if strings.ContainsAny(tld, "0123456789") {
		return false
	}
	if len(tld) < 2 || len(tld) > 10 {
		return false
	}
	if len(name) < 3 {
		return false
	}
	if caseSwitches(s) > 3 {
		return false
	}
	return !allNumeric(labels)
}

// caseSwitches counts upper/lower alternations between consecutive letters.
func caseSwitches(s string) int {
	switches := 0
	seen, lastUpper := false, false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		upper := unicode.IsUpper(r)
		if seen && upper != lastUpper {
			switches++
		}
		seen, lastUpper = true, upper
	}
	return switches
}

func allNumeric(labels []string) bool {
	for _, l := range labels {
		if _, err := strconv.Atoi(l); err != nil {
			return false
		}
	}
	return true
}
