package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{L}]+`)
	reTrimUnderscores   = regexp.MustCompile(`_+`)

	reValidTZ    = regexp.MustCompile(`^[A-Za-z0-9_\-+/]+$`)
	reMultiSlash = regexp.MustCompile(`/+`)
)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func collapseUnderscores(s string) string {
	s = reTrimUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SanitizeOwnerType turns "Meeting Room" into "meeting_room".
func SanitizeOwnerType(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}
	return p.Apply(input)
}

// SanitizeTimeZone trims an IANA zone name. Names with characters no zone
// uses are returned trimmed but otherwise untouched.
func SanitizeTimeZone(input string) string {
	s := strings.TrimSpace(input)
	if !reValidTZ.MatchString(s) {
		return s
	}
	p := Pipeline{
		func(s string) string { return reMultiSlash.ReplaceAllString(s, "/") },
		func(s string) string { return reTrimUnderscores.ReplaceAllString(s, "_") },
		func(s string) string { return strings.Trim(s, "/") },
	}
	return p.Apply(s)
}

// SanitizeRecurrence normalizes RFC 5545 recurrence text: CRLF and
// surrounding space are dropped and each property name is upper-cased.
// Values are left as they are.
func SanitizeRecurrence(input string) string {
	lines := strings.FieldsFunc(input, func(r rune) bool { return r == '\n' || r == '\r' })
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			line = strings.ToUpper(strings.TrimSpace(name)) + ":" + strings.TrimSpace(value)
		} else {
			line = strings.ToUpper(line)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
