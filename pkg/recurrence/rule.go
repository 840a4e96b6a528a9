// Package recurrence parses RFC 5545 recurrence text and expands it into
// concrete spans in an IANA time zone.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// InvalidRuleError reports recurrence text that cannot be parsed or
// expanded.
type InvalidRuleError struct {
	Rule   string
	Reason string
	Err    error
}

func (e *InvalidRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid recurrence rule %q: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid recurrence rule %q: %s", e.Rule, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error {
	return e.Err
}

const (
	layoutUTC      = "20060102T150405Z"
	layoutFloating = "20060102T150405"
	layoutDate     = "20060102"
)

var dateLayouts = []string{layoutUTC, layoutFloating, layoutDate}

// date is an RDATE or EXDATE value. A UTC value names an instant; the
// others are wall clocks of the availability's zone.
type date struct {
	t        time.Time
	utc      bool
	dateOnly bool
}

// wall returns d as a floating wall clock in loc.
func (d date) wall(loc *time.Location) time.Time {
	if d.utc {
		return floating(d.t.In(loc))
	}
	return d.t
}

// recur is one RRULE or EXRULE. utcUntil marks an UNTIL given in UTC.
type recur struct {
	opt      rrule.ROption
	utcUntil bool
}

// Rule is a parsed recurrence. Floating dates are wall-clock values
// encoded in UTC; they get a zone only during expansion.
type Rule struct {
	text    string
	rrules  []recur
	exrules []recur
	rdates  []date
	exdates []date
}

// Parse accepts an empty string (a single occurrence), a bare "FREQ=..."
// rule, or RRULE/EXRULE/RDATE/EXDATE content lines. DTSTART lines are
// ignored because the start comes from the availability itself. Several
// RRULE lines are combined; EXRULE lines remove what they match.
func Parse(text string) (*Rule, error) {
	r := &Rule{text: strings.TrimSpace(text)}
	if r.text == "" {
		return r, nil
	}

	lines := strings.Split(strings.ReplaceAll(r.text, "\r\n", "\n"), "\n")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			if !strings.HasPrefix(strings.ToUpper(line), "FREQ=") {
				return nil, &InvalidRuleError{Rule: r.text, Reason: fmt.Sprintf("malformed line %q", line)}
			}
			name, value = "RRULE", line
		}
		// Property parameters such as TZID or VALUE=DATE are not needed:
		// values are interpreted in the availability's own zone.
		name, _, _ = strings.Cut(name, ";")

		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "RRULE":
			rec, err := parseRRule(r.text, value)
			if err != nil {
				return nil, err
			}
			r.rrules = append(r.rrules, rec)
		case "EXRULE":
			rec, err := parseRRule(r.text, value)
			if err != nil {
				return nil, err
			}
			r.exrules = append(r.exrules, rec)
		case "RDATE":
			dates, err := parseDates(r.text, value)
			if err != nil {
				return nil, err
			}
			r.rdates = append(r.rdates, dates...)
		case "EXDATE":
			dates, err := parseDates(r.text, value)
			if err != nil {
				return nil, err
			}
			r.exdates = append(r.exdates, dates...)
		case "DTSTART":
		default:
			return nil, &InvalidRuleError{Rule: r.text, Reason: fmt.Sprintf("unsupported property %q", name)}
		}
	}

	return r, nil
}

// MustParse is Parse for rules known to be valid, such as test fixtures.
func MustParse(text string) *Rule {
	r, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return r
}

// IsSingle reports whether the rule yields only the reference occurrence.
func (r *Rule) IsSingle() bool {
	return r == nil || (len(r.rrules) == 0 && len(r.rdates) == 0)
}

func (r *Rule) String() string {
	if r == nil {
		return ""
	}
	return r.text
}

func parseRRule(text, value string) (recur, error) {
	value = strings.TrimSpace(value)
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return recur{}, &InvalidRuleError{Rule: text, Reason: "cannot parse RRULE", Err: err}
	}
	if opt.Freq == rrule.MINUTELY || opt.Freq == rrule.SECONDLY {
		return recur{}, &InvalidRuleError{Rule: text, Reason: fmt.Sprintf("frequency %s is finer than hourly", opt.Freq)}
	}

	check := *opt
	check.Dtstart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := rrule.NewRRule(check); err != nil {
		return recur{}, &InvalidRuleError{Rule: text, Reason: "rule cannot be evaluated", Err: err}
	}
	return recur{opt: *opt, utcUntil: hasUTCUntil(value)}, nil
}

func hasUTCUntil(value string) bool {
	for _, part := range strings.Split(value, ";") {
		key, v, _ := strings.Cut(part, "=")
		if strings.EqualFold(strings.TrimSpace(key), "UNTIL") {
			return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(v)), "Z")
		}
	}
	return false
}

func parseDates(text, value string) ([]date, error) {
	var dates []date
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, layout, err := parseDate(part)
		if err != nil {
			return nil, &InvalidRuleError{Rule: text, Reason: fmt.Sprintf("cannot parse date %q", part), Err: err}
		}
		dates = append(dates, date{t: d, utc: layout == layoutUTC, dateOnly: layout == layoutDate})
	}
	if len(dates) == 0 {
		return nil, &InvalidRuleError{Rule: text, Reason: "date list is empty"}
	}
	return dates, nil
}

func parseDate(value string) (time.Time, string, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, value)
		if err == nil {
			return d, layout, nil
		}
		lastErr = err
	}
	return time.Time{}, "", lastErr
}
