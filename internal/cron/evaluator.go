// Package cron evaluates 5-field cron expressions at minute granularity.
//
// Supported field forms are `*`, `*/N` steps, `A-B` ranges, `a,b,c` lists and
// bare integers. The day-of-week field uses 0=Sunday..6=Saturday. Expressions
// are evaluated against local time. Anything the parser does not understand
// fails closed: a malformed field never matches.
package cron

import (
	"strconv"
	"strings"
	"time"
)

// maxScanMinutes bounds the NextRun forward scan to one year of minutes.
const maxScanMinutes = 525600

// Matches reports whether expr matches the given instant.
// An expression with a field count other than 5 never matches.
func Matches(expr string, t time.Time) bool {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return false
	}

	return fieldMatches(parts[0], t.Minute()) &&
		fieldMatches(parts[1], t.Hour()) &&
		fieldMatches(parts[2], t.Day()) &&
		fieldMatches(parts[3], int(t.Month())) &&
		fieldMatches(parts[4], int(t.Weekday()))
}

// NextRun returns the first instant strictly after `after` that matches expr,
// scanning minute by minute with seconds truncated to zero. The second return
// value is false when expr is malformed or no match exists within a year.
func NextRun(expr string, after time.Time) (time.Time, bool) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return time.Time{}, false
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < maxScanMinutes; i++ {
		if Matches(expr, candidate) {
			return candidate, true
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, false
}

// fieldMatches reports whether a single cron field matches the value.
//
// A field containing both a dash and a comma is treated as neither range nor
// list and falls through to the exact-integer parse, which then fails. That
// quirk is observable in scheduling behavior and is kept as is.
func fieldMatches(field string, value int) bool {
	if field == "*" {
		return true
	}

	if strings.HasPrefix(field, "*/") {
		step, err := strconv.Atoi(field[2:])
		if err != nil || step <= 0 {
			return false
		}
		return value%step == 0
	}

	if strings.Contains(field, "-") && !strings.Contains(field, ",") {
		bounds := splitInts(field, "-")
		if len(bounds) == 2 {
			return value >= bounds[0] && value <= bounds[1]
		}
	}

	if strings.Contains(field, ",") {
		for _, v := range splitInts(field, ",") {
			if v == value {
				return true
			}
		}
		return false
	}

	if exact, err := strconv.Atoi(field); err == nil {
		return value == exact
	}

	return false
}

// splitInts splits field on sep and keeps the pieces that parse as integers.
func splitInts(field, sep string) []int {
	parts := strings.Split(field, sep)
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			values = append(values, v)
		}
	}
	return values
}
