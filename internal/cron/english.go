package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToEnglish renders a cron expression as a human-readable phrase for a fixed
// set of common shapes. Unrecognized expressions are returned verbatim; this
// is a display convenience and never affects scheduling.
func ToEnglish(expr string) string {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return expr
	}

	minute, hour, dayOfMonth, month, dayOfWeek := parts[0], parts[1], parts[2], parts[3], parts[4]

	// Every N minutes
	if strings.HasPrefix(minute, "*/") && hour == "*" && dayOfMonth == "*" && month == "*" && dayOfWeek == "*" {
		interval := minute[2:]
		if interval == "1" {
			return "Every minute"
		}
		return fmt.Sprintf("Every %s minutes", interval)
	}

	// Every hour at a specific minute
	if !strings.Contains(minute, "*") && !strings.Contains(minute, "/") &&
		hour == "*" && dayOfMonth == "*" && month == "*" && dayOfWeek == "*" {
		min, _ := strconv.Atoi(minute)
		if min == 0 {
			return "Every hour"
		}
		return fmt.Sprintf("Every hour at :%02d", min)
	}

	// Daily at a specific time
	if !strings.Contains(minute, "*") && !strings.Contains(minute, "/") &&
		!strings.Contains(hour, "*") && !strings.Contains(hour, "/") &&
		dayOfMonth == "*" && month == "*" && dayOfWeek == "*" {
		return fmt.Sprintf("Daily at %s", formatTime(hour, minute))
	}

	// Specific days of week
	if dayOfWeek != "*" && dayOfMonth == "*" && month == "*" {
		return fmt.Sprintf("%s at %s", describeDaysOfWeek(dayOfWeek), formatTime(hour, minute))
	}

	// Every N hours
	if minute == "0" && strings.HasPrefix(hour, "*/") &&
		dayOfMonth == "*" && month == "*" && dayOfWeek == "*" {
		interval := hour[2:]
		if interval == "1" {
			return "Every hour"
		}
		return fmt.Sprintf("Every %s hours", interval)
	}

	return expr
}

// FormatNextRun formats an upcoming run instant relative to the current day.
func FormatNextRun(t time.Time) string {
	now := time.Now()
	ny, nm, nd := now.Date()
	ty, tm, td := t.Date()

	switch {
	case ny == ty && nm == tm && nd == td:
		return t.Format("3:04 PM")
	case isSameDate(t, now.AddDate(0, 0, 1)):
		return "tomorrow " + t.Format("3:04 PM")
	default:
		return t.Format("Jan 2, 3:04 PM")
	}
}

func isSameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// formatTime renders numeric hour/minute fields as a 12-hour clock time.
func formatTime(hour, minute string) string {
	h, errH := strconv.Atoi(hour)
	m, errM := strconv.Atoi(minute)
	if errH != nil || errM != nil {
		return hour + ":" + minute
	}

	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	displayHour := h
	if h == 0 {
		displayHour = 12
	} else if h > 12 {
		displayHour = h - 12
	}
	return fmt.Sprintf("%d:%02d %s", displayHour, m, period)
}

var (
	dayAbbrevs = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	dayNames   = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// describeDaysOfWeek renders a day-of-week field as English day names.
func describeDaysOfWeek(field string) string {
	if field == "1-5" {
		return "Weekdays"
	}
	if field == "0,6" || field == "6,0" {
		return "Weekends"
	}

	indices := splitInts(field, ",")
	if len(indices) == 1 && indices[0] >= 0 && indices[0] < len(dayNames) {
		return dayNames[indices[0]]
	}

	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(dayAbbrevs) {
			names = append(names, dayAbbrevs[idx])
		}
	}
	return strings.Join(names, ", ")
}
