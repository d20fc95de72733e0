package intake

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type dateKind int

const (
	dateOfBirth dateKind = iota
	appointmentDate
)

const isoDate = "2006-01-02"

var (
	ordinalRE    = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	isoDateRE    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	usDateRE     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	monthFirstRE = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})$`)
	dayFirstRE   = regexp.MustCompile(`^(\d{1,2})\s+(?:of\s+)?([a-z]+)\.?,?\s+(\d{4})$`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// fallbackDateLayouts covers free-text forms the strict patterns miss.
// time.Parse matches month and weekday names case-insensitively.
var fallbackDateLayouts = []string{
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday January 2 2006",
	"Mon Jan 2 2006",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"01.02.2006",
	"1/2/06",
	"01/02/06",
	"20060102",
}

func normalizeDate(raw string, now time.Time, kind dateKind) Normalized {
	s := strings.ToLower(collapseSpaces(raw))
	s = ordinalRE.ReplaceAllString(s, "$1")

	if kind == appointmentDate {
		switch s {
		case "today":
			return Normalized{Value: strPtr(now.Format(isoDate)), Confidence: 0.8}
		case "tomorrow":
			return Normalized{Value: strPtr(now.AddDate(0, 0, 1).Format(isoDate)), Confidence: 0.8}
		}
	}

	if m := isoDateRE.FindStringSubmatch(s); m != nil {
		return dateResult(raw, now, kind, atoi(m[1]), atoi(m[2]), atoi(m[3]), 0.98)
	}
	if m := usDateRE.FindStringSubmatch(s); m != nil {
		// Month/day order is ambiguous for non-US speakers.
		return dateResult(raw, now, kind, atoi(m[3]), atoi(m[1]), atoi(m[2]), 0.85)
	}
	if m := monthFirstRE.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			return dateResult(raw, now, kind, atoi(m[3]), int(month), atoi(m[2]), 0.95)
		}
	}
	if m := dayFirstRE.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			return dateResult(raw, now, kind, atoi(m[3]), int(month), atoi(m[1]), 0.95)
		}
	}

	loose := collapseSpaces(strings.ReplaceAll(s, ",", " "))
	for _, layout := range fallbackDateLayouts {
		t, err := time.Parse(layout, loose)
		if err != nil {
			continue
		}
		return dateResult(raw, now, kind, t.Year(), int(t.Month()), t.Day(), 0.6)
	}

	return Normalized{Value: strPtr(strings.TrimSpace(raw)), Confidence: 0.3}
}

// dateResult validates the calendar date and formats it as YYYY-MM-DD.
// Invalid dates pass the raw text through at low confidence.
func dateResult(raw string, now time.Time, kind dateKind, year, month, day int, confidence float64) Normalized {
	if !validDate(year, month, day, now, kind) {
		return Normalized{Value: strPtr(strings.TrimSpace(raw)), Confidence: 0.3}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Normalized{Value: strPtr(t.Format(isoDate)), Confidence: confidence}
}

func validDate(year, month, day int, now time.Time, kind dateKind) bool {
	maxYear := now.Year()
	if kind == appointmentDate {
		maxYear += 2
	}
	if year < 1900 || year > maxYear {
		return false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	// time.Date rolls Feb 30 over into March; a changed day means it never existed.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
