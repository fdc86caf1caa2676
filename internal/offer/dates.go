package offer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Month names recognised in date tokens, Hebrew then English.
var monthNames = map[string]time.Month{
	"ינואר": time.January, "פברואר": time.February, "מרץ": time.March, "אפריל": time.April,
	"מאי": time.May, "יוני": time.June, "יולי": time.July, "אוגוסט": time.August,
	"ספטמבר": time.September, "אוקטובר": time.October, "נובמבר": time.November, "דצמבר": time.December,

	"january": time.January, "february": time.February, "march": time.March, "april": time.April,
	"may": time.May, "june": time.June, "july": time.July, "august": time.August,
	"september": time.September, "october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	numericDateRegex = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2}|\d{4})$`)
	namedDateRegex   = regexp.MustCompile(`^(\d{1,2})\s*ב?(\S+)\s*(\d{4})$`)
)

// ParseDate parses a raw date token into a calendar date in loc.
// Supported forms are D/M/Y with '.', '/' or '-' separators (2 or 4 digit
// year) and "D Month YYYY". Bare month names do not parse.
func ParseDate(token string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	token = strings.TrimSpace(token)

	if m := numericDateRegex.FindStringSubmatch(token); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		return buildDate(year, time.Month(month), day, loc)
	}

	if m := namedDateRegex.FindStringSubmatch(token); m != nil {
		month, ok := monthNames[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return buildDate(year, month, day, loc)
	}

	return time.Time{}, false
}

// buildDate rejects values time.Date would silently normalise, like 31/02.
func buildDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// MonthNames returns the recognised month names, longest first, for building matchers
func MonthNames() []string {
	names := make([]string, 0, len(monthNames))
	for name := range monthNames {
		names = append(names, name)
	}
	// longest first so alternations prefer "january" over "jan"
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// Offset-less layouts written by older snapshot files, tried after RFC3339
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a stored ISO-8601 timestamp. Values without a UTC
// offset are read as wall-clock time in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	for _, layout := range localTimestampLayouts {
		if lt, lerr := time.ParseInLocation(layout, value, loc); lerr == nil {
			return lt, nil
		}
	}
	return time.Time{}, err
}
