package snapshots

import (
	"strings"
	"time"
)

// dateFormats are attempted in order when parsing snapshot dates.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate parses a snapshot date in any supported format. Missing or
// unparsable values fall back to today's UTC date rather than failing.
func ParseDate(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return todayUTC()
	}
	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, trimmed); err == nil {
			return parsed
		}
	}
	return todayUTC()
}

func todayUTC() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
