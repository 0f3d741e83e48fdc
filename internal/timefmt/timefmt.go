// Package timefmt handles the human-entered datetime format used across the
// bot. All user-facing timestamps use one fixed-offset zone configured at
// boot (the reference deployment runs at UTC+3).
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the accepted input format, shown to users as
// "DD.MM.YYYY hh:mm:ss".
const Layout = "02.01.2006 15:04:05"

// ShortLayout is used in list views where seconds are noise.
const ShortLayout = "02.01.2006 15:04"

// Zone returns the fixed-offset location for the given UTC offset in hours.
func Zone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// Parse parses a user-entered datetime in the given zone.
func Parse(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(Layout, strings.TrimSpace(s), loc)
}

func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

func FormatShort(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ShortLayout)
}
