// Package timezone converts UTC instants to civil time in a fixed target
// zone with a two-offset daylight-saving rule. The conversion is pure: the
// underlying instant is never changed, only the rendering location, so
// archive ordering stays defined on UTC instants.
package timezone

import "time"

// Converter picks between a standard and a daylight offset by date.
type Converter struct {
	name     string
	standard *time.Location
	daylight *time.Location
}

// Melbourne returns the converter for Australia/Melbourne: AEST (UTC+10)
// outside daylight saving, AEDT (UTC+11) from the first Sunday of October
// 02:00 standard time until the first Sunday of April 03:00 daylight time.
// The rule is carried here so conversion does not depend on a system tz
// database being present.
func Melbourne() *Converter {
	return &Converter{
		name:     "Australia/Melbourne",
		standard: time.FixedZone("AEST", 10*3600),
		daylight: time.FixedZone("AEDT", 11*3600),
	}
}

// Name returns the IANA-style name of the target region.
func (c *Converter) Name() string { return c.name }

// Location returns the zone in effect at the given instant.
func (c *Converter) Location(t time.Time) *time.Location {
	u := t.UTC()
	year := u.Year()
	// Daylight saving in the southern hemisphere spans the new year: the
	// period running through a given calendar year ends in April and the
	// next one starts in October.
	start := c.daylightStart(year)
	end := c.daylightEnd(year)
	if u.Before(end) || !u.Before(start) {
		return c.daylight
	}
	return c.standard
}

// Civil returns the same instant rendered in the target civil zone.
func (c *Converter) Civil(t time.Time) time.Time {
	return t.In(c.Location(t))
}

// Format renders the instant as local civil time with its zone offset.
func (c *Converter) Format(t time.Time) string {
	return c.Civil(t).Format("2006-01-02T15:04:05-07:00")
}

// daylightStart is the first Sunday of October, 02:00 standard time.
func (c *Converter) daylightStart(year int) time.Time {
	return time.Date(year, time.October, firstSunday(year, time.October), 2, 0, 0, 0, c.standard).UTC()
}

// daylightEnd is the first Sunday of April, 03:00 daylight time.
func (c *Converter) daylightEnd(year int) time.Time {
	return time.Date(year, time.April, firstSunday(year, time.April), 3, 0, 0, 0, c.daylight).UTC()
}

func firstSunday(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return 1 + (7-int(first.Weekday()))%7
}
