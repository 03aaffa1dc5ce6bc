package primitives

import "time"

// DateTime is a signed 64-bit count of seconds since the Unix epoch, the
// wire representation used by every CreatedAt/ModifiedAt header field.
type DateTime int64

// Now returns the current time truncated to whole seconds.
func Now() DateTime {
	return DateTime(time.Now().Unix())
}

// FromTime converts a time.Time to DateTime, truncating to whole seconds.
func FromTime(t time.Time) DateTime {
	return DateTime(t.Unix())
}

// Time converts back to a UTC time.Time.
func (d DateTime) Time() time.Time {
	return time.Unix(int64(d), 0).UTC()
}

// String renders the ISO-8601 UTC text form, e.g. "2026-07-29T14:05:00Z".
func (d DateTime) String() string {
	return d.Time().Format(time.RFC3339)
}
