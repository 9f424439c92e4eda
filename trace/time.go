package trace

import "time"

// Timestamps are tracked at microsecond resolution; downstream consumers
// truncate to milliseconds themselves where needed.

// Micros converts a wall-clock time to microseconds since the Unix epoch.
func Micros(t time.Time) int64 {
	return t.UnixNano() / int64(time.Microsecond)
}

// DurationMicros converts a duration to whole microseconds.
func DurationMicros(d time.Duration) int64 {
	return d.Microseconds()
}

// MillisFromMicros truncates a microsecond value to milliseconds.
func MillisFromMicros(micros int64) int64 {
	return micros / 1000
}
