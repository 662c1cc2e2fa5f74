package engine

import "time"

// Clock supplies wall-clock time for metadata such as bundle generation time,
// registry timestamps and ledger epochs.
//
// CRITICAL: wall time is metadata only. It never enters a fingerprint, the
// master commitment or H_RICH.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// Timestamp formats t the way every artifact records time: RFC 3339, UTC,
// whole seconds.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
