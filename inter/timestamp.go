package inter

import (
	"time"
)

// Timestamp is a point in time measured in nanoseconds since the Unix epoch.
// Blocks carry it as part of their hash preimage.
type Timestamp uint64

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

// FromUnix converts whole seconds since the Unix epoch into a Timestamp.
func FromUnix(t int64) Timestamp {
	return Timestamp(t * int64(time.Second))
}

// Unix returns the timestamp truncated to whole seconds.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Time converts the timestamp back into a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// String formats the timestamp as RFC3339 with nanoseconds.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}
