package chrono

import (
	"time"
)

// the portals and the store both bucket usage by the japanese calendar day,
// JST has no daylight saving so a fixed zone avoids depending on tzdata.
var jst = time.FixedZone("JST", 9*60*60)

// JST returns a [*time.Location] fixed at UTC+9.
func JST() *time.Location {
	return jst
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time, the timezone of the time will always be JST.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(jst)
}

// FixedTime always returns the same instant, useful for tests.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(jst)
}
