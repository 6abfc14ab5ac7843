package clock

import "time"

// IST is India Standard Time. A fixed zone is used so formatting never depends
// on the host's tzdata.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Func returns the current instant. Everything that reads the wall clock takes
// one so tests can pin time.
type Func func() time.Time

// Now is the production clock, already converted to IST.
func Now() time.Time {
	return time.Now().In(IST)
}

// Date builds an IST instant.
func Date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, IST)
}
