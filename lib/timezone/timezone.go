package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Australia/Sydney")
	if err != nil {
		panic(err)
	}
}

// force the timezone to AEST because the ACCC publishes its buying tips
// on an east coast schedule and our servers are not guaranteed to run
// anywhere near Australia
func Now() time.Time {
	return time.Now().In(Location)
}
