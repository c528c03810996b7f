package resolver

import "time"

func (r *Resolver) SetClock(now func() time.Time, newEventID func() string) {
	r.now = now
	r.newEventID = newEventID
}
