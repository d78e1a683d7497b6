package remind

import (
	"strconv"
	"time"

	"remindd/internal/recurrence"
)

// CheckinWindow is the local-time hour range (inclusive) during which the
// daily check-in nudge may fire.
type CheckinWindow struct {
	FromHour int
	ToHour   int
}

// DefaultCheckinWindow nudges late in the evening, when a missing check-in
// means the day is about to end without one.
var DefaultCheckinWindow = CheckinWindow{FromHour: 22, ToHour: 23}

func (w CheckinWindow) Contains(hour int) bool {
	if w.FromHour > w.ToHour {
		return false
	}
	return hour >= w.FromHour && hour <= w.ToHour
}

// CheckinInstance is the fireable daily check-in nudge for one user. It is
// keyed per (user, date, hour bucket), so it can fire at most once per
// configured hour slot per day.
type CheckinInstance struct {
	User string
	Date recurrence.Date
	Hour int
}

func (c CheckinInstance) Key() string {
	return "checkin-" + c.User + "-" + c.Date.String() + "-h" + strconv.Itoa(c.Hour)
}

// DueCheckin reports the check-in nudge for user at now, when the window is
// open and no same-day check-in exists yet.
func DueCheckin(now time.Time, user string, checkedIn bool, w CheckinWindow) (CheckinInstance, bool) {
	if checkedIn || !w.Contains(now.Hour()) {
		return CheckinInstance{}, false
	}
	return CheckinInstance{
		User: user,
		Date: recurrence.DateOf(now),
		Hour: now.Hour(),
	}, true
}
