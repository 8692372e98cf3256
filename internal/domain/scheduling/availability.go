package scheduling

import "time"

// Window is one bookable slot returned by availability queries.
type Window struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// slotStep is the interval between candidate slot starts, independent of
// the slot length itself.
const slotStep = 15 * time.Minute

// buildSlots walks candidate starts from dayStart in slotStep increments
// and keeps each slot of length slotDur that fits before dayEnd and does
// not touch a busy window or the break.
func buildSlots(day time.Time, hours dayBounds, busy []*Appointment, slotDur time.Duration) []Window {
	slots := []Window{}
	dayStart := day.Add(time.Duration(hours.startMin) * time.Minute)
	dayEnd := day.Add(time.Duration(hours.endMin) * time.Minute)

	for t := dayStart; !t.Add(slotDur).After(dayEnd); t = t.Add(slotStep) {
		slotEnd := t.Add(slotDur)
		if hours.breakSet && t.Before(day.Add(time.Duration(hours.breakEndMin)*time.Minute)) &&
			slotEnd.After(day.Add(time.Duration(hours.breakStartMin)*time.Minute)) {
			continue
		}
		if overlapsAny(busy, t, slotEnd) {
			continue
		}
		slots = append(slots, Window{
			StartTime:       t,
			EndTime:         slotEnd,
			DurationMinutes: int(slotDur / time.Minute),
		})
	}
	return slots
}

func overlapsAny(busy []*Appointment, start, end time.Time) bool {
	for _, a := range busy {
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// dayBounds is the working window for one date, in minutes from midnight.
type dayBounds struct {
	startMin      int
	endMin        int
	breakSet      bool
	breakStartMin int
	breakEndMin   int
}
