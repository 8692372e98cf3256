package scheduling

// Event is a lifecycle action applied to an appointment. Setting the
// confirmed status is a plain update, not an event.
type Event string

const (
	EventCancel     Event = "cancel"
	EventCheckIn    Event = "check_in"
	EventStart      Event = "start"
	EventComplete   Event = "complete"
	EventNoShow     Event = "no_show"
	EventReschedule Event = "reschedule"
)

func statusSet(ss ...Status) map[Status]bool {
	m := make(map[Status]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// transitionAllowed maps each event to the statuses it may fire from.
// start, complete and no_show are intentionally unguarded so front-desk
// staff can correct records out of order.
var transitionAllowed = map[Event]map[Status]bool{
	EventCancel: statusSet(StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusRescheduled),
	EventReschedule: statusSet(StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusRescheduled),
	EventCheckIn: statusSet(StatusConfirmed),
	EventStart: statusSet(StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled),
	EventComplete: statusSet(StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled),
	EventNoShow: statusSet(StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled),
}

// CanTransition reports whether e may fire from the given status.
func CanTransition(from Status, e Event) bool {
	return transitionAllowed[e][from]
}
