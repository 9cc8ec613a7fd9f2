package availability

// HasConflict reports whether slot overlaps any busy period. Busy periods carry
// no buffers of their own; includeBuffer widens only the slot.
func HasConflict(slot TimeSlot, busy []BusyPeriod, includeBuffer bool) bool {
	for _, b := range busy {
		if overlapsBusy(slot, b, includeBuffer) {
			return true
		}
	}
	return false
}

// ConflictingPeriods returns every busy period that overlaps slot, in input order.
func ConflictingPeriods(slot TimeSlot, busy []BusyPeriod, includeBuffer bool) []BusyPeriod {
	var out []BusyPeriod
	for _, b := range busy {
		if overlapsBusy(slot, b, includeBuffer) {
			out = append(out, b)
		}
	}
	return out
}

func overlapsBusy(slot TimeSlot, b BusyPeriod, includeBuffer bool) bool {
	if !b.End.After(b.Start) {
		return false
	}
	return slot.Overlaps(TimeSlot{start: b.Start, end: b.End}, includeBuffer)
}
