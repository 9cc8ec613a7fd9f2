package availability

import (
	"time"

	"cloud.google.com/go/civil"
)

// ResolveWindows returns the open windows for date. An override for the date
// replaces the rules entirely; otherwise every available rule for the weekday
// contributes one window, in rule order. Overlapping rules are not merged.
func ResolveWindows(date civil.Date, rules []AvailabilityRule, override *SchedulingOverride) []Window {
	if override != nil && override.Date == date {
		if override.Unavailable {
			return nil
		}
		return []Window{{StartMinute: override.StartMinute, EndMinute: override.EndMinute}}
	}

	weekday := date.In(time.UTC).Weekday()
	var windows []Window
	for _, r := range rules {
		if r.Weekday != weekday || !r.Available {
			continue
		}
		windows = append(windows, Window{StartMinute: r.StartMinute, EndMinute: r.EndMinute})
	}
	return windows
}
