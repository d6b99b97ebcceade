// Package availability computes bookable slots: it expands a resolved day
// schedule into discrete candidate slots and filters out intervals already
// taken by active appointments.
package availability

import (
	"consular/internal/appointment"
	"consular/internal/schedule"
)

// Generate expands a day's open windows into discrete slots of the type's
// duration, capped by the type's daily quota.
//
// Pure function of its inputs: windows are walked in configured order, each
// stepped in duration increments while the slot still fits the window
// (current + duration <= end). Emitted instants are converted from the
// organization's local time to UTC, since all persisted instants are UTC.
//
// A window shorter than one duration contributes zero slots; a quota of zero
// yields no slots regardless of open windows.
func Generate(day schedule.DaySchedule, typ appointment.Type) []appointment.Slot {
	if !day.Open {
		return nil
	}

	duration := typ.Duration()
	quota := typ.DailyQuota()
	if quota <= 0 || duration <= 0 {
		return nil
	}

	var slots []appointment.Slot
	for _, window := range day.Windows {
		start := day.Date.At(window.Start, day.Location)
		end := day.Date.At(window.End, day.Location)

		for cur := start; !cur.Add(duration).After(end); cur = cur.Add(duration) {
			slots = append(slots, appointment.Slot{
				Start: cur.UTC(),
				End:   cur.Add(duration).UTC(),
			})
			if len(slots) == quota {
				return slots
			}
		}
	}
	return slots
}

// FilterBooked removes candidate slots overlapping any still-blocking
// appointment. Back-to-back bookings do not conflict.
func FilterBooked(slots []appointment.Slot, booked []*appointment.Appointment) []appointment.Slot {
	if len(booked) == 0 {
		return slots
	}

	free := slots[:0]
	for _, slot := range slots {
		taken := false
		for _, b := range booked {
			if b.Status.Blocks() && slot.Overlaps(b.Slot()) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, slot)
		}
	}
	return free
}
