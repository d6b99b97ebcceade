package appointment

import (
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

// CheckConflict is the booking conflict guard. It accepts a candidate slot
// against the existing appointments of the same organization and calendar day
// and the requester's own appointments.
//
// Rules:
//   - half-open overlap with any still-blocking appointment rejects with
//     CodeOverlap (back-to-back slots do not conflict);
//   - a requester may hold at most one active appointment per appointment
//     type and per service request, enforced over the requester's own
//     appointments with CodeDuplicateForRequest.
//
// Pure function of its inputs. For a booking commit it must be re-evaluated
// inside the per-(organization, day) lock: availability computed earlier can
// have been consumed by a concurrent booking.
func CheckConflict(candidate Slot, sameDay []*Appointment, requesterOwn []*Appointment, typ Type, request id.ServiceRequestID) error {
	for _, existing := range sameDay {
		if !existing.Status.Blocks() {
			continue
		}
		if candidate.Overlaps(existing.Slot()) {
			return dErrors.Newf(dErrors.CodeOverlap,
				"slot %s is no longer available", candidate.Start.Format("2006-01-02 15:04 MST"))
		}
	}

	for _, own := range requesterOwn {
		if !own.Status.Blocks() {
			continue
		}
		if !request.IsNil() && own.Request == request {
			return dErrors.New(dErrors.CodeDuplicateForRequest,
				"an active appointment already exists for this request")
		}
		if own.Type == typ {
			return dErrors.Newf(dErrors.CodeDuplicateForRequest,
				"an active %s appointment already exists for this attendee", typ)
		}
	}

	return nil
}
