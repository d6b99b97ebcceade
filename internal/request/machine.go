package request

import "fmt"

// Facts is the snapshot of external state a transition decision may depend
// on. The service assembles it from the profile and appointment stores; the
// machine itself stays a pure function so every edge is testable without
// storage.
type Facts struct {
	// ProfileCompletion is the applicant profile's completion percentage.
	ProfileCompletion int
	// DocumentsValidated is true when every required document on the profile
	// has passed validation.
	DocumentsValidated bool
	// PickupCompleted is true when a linked pickup appointment has been
	// attended and completed.
	PickupCompleted bool
}

// Decision is the outcome of evaluating one workflow edge.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type guard func(Facts) Decision

func unguarded(Facts) Decision {
	return allow()
}

func profileComplete(f Facts) Decision {
	if f.ProfileCompletion < 100 {
		return deny(fmt.Sprintf("profile is %d%% complete, 100%% required", f.ProfileCompletion))
	}
	return allow()
}

func documentsValidated(f Facts) Decision {
	if !f.DocumentsValidated {
		return deny("documents not validated")
	}
	return allow()
}

// readyForValidation gates the review outcome: a request validates only with
// a fully complete profile and every document validated.
func readyForValidation(f Facts) Decision {
	if d := profileComplete(f); !d.Allowed {
		return d
	}
	return documentsValidated(f)
}

func pickupCompleted(f Facts) Decision {
	if !f.PickupCompleted {
		return deny("pickup appointment not completed")
	}
	return allow()
}

// edges is the explicit transition table of the request workflow. Every edge
// not listed is rejected; listed edges may additionally be gated on Facts.
var edges = map[Status]map[Status]guard{
	StatusDraft: {
		StatusSubmitted: profileComplete,
	},
	StatusSubmitted: {
		StatusPendingCompletion: unguarded,
		StatusValidated:         readyForValidation,
		StatusRejected:          unguarded,
	},
	StatusPendingCompletion: {
		StatusValidated: readyForValidation,
		StatusRejected:  unguarded,
	},
	StatusValidated: {
		StatusCardInProduction: unguarded,
	},
	StatusCardInProduction: {
		StatusReadyForPickup: unguarded,
	},
	StatusReadyForPickup: {
		StatusAppointmentScheduled: unguarded,
	},
	StatusAppointmentScheduled: {
		StatusCompleted: pickupCompleted,
	},
}

// Evaluate decides whether the edge from → to is permitted given the facts.
// An unknown edge is denied with a reason naming both states.
func Evaluate(from, to Status, facts Facts) Decision {
	g, ok := edges[from][to]
	if !ok {
		return deny(fmt.Sprintf("request cannot move from %s to %s", from, to))
	}
	return g(facts)
}

// NextStatuses returns the statuses reachable from the given state,
// regardless of facts. Used by the API to advertise available actions.
func NextStatuses(from Status) []Status {
	targets := edges[from]
	if len(targets) == 0 {
		return nil
	}
	order := []Status{
		StatusSubmitted, StatusPendingCompletion, StatusValidated,
		StatusCardInProduction, StatusReadyForPickup,
		StatusAppointmentScheduled, StatusCompleted, StatusRejected,
	}
	var out []Status
	for _, st := range order {
		if _, ok := targets[st]; ok {
			out = append(out, st)
		}
	}
	return out
}
