package challenge

import (
	"fmt"
	"time"
)

// IllegalTransitionError reports a status change the edge table forbids.
type IllegalTransitionError struct {
	ID   int64
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("challenge %d: illegal transition %s -> %s", e.ID, e.From, e.To)
}

// legalEdges is the full lifecycle edge table. The scheduler only ever
// drives SCHEDULED->ACTIVE and ACTIVE->COMPLETED; the remaining edges exist
// for the admin surface, which must share this table to stay consistent.
var legalEdges = map[Status][]Status{
	StatusDraft:     {StatusScheduled, StatusActive, StatusCancelled},
	StatusScheduled: {StatusActive, StatusCancelled, StatusDraft},
	StatusActive:    {StatusCompleted, StatusCancelled, StatusPaused},
	StatusPaused:    {StatusActive, StatusCancelled},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {},
	StatusCancelled: {StatusDraft},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, s := range legalEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of c moved to the target status, with the date
// fields that transition owns stamped from now. It performs no I/O.
//
// Side effects by edge:
//   - -> ACTIVE from SCHEDULED: StartDate = now
//   - -> COMPLETED: EndDate = now
//
// Resuming from PAUSED keeps the original StartDate. EndDate is refused
// when it would land before StartDate.
func Transition(c Challenge, to Status, now time.Time) (Challenge, error) {
	if !CanTransition(c.Status, to) {
		return Challenge{}, &IllegalTransitionError{ID: c.ID, From: c.Status, To: to}
	}

	next := c.clone()
	switch to {
	case StatusActive:
		if c.Status == StatusScheduled || c.StartDate.IsZero() {
			next.StartDate = now
		}
	case StatusCompleted:
		if !c.StartDate.IsZero() && now.Before(c.StartDate) {
			return Challenge{}, fmt.Errorf("challenge %d: end date %s before start date %s",
				c.ID, now.Format(time.RFC3339), c.StartDate.Format(time.RFC3339))
		}
		next.EndDate = now
	}
	next.Status = to
	next.UpdatedAt = now
	return next, nil
}
