package schedule

import "time"

// Kind distinguishes one-shot triggers from recurring templates.
type Kind string

const (
	KindOneTime   Kind = "ONE_TIME"
	KindRecurring Kind = "RECURRING"
)

// Recurrence pattern tags. Anything else never re-fires.
const (
	PatternDaily   = "DAILY"
	PatternWeekly  = "WEEKLY"
	PatternMonthly = "MONTHLY"
)

// Schedule is a time-trigger record driving exactly one challenge.
// It does not own the challenge; it only triggers lifecycle transitions.
type Schedule struct {
	ID          int64
	ChallengeID int64
	Kind        Kind

	// RecurrencePattern is required for RECURRING schedules and ignored
	// otherwise.
	RecurrencePattern string

	ActivationDate   time.Time
	DeactivationDate time.Time

	// Timezone is informational; all due-time comparisons run in UTC.
	Timezone string

	// Active is flipped to false on cancellation. Cancelled schedules are
	// excluded from every due-query but never physically removed.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recurring reports whether the schedule is a recurring template with a
// pattern set.
func (s Schedule) Recurring() bool {
	return s.Kind == KindRecurring && s.RecurrencePattern != ""
}
