package challenge

import "time"

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
	StatusCancelled Status = "CANCELLED"
	StatusPaused    Status = "PAUSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusCompleted,
		StatusArchived, StatusCancelled, StatusPaused:
		return true
	}
	return false
}

// Challenge is a timed investment-simulation competition/practice instance.
//
// The scheduler only writes Status and the date fields a transition sets;
// everything else is authored by the (external) content layer and copied
// verbatim when a recurring instance is spawned.
type Challenge struct {
	ID          int64
	Title       string
	Description string
	Difficulty  string
	Type        string
	Status      Status

	// InitialBalance is the simulated starting capital, in whole currency units.
	InitialBalance int64

	// SpeedFactor compresses simulated market time (1 day = N seconds).
	SpeedFactor int

	// EstimatedDurationMinutes is 0 when the author gave no estimate.
	EstimatedDurationMinutes int

	// StartDate/EndDate are zero until the state machine sets them.
	StartDate time.Time
	EndDate   time.Time

	// PeriodStart/PeriodEnd bound the historical market data being replayed.
	PeriodStart time.Time
	PeriodEnd   time.Time

	Tags               []string
	Instruments        []string
	SuccessCriteria    map[string]string
	LearningObjectives string

	// MaxParticipants is 0 for unlimited.
	MaxParticipants     int
	CurrentParticipants int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Joinable reports whether a user could enter the challenge right now.
// Enforcing the cap on join is the participation subsystem's job; this is
// the read-side predicate it shares with the admin surface.
func (c Challenge) Joinable() bool {
	return c.Status == StatusActive &&
		(c.MaxParticipants == 0 || c.CurrentParticipants < c.MaxParticipants)
}

// clone returns a deep copy: slice and map fields are copied by value so
// mutating the clone never affects the original.
func (c Challenge) clone() Challenge {
	cp := c
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	if c.Instruments != nil {
		cp.Instruments = append([]string(nil), c.Instruments...)
	}
	if c.SuccessCriteria != nil {
		cp.SuccessCriteria = make(map[string]string, len(c.SuccessCriteria))
		for k, v := range c.SuccessCriteria {
			cp.SuccessCriteria[k] = v
		}
	}
	return cp
}
