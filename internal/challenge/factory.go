package challenge

import (
	"errors"
	"time"
)

// SpawnInstance clones a template/original challenge into a fresh instance
// for one recurring occurrence. The clone has no identity yet (storage
// assigns ids on save), starts SCHEDULED with zero participants, and its
// content fields are copied by value so the template is never aliased.
func SpawnInstance(original Challenge, occurrenceStart, now time.Time) Challenge {
	c := original.clone()
	c.ID = 0
	c.Status = StatusScheduled
	c.CurrentParticipants = 0
	c.StartDate = occurrenceStart
	c.EndDate = time.Time{}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c
}

// Overrides are the named per-occurrence customizations an operator may
// apply to a spawned instance. Nil fields mean "keep the template value".
type Overrides struct {
	InitialBalance  *int64
	SpeedFactor     *int
	MaxParticipants *int
}

var (
	errBadBalance        = errors.New("override: initial balance must be positive")
	errBadSpeedFactor    = errors.New("override: speed factor must be >= 1")
	errBadMaxParticipant = errors.New("override: max participants must be >= 1")
)

// Apply validates the overrides and returns a copy of c with them applied.
func (o Overrides) Apply(c Challenge) (Challenge, error) {
	out := c.clone()
	if o.InitialBalance != nil {
		if *o.InitialBalance <= 0 {
			return Challenge{}, errBadBalance
		}
		out.InitialBalance = *o.InitialBalance
	}
	if o.SpeedFactor != nil {
		if *o.SpeedFactor < 1 {
			return Challenge{}, errBadSpeedFactor
		}
		out.SpeedFactor = *o.SpeedFactor
	}
	if o.MaxParticipants != nil {
		if *o.MaxParticipants < 1 {
			return Challenge{}, errBadMaxParticipant
		}
		out.MaxParticipants = *o.MaxParticipants
	}
	return out, nil
}
