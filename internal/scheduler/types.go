package scheduler

import "time"

// Kind names one of the three periodic ticks.
type Kind string

const (
	KindActivate Kind = "activate"
	KindComplete Kind = "complete"
	KindExpand   Kind = "expand"
)

// Config controls the scheduler service.
//
// The three ticks run on independent cadences. Activation is checked most
// frequently and recurrence expansion least frequently; expansion is the
// most expensive and least time-sensitive pass.
type Config struct {
	Enabled bool

	ActivateEvery time.Duration // default 5m
	CompleteEvery time.Duration // default 10m
	ExpandEvery   time.Duration // default 1h

	// MaxItemsPerSec caps how fast a tick walks its due-set, protecting the
	// store during large batches. 0 disables the limit.
	MaxItemsPerSec int

	// DefaultChallengeDuration is the deactivation offset used for spawned
	// instances whose challenge carries no duration estimate. Default 7 days.
	DefaultChallengeDuration time.Duration

	HistorySize int // default 50
}

func (c Config) withDefaults() Config {
	if c.ActivateEvery <= 0 {
		c.ActivateEvery = 5 * time.Minute
	}
	if c.CompleteEvery <= 0 {
		c.CompleteEvery = 10 * time.Minute
	}
	if c.ExpandEvery <= 0 {
		c.ExpandEvery = time.Hour
	}
	if c.DefaultChallengeDuration <= 0 {
		c.DefaultChallengeDuration = 7 * 24 * time.Hour
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	return c
}

// Report aggregates one tick execution. Item-level failures never abort a
// tick; Err is set only when the due-set itself could not be fetched.
type Report struct {
	Kind      Kind
	Processed int // transitions applied or instances spawned
	Skipped   int // guards tripped, missing references, unresolvable patterns
	Failed    int // item-level errors (logged, batch continued)
	Took      time.Duration
	Err       error
}

// HistoryItem is one entry of the bounded tick-execution history.
type HistoryItem struct {
	At     time.Time
	Report Report
}

type itemResult int

const (
	itemApplied itemResult = iota
	itemSkipped
	itemFailed
)
