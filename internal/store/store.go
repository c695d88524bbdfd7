package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/pkg/logx"
)

// ErrNotFound is returned when a referenced challenge or schedule does not
// exist. Callers treat it as a skippable condition, not an outage.
var ErrNotFound = errors.New("not found")

// Config configures storage.
//
// Driver values:
//   - "memory": process-local maps, nothing survives a restart
//   - "sqlite": SQLite database file
//
// An empty driver defaults to "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ChallengeStore persists challenges. Save assigns the id on first insert;
// identity is always storage-issued.
type ChallengeStore interface {
	FindChallenge(ctx context.Context, id int64) (challenge.Challenge, error)
	SaveChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error)
}

// ScheduleStore persists schedules and answers the scheduler's due-queries.
// All due-time comparisons use the caller-supplied now, in UTC.
type ScheduleStore interface {
	FindSchedule(ctx context.Context, id int64) (schedule.Schedule, error)
	FindActivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error)
	FindDeactivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error)
	FindActiveRecurring(ctx context.Context) ([]schedule.Schedule, error)
	SaveSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error)
}

// Store is the combined persistence API used by the scheduler.
type Store interface {
	ChallengeStore
	ScheduleStore
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
