package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
)

// Memory is a mutex-guarded in-process store. It backs tests and the
// "memory" driver; ids are sequential per table, mirroring the sqlite
// driver's autoincrement behavior.
type Memory struct {
	mu sync.Mutex

	challenges map[int64]challenge.Challenge
	schedules  map[int64]schedule.Schedule

	nextChallengeID int64
	nextScheduleID  int64
}

func NewMemory() *Memory {
	return &Memory{
		challenges:      map[int64]challenge.Challenge{},
		schedules:       map[int64]schedule.Schedule{},
		nextChallengeID: 1,
		nextScheduleID:  1,
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) FindChallenge(ctx context.Context, id int64) (challenge.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return challenge.Challenge{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return challenge.Challenge{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) SaveChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return challenge.Challenge{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextChallengeID
		m.nextChallengeID++
	}
	m.challenges[c.ID] = c
	return c, nil
}

func (m *Memory) FindSchedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return schedule.Schedule{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) SaveSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.nextScheduleID
		m.nextScheduleID++
	}
	m.schedules[s.ID] = s
	return s, nil
}

func (m *Memory) FindActivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error) {
	return m.filter(ctx, func(s schedule.Schedule) bool {
		return s.Active && !s.ActivationDate.After(now)
	})
}

func (m *Memory) FindDeactivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error) {
	return m.filter(ctx, func(s schedule.Schedule) bool {
		return s.Active && !s.DeactivationDate.IsZero() && !s.DeactivationDate.After(now)
	})
}

func (m *Memory) FindActiveRecurring(ctx context.Context) ([]schedule.Schedule, error) {
	return m.filter(ctx, func(s schedule.Schedule) bool {
		return s.Active && s.Kind == schedule.KindRecurring
	})
}

func (m *Memory) filter(ctx context.Context, keep func(schedule.Schedule) bool) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schedule.Schedule
	for _, s := range m.schedules {
		if keep(s) {
			out = append(out, s)
		}
	}
	// deterministic order for tests and logs
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ActivationDate.Equal(out[j].ActivationDate) {
			return out[i].ActivationDate.Before(out[j].ActivationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
