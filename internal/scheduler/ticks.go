package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/internal/store"
	"questsched/pkg/logx"
)

// ActivateDue moves every due SCHEDULED challenge to ACTIVE, stamping its
// start date from now. Items are processed under individual error
// boundaries; one bad schedule never blocks the rest of the batch.
func (s *Service) ActivateDue(ctx context.Context, now time.Time) Report {
	return s.runTick(ctx, KindActivate, now,
		func(ctx context.Context) ([]schedule.Schedule, error) {
			return s.schedules.FindActivationDue(ctx, now)
		},
		func(ctx context.Context, sc schedule.Schedule, log logx.Logger) (itemResult, error) {
			return s.transitionOne(ctx, sc, challenge.StatusScheduled, challenge.StatusActive, now, log)
		})
}

// CompleteExpired moves every expired ACTIVE challenge to COMPLETED,
// stamping its end date from now.
func (s *Service) CompleteExpired(ctx context.Context, now time.Time) Report {
	return s.runTick(ctx, KindComplete, now,
		func(ctx context.Context) ([]schedule.Schedule, error) {
			return s.schedules.FindDeactivationDue(ctx, now)
		},
		func(ctx context.Context, sc schedule.Schedule, log logx.Logger) (itemResult, error) {
			return s.transitionOne(ctx, sc, challenge.StatusActive, challenge.StatusCompleted, now, log)
		})
}

// ExpandRecurring spawns the next occurrence for every active recurring
// schedule: a fresh SCHEDULED challenge instance plus its own schedule row.
// The originating schedule is left untouched, so repeated polls before the
// new row's due-time never double-fire.
func (s *Service) ExpandRecurring(ctx context.Context, now time.Time) Report {
	return s.runTick(ctx, KindExpand, now,
		func(ctx context.Context) ([]schedule.Schedule, error) {
			return s.schedules.FindActiveRecurring(ctx)
		},
		func(ctx context.Context, sc schedule.Schedule, log logx.Logger) (itemResult, error) {
			return s.expandOne(ctx, sc, now, log)
		})
}

func (s *Service) runTick(
	ctx context.Context,
	kind Kind,
	now time.Time,
	fetch func(context.Context) ([]schedule.Schedule, error),
	item func(context.Context, schedule.Schedule, logx.Logger) (itemResult, error),
) Report {
	start := time.Now()
	rep := Report{Kind: kind}
	log := s.log.With(logx.String("tick", string(kind)))

	due, err := fetch(ctx)
	if err != nil {
		// The one tick-level failure: the due-set itself is unreachable.
		rep.Err = fmt.Errorf("fetch due-set: %w", err)
		rep.Took = time.Since(start)
		s.record(rep)
		return rep
	}
	if log.Enabled(logx.LevelDebug) {
		log.Debug("checking due schedules", logx.Int("due", len(due)))
	}

	for _, sc := range due {
		if !s.waitItem(ctx) {
			// shutting down: finish nothing new, current item already done
			break
		}
		sc := sc
		itemLog := log.With(
			logx.Int64("schedule_id", sc.ID),
			logx.Int64("challenge_id", sc.ChallengeID))
		switch s.safeItem(itemLog, func() (itemResult, error) { return item(ctx, sc, itemLog) }) {
		case itemApplied:
			rep.Processed++
		case itemSkipped:
			rep.Skipped++
		case itemFailed:
			rep.Failed++
		}
	}

	if rep.Processed+rep.Skipped+rep.Failed > 0 {
		log.Info("processed schedules",
			logx.Int("processed", rep.Processed),
			logx.Int("skipped", rep.Skipped),
			logx.Int("failed", rep.Failed))
	}
	rep.Took = time.Since(start)
	s.record(rep)
	return rep
}

// transitionOne loads the schedule's challenge and applies from -> to.
// A missing challenge or an unexpected current status is a skip, not a
// failure: the latter is the idempotency guard that makes at-least-once
// tick execution safe.
func (s *Service) transitionOne(
	ctx context.Context,
	sc schedule.Schedule,
	from, to challenge.Status,
	now time.Time,
	log logx.Logger,
) (itemResult, error) {
	ch, err := s.challenges.FindChallenge(ctx, sc.ChallengeID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("challenge missing for schedule")
		return itemSkipped, nil
	}
	if err != nil {
		return itemFailed, fmt.Errorf("load challenge %d: %w", sc.ChallengeID, err)
	}
	if ch.Status != from {
		// Another run already handled it, or an admin moved it.
		log.Debug("status guard tripped",
			logx.String("status", string(ch.Status)),
			logx.String("want", string(from)))
		return itemSkipped, nil
	}

	next, err := challenge.Transition(ch, to, now)
	if err != nil {
		var ite *challenge.IllegalTransitionError
		if errors.As(err, &ite) {
			log.Debug("illegal transition", logx.Err(err))
			return itemSkipped, nil
		}
		return itemFailed, err
	}
	if _, err := s.challenges.SaveChallenge(ctx, next); err != nil {
		return itemFailed, fmt.Errorf("save challenge %d: %w", ch.ID, err)
	}
	log.Info("challenge transitioned", logx.String("to", string(to)))
	return itemApplied, nil
}

// expandOne produces the next occurrence for one recurring schedule: clone
// the original challenge, persist it, then persist a schedule row pointing
// at the new instance. The new activation date is strictly after now for
// every recognized pattern, so the same tick cannot re-expand its own
// output.
func (s *Service) expandOne(
	ctx context.Context,
	sc schedule.Schedule,
	now time.Time,
	log logx.Logger,
) (itemResult, error) {
	next, ok := schedule.Next(sc.RecurrencePattern, now)
	if !ok {
		// Unrecognized pattern: no new occurrence this cycle. The schedule
		// stays active but never re-fires; deactivation is the operator's call.
		log.Debug("no next occurrence", logx.String("pattern", sc.RecurrencePattern))
		return itemSkipped, nil
	}

	original, err := s.challenges.FindChallenge(ctx, sc.ChallengeID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("original challenge missing for recurring schedule")
		return itemSkipped, nil
	}
	if err != nil {
		return itemFailed, fmt.Errorf("load challenge %d: %w", sc.ChallengeID, err)
	}

	instance := challenge.SpawnInstance(original, next, now)
	saved, err := s.challenges.SaveChallenge(ctx, instance)
	if err != nil {
		return itemFailed, fmt.Errorf("save spawned challenge: %w", err)
	}

	newSched := schedule.Schedule{
		ChallengeID:       saved.ID,
		Kind:              sc.Kind,
		RecurrencePattern: sc.RecurrencePattern,
		ActivationDate:    next,
		DeactivationDate:  next.Add(s.durationOrDefault(original)),
		Timezone:          sc.Timezone,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	savedSched, err := s.schedules.SaveSchedule(ctx, newSched)
	if err != nil {
		return itemFailed, fmt.Errorf("save spawned schedule: %w", err)
	}

	log.Info("spawned recurring instance",
		logx.Int64("new_challenge_id", saved.ID),
		logx.Int64("new_schedule_id", savedSched.ID),
		logx.Time("activation", next))
	return itemApplied, nil
}

func (s *Service) durationOrDefault(c challenge.Challenge) time.Duration {
	if c.EstimatedDurationMinutes > 0 {
		return time.Duration(c.EstimatedDurationMinutes) * time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DefaultChallengeDuration
}
