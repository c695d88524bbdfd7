package scheduler

import (
	"context"
	"fmt"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/pkg/logx"
)

// CreateSchedule inserts a trigger for an existing challenge and moves the
// challenge to SCHEDULED. Challenges whose status cannot legally reach
// SCHEDULED (running, paused, or finished) are rejected before any row is
// written; scheduling them would fight the lifecycle.
func (s *Service) CreateSchedule(
	ctx context.Context,
	challengeID int64,
	activation, deactivation time.Time,
	pattern string,
) (schedule.Schedule, error) {
	if activation.IsZero() {
		return schedule.Schedule{}, fmt.Errorf("create schedule: activation date is required")
	}
	if !deactivation.IsZero() && !deactivation.After(activation) {
		return schedule.Schedule{}, fmt.Errorf("create schedule: deactivation must be after activation")
	}
	if pattern != "" {
		if _, ok := schedule.Next(pattern, activation); !ok {
			return schedule.Schedule{}, fmt.Errorf("create schedule: unknown recurrence pattern %q", pattern)
		}
	}

	ch, err := s.challenges.FindChallenge(ctx, challengeID)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("create schedule: challenge %d: %w", challengeID, err)
	}
	// Check the edge before persisting the schedule row; a late transition
	// failure would leave an active orphan trigger in the due-queries.
	if ch.Status != challenge.StatusScheduled && !challenge.CanTransition(ch.Status, challenge.StatusScheduled) {
		return schedule.Schedule{}, fmt.Errorf(
			"create schedule: challenge %d is %s and cannot be scheduled", challengeID, ch.Status)
	}

	now := s.now()
	kind := schedule.KindOneTime
	if pattern != "" {
		kind = schedule.KindRecurring
	}
	sc := schedule.Schedule{
		ChallengeID:       challengeID,
		Kind:              kind,
		RecurrencePattern: pattern,
		ActivationDate:    activation.UTC(),
		DeactivationDate:  deactivation.UTC(),
		Timezone:          "UTC",
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	saved, err := s.schedules.SaveSchedule(ctx, sc)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	if ch.Status != challenge.StatusScheduled {
		scheduled, err := challenge.Transition(ch, challenge.StatusScheduled, now)
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("create schedule: %w", err)
		}
		if _, err := s.challenges.SaveChallenge(ctx, scheduled); err != nil {
			return schedule.Schedule{}, fmt.Errorf("create schedule: save challenge: %w", err)
		}
	}

	s.log.Info("schedule created",
		logx.Int64("schedule_id", saved.ID),
		logx.Int64("challenge_id", challengeID),
		logx.String("kind", string(kind)))
	return saved, nil
}

// CancelSchedule marks the schedule inactive, removing it from every
// due-query. The challenge's own status is deliberately untouched: a
// challenge may have other live schedules, and cancelling a trigger is not
// cancelling the competition.
func (s *Service) CancelSchedule(ctx context.Context, id int64) error {
	sc, err := s.schedules.FindSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel schedule %d: %w", id, err)
	}
	if !sc.Active {
		return nil // already cancelled
	}
	sc.Active = false
	sc.UpdatedAt = s.now()
	if _, err := s.schedules.SaveSchedule(ctx, sc); err != nil {
		return fmt.Errorf("cancel schedule %d: %w", id, err)
	}
	s.log.Info("schedule cancelled", logx.Int64("schedule_id", id))
	return nil
}
