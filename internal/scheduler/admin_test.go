package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/internal/store"
)

func TestCreateScheduleMovesChallengeToScheduled(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	ctx := context.Background()

	ch := mustSaveChallenge(t, mem, challenge.Challenge{Title: "draft", Status: challenge.StatusDraft})
	activation := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	sc, err := svc.CreateSchedule(ctx, ch.ID, activation, activation.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if sc.ID == 0 || sc.Kind != schedule.KindOneTime || !sc.Active {
		t.Fatalf("schedule = %+v", sc)
	}
	if !sc.ActivationDate.Equal(activation) {
		t.Fatalf("activation = %v, want %v", sc.ActivationDate, activation)
	}

	got, _ := mem.FindChallenge(ctx, ch.ID)
	if got.Status != challenge.StatusScheduled {
		t.Fatalf("challenge status = %s, want SCHEDULED", got.Status)
	}
}

func TestCreateScheduleRecurringKind(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	ctx := context.Background()

	ch := mustSaveChallenge(t, mem, challenge.Challenge{Title: "draft", Status: challenge.StatusDraft})
	activation := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	sc, err := svc.CreateSchedule(ctx, ch.ID, activation, time.Time{}, schedule.PatternWeekly)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if sc.Kind != schedule.KindRecurring || sc.RecurrencePattern != schedule.PatternWeekly {
		t.Fatalf("schedule = %+v", sc)
	}
}

func TestCreateScheduleRejectsBadInput(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	ctx := context.Background()
	activation := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	draft := mustSaveChallenge(t, mem, challenge.Challenge{Title: "draft", Status: challenge.StatusDraft})

	// unknown pattern
	if _, err := svc.CreateSchedule(ctx, draft.ID, activation, time.Time{}, "FORTNIGHTLY"); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
	// deactivation before activation
	if _, err := svc.CreateSchedule(ctx, draft.ID, activation, activation.Add(-time.Hour), ""); err == nil {
		t.Fatal("expected error for deactivation before activation")
	}
	// zero activation
	if _, err := svc.CreateSchedule(ctx, draft.ID, time.Time{}, time.Time{}, ""); err == nil {
		t.Fatal("expected error for missing activation date")
	}
	// missing challenge
	if _, err := svc.CreateSchedule(ctx, 9999, activation, time.Time{}, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateScheduleRejectsUnschedulableStatuses(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	ctx := context.Background()
	activation := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for _, status := range []challenge.Status{
		challenge.StatusActive, challenge.StatusPaused, challenge.StatusCompleted,
		challenge.StatusArchived, challenge.StatusCancelled,
	} {
		ch := mustSaveChallenge(t, mem, challenge.Challenge{Title: string(status), Status: status})
		if _, err := svc.CreateSchedule(ctx, ch.ID, activation, time.Time{}, ""); err == nil {
			t.Errorf("expected rejection for %s challenge", status)
		}
	}

	// Rejection happens before the row is written: nothing may linger in
	// the due-queries.
	due, err := mem.FindActivationDue(ctx, activation.Add(time.Hour))
	if err != nil {
		t.Fatalf("FindActivationDue: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("rejected creations left %d orphan schedules in the due-set", len(due))
	}
}

func TestCancelScheduleLeavesChallengeAlone(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	ch := mustSaveChallenge(t, mem, challenge.Challenge{Title: "c", Status: challenge.StatusScheduled})
	sc := mustSaveSchedule(t, mem, schedule.Schedule{
		ChallengeID:    ch.ID,
		Kind:           schedule.KindOneTime,
		ActivationDate: now,
		Active:         true,
	})

	if err := svc.CancelSchedule(ctx, sc.ID); err != nil {
		t.Fatalf("CancelSchedule: %v", err)
	}

	// removed from all future due-queries
	due, err := mem.FindActivationDue(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("FindActivationDue: %v", err)
	}
	for _, d := range due {
		if d.ID == sc.ID {
			t.Fatal("cancelled schedule still in due-set")
		}
	}

	// challenge status untouched
	got, _ := mem.FindChallenge(ctx, ch.ID)
	if got.Status != challenge.StatusScheduled {
		t.Fatalf("challenge status = %s, want unchanged SCHEDULED", got.Status)
	}

	// idempotent
	if err := svc.CancelSchedule(ctx, sc.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestCancelScheduleMissing(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	if err := svc.CancelSchedule(context.Background(), 4242); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
