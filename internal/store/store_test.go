package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/pkg/logx"
)

// both drivers must satisfy the same contract
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

			c := challenge.Challenge{
				Title:                    "Tech Boom",
				Description:              "Ride the 90s rally.",
				Difficulty:               "INTERMEDIATE",
				Type:                     "BULL_MARKET",
				Status:                   challenge.StatusDraft,
				InitialBalance:           50000,
				SpeedFactor:              15,
				EstimatedDurationMinutes: 40,
				Tags:                     []string{"growth", "tech"},
				Instruments:              []string{"QQQ"},
				SuccessCriteria:          map[string]string{"min_return": "10"},
				MaxParticipants:          100,
				CreatedAt:                now,
				UpdatedAt:                now,
			}

			saved, err := st.SaveChallenge(ctx, c)
			if err != nil {
				t.Fatalf("SaveChallenge: %v", err)
			}
			if saved.ID == 0 {
				t.Fatal("save did not assign an id")
			}

			got, err := st.FindChallenge(ctx, saved.ID)
			if err != nil {
				t.Fatalf("FindChallenge: %v", err)
			}
			if got.Title != c.Title || got.Status != c.Status || got.InitialBalance != c.InitialBalance {
				t.Fatalf("round trip mismatch: %+v", got)
			}
			if len(got.Tags) != 2 || got.Tags[0] != "growth" {
				t.Fatalf("tags mismatch: %v", got.Tags)
			}
			if got.SuccessCriteria["min_return"] != "10" {
				t.Fatalf("success criteria mismatch: %v", got.SuccessCriteria)
			}
			if !got.StartDate.IsZero() || !got.EndDate.IsZero() {
				t.Fatal("unset dates should stay zero")
			}

			// update keeps identity
			got.Status = challenge.StatusScheduled
			saved2, err := st.SaveChallenge(ctx, got)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if saved2.ID != saved.ID {
				t.Fatalf("update changed id: %d -> %d", saved.ID, saved2.ID)
			}
			got2, err := st.FindChallenge(ctx, saved.ID)
			if err != nil {
				t.Fatalf("FindChallenge after update: %v", err)
			}
			if got2.Status != challenge.StatusScheduled {
				t.Fatalf("status = %s after update, want SCHEDULED", got2.Status)
			}
		})
	}
}

func TestFindChallengeNotFound(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.FindChallenge(context.Background(), 9999)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestScheduleDueQueries(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

			mk := func(s schedule.Schedule) schedule.Schedule {
				s.CreatedAt = now
				s.UpdatedAt = now
				saved, err := st.SaveSchedule(ctx, s)
				if err != nil {
					t.Fatalf("SaveSchedule: %v", err)
				}
				return saved
			}

			due := mk(schedule.Schedule{
				ChallengeID:      1,
				Kind:             schedule.KindOneTime,
				ActivationDate:   now.Add(-time.Hour),
				DeactivationDate: now.Add(24 * time.Hour),
				Timezone:         "UTC",
				Active:           true,
			})
			notYet := mk(schedule.Schedule{
				ChallengeID:      2,
				Kind:             schedule.KindOneTime,
				ActivationDate:   now.Add(time.Hour),
				DeactivationDate: now.Add(48 * time.Hour),
				Timezone:         "UTC",
				Active:           true,
			})
			inactive := mk(schedule.Schedule{
				ChallengeID:    3,
				Kind:           schedule.KindOneTime,
				ActivationDate: now.Add(-time.Hour),
				Timezone:       "UTC",
				Active:         false,
			})
			expired := mk(schedule.Schedule{
				ChallengeID:      4,
				Kind:             schedule.KindOneTime,
				ActivationDate:   now.Add(-48 * time.Hour),
				DeactivationDate: now.Add(-time.Minute),
				Timezone:         "UTC",
				Active:           true,
			})
			recurring := mk(schedule.Schedule{
				ChallengeID:       5,
				Kind:              schedule.KindRecurring,
				RecurrencePattern: schedule.PatternWeekly,
				ActivationDate:    now.Add(-time.Minute),
				DeactivationDate:  now.Add(time.Hour),
				Timezone:          "UTC",
				Active:            true,
			})

			act, err := st.FindActivationDue(ctx, now)
			if err != nil {
				t.Fatalf("FindActivationDue: %v", err)
			}
			if !hasIDs(act, due.ID, expired.ID, recurring.ID) || hasIDs(act, notYet.ID) || hasIDs(act, inactive.ID) {
				t.Fatalf("activation due = %v", ids(act))
			}

			deact, err := st.FindDeactivationDue(ctx, now)
			if err != nil {
				t.Fatalf("FindDeactivationDue: %v", err)
			}
			if !hasIDs(deact, expired.ID) || hasIDs(deact, due.ID) {
				t.Fatalf("deactivation due = %v", ids(deact))
			}

			rec, err := st.FindActiveRecurring(ctx)
			if err != nil {
				t.Fatalf("FindActiveRecurring: %v", err)
			}
			if len(rec) != 1 || rec[0].ID != recurring.ID {
				t.Fatalf("active recurring = %v", ids(rec))
			}
			if rec[0].RecurrencePattern != schedule.PatternWeekly {
				t.Fatalf("pattern = %q", rec[0].RecurrencePattern)
			}

			// cancellation removes a schedule from due-queries
			due.Active = false
			if _, err := st.SaveSchedule(ctx, due); err != nil {
				t.Fatalf("cancel save: %v", err)
			}
			act, err = st.FindActivationDue(ctx, now)
			if err != nil {
				t.Fatalf("FindActivationDue: %v", err)
			}
			if hasIDs(act, due.ID) {
				t.Fatal("cancelled schedule still due")
			}
		})
	}
}

func ids(ss []schedule.Schedule) []int64 {
	out := make([]int64, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

func hasIDs(ss []schedule.Schedule, want ...int64) bool {
	for _, w := range want {
		found := false
		for _, s := range ss {
			if s.ID == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
