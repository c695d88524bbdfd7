package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"questsched/internal/challenge"
	"questsched/internal/schedule"
	"questsched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- challenges ----

const challengeColumns = `id, title, description, difficulty, type, status,
	initial_balance, speed_factor, estimated_duration_minutes,
	start_date, end_date, period_start, period_end,
	tags, instruments, success_criteria, learning_objectives,
	max_participants, current_participants, created_at, updated_at`

func (s *sqliteStore) FindChallenge(ctx context.Context, id int64) (challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return challenge.Challenge{}, ErrNotFound
	}
	return c, err
}

func (s *sqliteStore) SaveChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	tags, err := jsonList(c.Tags)
	if err != nil {
		return challenge.Challenge{}, err
	}
	instruments, err := jsonList(c.Instruments)
	if err != nil {
		return challenge.Challenge{}, err
	}
	criteria, err := jsonMap(c.SuccessCriteria)
	if err != nil {
		return challenge.Challenge{}, err
	}

	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO challenges (title, description, difficulty, type, status,
				initial_balance, speed_factor, estimated_duration_minutes,
				start_date, end_date, period_start, period_end,
				tags, instruments, success_criteria, learning_objectives,
				max_participants, current_participants, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			c.Title, c.Description, c.Difficulty, c.Type, string(c.Status),
			c.InitialBalance, c.SpeedFactor, c.EstimatedDurationMinutes,
			msOrNull(c.StartDate), msOrNull(c.EndDate), msOrNull(c.PeriodStart), msOrNull(c.PeriodEnd),
			tags, instruments, criteria, c.LearningObjectives,
			c.MaxParticipants, c.CurrentParticipants, c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return challenge.Challenge{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return challenge.Challenge{}, err
		}
		c.ID = id
		return c, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE challenges SET title=?, description=?, difficulty=?, type=?, status=?,
			initial_balance=?, speed_factor=?, estimated_duration_minutes=?,
			start_date=?, end_date=?, period_start=?, period_end=?,
			tags=?, instruments=?, success_criteria=?, learning_objectives=?,
			max_participants=?, current_participants=?, created_at=?, updated_at=?
		 WHERE id=?`,
		c.Title, c.Description, c.Difficulty, c.Type, string(c.Status),
		c.InitialBalance, c.SpeedFactor, c.EstimatedDurationMinutes,
		msOrNull(c.StartDate), msOrNull(c.EndDate), msOrNull(c.PeriodStart), msOrNull(c.PeriodEnd),
		tags, instruments, criteria, c.LearningObjectives,
		c.MaxParticipants, c.CurrentParticipants, c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
		c.ID,
	)
	return c, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (challenge.Challenge, error) {
	var (
		c                           challenge.Challenge
		status                      string
		start, end, pStart, pEnd    sql.NullInt64
		tags, instruments, criteria string
		createdMS, updatedMS        int64
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Difficulty, &c.Type, &status,
		&c.InitialBalance, &c.SpeedFactor, &c.EstimatedDurationMinutes,
		&start, &end, &pStart, &pEnd,
		&tags, &instruments, &criteria, &c.LearningObjectives,
		&c.MaxParticipants, &c.CurrentParticipants, &createdMS, &updatedMS)
	if err != nil {
		return challenge.Challenge{}, err
	}
	c.Status = challenge.Status(status)
	c.StartDate = timeFromMS(start)
	c.EndDate = timeFromMS(end)
	c.PeriodStart = timeFromMS(pStart)
	c.PeriodEnd = timeFromMS(pEnd)
	c.CreatedAt = time.UnixMilli(createdMS).UTC()
	c.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return challenge.Challenge{}, fmt.Errorf("challenge %d: bad tags: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(instruments), &c.Instruments); err != nil {
		return challenge.Challenge{}, fmt.Errorf("challenge %d: bad instruments: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(criteria), &c.SuccessCriteria); err != nil {
		return challenge.Challenge{}, fmt.Errorf("challenge %d: bad success criteria: %w", c.ID, err)
	}
	return c, nil
}

// ---- schedules ----

const scheduleColumns = `id, challenge_id, kind, recurrence_pattern,
	activation_date, deactivation_date, timezone, active, created_at, updated_at`

func (s *sqliteStore) FindSchedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Schedule{}, ErrNotFound
	}
	return sc, err
}

func (s *sqliteStore) SaveSchedule(ctx context.Context, sc schedule.Schedule) (schedule.Schedule, error) {
	if sc.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO schedules (challenge_id, kind, recurrence_pattern,
				activation_date, deactivation_date, timezone, active, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			sc.ChallengeID, string(sc.Kind), sc.RecurrencePattern,
			sc.ActivationDate.UnixMilli(), msOrNull(sc.DeactivationDate),
			sc.Timezone, sc.Active, sc.CreatedAt.UnixMilli(), sc.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return schedule.Schedule{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return schedule.Schedule{}, err
		}
		sc.ID = id
		return sc, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET challenge_id=?, kind=?, recurrence_pattern=?,
			activation_date=?, deactivation_date=?, timezone=?, active=?, created_at=?, updated_at=?
		 WHERE id=?`,
		sc.ChallengeID, string(sc.Kind), sc.RecurrencePattern,
		sc.ActivationDate.UnixMilli(), msOrNull(sc.DeactivationDate),
		sc.Timezone, sc.Active, sc.CreatedAt.UnixMilli(), sc.UpdatedAt.UnixMilli(),
		sc.ID,
	)
	return sc, err
}

func (s *sqliteStore) FindActivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE active = 1 AND activation_date <= ?
		 ORDER BY activation_date, id`, now.UnixMilli())
}

func (s *sqliteStore) FindDeactivationDue(ctx context.Context, now time.Time) ([]schedule.Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE active = 1 AND deactivation_date IS NOT NULL AND deactivation_date <= ?
		 ORDER BY deactivation_date, id`, now.UnixMilli())
}

func (s *sqliteStore) FindActiveRecurring(ctx context.Context) ([]schedule.Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE active = 1 AND kind = ?
		 ORDER BY activation_date, id`, string(schedule.KindRecurring))
}

func (s *sqliteStore) querySchedules(ctx context.Context, query string, args ...any) ([]schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(row rowScanner) (schedule.Schedule, error) {
	var (
		sc                   schedule.Schedule
		kind                 string
		activationMS         int64
		deactivation         sql.NullInt64
		createdMS, updatedMS int64
	)
	err := row.Scan(&sc.ID, &sc.ChallengeID, &kind, &sc.RecurrencePattern,
		&activationMS, &deactivation, &sc.Timezone, &sc.Active, &createdMS, &updatedMS)
	if err != nil {
		return schedule.Schedule{}, err
	}
	sc.Kind = schedule.Kind(kind)
	sc.ActivationDate = time.UnixMilli(activationMS).UTC()
	sc.DeactivationDate = timeFromMS(deactivation)
	sc.CreatedAt = time.UnixMilli(createdMS).UTC()
	sc.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return sc, nil
}

// ---- helpers ----

func msOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timeFromMS(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func jsonList(v []string) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func jsonMap(v map[string]string) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}
