package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"questsched/internal/store"
	"questsched/pkg/logx"
)

// Service drives challenge lifecycles from stored schedules: three polling
// ticks on independent cadences plus the manual schedule-management surface.
//
// The service owns no storage; all state lives behind the injected store
// interfaces. Ticks are idempotent and safe to re-run: status guards make
// re-processing an already-handled item a no-op.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	challenges store.ChallengeStore
	schedules  store.ScheduleStore

	started bool
	c       *cron.Cron
	limiter *rate.Limiter

	// now is swappable for tests.
	now func() time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, challenges store.ChallengeStore, schedules store.ScheduleStore, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:        log,
		cfg:        cfg,
		challenges: challenges,
		schedules:  schedules,
		limiter:    newLimiter(cfg.MaxItemsPerSec),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func newLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}

// Start registers the three ticks with a UTC cron runner. Starting a
// disabled service records the start so a later Apply can enable it; a
// second Start is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if err := s.registerTicks(ctx, c, s.cfg); err != nil {
		return err
	}
	s.c = c
	c.Start()
	s.log.Info("scheduler started",
		logx.Duration("activate_every", s.cfg.ActivateEvery),
		logx.Duration("complete_every", s.cfg.CompleteEvery),
		logx.Duration("expand_every", s.cfg.ExpandEvery))
	return nil
}

func (s *Service) registerTicks(ctx context.Context, c *cron.Cron, cfg Config) error {
	ticks := []struct {
		kind  Kind
		every time.Duration
		run   func(context.Context, time.Time) Report
	}{
		{KindActivate, cfg.ActivateEvery, s.ActivateDue},
		{KindComplete, cfg.CompleteEvery, s.CompleteExpired},
		{KindExpand, cfg.ExpandEvery, s.ExpandRecurring},
	}
	for _, t := range ticks {
		run := t.run
		kind := t.kind
		spec := fmt.Sprintf("@every %s", t.every)
		if _, err := c.AddFunc(spec, func() {
			rep := run(ctx, s.now())
			if rep.Err != nil {
				s.log.Error("tick failed", logx.String("tick", string(kind)), logx.Err(rep.Err))
			}
		}); err != nil {
			return fmt.Errorf("register %s tick: %w", kind, err)
		}
	}
	return nil
}

// Stop halts the cron runner and waits for in-flight ticks to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.started = false
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Apply updates the configuration at runtime. A cadence or enablement
// change restarts the cron runner; in-flight ticks are drained first.
// Before Start (or after Stop) only the stored config is updated.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	cadenceChanged := cfg.ActivateEvery != s.cfg.ActivateEvery ||
		cfg.CompleteEvery != s.cfg.CompleteEvery ||
		cfg.ExpandEvery != s.cfg.ExpandEvery ||
		cfg.Enabled != s.cfg.Enabled
	s.cfg = cfg
	s.limiter = newLimiter(cfg.MaxItemsPerSec)
	started := s.started
	old := s.c
	if cadenceChanged {
		s.c = nil
	}
	s.mu.Unlock()

	if !started || !cadenceChanged {
		return nil
	}
	if old != nil {
		// Drain outside the lock: running ticks take s.mu for config reads.
		<-old.Stop().Done()
	}

	if !cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if err := s.registerTicks(ctx, c, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
	c.Start()
	s.log.Info("scheduler restarted",
		logx.Duration("activate_every", cfg.ActivateEvery),
		logx.Duration("complete_every", cfg.CompleteEvery),
		logx.Duration("expand_every", cfg.ExpandEvery))
	return nil
}

// waitItem applies the per-item rate limit. A cancelled context returns
// false, telling the tick loop to stop pulling new items.
func (s *Service) waitItem(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if lim == nil {
		return true
	}
	return lim.Wait(ctx) == nil
}

// safeItem runs one item under its own error boundary. Panics are treated
// as item failures; nothing escapes to the tick.
func (s *Service) safeItem(log logx.Logger, fn func() (itemResult, error)) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic processing schedule",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			res = itemFailed
		}
	}()
	res, err := fn()
	if err != nil {
		log.Error("failed processing schedule", logx.Err(err))
		res = itemFailed
	}
	return res
}

func (s *Service) record(rep Report) {
	// HistorySize lives in s.cfg, which Apply swaps under s.mu.
	s.mu.Lock()
	max := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, HistoryItem{At: s.now(), Report: rep})
	if max > 0 && len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
}

// History returns a copy of the recent tick executions, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
