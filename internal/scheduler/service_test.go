package scheduler

import (
	"context"
	"testing"
	"time"

	"questsched/internal/store"
	"questsched/pkg/logx"
)

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{
		Enabled:       true,
		ActivateEvery: time.Hour,
		CompleteEvery: time.Hour,
		ExpandEvery:   time.Hour,
	}, mem, mem, logx.Nop())

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// second start is a no-op
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	svc.Stop(ctx)
	// stop is idempotent
	svc.Stop(ctx)
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: false}, mem, mem, logx.Nop())

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if svc.c != nil {
		t.Fatal("disabled service must not start a cron runner")
	}
}

func TestApplyChangesCadence(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: true, ActivateEvery: time.Hour}, mem, mem, logx.Nop())
	ctx := context.Background()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop(ctx)

	if err := svc.Apply(ctx, Config{Enabled: true, ActivateEvery: 30 * time.Minute}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	svc.mu.Lock()
	got := svc.cfg.ActivateEvery
	running := svc.c != nil
	svc.mu.Unlock()
	if got != 30*time.Minute {
		t.Fatalf("ActivateEvery = %v, want 30m", got)
	}
	if !running {
		t.Fatal("cron runner should be running after Apply")
	}
}

func TestApplyEnableStartsRunner(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: false}, mem, mem, logx.Nop())
	ctx := context.Background()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop(ctx)

	if err := svc.Apply(ctx, Config{Enabled: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	svc.mu.Lock()
	running := svc.c != nil
	svc.mu.Unlock()
	if !running {
		t.Fatal("enabling via Apply should start the cron runner")
	}
}

func TestApplyBeforeStartOnlyStoresConfig(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: false}, mem, mem, logx.Nop())

	if err := svc.Apply(context.Background(), Config{Enabled: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	svc.mu.Lock()
	running := svc.c != nil
	svc.mu.Unlock()
	if running {
		t.Fatal("Apply before Start must not start the cron runner")
	}
}

func TestApplyDisableStopsRunner(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: true}, mem, mem, logx.Nop())
	ctx := context.Background()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	svc.mu.Lock()
	running := svc.c != nil
	svc.mu.Unlock()
	if running {
		t.Fatal("runner should stop when disabled via Apply")
	}
}

// Exercised under the race detector: ticks read the live config while
// Apply swaps it.
func TestConcurrentApplyAndTicks(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	svc := New(Config{Enabled: true, HistorySize: 5}, mem, mem, logx.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			svc.ActivateDue(ctx, now)
			svc.History()
		}
	}()
	for i := 0; i < 50; i++ {
		size := 5 + i%3
		if err := svc.Apply(ctx, Config{Enabled: true, HistorySize: size, MaxItemsPerSec: i % 2}); err != nil {
			t.Errorf("Apply: %v", err)
		}
	}
	<-done
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()
	if cfg.ActivateEvery != 5*time.Minute ||
		cfg.CompleteEvery != 10*time.Minute ||
		cfg.ExpandEvery != time.Hour {
		t.Fatalf("cadence defaults wrong: %+v", cfg)
	}
	if cfg.ActivateEvery >= cfg.CompleteEvery || cfg.CompleteEvery >= cfg.ExpandEvery {
		t.Fatal("activation must be checked most frequently, expansion least")
	}
	if cfg.DefaultChallengeDuration != 7*24*time.Hour {
		t.Fatalf("default duration = %v, want 7 days", cfg.DefaultChallengeDuration)
	}
	if cfg.HistorySize != 50 {
		t.Fatalf("history size = %d, want 50", cfg.HistorySize)
	}
}
