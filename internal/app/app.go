package app

import (
	"context"
	"fmt"
	"time"

	"questsched/internal/config"
	"questsched/internal/runtime/supervisor"
	"questsched/internal/scheduler"
	"questsched/internal/store"
	"questsched/pkg/logx"
)

// App wires config, logging, storage, and the scheduler service into one
// start/stop lifecycle.
type App struct {
	cfgMgr *config.Manager
	cfg    *config.Config

	logSvc *logx.Service
	log    logx.Logger

	store store.Store
	sched *scheduler.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	mgr.SetLogger(log)

	st, err := store.Open(storeConfig(cfg), log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, st, st, log)

	return &App{
		cfgMgr: mgr,
		cfg:    cfg,
		logSvc: logSvc,
		log:    log,
		store:  st,
		sched:  sched,
	}, nil
}

// Scheduler exposes the service for administrative surfaces ("run now",
// schedule management).
func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.sup.Go("config-watch", a.cfgMgr.Watch)
	a.sup.Go("config-apply", a.applyLoop)

	a.log.Info("app started")
	return nil
}

func (a *App) applyLoop(ctx context.Context) error {
	updates := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-updates:
			if !ok || cfg == nil {
				return nil
			}
			a.apply(ctx, cfg)
		}
	}
}

func (a *App) apply(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(loggingConfig(cfg))

	if storeConfig(cfg) != storeConfig(a.cfg) {
		// Swapping the store out from under live ticks is not worth the
		// complexity; operators restart for that.
		a.log.Warn("storage config changed; restart required to take effect")
	}

	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		a.log.Warn("scheduler config rejected", logx.Err(err))
		return
	}
	if err := a.sched.Apply(ctx, schedCfg); err != nil {
		a.log.Error("scheduler config apply failed", logx.Err(err))
		return
	}
	a.cfg = cfg
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.logSvc.Close()
	return err
}

// ---- config mapping ----

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storeConfig(cfg *config.Config) store.Config {
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	return store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func schedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	activate, err := config.ParseDurationOrDefault("scheduler.activate_every", cfg.Scheduler.ActivateEvery, 5*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	complete, err := config.ParseDurationOrDefault("scheduler.complete_every", cfg.Scheduler.CompleteEvery, 10*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	expand, err := config.ParseDurationOrDefault("scheduler.expand_every", cfg.Scheduler.ExpandEvery, time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	defDur, err := config.ParseDurationOrDefault("scheduler.default_challenge_duration", cfg.Scheduler.DefaultChallengeDuration, 7*24*time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:                  cfg.Scheduler.IsEnabled(),
		ActivateEvery:            activate,
		CompleteEvery:            complete,
		ExpandEvery:              expand,
		MaxItemsPerSec:           cfg.Scheduler.MaxItemsPerSec,
		DefaultChallengeDuration: defDur,
		HistorySize:              cfg.Scheduler.HistorySize,
	}, nil
}
