// Package app wires the bot together: config, logging, storage, the
// scheduler core and the Telegram transport.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/config"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/delivery"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/draft"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/sched"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/store"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/tgbot"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

// janitorSpec prunes terminal job rows nightly, off the usual posting hours.
const janitorSpec = "30 3 * * *"

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	loc       *time.Location
	retention time.Duration

	store   *store.Store
	adapter *tgbot.Adapter
	core    *sched.Core
	drafts  *draft.Service
	router  *tgbot.Router

	cron *cron.Cron

	cancelWatch context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, rootLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(rootLog.With(logx.String("comp", "config")))

	tz := cfg.Scheduler.Timezone
	if tz == "" {
		tz = timeutil.DefaultTimezone
	}
	loc, err := timeutil.Zone(tz)
	if err != nil {
		logs.Close()
		return nil, err
	}

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		logs.Close()
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, rootLog.With(logx.String("comp", "store")))
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		st.Close()
		logs.Close()
		return nil, err
	}
	adapter, err := tgbot.NewAdapter(tgbot.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, rootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		st.Close()
		logs.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	retention, err := config.ParseDurationField("scheduler.retention", cfg.Scheduler.Retention)
	if err != nil {
		st.Close()
		logs.Close()
		return nil, err
	}

	clock := timeutil.System()
	dispatcher := delivery.NewDispatcher(delivery.Config{
		SendRatePerSec: cfg.Scheduler.SendRatePerSec,
	}, adapter, clock, rootLog.With(logx.String("comp", "delivery")))

	core := sched.New(sched.Config{
		ContinueAfterFailure: cfg.Scheduler.ContinueAfterFailure,
	}, st, dispatcher, clock, loc, rootLog.With(logx.String("comp", "sched")))

	drafts := draft.NewService(st, core, adapter, clock, rootLog.With(logx.String("comp", "draft")))

	router := tgbot.NewRouter(cfg.Telegram.OwnerID, loc, clock, drafts, core, st,
		rootLog.With(logx.String("comp", "router")))
	router.Attach(adapter.Bot())

	return &App{
		cfgm:      cfgm,
		logs:      logs,
		log:       rootLog.With(logx.String("comp", "app")),
		loc:       loc,
		retention: retention,
		store:     st,
		adapter:   adapter,
		core:      core,
		drafts:    drafts,
		router:    router,
		cron:      cron.New(cron.WithLocation(loc)),
	}, nil
}

// Start re-arms persisted jobs, then brings up polling, the janitor and the
// config watcher. Pending jobs are restored before the first update is
// handled so a cancel can never race an unarmed job.
func (a *App) Start(ctx context.Context) error {
	if err := a.core.Restore(ctx); err != nil {
		return fmt.Errorf("restore pending jobs: %w", err)
	}

	if a.retention > 0 {
		_, err := a.cron.AddFunc(janitorSpec, a.prune)
		if err != nil {
			return err
		}
		a.cron.Start()
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	sub := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.adapter.Start()
	}()

	a.log.Info("started", logx.String("tz", a.loc.String()))
	return nil
}

// applyReload picks up the config changes that are safe to swap at runtime.
// Everything else (token, storage path, timezone) needs a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
}

func (a *App) prune() {
	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cutoff := time.Now().Add(-a.retention)
	n, err := a.store.PruneTerminal(c, cutoff)
	if err != nil {
		a.log.Warn("prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		a.log.Info("pruned terminal jobs", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.adapter.Stop()
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}
	a.core.Stop()
	a.wg.Wait()
	err := a.store.Close()
	a.log.Info("stopped")
	a.logs.Close()
	return err
}
