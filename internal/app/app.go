// Package app wires the process together: config, logging, the sheet store,
// the Telegram client, the publish orchestrator and the background loops.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"autopost/internal/config"
	"autopost/internal/health"
	"autopost/internal/notify"
	"autopost/internal/poller"
	"autopost/internal/publish"
	"autopost/internal/runtime/supervisor"
	"autopost/internal/schedule"
	"autopost/internal/sheets"
	"autopost/internal/storage"
	"autopost/internal/telegram"
	"autopost/pkg/logx"
)

type App struct {
	cfg  *config.Config
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   *sheets.Client
	tg      *telegram.Client
	notif   *notify.Notifier
	journal storage.Journal
	orch    *publish.Orchestrator
	poll    *poller.Poller
	health  *health.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	lookback, err := cfg.LookbackDuration()
	if err != nil {
		return nil, err
	}

	store := sheets.New(sheets.Config{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		SheetName:     cfg.Sheets.SheetName,
		Credentials: sheets.Credentials{
			ClientEmail: cfg.Sheets.ClientEmail,
			PrivateKey:  cfg.Sheets.PrivateKey,
			TokenURI:    cfg.Sheets.TokenURI,
		},
	}, log.With(logx.String("comp", "sheets")))

	tg, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		ChannelID:  cfg.Telegram.ChannelID,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}

	notif := notify.New(notify.Config{
		ChannelID:   cfg.Telegram.NotifyChatID,
		AdminChatID: cfg.Telegram.AdminChatID,
	}, tg, log.With(logx.String("comp", "notify")))

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	journal, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	orch := publish.New(publish.Deps{
		Store:    store,
		Sender:   tg,
		Reporter: notif,
		Journal:  journal,
		Selector: schedule.Selector{Location: loc, Lookback: lookback},
		Log:      log.With(logx.String("comp", "publish")),
	})

	poll, err := poller.New(poller.Config{
		Schedule: cfg.Poll.Schedule,
		Location: loc,
	}, func(ctx context.Context) { orch.RunCycle(ctx) }, log.With(logx.String("comp", "poller")))
	if err != nil {
		return nil, fmt.Errorf("poll schedule: %w", err)
	}

	hs := health.New(health.Config{
		Enabled: cfg.Health.Enabled,
		Addr:    cfg.Health.Addr,
	}, func() (time.Time, bool) {
		rep, ok := orch.LastReport()
		return rep.Started, ok
	}, log.With(logx.String("comp", "health")))

	return &App{
		cfg:     cfg,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		tg:      tg,
		notif:   notif,
		journal: journal,
		orch:    orch,
		poll:    poll,
		health:  hs,
	}, nil
}

// Start launches the background loops and returns. Callers block on Wait.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	if err := a.probe(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	if a.cfg.Sheets.SetupHeaders {
		if err := a.store.SetupHeaders(a.sup.Context()); err != nil {
			a.log.Warn("header setup failed", logx.Err(err))
		}
	}

	a.announceStartup(a.sup.Context())

	a.sup.Go("poller", a.poll.Run)
	if a.cfg.Health.Enabled {
		a.sup.Go("health", a.health.Run)
	}
	a.sup.Go("config-watch", a.cfgm.Watch)
	a.sup.Go("config-apply", a.watchConfig)
	a.startWatchdog()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started",
		logx.String("schedule", a.cfg.Poll.Schedule),
		logx.String("timezone", a.cfg.Poll.Timezone),
		logx.String("channel", a.cfg.Telegram.ChannelID))
	return nil
}

func (a *App) Wait(ctx context.Context) error { return a.sup.Wait(ctx) }

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if a.journal != nil {
		if cerr := a.journal.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.logs.Close()
	return err
}

// RunOnce executes a single publish cycle and exits; used by the -once flag
// and external schedulers.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.probe(ctx); err != nil {
		return err
	}
	rep := a.orch.RunCycle(ctx)
	if rep.StoreUnavailable {
		return fmt.Errorf("cycle skipped: sheet store unavailable")
	}
	a.log.Info("single cycle done",
		logx.Int("pending", rep.Pending),
		logx.Int("published", rep.Published),
		logx.Int("errored", rep.Errored))
	return nil
}

// Check verifies Telegram connectivity and sheet reachability, then exits.
func (a *App) Check(ctx context.Context) error {
	if err := a.tg.TestConnection(ctx); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if _, err := a.store.ReadAll(ctx); err != nil {
		return fmt.Errorf("sheets: %w", err)
	}
	return nil
}

func (a *App) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.tg.TestConnection(probeCtx); err != nil {
		return fmt.Errorf("telegram connection test: %w", err)
	}
	return nil
}

func (a *App) announceStartup(ctx context.Context) {
	lookback := "без ограничения"
	if d, _ := a.cfg.LookbackDuration(); d > 0 {
		lookback = d.String()
	}
	storeState := "подключена"
	if _, err := a.store.ReadAll(ctx); err != nil {
		storeState = "недоступна"
	}
	a.notif.Info(ctx, "Автопостинг запущен", []notify.KV{
		{Key: "Расписание", Value: a.cfg.Poll.Schedule},
		{Key: "Окно публикации", Value: lookback},
		{Key: "Канал", Value: a.cfg.Telegram.ChannelID},
		{Key: "Таблица", Value: storeState},
	})
}

// watchConfig applies hot-reloadable settings; everything else needs a
// restart.
func (a *App) watchConfig(ctx context.Context) error {
	sub := a.cfgm.Subscribe(1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("logging config reloaded", logx.String("level", cfg.Logging.Level))
		}
	}
}

// startWatchdog pets the systemd watchdog at half the configured interval.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.sup.Go("sd-watchdog", func(ctx context.Context) error {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}
