// Package app wires the components together: config, logging, storage, the
// Telegram adapter, the broadcast pipeline, the lifecycle scheduler and the
// conversation engine.
package app

import (
	"context"
	"fmt"
	"time"

	"queuebot/internal/config"
	"queuebot/internal/eventbus"
	"queuebot/internal/lifecycle"
	"queuebot/internal/notify"
	"queuebot/internal/observability/pprof"
	"queuebot/internal/runtime/supervisor"
	"queuebot/internal/session"
	"queuebot/internal/store"
	kit "queuebot/internal/transport"
	telegram "queuebot/internal/transport/telegram/adapter"
	logx "queuebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	st        *store.Store
	storePath string
	adapter   kit.Adapter
	notif     *notify.Service
	lc        *lifecycle.Service
	engine    *session.Engine
	pp        *pprof.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
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

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sc, err := mapStoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(sc, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	ncfg, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notify.New(ncfg, ad, st, log.With(logx.String("comp", "notify")))

	lcfg, err := mapLifecycleConfig(cfg)
	if err != nil {
		return nil, err
	}
	lc := lifecycle.New(lcfg, st, notif, bus, log.With(logx.String("comp", "lifecycle")))

	scfg, err := mapSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	engine := session.New(scfg, st, lc, log.With(logx.String("comp", "session")))

	pcfg, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	pp := pprof.New(pcfg, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		st:        st,
		storePath: sc.Path,
		adapter:   ad,
		notif:     notif,
		lc:        lc,
		engine:    engine,
		pp:        pp,
		updates:   make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app context dies (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Reject bad hot-reloads before they are committed or published.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapStoreConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifyConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSessionConfig(cfg); err != nil {
			return err
		}
		if _, err := mapLifecycleConfig(cfg); err != nil {
			return err
		}
		if _, err := mapPprofConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.notif.Start(a.sup.Context())

	// Recover missed transitions before taking user traffic.
	if err := a.lc.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("lifecycle start: %w", err)
	}

	if a.pp.Enabled() {
		if err := a.pp.Start(a.sup.Context()); err != nil {
			a.log.Warn("pprof start failed", logx.Err(err))
		}
	}

	a.sup.Go("updates.dispatch", func(c context.Context) error {
		return a.dispatchLoop(c)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated hot-reload into the live components.
// Storage and lifecycle sweep changes need a restart; everything else
// applies in place.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if ncfg, err := mapNotifyConfig(cfg); err == nil {
		a.notif.Apply(ncfg)
	}
	if scfg, err := mapSessionConfig(cfg); err == nil {
		a.engine.Apply(scfg)
	}

	if cfg.Storage.Path != a.storePath {
		a.log.Warn("storage.path changed; restart required for it to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(stepCtx)
		}()
		select {
		case <-done:
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached", logx.String("name", name))
		}
	}

	step("pprof", 2*time.Second, func(c context.Context) { a.pp.Stop(c) })
	step("lifecycle", 2*time.Second, func(c context.Context) { a.lc.Stop(c) })
	step("notify", 3*time.Second, func(c context.Context) { a.notif.Stop(c) })
	step("telegram", 3*time.Second, func(c context.Context) { _ = a.adapter.Stop(c) })

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = a.sup.Wait(waitCtx)

	if err := a.st.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}
