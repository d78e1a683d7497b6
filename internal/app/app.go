// Package app wires configuration, storage, the scheduler and the delivery
// pipeline into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/config"
	"remindd/internal/delivery"
	"remindd/internal/eventbus"
	"remindd/internal/ledger"
	"remindd/internal/runtime/supervisor"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
	"remindd/internal/transport"
	"remindd/internal/transport/telegram"
)

type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	registry *transport.Registry
	entities *FileSource
	led      *ledger.Ledger
	deliver  *delivery.Service
	sched    *scheduler.Service

	alerts *alertSink
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	// Transport first so the alert sink can reuse it.
	defaultScheme := "log"
	if cfg.Telegram.Enabled {
		defaultScheme = "telegram"
	}
	registry := transport.NewRegistry(defaultScheme)
	if cfg.Delivery != nil && strings.TrimSpace(cfg.Delivery.DefaultChannel) != "" {
		registry = transport.NewRegistry(strings.TrimSpace(cfg.Delivery.DefaultChannel))
	}

	alerts := &alertSink{registry: registry, channel: cfg.Logging.Alerts.Channel}
	logSvc, log := logx.New(mapLoggingConfig(cfg), alerts)
	log = log.With(logx.String("comp", "app"))

	// The log sender always exists; telegram only with a token.
	registry.Register("log", &logSender{log: logSvc.Logger().With(logx.String("comp", "channel.log"))})
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{
			Token:     cfg.Telegram.Token,
			ParseMode: cfg.Telegram.ParseMode,
		}, logSvc.Logger().With(logx.String("comp", "telegram")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		registry.Register("telegram", tg)
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	deliver := delivery.New(dcfg, registry, logSvc.Logger().With(logx.String("comp", "delivery")), bus)

	entities := NewFileSource(cfg.Entities.Path, logSvc.Logger().With(logx.String("comp", "entities")))

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	if scfg.Enabled && store == nil {
		logSvc.Close()
		return nil, fmt.Errorf("scheduler.enabled requires a storage section (the ledger lives there)")
	}

	led := ledger.New(store, logSvc.Logger().With(logx.String("comp", "ledger")))
	sched := scheduler.New(scfg, entities, store, led, deliver,
		logSvc.Logger().With(logx.String("comp", "scheduler")), bus)

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		registry: registry,
		entities: entities,
		led:      led,
		deliver:  deliver,
		sched:    sched,
		alerts:   alerts,
	}, nil
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
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
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapDeliveryConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	a.deliver.Start(a.sup.Context())
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	// Event log subscriber; debug-level to stay quiet on frequent ticks.
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
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts, keep only the newest snapshot
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}

	for _, s := range sections {
		if s == "storage" || s == "telegram" {
			a.log.Warn("section requires restart to take effect", logx.String("section", s))
		}
	}

	a.alerts.setChannel(newCfg.Logging.Alerts.Channel)
	a.logs.Apply(mapLoggingConfig(newCfg))
	a.entities.SetPath(newCfg.Entities.Path)

	if dcfg, err := mapDeliveryConfig(newCfg); err != nil {
		a.log.Warn("invalid delivery config, keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.deliver.Enabled()
		a.deliver.Apply(dcfg)
		if wasEnabled && !dcfg.Enabled {
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.deliver.Stop(stopCtx)
			cancel()
		} else if !wasEnabled && dcfg.Enabled {
			a.deliver.Start(ctx)
		}
	}

	if scfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config, keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.sched.Enabled()
		a.sched.Apply(scfg)
		if wasEnabled && !scfg.Enabled {
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		} else if !wasEnabled && scfg.Enabled {
			if err := a.sched.Start(ctx); err != nil {
				a.log.Error("scheduler restart failed", logx.Err(err))
			}
		}
	}

	if a.bus != nil {
		a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 2*time.Second, func(c context.Context) { a.sched.Stop(c) })
	step("delivery", 3*time.Second, func(c context.Context) { a.deliver.Stop(c) })
	step("storage", time.Second, func(context.Context) {
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.log.Warn("storage close failed", logx.Err(err))
			}
		}
	})
	step("supervisor", 2*time.Second, func(c context.Context) {
		if err := a.sup.Wait(c); err != nil && err != context.DeadlineExceeded {
			a.log.Warn("supervisor wait", logx.Err(err))
		}
	})

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// Snapshot aggregates component state for ops output.
type Snapshot struct {
	Scheduler  scheduler.Snapshot     `json:"scheduler"`
	Delivery   []delivery.HistoryItem `json:"delivery_history"`
	Goroutines supervisor.Counters    `json:"goroutines"`
}

func (a *App) Snapshot() Snapshot {
	out := Snapshot{
		Scheduler: a.sched.Snapshot(),
		Delivery:  a.deliver.Snapshot(),
	}
	if a.sup != nil {
		out.Goroutines = a.sup.Counters()
	}
	return out
}

// alertSink routes high-severity log lines to a notification channel.
type alertSink struct {
	registry *transport.Registry

	mu      sync.Mutex
	channel string
}

func (s *alertSink) setChannel(channel string) {
	s.mu.Lock()
	s.channel = channel
	s.mu.Unlock()
}

func (s *alertSink) Alert(ctx context.Context, text string) error {
	s.mu.Lock()
	channel := strings.TrimSpace(s.channel)
	s.mu.Unlock()
	if channel == "" {
		return nil
	}
	return s.registry.Send(ctx, channel, transport.Message{Body: text})
}

// logSender is the "log:" channel: reminders land in the daemon log. Used
// in development and as an explicit dead-end channel.
type logSender struct {
	log logx.Logger
}

func (s *logSender) Send(_ context.Context, address string, msg transport.Message) error {
	s.log.Info("reminder",
		logx.String("to", address),
		logx.String("title", msg.Title),
		logx.String("body", msg.Body))
	return nil
}
