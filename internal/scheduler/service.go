package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "remindd/pkg/logx"

	"remindd/internal/eventbus"
	"remindd/internal/ledger"
	"remindd/internal/recurrence"
	"remindd/internal/remind"
	"remindd/internal/storage"
)

// Service owns the periodic tick. Matching and key derivation live in
// internal/remind and internal/recurrence; this service only orchestrates:
// load entities, match, reserve, dispatch, mark.
type Service struct {
	mu sync.Mutex

	cfg    Config
	log    logx.Logger
	bus    eventbus.Bus
	source remind.Source
	store  storage.Store
	led    *ledger.Ledger
	disp   Dispatcher

	parser  cron.Parser
	c       *cron.Cron
	loc     *time.Location
	baseCtx context.Context

	lastTick  time.Time
	lastKeys  []string
	lastErr   string
	tickCount uint64
	lastPrune time.Time
}

func New(cfg Config, source remind.Source, store storage.Store, led *ledger.Ledger, disp Dispatcher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		source: source,
		store:  store,
		led:    led,
		disp:   disp,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restart := s.c != nil &&
		(strings.TrimSpace(s.cfg.Timezone) != strings.TrimSpace(cfg.Timezone) ||
			strings.TrimSpace(s.cfg.Tick) != strings.TrimSpace(cfg.Tick))
	s.cfg = cfg
	if restart {
		s.stopCronLocked()
		if err := s.startCronLocked(); err != nil {
			s.log.Error("scheduler restart failed", logx.Err(err))
		}
	}
}

// Start begins periodic ticking. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Debug("scheduler disabled")
		return nil
	}
	s.baseCtx = ctx
	return s.startCronLocked()
}

func (s *Service) startCronLocked() error {
	spec := strings.TrimSpace(s.cfg.Tick)
	if spec == "" {
		spec = "1m"
	}
	parsed, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	run := func() { s.runTick() }
	switch parsed.Kind {
	case SpecCron:
		if _, err := s.c.AddFunc(parsed.Cron, run); err != nil {
			s.c = nil
			return err
		}
	case SpecInterval:
		s.c.Schedule(cron.Every(parsed.Every), cron.FuncJob(run))
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tick", spec), logx.String("tz", s.loc.String()))
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("bad timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Stop halts ticking. A tick already running is allowed to finish within
// ctx's deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
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

func (s *Service) stopCronLocked() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
}

func (s *Service) runTick() {
	s.mu.Lock()
	ctx := s.baseCtx
	loc := s.loc
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}

	tctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := time.Now().In(loc)
	keys, err := s.Tick(tctx, now)

	s.mu.Lock()
	s.lastTick = now
	s.lastKeys = keys
	s.tickCount++
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("tick failed", logx.Err(err))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTickDone, Data: len(keys)})
	}
}

// RecordCheckin stores a user's daily check-in for now's date.
func (s *Service) RecordCheckin(ctx context.Context, user string, now time.Time) error {
	s.mu.Lock()
	st := s.store
	s.mu.Unlock()
	if st == nil {
		return storage.ErrDisabled
	}
	day := recurrence.DateOf(now)
	if err := st.RecordCheckin(ctx, user, day, now); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeCheckinRecorded, Data: user})
	}
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Enabled:    s.cfg.Enabled,
		Timezone:   s.cfg.Timezone,
		LastTickAt: s.lastTick,
		LastKeys:   append([]string(nil), s.lastKeys...),
		LastError:  s.lastErr,
		TickCount:  s.tickCount,
	}
}
