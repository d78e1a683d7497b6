package scheduler

import (
	"context"
	"fmt"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/delivery"
	"remindd/internal/eventbus"
	"remindd/internal/recurrence"
	"remindd/internal/remind"
)

// Tick runs one scheduling pass at the given wall time. It loads entities,
// matches due instances, reserves each one in the ledger, dispatches it and
// marks it sent once delivery confirms. Failed or unconfirmed sends release
// their reservation so the next tick retries while the margin still matches.
//
// Returns the ledger keys dispatched this pass. Running Tick twice for the
// same time dispatches nothing the second time.
func (s *Service) Tick(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	cfg := s.cfg
	source := s.source
	led := s.led
	disp := s.disp
	s.mu.Unlock()

	if source == nil || led == nil || disp == nil {
		return nil, fmt.Errorf("scheduler not wired")
	}

	entities, err := source.ListSchedulable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	valid := entities[:0:0]
	byID := make(map[string]remind.Entity, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			// malformed entities are skipped, never fatal
			s.log.Warn("skipping malformed entity", logx.String("id", e.ID), logx.Err(err))
			continue
		}
		valid = append(valid, e)
		byID[e.ID] = e
	}

	var dispatched []string
	for _, inst := range remind.MatchDue(now, valid) {
		e := byID[inst.EntityID]
		key := inst.Key()
		if s.dispatchReserved(ctx, led, disp, key, reminderJob(e, inst, key)) {
			dispatched = append(dispatched, key)
		}
	}

	if cfg.Checkin.Enabled {
		dispatched = append(dispatched, s.checkinSweep(ctx, cfg, led, disp, now)...)
	}

	s.maybePrune(ctx, cfg, led, now)
	return dispatched, nil
}

// dispatchReserved claims key and hands the job to the pipeline. The job's
// Done callback settles the reservation: confirmed sends are recorded,
// everything else is released for the next tick.
func (s *Service) dispatchReserved(ctx context.Context, led ledgerGate, disp Dispatcher, key string, j delivery.Job) bool {
	release, ok, err := led.Reserve(ctx, key)
	if err != nil {
		s.log.Error("ledger reserve failed", logx.String("key", key), logx.Err(err))
		return false
	}
	if !ok {
		return false
	}

	j.Done = func(delivered bool) {
		if !delivered {
			release()
			return
		}
		mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := led.MarkSent(mctx, key, time.Now()); err != nil {
			// the reservation stays held until release; prefer a missed
			// retry over a duplicate send
			s.log.Error("ledger mark failed", logx.String("key", key), logx.Err(err))
		}
		release()
	}

	if err := disp.Dispatch(ctx, j); err != nil {
		release()
		s.log.Warn("dispatch failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return true
}

// ledgerGate is what Tick needs from *ledger.Ledger; narrowed for tests.
type ledgerGate interface {
	Reserve(ctx context.Context, key string) (func(), bool, error)
	MarkSent(ctx context.Context, key string, at time.Time) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

func reminderJob(e remind.Entity, inst remind.Instance, key string) delivery.Job {
	return delivery.Job{
		Key:      key,
		Title:    e.Title,
		Body:     reminderBody(e, inst),
		Channels: e.Channels,
	}
}

func reminderBody(e remind.Entity, inst remind.Instance) string {
	start := e.StartMinutes()
	hh, mm := start/60, start%60
	if inst.Offset == 0 {
		return fmt.Sprintf("starts now (%02d:%02d)", hh, mm)
	}
	return fmt.Sprintf("starts at %02d:%02d, in %d min", hh, mm, inst.Offset)
}

func (s *Service) checkinSweep(ctx context.Context, cfg Config, led ledgerGate, disp Dispatcher, now time.Time) []string {
	s.mu.Lock()
	st := s.store
	s.mu.Unlock()
	if st == nil || len(cfg.Checkin.Users) == 0 || len(cfg.Checkin.Channels) == 0 {
		return nil
	}

	window := remind.CheckinWindow{FromHour: cfg.Checkin.FromHour, ToHour: cfg.Checkin.ToHour}
	if window.FromHour == 0 && window.ToHour == 0 {
		window = remind.DefaultCheckinWindow
	}

	day := recurrence.DateOf(now)
	var dispatched []string
	for _, user := range cfg.Checkin.Users {
		checked, err := st.HasCheckin(ctx, user, day)
		if err != nil {
			s.log.Warn("check-in lookup failed", logx.String("user", user), logx.Err(err))
			continue
		}
		ci, due := remind.DueCheckin(now, user, checked, window)
		if !due {
			continue
		}
		key := ci.Key()
		j := delivery.Job{
			Key:      key,
			Title:    "Daily check-in",
			Body:     fmt.Sprintf("%s, how did today go?", user),
			Channels: cfg.Checkin.Channels,
		}
		if s.dispatchReserved(ctx, led, disp, key, j) {
			dispatched = append(dispatched, key)
		}
	}
	return dispatched
}

// maybePrune drops expired ledger rows at most once a day.
func (s *Service) maybePrune(ctx context.Context, cfg Config, led ledgerGate, now time.Time) {
	if cfg.Retention <= 0 {
		return
	}
	s.mu.Lock()
	due := now.Sub(s.lastPrune) >= 24*time.Hour
	if due {
		s.lastPrune = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	removed, err := led.Prune(ctx, now.Add(-cfg.Retention))
	if err != nil {
		s.log.Warn("ledger prune failed", logx.Err(err))
		return
	}
	if removed > 0 {
		s.log.Info("ledger pruned", logx.Int64("removed", removed))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeLedgerPruned, Data: removed})
		}
	}
}
