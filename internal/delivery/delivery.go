// Package delivery is the async send pipeline between the scheduler and the
// notification channels: queue, worker pool, rate limit and retry.
//
// The pipeline itself is at-least-effort; at-most-once is the ledger's job.
// A job's Done callback reports whether at least one channel accepted the
// message, and the scheduler marks or releases the ledger accordingly.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "remindd/pkg/logx"

	"remindd/internal/eventbus"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/transport"
)

var (
	ErrDisabled  = errors.New("delivery disabled")
	ErrQueueFull = errors.New("delivery queue full")
	ErrStopped   = errors.New("delivery stopped")
)

// Sender is satisfied by *transport.Registry.
type Sender interface {
	Send(ctx context.Context, channel string, msg transport.Message) error
}

type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// Job is one reminder instance to deliver. Key is the ledger key; Done is
// called exactly once with the overall outcome.
type Job struct {
	Key      string
	Title    string
	Body     string
	Channels []string
	Done     func(delivered bool)
}

// HistoryItem is a recently sent message, kept for ops snapshots.
type HistoryItem struct {
	At   time.Time `json:"at"`
	Key  string    `json:"key"`
	Text string    `json:"text"`
}

type SentEvent struct {
	Key      string    `json:"key"`
	Channels int       `json:"channels"`
	Failed   int       `json:"failed"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender Sender
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	enqueueWG sync.WaitGroup

	queue    chan Job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Burst = rate so short spikes don't stall a tick's worth of reminders.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start is idempotent. It spawns the worker pool under an internal
// supervisor tied to ctx.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan Job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "delivery"))))
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			s.workerLoop(c, q)
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping || c.Err() != nil {
				return nil
			}
			return errors.New("delivery worker exited unexpectedly")
		})
	}
}

// Stop blocks new jobs and drains the queue best-effort until ctx's
// deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.enqueueWG.Wait()
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			_ = sup.Wait(context.Background())
		}
		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

// Dispatch enqueues a job. The queue is bounded; a full queue is an error
// so the caller can release its ledger reservation and retry next tick.
func (s *Service) Dispatch(ctx context.Context, j Job) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if len(j.Channels) == 0 {
		return fmt.Errorf("%w: job %s has no channels", transport.ErrChannelInvalid, j.Key)
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.enqueueWG.Add(1)
	s.mu.Unlock()
	defer s.enqueueWG.Done()

	select {
	case q <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Snapshot returns recently delivered messages, newest last.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(key, text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Key: key, Text: text})
	if len(s.history) > 200 {
		s.history = s.history[len(s.history)-200:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.process(ctx, j)
		}
	}
}

// process fans one job out to its channels. The job counts as delivered
// when at least one channel accepted it; the ledger then records the send
// so a partially failed fanout is not replayed to the channels that
// already got it.
func (s *Service) process(ctx context.Context, j Job) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	delivered := 0
	failed := 0
	var lastErr error

	msg := transport.Message{Title: j.Title, Body: j.Body}
	for _, channel := range j.Channels {
		err := s.sendChannel(ctx, cfg, lim, sender, channel, msg)
		if err == nil {
			delivered++
			continue
		}
		failed++
		lastErr = err
		if errors.Is(err, transport.ErrChannelInvalid) {
			s.log.Warn("delivery: invalid channel",
				logx.String("key", j.Key), logx.String("channel", channel), logx.Err(err))
		} else {
			s.log.Warn("delivery: channel send failed",
				logx.String("key", j.Key), logx.String("channel", channel), logx.Err(err))
		}
	}

	ok := delivered > 0
	if ok {
		s.appendHistory(j.Key, msg.Title)
	}
	if s.bus != nil {
		ev := SentEvent{Key: j.Key, Channels: delivered, Failed: failed, At: time.Now()}
		typ := eventbus.TypeDeliverySent
		if !ok {
			typ = eventbus.TypeDeliveryFailed
			if lastErr != nil {
				ev.Error = lastErr.Error()
			}
		}
		s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
	}
	if j.Done != nil {
		j.Done(ok)
	}
}

// sendChannel retries one channel with exponential backoff. A channel error
// marked ErrChannelInvalid is permanent and not retried.
func (s *Service) sendChannel(ctx context.Context, cfg Config, lim *rate.Limiter, sender Sender, channel string, msg transport.Message) error {
	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := sender.Send(callCtx, channel, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, transport.ErrChannelInvalid) || ctx.Err() != nil {
			return err
		}
		if attempt >= maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}
	return lastErr
}

func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
