// Package ledger is the at-most-once gate in front of the delivery pipeline.
//
// Two layers cooperate:
//   - an in-process reservation set covering instances currently in flight,
//     so overlapping ticks cannot hand the same instance to the pipeline twice
//   - the persistent store, whose conflict-free insert is the durable gate
//     across restarts
package ledger

import (
	"context"
	"sync"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/storage"
)

type Ledger struct {
	store storage.Store
	log   logx.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(store storage.Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{store: store, log: log, inflight: make(map[string]struct{})}
}

// Reserve claims key for an in-flight send. It returns false when the key is
// already reserved or already recorded as sent. The returned release func
// undoes the reservation; call it after the send fails so the next tick can
// retry, or after MarkSent succeeds.
func (l *Ledger) Reserve(ctx context.Context, key string) (release func(), ok bool, err error) {
	l.mu.Lock()
	if _, busy := l.inflight[key]; busy {
		l.mu.Unlock()
		return nil, false, nil
	}
	l.inflight[key] = struct{}{}
	l.mu.Unlock()

	release = func() {
		l.mu.Lock()
		delete(l.inflight, key)
		l.mu.Unlock()
	}

	_, sent, err := l.store.SentAt(ctx, key)
	if err != nil {
		release()
		return nil, false, err
	}
	if sent {
		release()
		return nil, false, nil
	}
	return release, true, nil
}

// MarkSent records a confirmed delivery. Losing the insert race is fine;
// some other path already recorded the send and this one stays silent.
func (l *Ledger) MarkSent(ctx context.Context, key string, at time.Time) error {
	inserted, err := l.store.MarkSent(ctx, key, at)
	if err != nil {
		return err
	}
	if !inserted {
		l.log.Debug("ledger: duplicate mark ignored", logx.String("key", key))
	}
	return nil
}

// AlreadySent reports whether key has a recorded delivery.
func (l *Ledger) AlreadySent(ctx context.Context, key string) (bool, error) {
	_, ok, err := l.store.SentAt(ctx, key)
	return ok, err
}

// Prune drops ledger rows older than cutoff.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return l.store.PruneLedger(ctx, cutoff)
}
