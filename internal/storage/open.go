package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/recurrence"
)

// Store is the persistence API used by the scheduler and the ledger.
//
// Ledger rows are append-only: created once per confirmed delivery, never
// mutated. PruneLedger exists only for long-horizon retention housekeeping.
type Store interface {
	// MarkSent records key as delivered at sentAt. It reports inserted=false
	// when the key was already present; the existing row wins and the call
	// is a no-op (this is the at-most-once gate).
	MarkSent(ctx context.Context, key string, sentAt time.Time) (inserted bool, err error)

	// SentAt returns the recorded delivery time for key, if any.
	SentAt(ctx context.Context, key string) (sentAt time.Time, ok bool, err error)

	// PruneLedger removes ledger rows recorded before cutoff and returns how
	// many were removed.
	PruneLedger(ctx context.Context, cutoff time.Time) (int64, error)

	// RecordCheckin stores a user's daily check-in (idempotent per user/day).
	RecordCheckin(ctx context.Context, user string, day recurrence.Date, at time.Time) error

	// HasCheckin reports whether user checked in on day.
	HasCheckin(ctx context.Context, user string, day recurrence.Date) (bool, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
