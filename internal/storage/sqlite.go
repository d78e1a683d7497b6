//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	logx "remindd/pkg/logx"

	"remindd/internal/recurrence"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite storage requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		url.PathEscape(cfg.Path), busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, key string, sentAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger (key, sent_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, sentAt.Unix())
	if err != nil {
		return false, fmt.Errorf("ledger insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) SentAt(ctx context.Context, key string) (time.Time, bool, error) {
	var at int64
	err := s.db.QueryRowContext(ctx, `SELECT sent_at FROM ledger WHERE key = ?`, key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ledger select: %w", err)
	}
	return time.Unix(at, 0), true, nil
}

func (s *sqliteStore) PruneLedger(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ledger WHERE sent_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger prune: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) RecordCheckin(ctx context.Context, user string, day recurrence.Date, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkins (user, day, at) VALUES (?, ?, ?) ON CONFLICT(user, day) DO NOTHING`,
		user, day.String(), at.Unix())
	if err != nil {
		return fmt.Errorf("checkin insert: %w", err)
	}
	return nil
}

func (s *sqliteStore) HasCheckin(ctx context.Context, user string, day recurrence.Date) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM checkins WHERE user = ? AND day = ?`, user, day.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkin select: %w", err)
	}
	return true, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
