package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/recurrence"
)

// compactAfter is the journal record count that triggers a snapshot rewrite.
const compactAfter = 4096

// fileStore keeps the whole state in memory and journals every mutation to
// a jsonl file. On open it loads the snapshot, replays the journal and
// compacts. Good enough for a few thousand ledger rows per year.
type fileStore struct {
	mu      sync.Mutex
	dir     string
	ledger  map[string]int64 // key -> unix seconds
	checkin map[string]int64 // user|day -> unix seconds
	journal *os.File
	writer  *bufio.Writer
	pending int
	log     logx.Logger
}

type fileRecord struct {
	Op   string `json:"op"` // "sent" | "checkin"
	Key  string `json:"key,omitempty"`
	User string `json:"user,omitempty"`
	Day  string `json:"day,omitempty"`
	At   int64  `json:"at"`
}

type fileSnapshot struct {
	Ledger  map[string]int64 `json:"ledger"`
	Checkin map[string]int64 `json:"checkin"`
}

func openFile(cfg Config, log logx.Logger) (*fileStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("file storage requires a path")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	s := &fileStore{
		dir:     cfg.Path,
		ledger:  make(map[string]int64),
		checkin: make(map[string]int64),
		log:     log,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if err := s.compactLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) snapshotPath() string { return filepath.Join(s.dir, "state.json") }
func (s *fileStore) journalPath() string  { return filepath.Join(s.dir, "journal.jsonl") }

func (s *fileStore) load() error {
	raw, err := os.ReadFile(s.snapshotPath())
	switch {
	case err == nil:
		var snap fileSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("snapshot decode: %w", err)
		}
		if snap.Ledger != nil {
			s.ledger = snap.Ledger
		}
		if snap.Checkin != nil {
			s.checkin = snap.Checkin
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("snapshot read: %w", err)
	}

	jf, err := os.Open(s.journalPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal open: %w", err)
	}
	defer jf.Close()

	sc := bufio.NewScanner(jf)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	replayed := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// torn tail write; stop replaying here
			s.log.Warn("storage: journal truncated at corrupt record", logx.Int("replayed", replayed))
			break
		}
		s.applyRecord(rec)
		replayed++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("journal read: %w", err)
	}
	return nil
}

func (s *fileStore) applyRecord(rec fileRecord) {
	switch rec.Op {
	case "sent":
		if _, exists := s.ledger[rec.Key]; !exists {
			s.ledger[rec.Key] = rec.At
		}
	case "checkin":
		k := rec.User + "|" + rec.Day
		if _, exists := s.checkin[k]; !exists {
			s.checkin[k] = rec.At
		}
	}
}

// compactLocked writes a fresh snapshot and truncates the journal.
// Caller holds mu or is single-threaded (open path).
func (s *fileStore) compactLocked() error {
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	snap := fileSnapshot{Ledger: s.ledger, Checkin: s.checkin}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := s.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath()); err != nil {
		return err
	}

	if s.journal != nil {
		s.journal.Close()
	}
	jf, err := os.OpenFile(s.journalPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.journal = jf
	s.writer = bufio.NewWriter(jf)
	s.pending = 0
	return nil
}

func (s *fileStore) appendLocked(rec fileRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write(append(raw, '\n')); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	s.pending++
	if s.pending >= compactAfter {
		return s.compactLocked()
	}
	return nil
}

func (s *fileStore) MarkSent(_ context.Context, key string, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ledger[key]; exists {
		return false, nil
	}
	at := sentAt.Unix()
	if err := s.appendLocked(fileRecord{Op: "sent", Key: key, At: at}); err != nil {
		return false, err
	}
	s.ledger[key] = at
	return true, nil
}

func (s *fileStore) SentAt(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.ledger[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(at, 0), true, nil
}

func (s *fileStore) PruneLedger(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	cut := cutoff.Unix()
	for k, at := range s.ledger {
		if at < cut {
			delete(s.ledger, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.compactLocked()
}

func (s *fileStore) RecordCheckin(_ context.Context, user string, day recurrence.Date, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := user + "|" + day.String()
	if _, exists := s.checkin[k]; exists {
		return nil
	}
	unix := at.Unix()
	if err := s.appendLocked(fileRecord{Op: "checkin", User: user, Day: day.String(), At: unix}); err != nil {
		return err
	}
	s.checkin[k] = unix
	return nil
}

func (s *fileStore) HasCheckin(_ context.Context, user string, day recurrence.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.checkin[user+"|"+day.String()]
	return ok, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}
