package storage

import (
	"context"
	"testing"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/recurrence"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestFileStoreMarkSentOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	at := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	inserted, err := s.MarkSent(ctx, "standup-2024-03-04-15", at)
	if err != nil || !inserted {
		t.Fatalf("first MarkSent = (%v, %v), want (true, nil)", inserted, err)
	}

	// Second mark is a no-op and the original timestamp wins.
	inserted, err = s.MarkSent(ctx, "standup-2024-03-04-15", at.Add(time.Hour))
	if err != nil || inserted {
		t.Fatalf("second MarkSent = (%v, %v), want (false, nil)", inserted, err)
	}
	got, ok, err := s.SentAt(ctx, "standup-2024-03-04-15")
	if err != nil || !ok {
		t.Fatalf("SentAt: (%v, %v)", ok, err)
	}
	if !got.Equal(at) {
		t.Fatalf("SentAt = %v, want %v", got, at)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	day := recurrence.NewDate(2024, time.March, 4)
	at := time.Date(2024, time.March, 4, 22, 10, 0, 0, time.UTC)

	s := openTestStore(t, dir)
	if _, err := s.MarkSent(ctx, "standup-2024-03-04-0", at); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := s.RecordCheckin(ctx, "ana", day, at); err != nil {
		t.Fatalf("RecordCheckin: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s = openTestStore(t, dir)
	defer s.Close()
	if _, ok, _ := s.SentAt(ctx, "standup-2024-03-04-0"); !ok {
		t.Fatal("ledger row lost across reopen")
	}
	if inserted, _ := s.MarkSent(ctx, "standup-2024-03-04-0", at.Add(time.Hour)); inserted {
		t.Fatal("reopened store must still refuse a duplicate mark")
	}
	if ok, _ := s.HasCheckin(ctx, "ana", day); !ok {
		t.Fatal("check-in lost across reopen")
	}
	if ok, _ := s.HasCheckin(ctx, "bob", day); ok {
		t.Fatal("unknown user must not have a check-in")
	}
}

func TestFileStorePrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	old := time.Date(2023, time.January, 1, 9, 0, 0, 0, time.UTC)
	fresh := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	s.MarkSent(ctx, "old-key", old)
	s.MarkSent(ctx, "fresh-key", fresh)

	removed, err := s.PruneLedger(ctx, fresh.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneLedger: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := s.SentAt(ctx, "old-key"); ok {
		t.Fatal("pruned key still present")
	}
	if _, ok, _ := s.SentAt(ctx, "fresh-key"); !ok {
		t.Fatal("fresh key must survive pruning")
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		s, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || s != nil {
			t.Fatalf("Open(%q) = (%v, %v), want (nil, nil)", driver, s, err)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver must be rejected")
	}
}
