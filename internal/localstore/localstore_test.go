package localstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One connection so every Store sees the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newStore(t *testing.T, db *sql.DB) *Store {
	t.Helper()
	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestGetUnsetKey(t *testing.T) {
	s := newStore(t, setupDB(t))

	v, ok, err := s.Get(KeySignIn)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok || v != "" {
		t.Fatalf("unset key: got (%q, %v), want (\"\", false)", v, ok)
	}
}

func TestSetGetRemove(t *testing.T) {
	s := newStore(t, setupDB(t))

	if err := s.Set(KeySignIn, `{"token":"t"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(KeySignIn)
	if err != nil || !ok || v != `{"token":"t"}` {
		t.Fatalf("get after set: got (%q, %v, %v)", v, ok, err)
	}

	if err := s.Set(KeySignIn, ""); err != nil {
		t.Fatalf("set empty: %v", err)
	}
	v, ok, _ = s.Get(KeySignIn)
	if !ok || v != "" {
		t.Fatalf("empty value should still be set: got (%q, %v)", v, ok)
	}

	if err := s.Remove(KeySignIn); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.Get(KeySignIn); ok {
		t.Fatal("key still set after remove")
	}

	// Idempotent
	if err := s.Remove(KeySignIn); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if err := s.Remove("never-set"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestSetAfterRemove(t *testing.T) {
	s := newStore(t, setupDB(t))

	s.Set(KeyFlags, `{"A":true}`)
	s.Remove(KeyFlags)
	if err := s.Set(KeyFlags, `{"B":true}`); err != nil {
		t.Fatalf("set after remove: %v", err)
	}
	v, ok, _ := s.Get(KeyFlags)
	if !ok || v != `{"B":true}` {
		t.Fatalf("got (%q, %v)", v, ok)
	}
}

func TestStoresShareDataButNotOrigin(t *testing.T) {
	db := setupDB(t)
	a := newStore(t, db)
	b := newStore(t, db)

	if a.Origin() == b.Origin() {
		t.Fatal("two stores should have distinct origins")
	}

	a.Set(KeySettings, "x")
	v, ok, _ := b.Get(KeySettings)
	if !ok || v != "x" {
		t.Fatalf("b should read a's write: got (%q, %v)", v, ok)
	}
}

func recv(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func TestWatchReportsForeignWrites(t *testing.T) {
	db := setupDB(t)
	self := newStore(t, db)
	other := newStore(t, db)

	self.Set(KeySignIn, "mine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := self.Watch(ctx, 10*time.Millisecond, KeySignIn)

	if err := other.Remove(KeySignIn); err != nil {
		t.Fatalf("remove: %v", err)
	}

	ev, ok := recv(t, events)
	if !ok {
		t.Fatal("expected an event for foreign remove")
	}
	if ev.Key != KeySignIn || ev.Present || ev.OldValue != "mine" || ev.Origin != other.Origin() {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	db := setupDB(t)
	self := newStore(t, db)
	other := newStore(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := self.Watch(ctx, 10*time.Millisecond, KeySignIn)

	self.Set(KeySignIn, "own")
	time.Sleep(50 * time.Millisecond)
	other.Set(KeySignIn, "theirs")

	ev, ok := recv(t, events)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.NewValue != "theirs" || ev.Origin != other.Origin() {
		t.Fatalf("first event should be the foreign write, got %+v", ev)
	}
}

func TestWatchReportsForeignWriteFollowedByOwnWrite(t *testing.T) {
	db := setupDB(t)
	self := newStore(t, db)
	other := newStore(t, db)

	self.Set(KeySignIn, "mine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := self.Watch(ctx, 100*time.Millisecond, KeySignIn)

	// Both writes land inside one poll interval; the last writer is self.
	if err := other.Remove(KeySignIn); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := self.Set(KeySignIn, "mine again"); err != nil {
		t.Fatalf("set: %v", err)
	}

	ev, ok := recv(t, events)
	if !ok {
		t.Fatal("foreign write hidden behind an own write was not reported")
	}
	if ev.Key != KeySignIn || ev.NewValue != "mine again" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWatchIgnoresRepeatedOwnWrites(t *testing.T) {
	db := setupDB(t)
	self := newStore(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := self.Watch(ctx, 10*time.Millisecond, KeySignIn)

	self.Set(KeySignIn, "a")
	self.Set(KeySignIn, "b")
	self.Remove(KeySignIn)
	self.Remove(KeySignIn)

	select {
	case ev := <-events:
		t.Fatalf("own writes reported: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	s := newStore(t, setupDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	events := s.Watch(ctx, 10*time.Millisecond, KeySignIn)
	cancel()

	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(KeySignIn, "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(KeySignIn)
	if err != nil || !ok || v != "v" {
		t.Fatalf("value after reopen: got (%q, %v, %v)", v, ok, err)
	}
}
