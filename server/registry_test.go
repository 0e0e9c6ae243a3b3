package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newTestRegistry(max int) (*Registry, *World, *Metrics, *recordingSink) {
	cfg := DefaultWorldConfig()
	w := NewWorld(cfg, NewSpawner(cfg, 1))
	m := &Metrics{}
	sink := &recordingSink{}
	return NewRegistry(max, 8, w, m, sink), w, m, sink
}

func TestAcceptAssignsIncreasingIDsAndQueuesWelcome(t *testing.T) {
	reg, w, _, _ := newTestRegistry(3)
	for want := PlayerID(1); want <= 3; want++ {
		s, err := reg.Accept(newFakeConn(), "trace")
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if s.ID != want {
			t.Fatalf("id = %d, want %d", s.ID, want)
		}
		first := <-s.send
		var wel Welcome
		if err := json.Unmarshal(first, &wel); err != nil || wel.YourID != want {
			t.Fatalf("first queued message should be welcome for %d, got %s", want, first)
		}
	}
	if w.PlayerCount() != 3 || !w.Active() {
		t.Fatalf("world should hold 3 players and be active")
	}
}

func TestAcceptAtCapacityCreatesNoPlayer(t *testing.T) {
	reg, w, m, _ := newTestRegistry(2)
	for i := 0; i < 2; i++ {
		if _, err := reg.Accept(newFakeConn(), ""); err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		s, err := reg.Accept(newFakeConn(), "")
		if !errors.Is(err, ErrCapacity) || s != nil {
			t.Fatalf("expected ErrCapacity, got %v", err)
		}
	}
	if w.PlayerCount() != 2 || reg.Len() != 2 {
		t.Fatalf("rejected connections must not create players: world=%d reg=%d", w.PlayerCount(), reg.Len())
	}
	if m.Rejected != 3 {
		t.Fatalf("rejected metric = %d, want 3", m.Rejected)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	reg, _, _, _ := newTestRegistry(1)
	a, _ := reg.Accept(newFakeConn(), "")
	reg.Remove(a.ID)
	b, err := reg.Accept(newFakeConn(), "")
	if err != nil {
		t.Fatalf("accept after remove: %v", err)
	}
	if b.ID == a.ID || b.ID != 2 {
		t.Fatalf("id %d reused or skipped, got %d", a.ID, b.ID)
	}
}

func TestRemoveUpdatesActiveAndClosesConn(t *testing.T) {
	reg, w, _, sink := newTestRegistry(2)
	fc := newFakeConn()
	s, _ := reg.Accept(fc, "")
	if !w.Active() {
		t.Fatalf("world should be active after accept")
	}
	if !reg.Remove(s.ID) {
		t.Fatalf("remove should report true")
	}
	if w.Active() || w.PlayerCount() != 0 || reg.Len() != 0 {
		t.Fatalf("world should be empty and inactive after remove")
	}
	if !fc.isClosed() || !s.Closed() {
		t.Fatalf("connection should be closed on remove")
	}
	if reg.Remove(s.ID) {
		t.Fatalf("second remove should report false")
	}
	if got := sink.kinds(); len(got) != 2 || got[0] != EventJoin || got[1] != EventLeave {
		t.Fatalf("events = %v", got)
	}
}

func TestConcurrentAcceptRespectsCapacity(t *testing.T) {
	reg, w, _, _ := newTestRegistry(5)
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Accept(newFakeConn(), ""); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 5 || w.PlayerCount() != 5 || reg.Len() != 5 {
		t.Fatalf("accepted=%d world=%d reg=%d, want 5", accepted, w.PlayerCount(), reg.Len())
	}
}

func TestCloseAllRejectsLaterAccepts(t *testing.T) {
	reg, w, _, _ := newTestRegistry(4)
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, fc := range conns {
		_, _ = reg.Accept(fc, "")
	}
	if err := reg.CloseAll(); err != nil {
		t.Fatalf("close all: %v", err)
	}
	for _, fc := range conns {
		if !fc.isClosed() {
			t.Fatalf("all connections should be closed")
		}
	}
	if w.Active() {
		t.Fatalf("world should be inactive after close all")
	}
	if _, err := reg.Accept(newFakeConn(), ""); !errors.Is(err, ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}

func TestSessionWritePumpKeepsOrder(t *testing.T) {
	fc := newFakeConn()
	s := newSession(1, "", fc, 16)
	go s.writePump()
	for i := 0; i < 10; i++ {
		if err := s.Enqueue([]byte{byte(i)}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		b, ok := fc.next(time.Second)
		if !ok || b[0] != byte(i) {
			t.Fatalf("message %d out of order: %v", i, b)
		}
	}
	_ = s.Close()
	if err := s.Enqueue([]byte("late")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("enqueue after close = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSessionQueueFullDropsWithoutBlocking(t *testing.T) {
	s := newSession(1, "", newFakeConn(), 2)
	_ = s.Enqueue([]byte("a"))
	_ = s.Enqueue([]byte("b"))
	if err := s.Enqueue([]byte("c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if s.Closed() {
		t.Fatalf("a full queue must not close the session")
	}
}

func TestSessionWriteFailureClosesConn(t *testing.T) {
	fc := newFakeConn()
	fc.failWrite = true
	s := newSession(1, "", fc, 4)
	done := make(chan struct{})
	go func() {
		s.writePump()
		close(done)
	}()
	_ = s.Enqueue([]byte("x"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("write pump should exit after a write failure")
	}
	if !s.Closed() || !fc.isClosed() {
		t.Fatalf("write failure should close the session")
	}
}
