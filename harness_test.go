package main

import (
	"sync"
	"testing"
	"time"
)

// manualTimer is a timerHandle driven by the test instead of the clock.
type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler records every timer the engine arms so tests can expire
// them deterministically.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) timerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire expires every currently-pending timer once, returning how many ran.
// Timers armed by the callbacks themselves stay pending for the next call.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

func newTestEngine() (*engine, *manualScheduler) {
	cfg := &Config{
		danceDuration: 30 * time.Second,
		voteDuration:  30 * time.Second,
		leadIn:        5 * time.Second,
		graceWindow:   60 * time.Second,
	}

	sched := &manualScheduler{}
	e := newEngine(cfg)
	e.sched = sched

	return e, sched
}

// newTestClient registers a connection with no websocket behind it; sends
// land in the buffered channel for the test to inspect.
func newTestClient(e *engine, id string) *Client {
	c := &Client{
		id:   id,
		send: make(chan any, 64),
		done: make(chan struct{}),
	}
	e.reg.add(c)
	return c
}

func drain(c *Client) []any {
	var msgs []any
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

// lastOf returns the most recent message of type T in the slice.
func lastOf[T any](msgs []any) (T, bool) {
	var out T
	found := false
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = v
			found = true
		}
	}
	return out, found
}

func mustLast[T any](t *testing.T, c *Client) T {
	t.Helper()

	v, ok := lastOf[T](drain(c))
	if !ok {
		t.Fatalf("no %T received", v)
	}
	return v
}

// makeRoom sets up a lobby with the given players, the first as host, and
// returns the room plus the drained clients.
func makeRoom(t *testing.T, e *engine, names ...string) (*Room, []*Client) {
	t.Helper()

	clients := make([]*Client, 0, len(names))
	host := newTestClient(e, "conn-"+names[0])
	clients = append(clients, host)

	e.handleCreateRoom(host, ClientMessage{Name: names[0]})
	created := mustLast[RoomCreatedMessage](t, host)

	for _, name := range names[1:] {
		c := newTestClient(e, "conn-"+name)
		e.handleJoinRoom(c, ClientMessage{Code: created.Code, Name: name})
		clients = append(clients, c)
	}

	room, ok := e.store.get(created.Code)
	if !ok {
		t.Fatalf("room %s not retrievable", created.Code)
	}

	for _, c := range clients {
		drain(c)
	}

	return room, clients
}
