/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"
	"sync"
	"time"
)

type gamePhase int

const (
	phaseLobby gamePhase = iota
	phaseDancing
	phaseVoting
	phaseRevealed
)

// Player holds the data we store server-side. ID is the current connection
// id and changes across reconnection; Name is the stable reconnection key.
type Player struct {
	ID           string
	Name         string
	Score        int
	Disconnected bool
	removal      timerHandle // armed only while disconnected
}

// Room is one game session. All fields are guarded by mu; the engine is
// the only writer.
type Room struct {
	code string

	mu      sync.Mutex
	players []*Player // ordered by join time
	hostID  string
	phase   gamePhase

	// settings, applied to the next round
	danceDuration time.Duration
	voteDuration  time.Duration

	// per-round state, valid while phase is Dancing/Voting/Revealed
	round         int // generation counter; stale timers check it
	impostorID    string
	impostorName  string
	normalTrack   string
	impostorTrack string
	startOffset   int
	startedAt     time.Time
	voteEndsAt    time.Time
	roundDance    time.Duration
	roundVote     time.Duration
	votes         map[string]string // voter id -> accused id

	phaseTimer timerHandle

	createdAt  time.Time
	lastActive time.Time
}

func (r *Room) inProgressLocked() bool {
	return r.phase == phaseDancing || r.phase == phaseVoting
}

func (r *Room) findPlayerLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) findByNameLocked(name string) *Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) activeCountLocked() int {
	count := 0
	for _, p := range r.players {
		if !p.Disconnected {
			count++
		}
	}
	return count
}

func (r *Room) removePlayerLocked(id string) *Player {
	dst := r.players[:0]
	var removed *Player
	for _, p := range r.players {
		if p.ID == id {
			removed = p
			continue
		}
		dst = append(dst, p)
	}
	for i := len(dst); i < len(r.players); i++ {
		r.players[i] = nil
	}
	r.players = dst
	return removed
}

// rosterLocked returns a snapshot, not a mutable view.
func (r *Room) rosterLocked() []PlayerInfo {
	roster := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		roster = append(roster, PlayerInfo{
			ID:           p.ID,
			Name:         p.Name,
			Score:        p.Score,
			Disconnected: p.Disconnected,
		})
	}
	return roster
}

// cancelTimersLocked releases every timer the room owns; callbacks that
// already fired revalidate against the store and no-op.
func (r *Room) cancelTimersLocked() {
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
	for _, p := range r.players {
		if p.removal != nil {
			p.removal.Stop()
			p.removal = nil
		}
	}
}

const (
	roomCodeMin  = 1000
	roomCodeSpan = 9000 // "1000" through "9999"
)

// roomStore owns the code->Room mapping. Codes are never reused while a
// room is live; deletion frees them.
type roomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newRoomStore() *roomStore {
	return &roomStore{
		rooms: make(map[string]*Room),
	}
}

// create allocates a free 4-digit code and registers a fresh lobby with
// the configured default durations. The space is large enough relative to
// expected concurrent rooms that collision retries stay cheap.
func (s *roomStore) create(cfg *Config) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		code = strconv.Itoa(roomCodeMin + randomIndex(roomCodeSpan))
		if _, exists := s.rooms[code]; !exists {
			break
		}
	}

	now := time.Now()
	room := &Room{
		code:          code,
		phase:         phaseLobby,
		danceDuration: cfg.danceDuration,
		voteDuration:  cfg.voteDuration,
		createdAt:     now,
		lastActive:    now,
	}
	s.rooms[code] = room

	return room
}

func (s *roomStore) get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	return room, ok
}

func (s *roomStore) remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, code)
}

func (s *roomStore) snapshot() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
