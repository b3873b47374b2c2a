package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectMarksPlayerAndArmsGraceTimer(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")
	alice, bob := clients[0], clients[1]

	e.handleDisconnect(alice)

	roster := mustLast[PlayerListMessage](t, bob)
	require.Len(t, roster.Players, 2)
	assert.True(t, roster.Players[0].Disconnected)
	assert.Equal(t, "Alice", roster.Players[0].Name)
	// host is retained during the grace window
	assert.Equal(t, alice.id, roster.HostID)

	assert.Equal(t, 1, sched.pending())

	room.mu.Lock()
	defer room.mu.Unlock()
	require.NotNil(t, room.findByNameLocked("Alice"))
	assert.True(t, room.findByNameLocked("Alice").Disconnected)
}

func TestDisconnectOfUnknownConnectionIsNoop(t *testing.T) {
	e, sched := newTestEngine()
	makeRoom(t, e, "Alice", "Bob")

	stray := &Client{id: "conn-stray", send: make(chan any, 4), done: make(chan struct{})}
	e.reg.add(stray)
	e.handleDisconnect(stray)
	// second notification for the same connection is also a no-op
	e.handleDisconnect(stray)

	assert.Zero(t, sched.pending())
}

func TestReconnectWithinGraceRestoresPlayer(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")
	alice := clients[0]

	room.mu.Lock()
	room.findByNameLocked("Alice").Score = 3
	room.mu.Unlock()

	e.handleDisconnect(alice)
	require.Equal(t, 1, sched.pending())

	// same name, new connection: this is a reconnection, not a new player
	alice2 := newTestClient(e, "conn-alice-2")
	e.handleJoinRoom(alice2, ClientMessage{Code: room.code, Name: "Alice"})

	joined := mustLast[RoomJoinedMessage](t, alice2)
	assert.Equal(t, "conn-alice-2", joined.PlayerID)

	room.mu.Lock()
	p := room.findByNameLocked("Alice")
	require.NotNil(t, p)
	assert.Equal(t, "conn-alice-2", p.ID)
	assert.False(t, p.Disconnected)
	assert.Equal(t, 3, p.Score, "score survives reconnection")
	assert.Len(t, room.players, 2)
	assert.Equal(t, "conn-alice-2", room.hostID, "host identity follows the rebound id")
	room.mu.Unlock()

	// the grace timer was cancelled; nothing fires
	assert.Zero(t, sched.pending())
	assert.Zero(t, sched.fire())
}

func TestReconnectHostKeepsAuthority(t *testing.T) {
	e, _ := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")

	e.handleDisconnect(clients[0])

	alice2 := newTestClient(e, "conn-alice-2")
	e.handleJoinRoom(alice2, ClientMessage{Code: room.code, Name: "Alice"})

	e.handleStartGame(alice2)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, phaseDancing, room.phase)
}

func TestReconnectMidRoundResyncsState(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob", "Carol")

	e.handleStartGame(clients[0])

	room.mu.Lock()
	impostorID := room.impostorID
	room.mu.Unlock()

	e.handleDisconnect(clients[1])

	bob2 := newTestClient(e, "conn-bob-2")
	e.handleJoinRoom(bob2, ClientMessage{Code: room.code, Name: "Bob"})

	start := mustLast[GameStartMessage](t, bob2)
	if impostorID == clients[1].id {
		assert.True(t, start.Impostor)
		assert.Contains(t, impostorTracks, start.Track)
	} else {
		assert.False(t, start.Impostor)
		assert.Contains(t, normalTracks, start.Track)
	}

	// reconnecting during voting resyncs the ballot instead
	sched.fire()
	e.handleDisconnect(bob2)
	bob3 := newTestClient(e, "conn-bob-3")
	e.handleJoinRoom(bob3, ClientMessage{Code: room.code, Name: "Bob"})

	ballot := mustLast[VotePhaseMessage](t, bob3)
	require.Len(t, ballot.Candidates, 2)
	for _, cand := range ballot.Candidates {
		assert.NotEqual(t, "conn-bob-3", cand.ID)
	}
}

func TestGraceExpiryRemovesPlayerAndPromotesHost(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob", "Carol")
	alice, bob := clients[0], clients[1]

	e.handleDisconnect(alice)
	drain(bob)

	require.Equal(t, 1, sched.fire())

	roster := mustLast[PlayerListMessage](t, bob)
	require.Len(t, roster.Players, 2)
	assert.Equal(t, "Bob", roster.Players[0].Name)
	// the earliest remaining player inherits the room
	assert.Equal(t, bob.id, roster.HostID)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Nil(t, room.findByNameLocked("Alice"))
	assert.Equal(t, bob.id, room.hostID)
}

func TestGraceExpirySkipsReconnectedPlayer(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")

	e.handleDisconnect(clients[0])

	alice2 := newTestClient(e, "conn-alice-2")
	e.handleJoinRoom(alice2, ClientMessage{Code: room.code, Name: "Alice"})

	// a stale timer that somehow fires anyway must not remove the player
	sched.mu.Lock()
	for _, timer := range sched.timers {
		timer.stopped = false
		timer.fired = false
	}
	sched.mu.Unlock()
	sched.fire()

	room.mu.Lock()
	defer room.mu.Unlock()
	require.NotNil(t, room.findByNameLocked("Alice"))
	assert.False(t, room.findByNameLocked("Alice").Disconnected)
	assert.Len(t, room.players, 2)
}

func TestLastPlayerExpiryDestroysRoom(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice")

	e.handleDisconnect(clients[0])
	require.Equal(t, 1, sched.fire())

	_, ok := e.store.get(room.code)
	assert.False(t, ok, "empty room still retrievable by code")

	// nothing left to fire, and firing again is harmless
	assert.Zero(t, sched.fire())
}

func TestAllPlayersExpiringDestroysRoomOnce(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")

	e.handleDisconnect(clients[0])
	e.handleDisconnect(clients[1])
	assert.Equal(t, 2, sched.pending())

	require.Equal(t, 2, sched.fire())

	_, ok := e.store.get(room.code)
	assert.False(t, ok)
}

func TestPhaseTimerAgainstDestroyedRoomIsNoop(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")

	e.handleStartGame(clients[0])

	room.mu.Lock()
	danceTimer := room.phaseTimer.(*manualTimer)
	room.mu.Unlock()

	// both players vanish; their grace expiries empty the room and
	// destroy it
	e.handleDisconnect(clients[0])
	e.handleDisconnect(clients[1])
	sched.fire()

	_, ok := e.store.get(room.code)
	require.False(t, ok)

	// force-run the stale phase callback; the dead code must not be
	// resurrected
	danceTimer.fired = false
	danceTimer.stopped = false
	danceTimer.f()

	_, ok = e.store.get(room.code)
	assert.False(t, ok)

	// anything destruction left stopped stays stopped
	assert.Zero(t, sched.fire())
}

func TestStalePhaseTimerFromEarlierRoundIsNoop(t *testing.T) {
	e, sched := newTestEngine()
	room, clients := makeRoom(t, e, "Alice", "Bob")

	e.handleStartGame(clients[0])

	sched.mu.Lock()
	danceTimer := sched.timers[len(sched.timers)-1]
	sched.mu.Unlock()

	// round finishes normally
	sched.fire()
	sched.fire()

	room.mu.Lock()
	require.Equal(t, phaseRevealed, room.phase)
	room.mu.Unlock()

	// round two begins; the old round's timer coming back must not
	// double-advance it
	e.handleStartGame(clients[0])

	danceTimer.fired = false
	danceTimer.f()
	danceTimer.f()

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, phaseDancing, room.phase)
	assert.Equal(t, 2, room.round)
}
