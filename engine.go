/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"time"
)

// engine drives every room's lifecycle. All room mutation funnels through
// its handlers and timer callbacks; each handler runs to completion under
// the room's lock, so actions on the same room never interleave.
type engine struct {
	cfg   *Config
	store *roomStore
	reg   *connRegistry
	sched scheduler
	now   func() time.Time
}

func newEngine(cfg *Config) *engine {
	return &engine{
		cfg:   cfg,
		store: newRoomStore(),
		reg:   newConnRegistry(),
		sched: wallScheduler{},
		now:   time.Now,
	}
}

func (e *engine) unicast(id string, msg any) {
	if c, ok := e.reg.lookup(id); ok {
		c.trySend(msg)
	}
}

func (e *engine) broadcastLocked(r *Room, msg any) {
	for _, p := range r.players {
		if p.Disconnected {
			continue
		}
		e.unicast(p.ID, msg)
	}
}

func (e *engine) broadcastRosterLocked(r *Room) {
	e.broadcastLocked(r, PlayerListMessage{
		Type:       "player_list",
		Players:    r.rosterLocked(),
		HostID:     r.hostID,
		InProgress: r.inProgressLocked(),
	})
}

// roomFor resolves a client's room through its registry binding.
func (e *engine) roomFor(c *Client) (*Room, bool) {
	code := e.reg.roomOf(c.id)
	if code == "" {
		return nil, false
	}
	return e.store.get(code)
}

func (e *engine) handleCreateRoom(c *Client, msg ClientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" || e.reg.roomOf(c.id) != "" {
		return
	}

	room := e.store.create(e.cfg)

	room.mu.Lock()
	defer room.mu.Unlock()

	room.players = append(room.players, &Player{
		ID:   c.id,
		Name: name,
	})
	room.hostID = c.id
	room.lastActive = e.now()

	e.reg.bind(c.id, room.code, name)

	e.unicast(c.id, RoomCreatedMessage{
		Type:     "room_created",
		Code:     room.code,
		PlayerID: c.id,
	})
	e.broadcastRosterLocked(room)

	logf(e.cfg, "ROOMS: %q created room %s", name, room.code)
}

func (e *engine) handleJoinRoom(c *Client, msg ClientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" || e.reg.roomOf(c.id) != "" {
		return
	}

	room, ok := e.store.get(msg.Code)
	if !ok {
		e.unicast(c.id, ErrorMessage{
			Type:    "error",
			Message: "Room " + msg.Code + " does not exist.",
		})
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.lastActive = e.now()

	if p := room.findByNameLocked(name); p != nil {
		if !p.Disconnected {
			// active player already owns this name; joining with it
			// would break the reconnection key
			return
		}

		// reconnection: rebind the existing record, keep the score
		if p.removal != nil {
			p.removal.Stop()
			p.removal = nil
		}
		oldID := p.ID
		p.ID = c.id
		p.Disconnected = false

		// every reference to the stale connection id follows the rebind
		if room.hostID == oldID {
			room.hostID = c.id
		}
		if room.impostorID == oldID {
			room.impostorID = c.id
		}
		for voter, accused := range room.votes {
			if accused == oldID {
				room.votes[voter] = c.id
			}
		}
		if accused, voted := room.votes[oldID]; voted {
			delete(room.votes, oldID)
			room.votes[c.id] = accused
		}

		e.reg.bind(c.id, room.code, name)

		e.unicast(c.id, RoomJoinedMessage{
			Type:     "room_joined",
			Code:     room.code,
			PlayerID: c.id,
		})
		e.sendRoundStateLocked(room, p)
		e.broadcastRosterLocked(room)

		logf(e.cfg, "ROOMS: %q reconnected to room %s", name, room.code)

		return
	}

	room.players = append(room.players, &Player{
		ID:   c.id,
		Name: name,
	})

	e.reg.bind(c.id, room.code, name)

	e.unicast(c.id, RoomJoinedMessage{
		Type:     "room_joined",
		Code:     room.code,
		PlayerID: c.id,
	})
	e.broadcastRosterLocked(room)

	logf(e.cfg, "ROOMS: %q joined room %s", name, room.code)
}

// sendRoundStateLocked resyncs a reconnecting player into the round in
// flight, if any.
func (e *engine) sendRoundStateLocked(r *Room, p *Player) {
	switch r.phase {
	case phaseDancing:
		e.unicast(p.ID, e.gameStartForLocked(r, p))
	case phaseVoting:
		e.unicast(p.ID, e.votePhaseForLocked(r, p))
	}
}

func (e *engine) gameStartForLocked(r *Room, p *Player) GameStartMessage {
	track := r.normalTrack
	impostor := p.ID == r.impostorID
	if impostor {
		track = r.impostorTrack
	}

	return GameStartMessage{
		Type:        "game_start",
		Track:       track,
		Impostor:    impostor,
		StartAt:     r.startedAt.UnixMilli(),
		StartOffset: r.startOffset,
		Players:     r.rosterLocked(),
	}
}

func (e *engine) votePhaseForLocked(r *Room, p *Player) VotePhaseMessage {
	candidates := make([]PlayerInfo, 0, len(r.players))
	for _, other := range r.players {
		if other.ID == p.ID || other.Disconnected {
			continue
		}
		candidates = append(candidates, PlayerInfo{
			ID:    other.ID,
			Name:  other.Name,
			Score: other.Score,
		})
	}

	return VotePhaseMessage{
		Type:       "vote_phase",
		Candidates: candidates,
		EndsAt:     r.voteEndsAt.UnixMilli(),
	}
}

func (e *engine) handleStartGame(c *Client) {
	room, ok := e.roomFor(c)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.hostID || room.inProgressLocked() {
		return
	}

	actives := make([]*Player, 0, len(room.players))
	for _, p := range room.players {
		if !p.Disconnected {
			actives = append(actives, p)
		}
	}
	if len(actives) < 2 {
		return
	}

	room.lastActive = e.now()

	room.round++
	room.votes = make(map[string]string)
	room.roundDance = room.danceDuration
	room.roundVote = room.voteDuration

	impostor := actives[randomIndex(len(actives))]
	room.impostorID = impostor.ID
	room.impostorName = impostor.Name
	room.normalTrack = pickTrack(normalTracks)
	room.impostorTrack = pickTrack(impostorTracks)
	room.startOffset = randomStartOffset()
	room.startedAt = e.now().Add(e.cfg.leadIn)
	room.phase = phaseDancing

	if room.phaseTimer != nil {
		room.phaseTimer.Stop()
	}
	code, round := room.code, room.round
	// the advertised dance window runs from the synchronized start, so
	// the advance timer covers the lead-in too
	room.phaseTimer = e.sched.AfterFunc(e.cfg.leadIn+room.roundDance, func() {
		e.advanceToVoting(code, round)
	})

	for _, p := range actives {
		e.unicast(p.ID, e.gameStartForLocked(room, p))
	}

	logf(e.cfg, "ROOMS: Round %d started in room %s with %d dancers", room.round, room.code, len(actives))
}

// advanceToVoting fires when the dance window closes. The room may have
// been destroyed or restarted since the timer was armed, so everything is
// revalidated before acting.
func (e *engine) advanceToVoting(code string, round int) {
	room, ok := e.store.get(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.phase != phaseDancing || room.round != round {
		return
	}

	room.lastActive = e.now()
	room.phase = phaseVoting
	room.voteEndsAt = e.now().Add(room.roundVote)

	room.phaseTimer = e.sched.AfterFunc(room.roundVote, func() {
		e.advanceToReveal(code, round)
	})

	for _, p := range room.players {
		if p.Disconnected {
			continue
		}
		e.unicast(p.ID, e.votePhaseForLocked(room, p))
	}

	logf(e.cfg, "ROOMS: Voting opened in room %s", room.code)
}

// advanceToReveal closes the vote, applies scores, and resets the room so
// the host can start another round.
func (e *engine) advanceToReveal(code string, round int) {
	room, ok := e.store.get(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.phase != phaseVoting || room.round != round {
		return
	}

	room.lastActive = e.now()
	room.phase = phaseRevealed
	room.phaseTimer = nil

	e.tallyVotesLocked(room)

	e.broadcastLocked(room, RevealMessage{
		Type:         "reveal",
		ImpostorID:   room.impostorID,
		ImpostorName: room.impostorName,
		Players:      room.rosterLocked(),
	})
	e.broadcastRosterLocked(room)

	logf(e.cfg, "ROOMS: Round %d revealed in room %s (impostor %q)", room.round, room.code, room.impostorName)
}

// tallyVotesLocked applies the recorded votes: catching the impostor pays
// the voter, missing pays the impostor, and the impostor's own vote never
// counts either way. Voters or the impostor removed mid-round simply have
// no score to credit.
func (e *engine) tallyVotesLocked(r *Room) {
	impostor := r.findPlayerLocked(r.impostorID)

	for voter, accused := range r.votes {
		if voter == r.impostorID {
			continue
		}
		if accused == r.impostorID {
			if p := r.findPlayerLocked(voter); p != nil {
				p.Score++
			}
		} else if impostor != nil {
			impostor.Score++
		}
	}
}

func (e *engine) handleDanceMove(c *Client, msg ClientMessage) {
	room, ok := e.roomFor(c)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.phase != phaseDancing {
		return
	}

	p := room.findPlayerLocked(c.id)
	if p == nil || p.Disconnected {
		return
	}

	room.lastActive = e.now()

	relay := PlayerDanceMessage{
		Type:     "player_dance",
		PlayerID: p.ID,
		Name:     p.Name,
		Move:     msg.Move,
	}
	for _, other := range room.players {
		if other.ID == c.id || other.Disconnected {
			continue
		}
		e.unicast(other.ID, relay)
	}
}

func (e *engine) handleVote(c *Client, msg ClientMessage) {
	room, ok := e.roomFor(c)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.phase != phaseVoting {
		return
	}

	voter := room.findPlayerLocked(c.id)
	if voter == nil || voter.Disconnected {
		return
	}

	// first vote wins
	if _, voted := room.votes[c.id]; voted {
		return
	}

	if msg.Target == c.id {
		return
	}
	target := room.findPlayerLocked(msg.Target)
	if target == nil || target.Disconnected {
		return
	}

	room.lastActive = e.now()
	room.votes[c.id] = msg.Target

	logf(e.cfg, "ROOMS: %q voted in room %s", voter.Name, room.code)
}

func (e *engine) handleUpdateSettings(c *Client, msg ClientMessage) {
	room, ok := e.roomFor(c)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.hostID {
		return
	}

	// reject the whole update if any provided value is invalid, keeping
	// the previous settings
	if msg.DanceSeconds != nil && *msg.DanceSeconds <= 0 {
		return
	}
	if msg.VoteSeconds != nil && *msg.VoteSeconds <= 0 {
		return
	}
	if msg.DanceSeconds == nil && msg.VoteSeconds == nil {
		return
	}

	room.lastActive = e.now()

	// settings only feed the next round; a round in flight keeps the
	// durations it captured at start
	if msg.DanceSeconds != nil {
		room.danceDuration = time.Duration(*msg.DanceSeconds) * time.Second
	}
	if msg.VoteSeconds != nil {
		room.voteDuration = time.Duration(*msg.VoteSeconds) * time.Second
	}

	logf(e.cfg, "ROOMS: Settings updated in room %s (dance %s, vote %s)", room.code, room.danceDuration, room.voteDuration)
}

func (e *engine) handleKick(c *Client, msg ClientMessage) {
	room, ok := e.roomFor(c)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.hostID || msg.Target == "" || msg.Target == c.id {
		return
	}

	p := room.removePlayerLocked(msg.Target)
	if p == nil {
		return
	}
	if p.removal != nil {
		p.removal.Stop()
		p.removal = nil
	}

	room.lastActive = e.now()

	// no grace window for kicks; any vote they already cast stays as cast
	e.unicast(p.ID, SimpleMessage{
		Type:    "kicked",
		Message: "You have been removed by the host.",
	})
	e.reg.unregister(p.ID)

	e.broadcastRosterLocked(room)

	logf(e.cfg, "ROOMS: %q kicked from room %s", p.Name, room.code)
}
