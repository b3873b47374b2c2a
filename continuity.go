/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// handleDisconnect is invoked by the transport when a connection drops.
// The player stays on the roster, flagged, until the grace window runs
// out; rejoining with the same display name reclaims the record.
func (e *engine) handleDisconnect(c *Client) {
	_, code, ok := e.reg.unregister(c.id)
	if !ok || code == "" {
		return
	}

	room, ok := e.store.get(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.findPlayerLocked(c.id)
	if p == nil {
		return
	}

	p.Disconnected = true
	room.lastActive = e.now()

	// the grace timer is keyed by name, not connection id: the id is
	// rebound if the player reconnects before expiry
	name := p.Name
	p.removal = e.sched.AfterFunc(e.cfg.graceWindow, func() {
		e.expireGrace(code, name)
	})

	e.broadcastRosterLocked(room)

	logf(e.cfg, "ROOMS: %q disconnected from room %s", name, code)
}

// expireGrace fires when a disconnected player's grace window lapses. The
// world may have changed since it was armed: the room may be gone, or the
// player reconnected or was kicked, all of which make this a no-op.
func (e *engine) expireGrace(code, name string) {
	room, ok := e.store.get(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.findByNameLocked(name)
	if p == nil || !p.Disconnected {
		return
	}

	wasHost := p.ID == room.hostID
	room.removePlayerLocked(p.ID)
	p.removal = nil

	logf(e.cfg, "ROOMS: %q removed from room %s after grace window", name, code)

	if len(room.players) == 0 {
		e.destroyRoomLocked(room)
		return
	}

	if wasHost {
		room.hostID = nextHostLocked(room)
		logf(e.cfg, "ROOMS: Host of room %s reassigned", code)
	}

	room.lastActive = e.now()
	e.broadcastRosterLocked(room)
}

// nextHostLocked promotes the earliest-joined active player, falling back
// to the earliest pending-reconnect player if nobody is connected.
func nextHostLocked(r *Room) string {
	for _, p := range r.players {
		if !p.Disconnected {
			return p.ID
		}
	}
	return r.players[0].ID
}

// destroyRoomLocked tears a room down: every timer it owns is released so
// nothing fires against the dead code, then the code is freed for reuse.
func (e *engine) destroyRoomLocked(room *Room) {
	room.cancelTimersLocked()
	e.store.remove(room.code)

	logf(e.cfg, "ROOMS: Ended room %s", room.code)
}

// reaperLoop periodically ends rooms that have been idle longer than the
// configured room timeout, disconnecting any remaining members.
func (e *engine) reaperLoop() {
	ticker := time.NewTicker(e.cfg.roomTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-e.cfg.roomTimeout)

		for _, room := range e.store.snapshot() {
			room.mu.Lock()
			if !room.lastActive.Before(cutoff) {
				room.mu.Unlock()
				continue
			}

			ids := make([]string, 0, len(room.players))
			for _, p := range room.players {
				if !p.Disconnected {
					ids = append(ids, p.ID)
				}
			}
			e.destroyRoomLocked(room)
			room.mu.Unlock()

			for _, id := range ids {
				e.reg.unregister(id)
			}
		}
	}
}
