/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Messages coming from clients
type ClientMessage struct {
	Type         string `json:"type"`                    // "create_room", "join_room", "start_game", "dance_move", "vote", "update_settings", "kick"
	Name         string `json:"name,omitempty"`          // create_room / join_room
	Code         string `json:"code,omitempty"`          // join_room
	Move         string `json:"move,omitempty"`          // dance_move
	Target       string `json:"target,omitempty"`        // vote / kick
	DanceSeconds *int   `json:"dance_seconds,omitempty"` // update_settings
	VoteSeconds  *int   `json:"vote_seconds,omitempty"`  // update_settings
}

// PlayerInfo is the roster entry every client sees.
type PlayerInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	Disconnected bool   `json:"disconnected,omitempty"`
}

// RoomCreatedMessage confirms room creation to the caller, who is host.
type RoomCreatedMessage struct {
	Type     string `json:"type"` // "room_created"
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// RoomJoinedMessage confirms a join (or a reconnection) to the caller.
type RoomJoinedMessage struct {
	Type     string `json:"type"` // "room_joined"
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// PlayerListMessage is the roster broadcast: joins, disconnects, removals,
// host changes, and round resets all re-send it.
type PlayerListMessage struct {
	Type       string       `json:"type"` // "player_list"
	Players    []PlayerInfo `json:"players"`
	HostID     string       `json:"host_id"`
	InProgress bool         `json:"in_progress"`
}

// GameStartMessage is unicast per player: only Track and Impostor differ
// between recipients.
type GameStartMessage struct {
	Type        string       `json:"type"` // "game_start"
	Track       string       `json:"track"`
	Impostor    bool         `json:"impostor"`
	StartAt     int64        `json:"start_at"`     // unix millis, synchronized playback start
	StartOffset int          `json:"start_offset"` // seconds into the track
	Players     []PlayerInfo `json:"players"`
}

// PlayerDanceMessage relays a dance move to everyone but the dancer.
type PlayerDanceMessage struct {
	Type     string `json:"type"` // "player_dance"
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Move     string `json:"move"`
}

// VotePhaseMessage is unicast per player with the recipient excluded from
// the candidate list.
type VotePhaseMessage struct {
	Type       string       `json:"type"` // "vote_phase"
	Candidates []PlayerInfo `json:"candidates"`
	EndsAt     int64        `json:"ends_at"` // unix millis
}

// RevealMessage closes out a round with the impostor and final scores.
type RevealMessage struct {
	Type         string       `json:"type"` // "reveal"
	ImpostorID   string       `json:"impostor_id"`
	ImpostorName string       `json:"impostor_name"`
	Players      []PlayerInfo `json:"players"`
}

// SimpleMessage is for generic notifications ("kicked", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMessage is the only surfaced rejection: unknown room codes.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
