/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	id   string

	// room affiliation and display name, guarded by the registry's mutex
	roomCode string
	name     string
}

// trySend queues a message without blocking; slow consumers drop messages
// rather than stalling the room (broadcast is fire-and-forget).
func (c *Client) trySend(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

// connRegistry maps connection ids to clients and owns each connection's
// room affiliation. The engine queries it; it never touches room state.
type connRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func newConnRegistry() *connRegistry {
	return &connRegistry{
		clients: make(map[string]*Client),
	}
}

func (reg *connRegistry) add(c *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.clients[c.id] = c
}

func (reg *connRegistry) lookup(id string) (*Client, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	c, ok := reg.clients[id]
	return c, ok
}

func (reg *connRegistry) bind(id, roomCode, name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if c, ok := reg.clients[id]; ok {
		c.roomCode = roomCode
		c.name = name
	}
}

func (reg *connRegistry) roomOf(id string) string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	if c, ok := reg.clients[id]; ok {
		return c.roomCode
	}
	return ""
}

// unregister removes a client and tears its connection down. It succeeds
// exactly once per client, so the disconnect path and kicks cannot race a
// double teardown. Returns the room the client was bound to.
func (reg *connRegistry) unregister(id string) (*Client, string, bool) {
	reg.mu.Lock()
	c, ok := reg.clients[id]
	if ok {
		delete(reg.clients, id)
	}
	reg.mu.Unlock()

	if !ok {
		return nil, "", false
	}

	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}

	return c, c.roomCode, true
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

// serveWS upgrades the connection, mints a connection id, and hands the
// read loop to the engine.
func serveWS(cfg *Config, e *engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id := newConnID()
		if id == "" {
			http.Error(w, "unable to assign connection id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
			done: make(chan struct{}),
			id:   id,
		}

		e.reg.add(client)

		logf(cfg, "ROOMS: Connection %s from %s", id[:8], realIP(r))

		go client.writePump()
		client.readPump(e)
	}
}

func (c *Client) readPump(e *engine) {
	defer func() {
		_ = c.conn.Close()
		e.handleDisconnect(c)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create_room":
			e.handleCreateRoom(c, msg)
		case "join_room":
			e.handleJoinRoom(c, msg)
		case "start_game":
			e.handleStartGame(c)
		case "dance_move":
			e.handleDanceMove(c, msg)
		case "vote":
			e.handleVote(c, msg)
		case "update_settings":
			e.handleUpdateSettings(c, msg)
		case "kick":
			e.handleKick(c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// registerDanceGame sets up routes so that:
//   - /ws              → the single game websocket
//   - /room/:code/qr   → PNG QR code linking to a live room
func registerDanceGame(cfg *Config, mux *httprouter.Router) {
	e := newEngine(cfg)

	if cfg.roomTimeout > 0 {
		go e.reaperLoop()
	}

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, e))
	mux.GET(cfg.prefix+"/room/:code/qr", qrHandler(cfg, e.store))
}
