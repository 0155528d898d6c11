package main

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"agar-server/physics"
)

const (
	maxNameLen = 16
	maxChatLen = 200
)

// Broadcaster is the per-connection channel the game writes to
type Broadcaster interface {
	SendJSON(msg interface{})
	SendRaw(data []byte)
	SendBinary(data []byte)
}

// Binding ties one connection to one player entity and its attractor
type Binding struct {
	ConnID    string
	EntityID  uint64
	Name      string
	conn      Broadcaster
	attractor *physics.Attractor
}

// SessionManager binds connections to player entities and fans messages out to them
type SessionManager struct {
	world     *World
	names     *NamePool
	analytics *Analytics

	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewSessionManager creates a session manager. names and analytics may be nil.
func NewSessionManager(world *World, names *NamePool, analytics *Analytics) *SessionManager {
	if names == nil {
		names = NewNamePool(nil)
	}
	return &SessionManager{
		world:     world,
		names:     names,
		analytics: analytics,
		bindings:  make(map[string]*Binding),
	}
}

// OnConnect spawns a player for the connection and sends it the init message.
// An empty name draws one from the name pool.
func (sm *SessionManager) OnConnect(connID string, conn Broadcaster, name string) *Binding {
	ident := sm.names.Next()
	if name = sanitizeName(name); name != "" {
		ident.Name = name
	}
	entity, attractor := sm.world.SpawnPlayer(connID, ident)

	b := &Binding{
		ConnID:    connID,
		EntityID:  entity.ID,
		Name:      ident.Name,
		conn:      conn,
		attractor: attractor,
	}
	width, height := sm.world.Bounds()
	conn.SendJSON(Envelope{T: MsgInit, Data: InitMsg{ID: entity.ID, Width: width, Height: height}})

	sm.mu.Lock()
	sm.bindings[connID] = b
	sm.mu.Unlock()

	sm.analytics.Track(EvtConnect, connID, entity.ID, ident.Name)
	return b
}

// OnInput retargets the connection's attractor. Out-of-bounds points are allowed.
func (sm *SessionManager) OnInput(b *Binding, p Point) {
	if b == nil {
		return
	}
	sm.world.SetTarget(b.attractor, p)
}

// OnDisconnect removes the connection's entity and attractor. Safe to call
// more than once, and after the entity was absorbed.
func (sm *SessionManager) OnDisconnect(b *Binding) {
	if b == nil {
		return
	}
	sm.mu.Lock()
	_, bound := sm.bindings[b.ConnID]
	delete(sm.bindings, b.ConnID)
	sm.mu.Unlock()

	sm.world.RemovePlayer(b.EntityID, b.attractor)
	if bound {
		sm.analytics.Track(EvtDisconnect, b.ConnID, b.EntityID, b.Name)
	}
}

// Chat echoes a chat line from a connection to everyone
func (sm *SessionManager) Chat(b *Binding, text string) {
	if b == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > maxChatLen {
		text = string([]rune(text)[:maxChatLen])
	}
	sm.Broadcast(Envelope{T: MsgChat, Data: ChatMsg{
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		User:      b.Name,
	}})
}

// Announce sends a server-generated chat line to everyone
func (sm *SessionManager) Announce(text string) {
	sm.Broadcast(Envelope{T: MsgChat, Data: ChatMsg{
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}})
}

// Broadcast sends a message to every bound connection
func (sm *SessionManager) Broadcast(msg Envelope) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, b := range sm.bindings {
		b.conn.SendJSON(msg)
	}
}

// BroadcastRaw sends pre-marshaled text to every bound connection
func (sm *SessionManager) BroadcastRaw(data []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, b := range sm.bindings {
		b.conn.SendRaw(data)
	}
}

// BroadcastBinary sends pre-marshaled binary data to every bound connection
func (sm *SessionManager) BroadcastBinary(data []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, b := range sm.bindings {
		b.conn.SendBinary(data)
	}
}

// Count returns the number of bound connections
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.bindings)
}

// Lookup returns the binding for a connection id, or nil
func (sm *SessionManager) Lookup(connID string) *Binding {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.bindings[connID]
}

// sanitizeName trims and truncates a requested display name
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}
