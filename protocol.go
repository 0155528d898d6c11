package main

import (
	"encoding/json"
	"math"
)

// Client -> Server message names
const (
	MsgInput = "physics input"
	MsgChat  = "chat message"
)

// Server -> Client message names
const (
	MsgInit  = "physics initResponse"
	MsgState = "physics state"
)

// State encodings for the physics state broadcast
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Envelope wraps all outgoing messages with a name field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D is decoded once the name is known
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// Point is a 2D vector on the wire
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// InputMsg is the attractor target sent by the client. Pointers detect missing coordinates.
type InputMsg struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// Point returns the target if both coordinates are present and finite
func (m InputMsg) Point() (Point, bool) {
	if m.X == nil || m.Y == nil {
		return Point{}, false
	}
	x, y := *m.X, *m.Y
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

// InitMsg is sent once on connect
type InitMsg struct {
	ID     uint64  `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EntityState is one entity in the state broadcast
type EntityState struct {
	ID              uint64  `json:"id" msgpack:"id"`
	Kind            string  `json:"kind" msgpack:"kind"`
	Radius          float64 `json:"radius" msgpack:"radius"`
	Name            string  `json:"name,omitempty" msgpack:"name,omitempty"`
	AvatarRef       string  `json:"avatarRef,omitempty" msgpack:"avatarRef,omitempty"`
	Position        Point   `json:"position" msgpack:"position"`
	Velocity        Point   `json:"velocity" msgpack:"velocity"`
	AngularPosition float64 `json:"angularPosition,omitempty" msgpack:"angularPosition,omitempty"`
}

// ChatMsg is a chat line, either echoed from a player or generated by the server
type ChatMsg struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis
	User      string `json:"user,omitempty"`
}

// ChatIn accepts the object form of an incoming chat message
type ChatIn struct {
	Text string `json:"text"`
}

// StatusMsg is served at /status
type StatusMsg struct {
	Tick     uint64 `json:"tick"`
	Entities int    `json:"entities"`
	Players  int    `json:"players"`
	Food     int    `json:"food"`
	Clients  int    `json:"clients"`
}

// round1 rounds to one decimal place to keep state frames small
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// round3 keeps enough precision for per-ms velocities
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
