package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtConnect    = "connect"
	EvtDisconnect = "disconnect"
	EvtAbsorb     = "absorb"
)

const (
	analyticsBuffer     = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	ConnID    string
	EntityID  uint64
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// absorbData is the metadata stored with an absorb event
type absorbData struct {
	Winner    string  `json:"winner"`
	Loser     string  `json:"loser"`
	LoserID   uint64  `json:"loser_id"`
	LoserConn string  `json:"loser_conn,omitempty"`
	NewRadius float64 `json:"new_radius"`
	LoserKind string  `json:"loser_kind"`
}

// Analytics handles event tracking with batched background writes.
// A nil *Analytics is valid and drops everything.
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, analyticsBuffer),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType, connID string, entityID uint64, data string) {
	if a == nil {
		return
	}
	select {
	case <-a.stop:
		return
	default:
	}
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		ConnID:    connID,
		EntityID:  entityID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full, drop the event
	}
}

// TrackAbsorption records a merge that involved at least one player
func (a *Analytics) TrackAbsorption(ab Absorption) {
	if a == nil {
		return
	}
	raw, err := json.Marshal(absorbData{
		Winner:    displayName(ab.WinnerName, ab.WinnerID),
		Loser:     displayName(ab.LoserName, ab.LoserID),
		LoserID:   ab.LoserID,
		LoserConn: ab.LoserOwner,
		NewRadius: ab.NewRadius,
		LoserKind: ab.LoserKind.String(),
	})
	if err != nil {
		log.Printf("analytics: marshal error: %v", err)
		return
	}
	a.Track(EvtAbsorb, ab.WinnerOwner, ab.WinnerID, string(raw))
}

// Stop flushes pending events and shuts down the writer. Safe to call twice.
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, analyticsBatchSize)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			// Drain whatever is buffered; Track no longer enqueues after stop
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						a.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, conn_id, entity_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		cid := sql.NullString{String: evt.ConnID, Valid: evt.ConnID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		_, err := stmt.Exec(evt.Type, cid, int64(evt.EntityID), data, evt.Timestamp.Format(time.RFC3339))
		if err != nil {
			log.Printf("analytics: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("analytics: commit error: %v", err)
	}
}
