package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Game drives the world: one loop steps the simulation, another broadcasts state
type Game struct {
	world     *World
	sessions  *SessionManager
	analytics *Analytics
	cfg       LoopConfig
	encoding  string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewGame creates a game over an existing world and session manager
func NewGame(world *World, sessions *SessionManager, analytics *Analytics, cfg LoopConfig, encoding string) *Game {
	if encoding == "" {
		encoding = EncodingJSON
	}
	return &Game{
		world:     world,
		sessions:  sessions,
		analytics: analytics,
		cfg:       cfg,
		encoding:  encoding,
		stop:      make(chan struct{}),
	}
}

// Run starts the simulation and broadcast loops and returns immediately
func (g *Game) Run() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true

	g.wg.Add(2)
	go g.simulate()
	go g.broadcast()
}

// Stop terminates both loops and waits for them to exit
func (g *Game) Stop() {
	g.mu.Lock()
	if g.running {
		g.running = false
		close(g.stop)
	}
	g.mu.Unlock()
	g.wg.Wait()
}

func (g *Game) simulate() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed <= 0 {
				continue
			}
			if elapsed > g.cfg.MaxStep {
				elapsed = g.cfg.MaxStep
			}
			g.step(float64(elapsed) / float64(time.Millisecond))
		case <-g.stop:
			return
		}
	}
}

// step advances the world by dt milliseconds and dispatches the results
// once the world lock has been released
func (g *Game) step(dt float64) StepResult {
	res := g.world.Step(dt)
	for _, ab := range res.Absorptions {
		if ab.BothPlayers() {
			g.sessions.Announce(ab.Text())
		}
		if ab.WinnerKind == KindPlayer || ab.LoserKind == KindPlayer {
			g.analytics.TrackAbsorption(ab)
		}
	}
	return res
}

func (g *Game) broadcast() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.broadcastState()
		case <-g.stop:
			return
		}
	}
}

// broadcastState snapshots the world, encodes once and sends to every connection
func (g *Game) broadcastState() {
	if g.sessions.Count() == 0 {
		return
	}
	snap := g.world.Snapshot()

	if g.encoding == EncodingMsgpack {
		data, err := msgpack.Marshal(snap.Entities)
		if err != nil {
			log.Printf("msgpack marshal error: %v", err)
			return
		}
		g.sessions.BroadcastBinary(data)
		return
	}

	data, err := json.Marshal(Envelope{T: MsgState, Data: snap.Entities})
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	g.sessions.BroadcastRaw(data)
}
