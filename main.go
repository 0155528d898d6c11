package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	clientDir := flag.String("client", "", "Path to client directory (overrides config)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *clientDir != "" {
		cfg.Server.ClientDir = *clientDir
	}
	if cfg.Server.ClientDir == "" {
		exe, _ := os.Executable()
		dir := filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			dir = "../client"
		}
		if _, err := os.Stat(dir); err == nil {
			cfg.Server.ClientDir = dir
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	names := NewNamePool(nil)
	LoadNamesAsync(ctx, names, cfg.Names, func(err error) {
		if err != nil {
			log.Printf("names: %v, using built-in names", err)
			return
		}
		log.Printf("names: loaded %d identities from %s", names.Len(), cfg.Names.Source)
	})

	var db *DB
	if cfg.Server.DBPath != "" {
		db, err = OpenDB(cfg.Server.DBPath)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
	}
	var analytics *Analytics
	if db != nil {
		analytics = NewAnalytics(db)
	}

	world := NewWorld(cfg, names, nil)
	sessions := NewSessionManager(world, names, analytics)
	game := NewGame(world, sessions, analytics, cfg.Loop, cfg.Server.StateEncoding)
	game.Run()

	hub := NewHub(sessions, cfg.Server)
	go hub.Run()

	mux := SetupRoutes(hub, world, db, cfg.Server.ClientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if cfg.Server.ClientDir != "" {
			log.Printf("Serving client files from %s", cfg.Server.ClientDir)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}

	game.Stop()
	analytics.Stop()
	if db != nil {
		if err := db.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
}
