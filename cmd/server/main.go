package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dermassist/dermassist/internal/handlers"
	"github.com/dermassist/dermassist/internal/services"
)

func main() {
	// A missing .env is fine; the config file can carry everything.
	_ = godotenv.Load()

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "dermassist")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFile, err := os.Open(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	transport, err := cfg.LLM.transport(cfg.SystemPrompt, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error building llm transport: %w", err))
	}

	archivePath := cfg.ArchivePath
	if archivePath == "" {
		archivePath = filepath.Join(cfgPath, "store.db")
	}
	archive, err := services.NewBoltArchive(archivePath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening archive: %w", err))
	}
	defer archive.Close()

	var feed handlers.PushFeed
	if cfg.PushFeedURL != "" {
		feed = services.NewRealtime(cfg.PushFeedURL, logger)
	}

	sessions := handlers.NewSessions(transport, feed, archive, handlers.SessionConfig{
		Greeting: cfg.Greeting,
		Window:   cfg.ReplyWindow,
		Timeout:  cfg.ReplyTimeout,
	}, logger)

	m := handlers.NewMain(sessions, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/assistant/send", m.HandleSend)
	mux.HandleFunc("/api/assistant/messages", m.HandleMessages)
	mux.HandleFunc("/api/assistant/reset", m.HandleReset)
	mux.HandleFunc("/api/assistant/events", m.HandleSSE)
	mux.HandleFunc("/healthz", m.HandleHealth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
