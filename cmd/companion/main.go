package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comitanigiacomo/kanso-companion/internal/adapters/api"
	"github.com/comitanigiacomo/kanso-companion/internal/adapters/store"
	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/core/ledger"
	"github.com/comitanigiacomo/kanso-companion/internal/core/services"
	"github.com/comitanigiacomo/kanso-companion/internal/core/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	baseURL := os.Getenv("KANSO_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	token := os.Getenv("KANSO_TOKEN")
	if token == "" {
		log.Fatal("Critical: KANSO_TOKEN is required")
	}

	snapshotPath := os.Getenv("KANSO_SNAPSHOT_PATH")
	if snapshotPath == "" {
		snapshotPath = "companion.db"
	}

	session, err := services.NewSession(baseURL, token)
	if err != nil {
		log.Fatalf("Critical: %v", err)
	}
	if session.Expired(time.Now()) {
		log.Fatal("Critical: session token is expired")
	}

	snapshots, err := store.Open(snapshotPath)
	if err != nil {
		log.Fatalf("Critical: %v", err)
	}
	defer snapshots.Close()

	led := ledger.New()

	// Start from last-known completion state so streaks render before
	// the first fetch.
	saved, err := snapshots.Load()
	if err != nil {
		log.Printf("Could not load snapshots, starting empty: %v", err)
	} else {
		for habitID, completions := range saved {
			led.Replace(habitID, completions)
		}
		log.Printf("Restored completion state for %d habits", len(saved))
	}

	led.OnChange(func(habitID string, completions domain.CompletionMap) {
		if err := snapshots.SaveHabit(habitID, completions); err != nil {
			log.Printf("Snapshot write for habit %s failed: %v", habitID, err)
		}
	})

	client := api.NewClient(session)

	completions := services.NewCompletionService(led, client)
	if raw := os.Getenv("KANSO_REQUEST_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Critical: invalid KANSO_REQUEST_TIMEOUT: %v", err)
		}
		completions.SetTimeout(d)
	}
	completions.OnStreak(func(habitID string, streak int) {
		log.Printf("Habit %s streak is now %d", habitID, streak)
	})

	partners := services.NewPartnerService(client)
	partners.OnRefresh(func() {
		log.Println("Partner action confirmed, refresh due")
	})

	streamClient := stream.NewClient(api.NewStreamTransport(session))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamClient.Start(ctx)

	updates := streamClient.Subscribe()
	go func() {
		for list := range updates {
			log.Printf("Partner list updated: %d partners", len(list))
		}
	}()

	log.Printf("Companion connected to %s as %s", session.BaseURL(), session.UserID())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")
	streamClient.Close()
	log.Println("Companion stopped gracefully.")
}
