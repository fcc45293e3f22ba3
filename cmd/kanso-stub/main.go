// kanso-stub runs the in-memory backend stub with a seeded demo pair
// of users, printing ready-to-use tokens for both so a companion can
// be pointed at it immediately.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/stubserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	secret := os.Getenv("STUB_JWT_SECRET")
	if secret == "" {
		secret = "kanso-stub-dev-secret"
	}

	server := stubserver.New(secret)

	server.AddUser("user-demo", "demo", "demo@example.com")
	server.AddUser("user-ada", "ada", "ada@example.com")
	server.Link("user-demo", "user-ada")

	today := domain.DayKey(time.Now())
	server.SeedHabit("user-ada", domain.Habit{
		Name:        "Morning run",
		Colour:      "#2E86AB",
		Frequency:   1,
		Completions: domain.CompletionMap{today: true},
	})

	for _, id := range []string{"user-demo", "user-ada"} {
		token, err := server.IssueToken(id)
		if err != nil {
			log.Fatalf("Critical: %v", err)
		}
		log.Printf("Token for %s:\n%s", id, token)
	}

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     server.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Kanso stub running on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Stub stopped gracefully.")
}
