// Command devserver runs the stub chat backend: cookie-session auth, the
// /chat endpoints, and the push socket, over an in-memory or Postgres store.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/skillswap/chatsync/internal/devserver"
	"github.com/skillswap/chatsync/internal/devserver/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment variables")
	}

	if os.Getenv("CHAT_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		log.Fatal("SESSION_KEY environment variable is required")
	}

	storeType := store.Type(os.Getenv("STORE_TYPE"))
	if storeType == "" {
		storeType = store.Memory
	}
	st, err := store.New(storeType, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("opening %s store: %v", storeType, err)
	}
	defer st.Close()
	log.Printf("using %s store", storeType)

	// Two demo accounts sharing one conversation, so a freshly started
	// server is immediately usable from the CLI.
	accounts, err := devserver.Seed(st, []devserver.SeedUser{
		{Username: "alice", Password: "swordfish", DisplayName: "Alice"},
		{Username: "bob", Password: "hunter2", DisplayName: "Bob"},
	})
	if err != nil {
		log.Fatalf("seeding users: %v", err)
	}
	if conversations, err := st.ListConversations(accounts[0].ID); err == nil && len(conversations) == 0 {
		if _, err := st.CreateConversation(accounts[0].ID, accounts[1].ID); err != nil {
			log.Fatalf("seeding conversation: %v", err)
		}
	}

	var allowedOrigins []string
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}

	srv := devserver.New(devserver.Config{
		Store:          st,
		SessionKey:     []byte(sessionKey),
		AllowedOrigins: allowedOrigins,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("devserver listening on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	srv.Close()
}
