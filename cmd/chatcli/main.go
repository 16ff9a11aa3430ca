// Command chatcli is a terminal front end for the chat synchronization
// engine. It stands in for the web UI: it logs in, keeps the conversation
// list and the selected history live via the push channel, and sends
// messages typed on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skillswap/chatsync/internal/apiclient"
	"github.com/skillswap/chatsync/internal/chatsync"
	"github.com/skillswap/chatsync/internal/models"
	"github.com/skillswap/chatsync/internal/push"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment variables")
	}

	apiURL := envOr("CHAT_API_URL", "http://localhost:8080")
	socketURL := envOr("CHAT_SOCKET_URL", "ws://localhost:8080/socket")
	username := os.Getenv("CHAT_USERNAME")
	password := os.Getenv("CHAT_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("CHAT_USERNAME and CHAT_PASSWORD are required")
	}

	api, err := apiclient.New(apiURL)
	if err != nil {
		log.Fatalf("building API client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	user, err := api.Login(ctx, username, password)
	cancel()
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("logged in as %s\n", user.Username)

	conversations := chatsync.NewConversationStore(api)
	channel := chatsync.NewMessageChannel(api, conversations)
	controller := chatsync.NewController(conversations, channel, func(userID string) chatsync.Subscriber {
		return push.NewClient(socketURL, userID, push.Options{})
	})
	controller.SetOnRefresh(func() {
		render(user, conversations, channel)
	})

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	err = controller.SetIdentity(ctx, user)
	cancel()
	if err != nil {
		log.Fatalf("push connection failed: %v", err)
	}
	defer controller.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	err = conversations.LoadAll(ctx)
	cancel()
	if err != nil {
		log.Fatalf("loading conversations: %v", err)
	}
	render(user, conversations, channel)
	fmt.Println(`commands: /list, /select <n>, /quit; anything else is sent as a message`)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		controller.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case line == "/list":
			render(user, conversations, channel)
		case strings.HasPrefix(line, "/select "):
			selectConversation(strings.TrimPrefix(line, "/select "), conversations, channel)
			render(user, conversations, channel)
		default:
			send(line, channel)
		}
	}
}

func selectConversation(arg string, conversations *chatsync.ConversationStore, channel *chatsync.MessageChannel) {
	list := conversations.Conversations()
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(list) {
		fmt.Printf("no such conversation: %s\n", arg)
		return
	}
	channel.Select(list[n-1].ID)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := channel.LoadHistory(ctx); err != nil {
		fmt.Printf("loading history: %v\n", err)
	}
}

func send(body string, channel *chatsync.MessageChannel) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := channel.Send(ctx, body)
	switch {
	case errors.Is(err, chatsync.ErrEmptyMessage):
		// Nothing to do; input stays local.
	case errors.Is(err, chatsync.ErrNoConversation):
		fmt.Println("select a conversation first (/select <n>)")
	case err != nil:
		fmt.Printf("send failed, message not delivered: %v\n", err)
	}
}

func render(user *models.User, conversations *chatsync.ConversationStore, channel *chatsync.MessageChannel) {
	fmt.Println("--- conversations ---")
	selected := channel.Selected()
	for i, conv := range conversations.Conversations() {
		marker := " "
		if conv.ID == selected {
			marker = "*"
		}
		name := "(empty)"
		if p := conv.Counterpart(user.ID); p != nil {
			name = p.DisplayName
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = conv.LastMessage.Content
		}
		fmt.Printf("%s %d. %-16s %s\n", marker, i+1, name, preview)
	}
	if selected == "" {
		return
	}
	fmt.Println("--- messages ---")
	for _, msg := range channel.Messages() {
		who := "them"
		if msg.SenderID == user.ID {
			who = "me"
		}
		fmt.Printf("[%s] %-4s %s\n", msg.CreatedAt.Local().Format("15:04"), who, msg.Content)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
