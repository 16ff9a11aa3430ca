// Package store persists users, conversations, and messages for the stub
// backend. The in-memory implementation backs tests and local development;
// the Postgres implementation survives restarts.
package store

import (
	"errors"
	"fmt"

	"github.com/skillswap/chatsync/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Account pairs a user with its login credential hash. The hash never leaves
// the backend.
type Account struct {
	models.User
	PasswordHash string
}

// Store is the persistence surface the stub backend needs.
type Store interface {
	CreateUser(username, displayName, avatarURL, passwordHash string) (*Account, error)
	GetAccountByUsername(username string) (*Account, error)
	GetUserByID(id string) (*models.User, error)

	CreateConversation(participantIDs ...string) (*models.Conversation, error)
	// ListConversations returns the user's conversations most-recently-active
	// first, each with participants and last-message preview attached.
	ListConversations(userID string) ([]models.Conversation, error)
	GetConversation(conversationID string) (*models.Conversation, error)

	// ListMessages returns the full history in createdAt ascending order.
	ListMessages(conversationID string) ([]models.Message, error)
	CreateMessage(conversationID, senderID, content string) (*models.Message, error)

	Close() error
}

// Type selects a Store implementation.
type Type string

const (
	Memory   Type = "memory"
	Postgres Type = "postgres"
)

// New builds a Store of the given type. connStr is only used for Postgres.
func New(t Type, connStr string) (Store, error) {
	switch t {
	case Memory:
		return NewMemoryStore(), nil
	case Postgres:
		return NewPostgresStore(connStr)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", t)
	}
}
