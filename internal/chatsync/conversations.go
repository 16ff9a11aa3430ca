// Package chatsync keeps client-side chat state consistent across two
// independent sources: REST fetches and asynchronous push notifications. It
// never merges pushed data into local state; every notification re-derives
// truth from the fetch endpoints, so the rendered lists cannot drift from the
// server.
package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/skillswap/chatsync/internal/logger"
	"github.com/skillswap/chatsync/internal/models"
)

var log = logger.New("chatsync")

// API is the subset of the REST client the synchronization engine needs.
type API interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetHistory(ctx context.Context, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error)
}

// ConversationStore holds the authoritative conversation list for the current
// user. Order is server-determined; the store never re-sorts.
type ConversationStore struct {
	api API

	mu            sync.RWMutex
	conversations []models.Conversation
}

// NewConversationStore creates an empty store backed by api.
func NewConversationStore(api API) *ConversationStore {
	return &ConversationStore{api: api}
}

// LoadAll replaces the list wholesale with the server's copy. On failure the
// prior list is retained and the error is returned; callers decide whether to
// surface it. Never retried automatically.
func (s *ConversationStore) LoadAll(ctx context.Context) error {
	conversations, err := s.api.ListConversations(ctx)
	if err != nil {
		log.Error("conversation list refresh failed: %v", err)
		return err
	}
	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return nil
}

// Conversations returns a snapshot of the current list for rendering.
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ApplyPreview patches one conversation's last-message preview locally after a
// successful send, so the sidebar updates without waiting for a full refresh.
// The patch is display-only: the next LoadAll overwrites it with whatever the
// server says, whether or not they agree.
func (s *ConversationStore) ApplyPreview(conversationID, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].LastMessage = &models.MessagePreview{Content: content, CreatedAt: at}
			return
		}
	}
	log.Debug("preview patch for unknown conversation %s dropped", conversationID)
}
