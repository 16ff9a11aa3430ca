package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/chatsync/internal/models"
)

type conversationRecord struct {
	id             string
	participantIDs []string
	createdAt      time.Time
}

// MemoryStore keeps everything in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	accountsByID  map[string]*Account
	idByUsername  map[string]string
	conversations map[string]*conversationRecord
	messages      map[string][]models.Message
	lastCreatedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accountsByID:  make(map[string]*Account),
		idByUsername:  make(map[string]string),
		conversations: make(map[string]*conversationRecord),
		messages:      make(map[string][]models.Message),
	}
}

func (s *MemoryStore) CreateUser(username, displayName, avatarURL, passwordHash string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idByUsername[username]; ok {
		return nil, ErrUserAlreadyExists
	}
	account := &Account{
		User: models.User{
			ID:          uuid.NewString(),
			Username:    username,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
		},
		PasswordHash: passwordHash,
	}
	s.accountsByID[account.ID] = account
	s.idByUsername[username] = account.ID
	return account, nil
}

func (s *MemoryStore) GetAccountByUsername(username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idByUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	account := *s.accountsByID[id]
	return &account, nil
}

func (s *MemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accountsByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := account.User
	return &user, nil
}

func (s *MemoryStore) CreateConversation(participantIDs ...string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range participantIDs {
		if _, ok := s.accountsByID[id]; !ok {
			return nil, ErrUserNotFound
		}
	}
	rec := &conversationRecord{
		id:             uuid.NewString(),
		participantIDs: append([]string(nil), participantIDs...),
		createdAt:      time.Now().UTC(),
	}
	s.conversations[rec.id] = rec
	return s.buildConversation(rec), nil
}

func (s *MemoryStore) ListConversations(userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		conv     models.Conversation
		activity time.Time
	}
	var entries []entry
	for _, rec := range s.conversations {
		member := false
		for _, id := range rec.participantIDs {
			if id == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		conv := s.buildConversation(rec)
		activity := rec.createdAt
		if conv.LastMessage != nil {
			activity = conv.LastMessage.CreatedAt
		}
		entries = append(entries, entry{conv: *conv, activity: activity})
	}

	// Most recently active first, the order the real backend serves.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].activity.After(entries[j].activity)
	})

	out := make([]models.Conversation, len(entries))
	for i, e := range entries {
		out[i] = e.conv
	}
	return out, nil
}

func (s *MemoryStore) GetConversation(conversationID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return s.buildConversation(rec), nil
}

func (s *MemoryStore) ListMessages(conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) CreateMessage(conversationID, senderID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	if _, ok := s.accountsByID[senderID]; !ok {
		return nil, ErrUserNotFound
	}

	// Timestamps must be non-decreasing within a conversation even when two
	// sends land inside the same clock tick.
	now := time.Now().UTC()
	if !now.After(s.lastCreatedAt) {
		now = s.lastCreatedAt.Add(time.Microsecond)
	}
	s.lastCreatedAt = now

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return &msg, nil
}

func (s *MemoryStore) Close() error { return nil }

// buildConversation assembles the client-facing view. Callers hold s.mu.
func (s *MemoryStore) buildConversation(rec *conversationRecord) *models.Conversation {
	conv := &models.Conversation{ID: rec.id}
	for _, id := range rec.participantIDs {
		if account, ok := s.accountsByID[id]; ok {
			name := account.DisplayName
			if name == "" {
				name = account.Username
			}
			conv.Participants = append(conv.Participants, models.Participant{
				ID:          account.ID,
				DisplayName: name,
				AvatarURL:   account.AvatarURL,
			})
		}
	}
	if msgs := s.messages[rec.id]; len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		conv.LastMessage = &models.MessagePreview{Content: last.Content, CreatedAt: last.CreatedAt}
	}
	return conv
}
