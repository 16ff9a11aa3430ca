package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/skillswap/chatsync/internal/models"
)

var (
	// ErrEmptyMessage rejects a send whose body is empty after trimming.
	// No network call is made.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoConversation rejects history or send operations while nothing
	// is selected.
	ErrNoConversation = errors.New("no conversation selected")
)

// MessageChannel holds the ordered message history for at most one
// conversation at a time. Every selection change bumps a generation counter;
// a history fetch is applied only if the generation it was issued under is
// still current, so a late response for a previously selected conversation
// can never overwrite the current one.
type MessageChannel struct {
	api           API
	conversations *ConversationStore

	mu         sync.Mutex
	selected   string
	generation uint64
	messages   []models.Message
}

// NewMessageChannel creates an empty channel. conversations may be nil when no
// sidebar preview patching is wanted.
func NewMessageChannel(api API, conversations *ConversationStore) *MessageChannel {
	return &MessageChannel{api: api, conversations: conversations}
}

// Select makes conversationID the current conversation. Previous history is
// discarded immediately and any in-flight fetch for the previous selection
// will be dropped when it lands. Selecting the current conversation again is
// a no-op.
func (ch *MessageChannel) Select(conversationID string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.selected == conversationID {
		return
	}
	ch.selected = conversationID
	ch.generation++
	ch.messages = nil
}

// Deselect clears the selection and the held history.
func (ch *MessageChannel) Deselect() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.selected = ""
	ch.generation++
	ch.messages = nil
}

// Selected returns the current conversation id, or "" when none is selected.
func (ch *MessageChannel) Selected() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.selected
}

// Messages returns a snapshot of the current history for rendering, in the
// server's order (createdAt ascending).
func (ch *MessageChannel) Messages() []models.Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]models.Message, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// LoadHistory replaces the held history with the server's copy for the
// currently selected conversation. The result is discarded if the selection
// changed while the fetch was in flight. On failure the prior history is
// retained.
func (ch *MessageChannel) LoadHistory(ctx context.Context) error {
	ch.mu.Lock()
	id, gen := ch.selected, ch.generation
	ch.mu.Unlock()
	if id == "" {
		return ErrNoConversation
	}

	messages, err := ch.api.GetHistory(ctx, id)
	if err != nil {
		log.Error("history refresh for %s failed: %v", id, err)
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.generation != gen {
		log.Debug("dropping stale history response for %s", id)
		return nil
	}
	ch.messages = messages
	return nil
}

// Send posts body to the currently selected conversation. Empty and
// whitespace-only input is rejected with ErrEmptyMessage before any network
// call. On success the authoritative history is re-fetched (the sent message
// is never appended locally, which is what keeps send and push refreshes from
// ever producing duplicates) and the conversation preview is patched. On
// failure the caller should keep the input so the user can retry.
func (ch *MessageChannel) Send(ctx context.Context, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	ch.mu.Lock()
	id := ch.selected
	ch.mu.Unlock()
	if id == "" {
		return nil, ErrNoConversation
	}

	msg, err := ch.api.SendMessage(ctx, id, body)
	if err != nil {
		log.Error("send to %s failed: %v", id, err)
		return nil, err
	}

	if ch.conversations != nil {
		ch.conversations.ApplyPreview(id, msg.Content, msg.CreatedAt)
	}
	// The send already succeeded; a failed refresh here only delays the
	// display until the next push-triggered reload.
	if err := ch.LoadHistory(ctx); err != nil {
		log.Warn("post-send history refresh for %s failed: %v", id, err)
	}
	return msg, nil
}
