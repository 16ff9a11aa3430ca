package models

import "time"

// Participant is a user as they appear inside a conversation. Exactly one
// participant is the current user; the rest are counterparties.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// MessagePreview is the truncated last-message view shown in the conversation
// list without fetching the full history.
type MessagePreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a thread between two or more users. LastMessage is nil for a
// conversation in which nothing has been said yet.
type Conversation struct {
	ID           string          `json:"id"`
	Participants []Participant   `json:"participants"`
	LastMessage  *MessagePreview `json:"lastMessage,omitempty"`
}

// Counterpart returns the first participant that is not selfID, or nil if the
// conversation has no other participant.
func (c *Conversation) Counterpart(selfID string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].ID != selfID {
			return &c.Participants[i]
		}
	}
	return nil
}
