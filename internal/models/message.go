package models

import "time"

// Message is a single chat message. IDs are server-assigned and opaque to the
// client; CreatedAt orders messages within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SendMessageRequest is the body of POST /chat/send.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Content        string `json:"content" binding:"required,min=1"`
}
