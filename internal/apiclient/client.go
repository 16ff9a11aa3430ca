// Package apiclient is the HTTP half of the chat transport: the conversation
// list, history, and send endpoints, authenticated by a session cookie.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/skillswap/chatsync/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client talks to the chat backend. The zero value is not usable; construct
// with New. The embedded cookie jar carries the session credential captured by
// Login across all subsequent calls.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the backend at baseURL (scheme://host[:port]).
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
	}, nil
}

// Login authenticates with the backend and stores the session cookie on the
// client's jar. Every other operation requires a prior successful Login.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	body, err := json.Marshal(models.UserLogin{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login: server returned %d", resp.StatusCode)
	}
	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &user, nil
}

// ListConversations fetches the full conversation list for the session user.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, "/chat/", "list conversations", &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetHistory fetches the full ordered message history for one conversation.
// Messages arrive in non-decreasing createdAt order and are not re-sorted.
func (c *Client) GetHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/chat/" + url.PathEscape(conversationID) + "/"
	if err := c.getJSON(ctx, path, "get history", &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a new message and returns the server's copy of it, with
// server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	body, err := json.Marshal(models.SendMessageRequest{ConversationID: conversationID, Content: content})
	if err != nil {
		return nil, &SendError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/send", bytes.NewReader(body))
	if err != nil {
		return nil, &SendError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &SendError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &SendError{StatusCode: resp.StatusCode}
	}
	var msg models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, &SendError{Err: err}
	}
	return &msg, nil
}

func (c *Client) getJSON(ctx context.Context, path, op string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	return nil
}
