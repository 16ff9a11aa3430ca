package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/chatsync/internal/devserver/store"
	"github.com/skillswap/chatsync/internal/models"
)

type testBackend struct {
	server *httptest.Server
	store  *store.MemoryStore
	alice  *store.Account
	bob    *store.Account
	conv   *models.Conversation
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	accounts, err := Seed(st, []SeedUser{
		{Username: "alice", Password: "swordfish", DisplayName: "Alice"},
		{Username: "bob", Password: "hunter2", DisplayName: "Bob"},
	})
	require.NoError(t, err)

	conv, err := st.CreateConversation(accounts[0].ID, accounts[1].ID)
	require.NoError(t, err)

	srv := New(Config{Store: st, SessionKey: []byte("test-session-key")})
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(server.Close)

	return &testBackend{server: server, store: st, alice: accounts[0], bob: accounts[1], conv: conv}
}

// login returns an http client holding a valid session cookie for username.
func (b *testBackend) login(t *testing.T, username, password string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	body, _ := json.Marshal(models.UserLogin{Username: username, Password: password})
	resp, err := client.Post(b.server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return client
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	b := newTestBackend(t)

	body, _ := json.Marshal(models.UserLogin{Username: "alice", Password: "wrong"})
	resp, err := http.Post(b.server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatEndpointsRequireSession(t *testing.T) {
	b := newTestBackend(t)

	resp, err := http.Get(b.server.URL + "/chat/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListSendHistoryFlow(t *testing.T) {
	b := newTestBackend(t)
	client := b.login(t, "alice", "swordfish")

	// Conversation list with no messages yet: no preview.
	resp, err := client.Get(b.server.URL + "/chat/")
	require.NoError(t, err)
	var listBody struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	resp.Body.Close()
	require.Len(t, listBody.Conversations, 1)
	assert.Len(t, listBody.Conversations[0].Participants, 2)
	assert.Nil(t, listBody.Conversations[0].LastMessage)

	// Send a message.
	sendBody, _ := json.Marshal(models.SendMessageRequest{ConversationID: b.conv.ID, Content: "hello bob"})
	resp, err = client.Post(b.server.URL+"/chat/send", "application/json", bytes.NewReader(sendBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	resp.Body.Close()
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, b.alice.ID, sent.SenderID)

	// History contains it, ordered.
	resp, err = client.Get(fmt.Sprintf("%s/chat/%s/", b.server.URL, b.conv.ID))
	require.NoError(t, err)
	var histBody struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&histBody))
	resp.Body.Close()
	require.Len(t, histBody.Messages, 1)
	assert.Equal(t, sent.ID, histBody.Messages[0].ID)

	// The conversation preview reflects the message.
	resp, err = client.Get(b.server.URL + "/chat/")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	resp.Body.Close()
	require.NotNil(t, listBody.Conversations[0].LastMessage)
	assert.Equal(t, "hello bob", listBody.Conversations[0].LastMessage.Content)
}

func TestSendRejectsWhitespaceContent(t *testing.T) {
	b := newTestBackend(t)
	client := b.login(t, "alice", "swordfish")

	sendBody, _ := json.Marshal(models.SendMessageRequest{ConversationID: b.conv.ID, Content: "   "})
	resp, err := client.Post(b.server.URL+"/chat/send", "application/json", bytes.NewReader(sendBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryForbiddenForNonParticipant(t *testing.T) {
	b := newTestBackend(t)
	_, err := Seed(b.store, []SeedUser{{Username: "carol", Password: "pw-carol", DisplayName: "Carol"}})
	require.NoError(t, err)

	client := b.login(t, "carol", "pw-carol")
	resp, err := client.Get(fmt.Sprintf("%s/chat/%s/", b.server.URL, b.conv.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHistoryUnknownConversation(t *testing.T) {
	b := newTestBackend(t)
	client := b.login(t, "alice", "swordfish")

	resp, err := client.Get(b.server.URL + "/chat/nope/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
