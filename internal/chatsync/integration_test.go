package chatsync_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/chatsync/internal/apiclient"
	"github.com/skillswap/chatsync/internal/chatsync"
	"github.com/skillswap/chatsync/internal/devserver"
	"github.com/skillswap/chatsync/internal/devserver/store"
	"github.com/skillswap/chatsync/internal/push"
)

// TestLiveSyncEndToEnd drives the whole engine against the stub backend: two
// logged-in users, one conversation, REST sends, and push-triggered refreshes.
func TestLiveSyncEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	accounts, err := devserver.Seed(st, []devserver.SeedUser{
		{Username: "alice", Password: "swordfish", DisplayName: "Alice"},
		{Username: "bob", Password: "hunter2", DisplayName: "Bob"},
	})
	require.NoError(t, err)
	conv, err := st.CreateConversation(accounts[0].ID, accounts[1].ID)
	require.NoError(t, err)

	backend := devserver.New(devserver.Config{Store: st, SessionKey: []byte("integration-key")})
	defer backend.Close()
	server := httptest.NewServer(backend.Handler())
	defer server.Close()
	socketURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket"

	ctx := context.Background()

	aliceAPI, err := apiclient.New(server.URL)
	require.NoError(t, err)
	alice, err := aliceAPI.Login(ctx, "alice", "swordfish")
	require.NoError(t, err)

	bobAPI, err := apiclient.New(server.URL)
	require.NoError(t, err)
	_, err = bobAPI.Login(ctx, "bob", "hunter2")
	require.NoError(t, err)

	conversations := chatsync.NewConversationStore(aliceAPI)
	channel := chatsync.NewMessageChannel(aliceAPI, conversations)
	controller := chatsync.NewController(conversations, channel, func(userID string) chatsync.Subscriber {
		return push.NewClient(socketURL, userID, push.Options{})
	})

	require.NoError(t, controller.SetIdentity(ctx, alice))
	defer controller.Close()
	require.Equal(t, chatsync.StateConnected, controller.State())

	require.NoError(t, conversations.LoadAll(ctx))
	require.Len(t, conversations.Conversations(), 1)

	channel.Select(conv.ID)
	require.NoError(t, channel.LoadHistory(ctx))
	require.Empty(t, channel.Messages())

	// Bob sends over REST; Alice's engine must pick it up via the push
	// channel without any polling on our side.
	_, err = bobAPI.SendMessage(ctx, conv.ID, "hello alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs := channel.Messages()
		return len(msgs) == 1 && msgs[0].Content == "hello alice"
	}, 3*time.Second, 25*time.Millisecond, "pushed message never showed up in the channel")

	require.Eventually(t, func() bool {
		list := conversations.Conversations()
		return len(list) == 1 && list[0].LastMessage != nil && list[0].LastMessage.Content == "hello alice"
	}, 3*time.Second, 25*time.Millisecond, "conversation preview never refreshed")

	// Alice replies. Send triggers a refresh and so does the echo of her
	// own message over the push channel; the two must converge on the
	// same list with no duplicates.
	_, err = channel.Send(ctx, "hi bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(channel.Messages()) == 2
	}, 3*time.Second, 25*time.Millisecond)

	time.Sleep(150 * time.Millisecond) // let the push-triggered refresh land too
	msgs := channel.Messages()
	require.Len(t, msgs, 2, "send + push refresh must not duplicate the message")
	assert.Equal(t, "hello alice", msgs[0].Content)
	assert.Equal(t, "hi bob", msgs[1].Content)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))

	// Empty input never reaches the wire.
	_, err = channel.Send(ctx, "   ")
	require.ErrorIs(t, err, chatsync.ErrEmptyMessage)
	assert.Len(t, channel.Messages(), 2)

	// Logout tears the connection down.
	controller.ClearIdentity()
	assert.Equal(t, chatsync.StateDisconnected, controller.State())
	assert.Nil(t, controller.Identity())
}
