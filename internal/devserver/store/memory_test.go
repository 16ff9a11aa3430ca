package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, s *MemoryStore, usernames ...string) []*Account {
	t.Helper()
	accounts := make([]*Account, 0, len(usernames))
	for _, name := range usernames {
		account, err := s.CreateUser(name, "", "", "hash")
		require.NoError(t, err)
		accounts = append(accounts, account)
	}
	return accounts
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	s := NewMemoryStore()
	seedUsers(t, s, "alice")

	_, err := s.CreateUser("alice", "", "", "hash")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestGetAccountByUsernameUnknown(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetAccountByUsername("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationsOrderedByActivity(t *testing.T) {
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob", "carol")

	conv1, err := s.CreateConversation(users[0].ID, users[1].ID)
	require.NoError(t, err)
	conv2, err := s.CreateConversation(users[0].ID, users[2].ID)
	require.NoError(t, err)

	_, err = s.CreateMessage(conv1.ID, users[1].ID, "first")
	require.NoError(t, err)

	list, err := s.ListConversations(users[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, conv1.ID, list[0].ID, "conversation with the newest message comes first")

	_, err = s.CreateMessage(conv2.ID, users[2].ID, "newer")
	require.NoError(t, err)

	list, err = s.ListConversations(users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, conv2.ID, list[0].ID)

	// Previews follow the latest message.
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "newer", list[0].LastMessage.Content)
}

func TestListConversationsExcludesNonMembers(t *testing.T) {
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob", "carol")

	_, err := s.CreateConversation(users[0].ID, users[1].ID)
	require.NoError(t, err)

	list, err := s.ListConversations(users[2].ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMessagesOrderedAndTimestampsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob")
	conv, err := s.CreateConversation(users[0].ID, users[1].ID)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := s.CreateMessage(conv.ID, users[i%2].ID, "msg")
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	seen := map[string]bool{}
	for i, msg := range msgs {
		assert.False(t, seen[msg.ID], "duplicate id")
		seen[msg.ID] = true
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
}

func TestCreateMessageUnknownConversation(t *testing.T) {
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice")

	_, err := s.CreateMessage("nope", users[0].ID, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
