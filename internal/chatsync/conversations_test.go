package chatsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/chatsync/internal/models"
)

func TestLoadAllReplacesListWholesale(t *testing.T) {
	api := new(mockAPI)
	store := NewConversationStore(api)

	first := []models.Conversation{{ID: "c1"}, {ID: "c2"}}
	api.On("ListConversations", mock.Anything).Return(first, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))
	assert.Equal(t, first, store.Conversations())

	second := []models.Conversation{{ID: "c3"}}
	api.On("ListConversations", mock.Anything).Return(second, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))
	assert.Equal(t, second, store.Conversations())

	api.AssertExpectations(t)
}

func TestLoadAllFailureRetainsPriorList(t *testing.T) {
	api := new(mockAPI)
	store := NewConversationStore(api)

	first := []models.Conversation{{ID: "c1"}}
	api.On("ListConversations", mock.Anything).Return(first, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))

	api.On("ListConversations", mock.Anything).Return(nil, errors.New("network down")).Once()
	err := store.LoadAll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, first, store.Conversations(), "prior list must survive a failed refresh")
}

func TestApplyPreviewPatchesOneConversation(t *testing.T) {
	api := new(mockAPI)
	store := NewConversationStore(api)

	api.On("ListConversations", mock.Anything).Return([]models.Conversation{
		{ID: "c1"}, {ID: "c2"},
	}, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))

	at := time.Now()
	store.ApplyPreview("c2", "see you at 5", at)

	list := store.Conversations()
	assert.Nil(t, list[0].LastMessage)
	require.NotNil(t, list[1].LastMessage)
	assert.Equal(t, "see you at 5", list[1].LastMessage.Content)
	assert.Equal(t, at, list[1].LastMessage.CreatedAt)
}

func TestApplyPreviewUnknownConversationIsNoop(t *testing.T) {
	api := new(mockAPI)
	store := NewConversationStore(api)

	api.On("ListConversations", mock.Anything).Return([]models.Conversation{{ID: "c1"}}, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))

	store.ApplyPreview("missing", "hello", time.Now())
	assert.Nil(t, store.Conversations()[0].LastMessage)
}

// The optimistic preview is a display patch only; the next authoritative
// fetch must overwrite it even when the server disagrees.
func TestLoadAllOverwritesOptimisticPreview(t *testing.T) {
	api := new(mockAPI)
	store := NewConversationStore(api)

	api.On("ListConversations", mock.Anything).Return([]models.Conversation{{ID: "c1"}}, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))

	store.ApplyPreview("c1", "optimistic text", time.Now())

	serverAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	authoritative := []models.Conversation{{
		ID:          "c1",
		LastMessage: &models.MessagePreview{Content: "what the server says", CreatedAt: serverAt},
	}}
	api.On("ListConversations", mock.Anything).Return(authoritative, nil).Once()
	require.NoError(t, store.LoadAll(context.Background()))

	assert.Equal(t, authoritative, store.Conversations())
}
