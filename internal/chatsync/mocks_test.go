package chatsync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/skillswap/chatsync/internal/models"
)

// mockAPI implements the API interface for testing.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *mockAPI) GetHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockAPI) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
