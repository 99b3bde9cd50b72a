package database

import (
	"context"
	"time"

	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockJobBoardRepository struct {
	mock.Mock
}

func (m *MockJobBoardRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockJobBoardRepository) GetAccount(ctx context.Context, kind types.AccountKind, id int) (types.Account, error) {
	args := m.Called(ctx, kind, id)
	return args.Get(0).(types.Account), args.Error(1)
}
func (m *MockJobBoardRepository) GetNotificationSettings(ctx context.Context, kind types.AccountKind, id int) (types.NotificationSettings, error) {
	args := m.Called(ctx, kind, id)
	if s, ok := args.Get(0).(types.NotificationSettings); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) UpdateNotificationSettings(ctx context.Context, kind types.AccountKind, id int, settings types.NotificationSettings) (types.NotificationSettings, error) {
	args := m.Called(ctx, kind, id, settings)
	if s, ok := args.Get(0).(types.NotificationSettings); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) FilterEnabledRecipients(ctx context.Context, kind types.AccountKind, ids []int, c types.NotificationCase) ([]int, error) {
	args := m.Called(ctx, kind, ids, c)
	if ids, ok := args.Get(0).([]int); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) GetUnreadNotificationCount(ctx context.Context, kind types.AccountKind, id int) (int, error) {
	args := m.Called(ctx, kind, id)
	return args.Int(0), args.Error(1)
}
func (m *MockJobBoardRepository) GetOrCreateConversation(ctx context.Context, userId, companyId int) (types.Conversation, error) {
	args := m.Called(ctx, userId, companyId)
	return args.Get(0).(types.Conversation), args.Error(1)
}
func (m *MockJobBoardRepository) GetConversation(ctx context.Context, externalId string) (types.Conversation, error) {
	args := m.Called(ctx, externalId)
	return args.Get(0).(types.Conversation), args.Error(1)
}
func (m *MockJobBoardRepository) ListConversations(ctx context.Context, params ListConversationsParams) ([]types.Conversation, error) {
	args := m.Called(ctx, params)
	if cs, ok := args.Get(0).([]types.Conversation); ok {
		return cs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) AppendMessage(ctx context.Context, params AppendMessageParams) (types.Conversation, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(context.Context, AppendMessageParams) types.Conversation); ok {
		return fn(ctx, params), args.Error(1)
	}
	return args.Get(0).(types.Conversation), args.Error(1)
}
func (m *MockJobBoardRepository) MarkConversationOpened(ctx context.Context, conversationId int, kind types.AccountKind) error {
	args := m.Called(ctx, conversationId, kind)
	return args.Error(0)
}
func (m *MockJobBoardRepository) GetMessages(ctx context.Context, conversationId, before, limit int) ([]types.Message, error) {
	args := m.Called(ctx, conversationId, before, limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) ReportConversation(ctx context.Context, conversationId int, reporter types.AccountKind) error {
	args := m.Called(ctx, conversationId, reporter)
	return args.Error(0)
}
func (m *MockJobBoardRepository) AppendNotification(ctx context.Context, n NewNotification, suppress bool) (types.Notification, bool, error) {
	args := m.Called(ctx, n, suppress)
	return args.Get(0).(types.Notification), args.Bool(1), args.Error(2)
}
func (m *MockJobBoardRepository) AppendNotifications(ctx context.Context, ns []NewNotification) ([]types.Notification, error) {
	args := m.Called(ctx, ns)
	if created, ok := args.Get(0).([]types.Notification); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockJobBoardRepository) MarkNotificationRead(ctx context.Context, kind types.AccountKind, ownerId, id int) (types.Notification, error) {
	args := m.Called(ctx, kind, ownerId, id)
	return args.Get(0).(types.Notification), args.Error(1)
}
func (m *MockJobBoardRepository) MarkAllNotificationsRead(ctx context.Context, kind types.AccountKind, ownerId int) (int64, error) {
	args := m.Called(ctx, kind, ownerId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockJobBoardRepository) ListNotifications(ctx context.Context, params ListNotificationsParams) (types.NotificationPage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(types.NotificationPage), args.Error(1)
}
func (m *MockJobBoardRepository) PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockJobBoardRepository) ReconcileUnreadCounters(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
