package database

import (
	"context"
	"time"

	"github.com/npezzotti/go-jobboard/internal/types"
)

type JobBoardRepository interface {
	Ping(ctx context.Context) error

	GetAccount(ctx context.Context, kind types.AccountKind, id int) (types.Account, error)
	GetNotificationSettings(ctx context.Context, kind types.AccountKind, id int) (types.NotificationSettings, error)
	UpdateNotificationSettings(ctx context.Context, kind types.AccountKind, id int, settings types.NotificationSettings) (types.NotificationSettings, error)
	FilterEnabledRecipients(ctx context.Context, kind types.AccountKind, ids []int, c types.NotificationCase) ([]int, error)
	GetUnreadNotificationCount(ctx context.Context, kind types.AccountKind, id int) (int, error)

	GetOrCreateConversation(ctx context.Context, userId, companyId int) (types.Conversation, error)
	GetConversation(ctx context.Context, externalId string) (types.Conversation, error)
	ListConversations(ctx context.Context, params ListConversationsParams) ([]types.Conversation, error)
	AppendMessage(ctx context.Context, params AppendMessageParams) (types.Conversation, error)
	MarkConversationOpened(ctx context.Context, conversationId int, kind types.AccountKind) error
	GetMessages(ctx context.Context, conversationId, before, limit int) ([]types.Message, error)
	ReportConversation(ctx context.Context, conversationId int, reporter types.AccountKind) error

	AppendNotification(ctx context.Context, n NewNotification, suppress bool) (types.Notification, bool, error)
	AppendNotifications(ctx context.Context, ns []NewNotification) ([]types.Notification, error)
	MarkNotificationRead(ctx context.Context, kind types.AccountKind, ownerId, id int) (types.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, kind types.AccountKind, ownerId int) (int64, error)
	ListNotifications(ctx context.Context, params ListNotificationsParams) (types.NotificationPage, error)
	PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error)
	ReconcileUnreadCounters(ctx context.Context) (int64, error)
}
