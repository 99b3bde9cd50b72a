package database

import (
	"time"

	"github.com/npezzotti/go-jobboard/internal/types"
)

type UnreadFilter string

const (
	UnreadAny    UnreadFilter = ""
	UnreadOnly   UnreadFilter = "unread"
	UnreadNone   UnreadFilter = "read"
	maxPageLimit              = 100
)

type ListConversationsParams struct {
	AccountId   int
	AccountKind types.AccountKind
	// Search matches the display name of the other party.
	Search string
	Unread UnreadFilter
	Before int
	Limit  int
}

type AppendMessageParams struct {
	ConversationId int
	Message        types.Message
	// Increments applied to the unread counters in the same transaction.
	UserUnreadDelta    int
	CompanyUnreadDelta int
}

type NewNotification struct {
	OwnerId     int
	OwnerKind   types.AccountKind
	Case        types.NotificationCase
	Title       string
	TitleDe     string
	Body        string
	BodyDe      string
	SubjectId   string
	SubjectType types.SubjectType
	ActorId     *int
	CreatedAt   time.Time
}

type ListNotificationsParams struct {
	OwnerId   int
	OwnerKind types.AccountKind
	// Cursor is the id of the first record of the page. Zero starts at the newest record.
	Cursor int
	Limit  int
	Read   *bool
	Case   types.NotificationCase
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
