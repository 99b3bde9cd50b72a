package types

import (
	"errors"
	"time"
)

type AccountKind string

const (
	AccountJobSeeker AccountKind = "user"
	AccountCompany   AccountKind = "company"
	AccountAdmin     AccountKind = "admin"
)

func (k AccountKind) Valid() bool {
	switch k {
	case AccountJobSeeker, AccountCompany, AccountAdmin:
		return true
	}
	return false
}

// IsParty reports whether accounts of this kind can own a conversation side.
func (k AccountKind) IsParty() bool {
	return k == AccountJobSeeker || k == AccountCompany
}

// Counterpart returns the kind on the other side of a conversation.
func (k AccountKind) Counterpart() AccountKind {
	switch k {
	case AccountJobSeeker:
		return AccountCompany
	case AccountCompany:
		return AccountJobSeeker
	}
	return ""
}

type Account struct {
	Id          int         `json:"id"`
	Kind        AccountKind `json:"account_type"`
	DisplayName string      `json:"display_name"`
	Photo       string      `json:"photo,omitempty"`
}

// PresenceState is the transient record broadcast on userStatus.
type PresenceState struct {
	AccountId    int         `json:"account_id"`
	AccountKind  AccountKind `json:"account_type"`
	Online       bool        `json:"online"`
	ConnectionId string      `json:"connection_id,omitempty"`
}

type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFile MessageKind = "file"
)

type FileType string

const (
	FileImage FileType = "image"
	FileVideo FileType = "video"
	FileOther FileType = "others"
)

type File struct {
	Name        string   `json:"name"`
	Type        FileType `json:"type"`
	Src         string   `json:"src"`
	ContentType string   `json:"content_type,omitempty"`
}

type Message struct {
	SeqId     int         `json:"seq"`
	Id        string      `json:"id"`
	Owner     int         `json:"owner"`
	OwnerKind AccountKind `json:"owner_type"`
	Kind      MessageKind `json:"type"`
	Text      string      `json:"text,omitempty"`
	File      *File       `json:"file,omitempty"`
	ChatId    string      `json:"chat_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

var (
	ErrEmptyMessage    = errors.New("message text cannot be empty")
	ErrMissingFile     = errors.New("file message requires a file source")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrInvalidKind     = errors.New("invalid message type")
)

// Validate checks the payload variant of a message before it is appended.
func (m Message) Validate() error {
	switch m.Kind {
	case MessageText, "":
		if m.Text == "" {
			return ErrEmptyMessage
		}
	case MessageFile:
		if m.File == nil || m.File.Src == "" {
			return ErrMissingFile
		}
		switch m.File.Type {
		case FileImage, FileVideo, FileOther:
		default:
			return ErrInvalidFileType
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

type Conversation struct {
	Id                 int       `json:"-"`
	ExternalId         string    `json:"id"`
	UserId             int       `json:"user_id"`
	CompanyId          int       `json:"company_id"`
	UserUnread         int       `json:"-"`
	CompanyUnread      int       `json:"-"`
	UnreadMessageCount int       `json:"unread_message_count"`
	LastMessage        *Message  `json:"last_message"`
	User               *Account  `json:"user,omitempty"`
	Company            *Account  `json:"company,omitempty"`
	Messages           []Message `json:"messages,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PartyId returns the id of the party of the given kind.
func (c Conversation) PartyId(kind AccountKind) int {
	switch kind {
	case AccountJobSeeker:
		return c.UserId
	case AccountCompany:
		return c.CompanyId
	}
	return 0
}

func (c Conversation) IsParty(accountId int, kind AccountKind) bool {
	return kind.IsParty() && c.PartyId(kind) == accountId
}

func (c Conversation) UnreadFor(kind AccountKind) int {
	switch kind {
	case AccountJobSeeker:
		return c.UserUnread
	case AccountCompany:
		return c.CompanyUnread
	}
	return 0
}

// ForAccount exposes the unread counter that belongs to kind.
func (c Conversation) ForAccount(kind AccountKind) Conversation {
	c.UnreadMessageCount = c.UnreadFor(kind)
	return c
}
