package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-jobboard/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	SetOnline     *SetOnline   `json:"setOnline,omitempty"`
	JoinChat      *ChatRef     `json:"joinChat,omitempty"`
	LeaveChat     *ChatRef     `json:"leaveChat,omitempty"`
	StartedTyping *ChatRef     `json:"startedTyping,omitempty"`
	StoppedTyping *ChatRef     `json:"stoppedTyping,omitempty"`
	MessageSent   *MessageSent `json:"messageSent,omitempty"`
	client        *Client      `json:"-"`
}

type SetOnline struct {
	AccountId   int               `json:"accountId"`
	AccountKind types.AccountKind `json:"accountKind"`
}

type ChatRef struct {
	ChatId    string `json:"chatId"`
	AccountId int    `json:"accountId,omitempty"`
}

type MessageSent struct {
	ChatId    string        `json:"chatId"`
	AccountId int           `json:"accountId,omitempty"`
	Message   types.Message `json:"message"`
}

// ChatId returns the conversation a room-scoped event targets.
func (m *ClientMessage) ChatId() string {
	switch {
	case m.JoinChat != nil:
		return m.JoinChat.ChatId
	case m.LeaveChat != nil:
		return m.LeaveChat.ChatId
	case m.StartedTyping != nil:
		return m.StartedTyping.ChatId
	case m.StoppedTyping != nil:
		return m.StoppedTyping.ChatId
	case m.MessageSent != nil:
		return m.MessageSent.ChatId
	}
	return ""
}

// ClaimedAccountId returns the account id carried in the payload, if any.
func (m *ClientMessage) ClaimedAccountId() int {
	switch {
	case m.SetOnline != nil:
		return m.SetOnline.AccountId
	case m.JoinChat != nil:
		return m.JoinChat.AccountId
	case m.LeaveChat != nil:
		return m.LeaveChat.AccountId
	case m.StartedTyping != nil:
		return m.StartedTyping.AccountId
	case m.StoppedTyping != nil:
		return m.StoppedTyping.AccountId
	case m.MessageSent != nil:
		return m.MessageSent.AccountId
	}
	return 0
}

type ServerMessage struct {
	BaseMessage
	Response          *Response            `json:"response,omitempty"`
	UserStatus        *types.PresenceState `json:"userStatus,omitempty"`
	UserStartedTyping *TypingSignal        `json:"userStartedTyping,omitempty"`
	UserStoppedTyping *TypingSignal        `json:"userStoppedTyping,omitempty"`
	NewMessage        *types.Message       `json:"newMessage,omitempty"`
	Notification      *types.Notification  `json:"notification,omitempty"`
	// Recipient account for server-wide delivery. Zero means every connection.
	Recipient  accountKey `json:"-"`
	SkipClient *Client    `json:"-"`
}

type TypingSignal struct {
	ChatId      string            `json:"chatId"`
	AccountId   int               `json:"accountId"`
	AccountKind types.AccountKind `json:"accountKind"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func response(id, code int, errText string, data any) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errText,
			Data:         data,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return response(id, http.StatusOK, "", data)
}

func NoErrAccepted(id int, data any) *ServerMessage {
	return response(id, http.StatusAccepted, "", data)
}

func ErrChatNotFound(id int) *ServerMessage {
	return response(id, http.StatusNotFound, "chat not found", nil)
}

func ErrForbidden(id int) *ServerMessage {
	return response(id, http.StatusForbidden, "forbidden", nil)
}

func ErrInvalidMessage(id int, reason string) *ServerMessage {
	if reason == "" {
		reason = "invalid message format"
	}
	return response(id, http.StatusBadRequest, reason, nil)
}

func ErrInternalError(id int) *ServerMessage {
	return response(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return response(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
