package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
)

const conversationMessageLimit = 50

type CreateConversationRequest struct {
	CompanyId int `json:"company_id"`
	UserId    int `json:"user_id"`
}

type ConversationList struct {
	Conversations []types.Conversation `json:"conversations"`
	// NextBefore is passed as before to fetch the following page.
	NextBefore *int `json:"next_before,omitempty"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

func (s *JobBoardApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("json encode")
	}
}

func (s *JobBoardApp) writeError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case errors.As(err, &errResp):
	case errors.Is(err, database.ErrNotFound):
		errResp = NewNotFoundError()
	case errors.Is(err, database.ErrInvalidKind):
		errResp = NewBadRequestError()
	default:
		s.log.WithError(err).Error("request failed")
		errResp = NewInternalServerError(err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, NewValidationError(key)
	}
	return n, nil
}

func (s *JobBoardApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *JobBoardApp) listConversations(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	params := database.ListConversationsParams{
		AccountId:   account.Id,
		AccountKind: account.Kind,
		Search:      strings.TrimSpace(r.URL.Query().Get("search")),
	}

	switch filter := database.UnreadFilter(r.URL.Query().Get("read")); filter {
	case database.UnreadAny, database.UnreadOnly, database.UnreadNone:
		params.Unread = filter
	default:
		s.writeError(w, NewValidationError("read"))
		return
	}

	var err error
	if params.Before, err = queryInt(r, "before"); err != nil {
		s.writeError(w, err)
		return
	}
	if params.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, err)
		return
	}

	convs, err := s.db.ListConversations(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ConversationList{Conversations: convs}
	if len(convs) > 0 {
		last := convs[len(convs)-1].Id
		resp.NextBefore = &last
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *JobBoardApp) createConversation(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	// the caller's own side may be omitted
	switch account.Kind {
	case types.AccountJobSeeker:
		if req.UserId == 0 {
			req.UserId = account.Id
		}
		if req.UserId != account.Id {
			s.writeError(w, NewForbiddenError())
			return
		}
	case types.AccountCompany:
		if req.CompanyId == 0 {
			req.CompanyId = account.Id
		}
		if req.CompanyId != account.Id {
			s.writeError(w, NewForbiddenError())
			return
		}
	}

	if req.UserId <= 0 {
		s.writeError(w, NewValidationError("user_id"))
		return
	}
	if req.CompanyId <= 0 {
		s.writeError(w, NewValidationError("company_id"))
		return
	}

	conv, err := s.db.GetOrCreateConversation(r.Context(), req.UserId, req.CompanyId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conv.ForAccount(account.Kind))
}

// loadConversation fetches the conversation named in the path and checks the
// caller may read it.
func (s *JobBoardApp) loadConversation(r *http.Request, account types.Account) (types.Conversation, error) {
	externalId := r.PathValue("id")
	if externalId == "" {
		return types.Conversation{}, NewValidationError("id")
	}

	conv, err := s.db.GetConversation(r.Context(), externalId)
	if err != nil {
		return types.Conversation{}, err
	}

	if account.Kind != types.AccountAdmin && !conv.IsParty(account.Id, account.Kind) {
		return types.Conversation{}, NewForbiddenError()
	}

	return conv, nil
}

func (s *JobBoardApp) getConversation(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	conv, err := s.loadConversation(r, account)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if conv.IsParty(account.Id, account.Kind) {
		if err := s.db.MarkConversationOpened(r.Context(), conv.Id, account.Kind); err != nil {
			s.writeError(w, err)
			return
		}
		switch account.Kind {
		case types.AccountJobSeeker:
			conv.UserUnread = 0
		case types.AccountCompany:
			conv.CompanyUnread = 0
		}
	}

	// latest page, oldest first
	conv.Messages, err = s.db.GetMessages(r.Context(), conv.Id, 0, conversationMessageLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	slices.Reverse(conv.Messages)
	tagMessages(conv.Messages, conv.ExternalId)

	s.writeJson(w, http.StatusOK, conv.ForAccount(account.Kind))
}

func (s *JobBoardApp) getMessages(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	conv, err := s.loadConversation(r, account)
	if err != nil {
		s.writeError(w, err)
		return
	}

	before, err := queryInt(r, "before")
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}

	messages, err := s.db.GetMessages(r.Context(), conv.Id, before, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tagMessages(messages, conv.ExternalId)

	s.writeJson(w, http.StatusOK, messages)
}

func tagMessages(messages []types.Message, chatId string) {
	for i := range messages {
		messages[i].ChatId = chatId
	}
}

func (s *JobBoardApp) markConversationRead(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	conv, err := s.loadConversation(r, account)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.db.MarkConversationOpened(r.Context(), conv.Id, account.Kind); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

// reportConversation flags the conversation and notifies the reported party.
func (s *JobBoardApp) reportConversation(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	conv, err := s.loadConversation(r, account)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.db.ReportConversation(r.Context(), conv.Id, account.Kind); err != nil {
		s.writeError(w, err)
		return
	}

	if s.reports != nil {
		var nerr error
		switch account.Kind {
		case types.AccountJobSeeker:
			e := notify.CompanyReported{CompanyId: conv.CompanyId, UserId: conv.UserId}
			if conv.User != nil {
				e.ReporterName = conv.User.DisplayName
			}
			nerr = s.reports.CompanyReported(r.Context(), e)
		case types.AccountCompany:
			e := notify.UserReported{UserId: conv.UserId, CompanyId: conv.CompanyId}
			if conv.Company != nil {
				e.ReporterName = conv.Company.DisplayName
			}
			nerr = s.reports.UserReported(r.Context(), e)
		}
		if nerr != nil {
			s.log.WithError(nerr).WithField("chat_id", conv.ExternalId).Warn("report notification failed")
		}
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *JobBoardApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	params := database.ListNotificationsParams{
		OwnerId:   account.Id,
		OwnerKind: account.Kind,
	}

	var err error
	if params.Cursor, err = queryInt(r, "cursor"); err != nil {
		s.writeError(w, err)
		return
	}
	if params.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, err)
		return
	}
	if v := r.URL.Query().Get("read"); v != "" {
		read, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, NewValidationError("read"))
			return
		}
		params.Read = &read
	}
	if v := r.URL.Query().Get("case"); v != "" {
		c := types.NotificationCase(v)
		if !c.ValidFor(account.Kind) {
			s.writeError(w, NewValidationError("case"))
			return
		}
		params.Case = c
	}

	page, err := s.db.ListNotifications(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	page.Unread, err = s.db.GetUnreadNotificationCount(r.Context(), account.Kind, account.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, page)
}

func (s *JobBoardApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.writeError(w, NewValidationError("id"))
		return
	}

	n, err := s.db.MarkNotificationRead(r.Context(), account.Kind, account.Id, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, n)
}

func (s *JobBoardApp) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	updated, err := s.db.MarkAllNotificationsRead(r.Context(), account.Kind, account.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, MarkAllReadResponse{Updated: updated})
}

func (s *JobBoardApp) getNotificationSettings(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	settings, err := s.db.GetNotificationSettings(r.Context(), account.Kind, account.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, settings)
}

func (s *JobBoardApp) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	var settings types.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil || len(settings) == 0 {
		s.writeError(w, NewBadRequestError())
		return
	}
	for c := range settings {
		if !c.ValidFor(account.Kind) || !c.Configurable() {
			s.writeError(w, NewValidationError(string(c)))
			return
		}
	}

	updated, err := s.db.UpdateNotificationSettings(r.Context(), account.Kind, account.Id, settings)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, updated)
}

func (s *JobBoardApp) serveWs(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())

	if account.Kind.IsParty() {
		profile, err := s.db.GetAccount(r.Context(), account.Kind, account.Id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		account = profile
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("error upgrading connection")
		return
	}

	client := server.NewClient(account, conn, s.cs, s.log)
	if !s.cs.RegisterClient(client) {
		conn.Close()
		return
	}
	go client.Write()
	go client.Read()
}
