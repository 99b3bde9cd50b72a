package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
)

const (
	conversationColumns = "c.id, c.external_id, c.user_id, c.company_id, c.user_unread, c.company_unread, " +
		"c.last_message, c.created_at, c.updated_at, j.first_name, j.last_name, j.photo, co.company_name, co.photo"
	conversationFrom = " FROM conversations c " +
		"JOIN job_seekers j ON j.id = c.user_id " +
		"JOIN companies co ON co.id = c.company_id"
	messageColumns = "id, display_id, owner_id, owner_kind, kind, text, file_name, file_type, file_src, file_content_type, created_at"

	defaultConversationLimit = 20
	defaultMessageLimit      = 50
)

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (types.Conversation, error) {
	var (
		c                         types.Conversation
		lastMessage               []byte
		first, last, userPhoto    string
		companyName, companyPhoto string
	)
	err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.UserId,
		&c.CompanyId,
		&c.UserUnread,
		&c.CompanyUnread,
		&lastMessage,
		&c.CreatedAt,
		&c.UpdatedAt,
		&first,
		&last,
		&userPhoto,
		&companyName,
		&companyPhoto,
	)
	if err != nil {
		return types.Conversation{}, err
	}

	if lastMessage != nil {
		var m types.Message
		if err := json.Unmarshal(lastMessage, &m); err != nil {
			return types.Conversation{}, errors.Wrap(err, "decode last message")
		}
		c.LastMessage = &m
	}

	c.User = &types.Account{
		Id:          c.UserId,
		Kind:        types.AccountJobSeeker,
		DisplayName: strings.TrimSpace(first + " " + last),
		Photo:       userPhoto,
	}
	c.Company = &types.Account{
		Id:          c.CompanyId,
		Kind:        types.AccountCompany,
		DisplayName: companyName,
		Photo:       companyPhoto,
	}

	return c, nil
}

// GetOrCreateConversation returns the conversation between the pair, creating it on first contact.
func (db *PgJobBoardRepository) GetOrCreateConversation(ctx context.Context, userId, companyId int) (types.Conversation, error) {
	externalId, err := shortid.Generate()
	if err != nil {
		return types.Conversation{}, errors.Wrap(err, "generate conversation id")
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO conversations (external_id, user_id, company_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) ON CONFLICT (user_id, company_id) DO NOTHING",
		externalId,
		userId,
		companyId,
		now,
	)
	if err != nil {
		return types.Conversation{}, mapError(err, "create conversation")
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+conversationColumns+conversationFrom+" WHERE c.user_id = $1 AND c.company_id = $2",
		userId,
		companyId,
	)
	c, err := scanConversation(row)
	return c, mapError(err, "get conversation")
}

func (db *PgJobBoardRepository) GetConversation(ctx context.Context, externalId string) (types.Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+conversationColumns+conversationFrom+" WHERE c.external_id = $1",
		externalId,
	)
	c, err := scanConversation(row)
	return c, mapError(err, "get conversation")
}

// ListConversations returns the account's conversations that carry at least
// one message, newest first. Unread counts are those of the requesting side.
func (db *PgJobBoardRepository) ListConversations(ctx context.Context, params ListConversationsParams) ([]types.Conversation, error) {
	var (
		args      []any
		where     []string
		nameCol   string
		unreadCol string
	)

	switch params.AccountKind {
	case types.AccountJobSeeker:
		where = append(where, "c.user_id = "+placeholder(&args, params.AccountId))
		nameCol, unreadCol = "co.company_name", "c.user_unread"
	case types.AccountCompany:
		where = append(where, "c.company_id = "+placeholder(&args, params.AccountId))
		nameCol, unreadCol = "(j.first_name || ' ' || j.last_name)", "c.company_unread"
	default:
		return nil, errors.Wrapf(ErrInvalidKind, "%q", params.AccountKind)
	}

	where = append(where, "c.last_message IS NOT NULL")

	switch params.Unread {
	case UnreadOnly:
		where = append(where, unreadCol+" > 0")
	case UnreadNone:
		where = append(where, unreadCol+" = 0")
	}

	if s := strings.TrimSpace(params.Search); s != "" {
		where = append(where, nameCol+" ILIKE "+placeholder(&args, "%"+escapeLike(s)+"%"))
	}

	if params.Before > 0 {
		where = append(where, "c.id < "+placeholder(&args, params.Before))
	}

	query := fmt.Sprintf("SELECT %s%s WHERE %s ORDER BY c.id DESC LIMIT %s",
		conversationColumns,
		conversationFrom,
		strings.Join(where, " AND "),
		placeholder(&args, clampLimit(params.Limit, defaultConversationLimit)),
	)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	conversations := []types.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		conversations = append(conversations, c.ForAccount(params.AccountKind))
	}

	return conversations, errors.Wrap(rows.Err(), "iterate conversations")
}

// AppendMessage stores the message, sets it as the conversation's last
// message and applies the unread increments atomically.
func (db *PgJobBoardRepository) AppendMessage(ctx context.Context, params AppendMessageParams) (types.Conversation, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Conversation{}, errors.Wrap(err, "begin append message")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	msg := params.Message
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var file types.File
	if msg.File != nil {
		file = *msg.File
	}

	err = tx.QueryRowContext(ctx,
		"INSERT INTO messages (conversation_id, display_id, owner_id, owner_kind, kind, text, "+
			"file_name, file_type, file_src, file_content_type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id",
		params.ConversationId,
		msg.Id,
		msg.Owner,
		msg.OwnerKind,
		msg.Kind,
		msg.Text,
		file.Name,
		file.Type,
		file.Src,
		file.ContentType,
		msg.CreatedAt,
	).Scan(&msg.SeqId)
	if err != nil {
		err = mapError(err, "insert message")
		return types.Conversation{}, err
	}

	var lastMessage []byte
	lastMessage, err = json.Marshal(msg)
	if err != nil {
		err = errors.Wrap(err, "encode last message")
		return types.Conversation{}, err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		"UPDATE conversations SET last_message = $2, updated_at = $3, "+
			"user_unread = user_unread + $4, company_unread = company_unread + $5 "+
			"WHERE id = $1",
		params.ConversationId,
		lastMessage,
		msg.CreatedAt,
		params.UserUnreadDelta,
		params.CompanyUnreadDelta,
	)
	if err != nil {
		err = errors.Wrap(err, "update conversation")
		return types.Conversation{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return types.Conversation{}, err
	}

	var c types.Conversation
	c, err = scanConversation(tx.QueryRowContext(ctx,
		"SELECT "+conversationColumns+conversationFrom+" WHERE c.id = $1",
		params.ConversationId,
	))
	if err != nil {
		err = mapError(err, "get conversation")
		return types.Conversation{}, err
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit append message")
		return types.Conversation{}, err
	}

	return c, nil
}

// MarkConversationOpened zeroes the unread counter of the kind's side.
func (db *PgJobBoardRepository) MarkConversationOpened(ctx context.Context, conversationId int, kind types.AccountKind) error {
	col, err := unreadColumn(kind)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf("UPDATE conversations SET %s = 0 WHERE id = $1", col),
		conversationId,
	)
	if err != nil {
		return errors.Wrap(err, "mark conversation opened")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessages returns up to limit messages older than before, newest first.
func (db *PgJobBoardRepository) GetMessages(ctx context.Context, conversationId, before, limit int) ([]types.Message, error) {
	args := []any{conversationId}
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = $1"
	if before > 0 {
		query += " AND id < " + placeholder(&args, before)
	}
	query += " ORDER BY id DESC LIMIT " + placeholder(&args, clampLimit(limit, defaultMessageLimit))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "get messages")
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		var (
			m    types.Message
			file types.File
		)
		err := rows.Scan(
			&m.SeqId,
			&m.Id,
			&m.Owner,
			&m.OwnerKind,
			&m.Kind,
			&m.Text,
			&file.Name,
			&file.Type,
			&file.Src,
			&file.ContentType,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		if m.Kind == types.MessageFile {
			m.File = &file
		}
		messages = append(messages, m)
	}

	return messages, errors.Wrap(rows.Err(), "iterate messages")
}

func (db *PgJobBoardRepository) ReportConversation(ctx context.Context, conversationId int, reporter types.AccountKind) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE conversations SET reported_by_kind = $2, reported_at = $3 WHERE id = $1",
		conversationId,
		reporter,
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "report conversation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
