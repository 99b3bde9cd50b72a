package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
)

func (db *PgJobBoardRepository) GetAccount(ctx context.Context, kind types.AccountKind, id int) (types.Account, error) {
	var (
		row     = db.conn.QueryRowContext
		account = types.Account{Id: id, Kind: kind}
		err     error
	)

	switch kind {
	case types.AccountJobSeeker:
		var first, last string
		err = row(ctx,
			"SELECT first_name, last_name, photo FROM job_seekers WHERE id = $1",
			id,
		).Scan(&first, &last, &account.Photo)
		account.DisplayName = strings.TrimSpace(first + " " + last)
	case types.AccountCompany:
		err = row(ctx,
			"SELECT company_name, photo FROM companies WHERE id = $1",
			id,
		).Scan(&account.DisplayName, &account.Photo)
	default:
		return types.Account{}, errors.Wrapf(ErrInvalidKind, "%q", kind)
	}

	if err != nil {
		return types.Account{}, mapError(err, "get account")
	}
	return account, nil
}

func (db *PgJobBoardRepository) GetNotificationSettings(ctx context.Context, kind types.AccountKind, id int) (types.NotificationSettings, error) {
	table, err := profileTable(kind)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT notification_settings FROM %s WHERE id = $1", table),
		id,
	).Scan(&raw)
	if err != nil {
		return nil, mapError(err, "get notification settings")
	}

	return decodeSettings(kind, raw)
}

// UpdateNotificationSettings merges settings into the stored document.
func (db *PgJobBoardRepository) UpdateNotificationSettings(ctx context.Context, kind types.AccountKind, id int, settings types.NotificationSettings) (types.NotificationSettings, error) {
	table, err := profileTable(kind)
	if err != nil {
		return nil, err
	}

	patch, err := json.Marshal(settings)
	if err != nil {
		return nil, errors.Wrap(err, "encode notification settings")
	}

	var raw []byte
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf(
			"UPDATE %s SET notification_settings = notification_settings || $2::jsonb "+
				"WHERE id = $1 RETURNING notification_settings", table),
		id,
		string(patch),
	).Scan(&raw)
	if err != nil {
		return nil, mapError(err, "update notification settings")
	}

	return decodeSettings(kind, raw)
}

// FilterEnabledRecipients returns the subset of ids that have not opted out of c.
func (db *PgJobBoardRepository) FilterEnabledRecipients(ctx context.Context, kind types.AccountKind, ids []int, c types.NotificationCase) ([]int, error) {
	table, err := profileTable(kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1)", table)
	args := []any{pq.Array(toInt64s(ids))}
	if c.Configurable() {
		query += " AND COALESCE((notification_settings->>$2)::boolean, true)"
		args = append(args, string(c))
	}
	query += " ORDER BY id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "filter recipients")
	}
	defer rows.Close()

	var enabled []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan recipient")
		}
		enabled = append(enabled, id)
	}

	return enabled, errors.Wrap(rows.Err(), "iterate recipients")
}

func (db *PgJobBoardRepository) GetUnreadNotificationCount(ctx context.Context, kind types.AccountKind, id int) (int, error) {
	table, err := profileTable(kind)
	if err != nil {
		return 0, err
	}

	var n int
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT unread_notifications FROM %s WHERE id = $1", table),
		id,
	).Scan(&n)

	return n, mapError(err, "get unread notification count")
}

func decodeSettings(kind types.AccountKind, raw []byte) (types.NotificationSettings, error) {
	settings := types.DefaultSettings(kind)
	stored := make(types.NotificationSettings)
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.Wrap(err, "decode notification settings")
	}
	for c, v := range stored {
		if c.ValidFor(kind) && c.Configurable() {
			settings[c] = v
		}
	}
	return settings, nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
