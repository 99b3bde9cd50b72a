package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
)

const (
	notificationColumns = "id, owner_id, case_tag, title, title_de, body, body_de, " +
		"subject_id, subject_type, actor_id, has_been_read, created_at"
	// Matches the partial unique index guarding one unread chat notification per conversation.
	unreadChatConflict = " ON CONFLICT (owner_id, subject_id) WHERE case_tag = 'Message Received' " +
		"AND subject_type = 'Chat' AND NOT has_been_read DO NOTHING"

	defaultNotificationLimit = 20
)

func scanNotification(row scanner, kind types.AccountKind) (types.Notification, error) {
	var (
		n     types.Notification
		actor sql.NullInt64
	)
	err := row.Scan(
		&n.Id,
		&n.OwnerId,
		&n.Case,
		&n.Title,
		&n.TitleDe,
		&n.Body,
		&n.BodyDe,
		&n.SubjectId,
		&n.SubjectType,
		&actor,
		&n.HasBeenRead,
		&n.CreatedAt,
	)
	if err != nil {
		return types.Notification{}, err
	}
	if actor.Valid {
		id := int(actor.Int64)
		n.ActorId = &id
	}
	n.OwnerKind = kind
	return n, nil
}

func insertNotification(ctx context.Context, tx *sql.Tx, table string, n NewNotification, onConflict string) (types.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(
			"INSERT INTO %s (owner_id, case_tag, title, title_de, body, body_de, subject_id, subject_type, actor_id, has_been_read, created_at) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)%s RETURNING %s",
			table, onConflict, notificationColumns),
		n.OwnerId,
		n.Case,
		n.Title,
		n.TitleDe,
		n.Body,
		n.BodyDe,
		n.SubjectId,
		n.SubjectType,
		n.ActorId,
		n.CreatedAt,
	)
	return scanNotification(row, n.OwnerKind)
}

// AppendNotification inserts the record and increments the owner's unread
// counter in one transaction. With suppress set, a chat notification is
// skipped when an unread one already exists for the same conversation; the
// returned bool reports whether a record was created.
func (db *PgJobBoardRepository) AppendNotification(ctx context.Context, n NewNotification, suppress bool) (types.Notification, bool, error) {
	if !n.Case.ValidFor(n.OwnerKind) {
		return types.Notification{}, false, errors.Errorf("case %q is not valid for %q", n.Case, n.OwnerKind)
	}
	table, err := notificationTable(n.OwnerKind)
	if err != nil {
		return types.Notification{}, false, err
	}
	profile, _ := profileTable(n.OwnerKind)

	onConflict := ""
	if suppress && n.Case == types.CaseMessageReceived && n.SubjectType == types.SubjectChat {
		onConflict = unreadChatConflict
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Notification{}, false, errors.Wrap(err, "begin append notification")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var created types.Notification
	created, err = insertNotification(ctx, tx, table, n, onConflict)
	if errors.Is(err, sql.ErrNoRows) {
		// suppressed by the unread chat index
		err = tx.Commit()
		return types.Notification{}, false, errors.Wrap(err, "commit append notification")
	}
	if err != nil {
		err = mapError(err, "insert notification")
		return types.Notification{}, false, err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET unread_notifications = unread_notifications + 1 WHERE id = $1", profile),
		n.OwnerId,
	)
	if err != nil {
		err = errors.Wrap(err, "increment unread notifications")
		return types.Notification{}, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = ErrNotFound
		return types.Notification{}, false, err
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit append notification")
		return types.Notification{}, false, err
	}

	return created, true, nil
}

// AppendNotifications inserts a batch and applies the counter increments
// for every owner in the same transaction.
func (db *PgJobBoardRepository) AppendNotifications(ctx context.Context, ns []NewNotification) ([]types.Notification, error) {
	if len(ns) == 0 {
		return nil, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin append notifications")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	increments := map[types.AccountKind]map[int]int64{}
	created := make([]types.Notification, 0, len(ns))
	for _, n := range ns {
		if !n.Case.ValidFor(n.OwnerKind) {
			err = errors.Errorf("case %q is not valid for %q", n.Case, n.OwnerKind)
			return nil, err
		}

		var table string
		table, err = notificationTable(n.OwnerKind)
		if err != nil {
			return nil, err
		}

		var record types.Notification
		record, err = insertNotification(ctx, tx, table, n, "")
		if err != nil {
			err = mapError(err, "insert notification")
			return nil, err
		}
		created = append(created, record)

		if increments[n.OwnerKind] == nil {
			increments[n.OwnerKind] = map[int]int64{}
		}
		increments[n.OwnerKind][n.OwnerId]++
	}

	for kind, counts := range increments {
		profile, _ := profileTable(kind)
		ids := make([]int64, 0, len(counts))
		for id := range counts {
			ids = append(ids, int64(id))
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		deltas := make([]int64, len(ids))
		for i, id := range ids {
			deltas[i] = counts[int(id)]
		}

		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(
				"UPDATE %s p SET unread_notifications = p.unread_notifications + c.n "+
					"FROM unnest($1::int[], $2::int[]) AS c(id, n) WHERE p.id = c.id", profile),
			pq.Array(ids),
			pq.Array(deltas),
		)
		if err != nil {
			err = errors.Wrap(err, "increment unread notifications")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit append notifications")
		return nil, err
	}

	return created, nil
}

// MarkNotificationRead flips the read flag and decrements the counter only
// when the record was unread.
func (db *PgJobBoardRepository) MarkNotificationRead(ctx context.Context, kind types.AccountKind, ownerId, id int) (types.Notification, error) {
	table, err := notificationTable(kind)
	if err != nil {
		return types.Notification{}, err
	}
	profile, _ := profileTable(kind)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Notification{}, errors.Wrap(err, "begin mark notification read")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var n types.Notification
	n, err = scanNotification(tx.QueryRowContext(ctx,
		fmt.Sprintf("UPDATE %s SET has_been_read = true WHERE id = $1 AND owner_id = $2 AND NOT has_been_read RETURNING %s",
			table, notificationColumns),
		id,
		ownerId,
	), kind)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// already read or not owned
		n, err = scanNotification(tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND owner_id = $2", notificationColumns, table),
			id,
			ownerId,
		), kind)
		if err != nil {
			err = mapError(err, "get notification")
			return types.Notification{}, err
		}
	case err != nil:
		err = errors.Wrap(err, "mark notification read")
		return types.Notification{}, err
	default:
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET unread_notifications = GREATEST(unread_notifications - 1, 0) WHERE id = $1", profile),
			ownerId,
		)
		if err != nil {
			err = errors.Wrap(err, "decrement unread notifications")
			return types.Notification{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit mark notification read")
		return types.Notification{}, err
	}

	return n, nil
}

// MarkAllNotificationsRead marks every unread record of the owner and zeroes the counter.
func (db *PgJobBoardRepository) MarkAllNotificationsRead(ctx context.Context, kind types.AccountKind, ownerId int) (int64, error) {
	table, err := notificationTable(kind)
	if err != nil {
		return 0, err
	}
	profile, _ := profileTable(kind)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin mark all notifications read")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET has_been_read = true WHERE owner_id = $1 AND NOT has_been_read", table),
		ownerId,
	)
	if err != nil {
		err = errors.Wrap(err, "mark all notifications read")
		return 0, err
	}
	marked, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET unread_notifications = 0 WHERE id = $1", profile),
		ownerId,
	)
	if err != nil {
		err = errors.Wrap(err, "reset unread notifications")
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit mark all notifications read")
		return 0, err
	}

	return marked, nil
}

// ListNotifications pages the owner's ledger newest first. The record after
// the page, if any, becomes the next cursor.
func (db *PgJobBoardRepository) ListNotifications(ctx context.Context, params ListNotificationsParams) (types.NotificationPage, error) {
	table, err := notificationTable(params.OwnerKind)
	if err != nil {
		return types.NotificationPage{}, err
	}

	var (
		args  []any
		where = []string{"owner_id = " + placeholder(&args, params.OwnerId)}
		limit = clampLimit(params.Limit, defaultNotificationLimit)
	)

	if params.Cursor > 0 {
		var at time.Time
		err := db.conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT created_at FROM %s WHERE id = $1 AND owner_id = $2", table),
			params.Cursor,
			params.OwnerId,
		).Scan(&at)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// unknown cursor starts from the newest record
		case err != nil:
			return types.NotificationPage{}, errors.Wrap(err, "resolve cursor")
		default:
			where = append(where, fmt.Sprintf("(created_at, id) <= (%s, %s)",
				placeholder(&args, at), placeholder(&args, params.Cursor)))
		}
	}
	if params.Read != nil {
		where = append(where, "has_been_read = "+placeholder(&args, *params.Read))
	}
	if params.Case != "" {
		where = append(where, "case_tag = "+placeholder(&args, params.Case))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %s",
		notificationColumns,
		table,
		strings.Join(where, " AND "),
		placeholder(&args, limit+1),
	)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return types.NotificationPage{}, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	page := types.NotificationPage{Notifications: []types.Notification{}}
	for rows.Next() {
		n, err := scanNotification(rows, params.OwnerKind)
		if err != nil {
			return types.NotificationPage{}, errors.Wrap(err, "scan notification")
		}
		if len(page.Notifications) == limit {
			page.HasNextPage = true
			page.NextCursor = &n.Id
			break
		}
		page.Notifications = append(page.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		return types.NotificationPage{}, errors.Wrap(err, "iterate notifications")
	}
	page.Count = len(page.Notifications)

	return page, nil
}

// PurgeNotifications deletes records created before olderThan from both ledgers.
func (db *PgJobBoardRepository) PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"user_notifications", "company_notifications"} {
		res, err := db.conn.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", table),
			olderThan,
		)
		if err != nil {
			return total, errors.Wrapf(err, "purge %s", table)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// ReconcileUnreadCounters recomputes every profile counter from its ledger
// and returns the number of profiles that drifted.
func (db *PgJobBoardRepository) ReconcileUnreadCounters(ctx context.Context) (int64, error) {
	var total int64
	for _, kind := range []types.AccountKind{types.AccountJobSeeker, types.AccountCompany} {
		profile, _ := profileTable(kind)
		table, _ := notificationTable(kind)
		res, err := db.conn.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %[1]s p SET unread_notifications = s.n FROM ("+
				"SELECT pr.id, COUNT(l.id) AS n FROM %[1]s pr "+
				"LEFT JOIN %[2]s l ON l.owner_id = pr.id AND NOT l.has_been_read "+
				"GROUP BY pr.id) s "+
				"WHERE p.id = s.id AND p.unread_notifications <> s.n",
			profile, table))
		if err != nil {
			return total, errors.Wrapf(err, "reconcile %s", profile)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
