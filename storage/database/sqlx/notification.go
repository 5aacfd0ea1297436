package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core/notification"
)

const notificationColumns = "id, user_id, type, reference_id, message, is_read, created_at"

type notificationRow struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Type        string     `db:"type"`
	ReferenceID null.Int64 `db:"reference_id"`
	Message     string     `db:"message"`
	IsRead      bool       `db:"is_read"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        notification.Type(r.Type),
		ReferenceID: r.ReferenceID.Int64,
		Message:     r.Message,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	base
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{base{db}}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) ([]notification.Notification, error) {
	q := `INSERT INTO notifications (user_id, type, reference_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + notificationColumns

	conn := repo.conn(ctx)
	saved := make([]notification.Notification, 0, len(notifs))
	for _, n := range notifs {
		var r notificationRow
		err := getRow(ctx, conn, &r, q, n.UserID, string(n.Type), nullID(n.ReferenceID), n.Message, n.IsRead, n.CreatedAt.UTC())
		if err != nil {
			return nil, errors.Wrapf(err, "inserting notification of user %d", n.UserID)
		}
		saved = append(saved, r.notification())
	}
	return saved, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.Filter) ([]notification.Notification, error) {
	var w where
	w.add("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		w.add("NOT is_read")
	}

	var rows []notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications" + w.String() + " ORDER BY id DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		w.args = append(w.args, filter.Limit)
	}
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.notification())
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error) {
	var r notificationRow
	q := "UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ? RETURNING " + notificationColumns
	if err := getRow(ctx, repo.conn(ctx), &r, q, id, userID); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "updating notification")
	}
	return r.notification(), nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	n, err := exec(ctx, repo.conn(ctx), "UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND NOT is_read", userID)
	return n, errors.Wrap(err, "updating notifications")
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var cnt int
	err := getRow(ctx, repo.conn(ctx), &cnt, "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND NOT is_read", userID)
	return cnt, errors.Wrap(err, "counting unread notifications")
}
