package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) ([]notification.Notification, error) {
	saved := make([]notification.Notification, 0, len(notifs))
	err := repo.db.write(ctx, func(t *tables) error {
		for _, n := range notifs {
			n.ID = t.nextID("notification")
			t.notifications[n.ID] = n
			saved = append(saved, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.Filter) ([]notification.Notification, error) {
	notifs := make([]notification.Notification, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, n := range t.notifications {
			if n.UserID == filter.UserID && (!filter.UnreadOnly || !n.IsRead) {
				notifs = append(notifs, n)
			}
		}
		return nil
	})
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].ID > notifs[j].ID })
	if filter.Limit > 0 && len(notifs) > filter.Limit {
		notifs = notifs[:filter.Limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error) {
	var n notification.Notification
	err := repo.db.write(ctx, func(t *tables) error {
		var ok bool
		if n, ok = t.notifications[id]; !ok || n.UserID != userID {
			return notification.ErrNotFound
		}
		n.IsRead = true
		t.notifications[id] = n
		return nil
	})
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	var cnt int
	err := repo.db.write(ctx, func(t *tables) error {
		for id, n := range t.notifications {
			if n.UserID == userID && !n.IsRead {
				n.IsRead = true
				t.notifications[id] = n
				cnt++
			}
		}
		return nil
	})
	return cnt, err
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID int64) (int, error) {
	var cnt int
	_ = repo.db.read(func(t *tables) error {
		for _, n := range t.notifications {
			if n.UserID == userID && !n.IsRead {
				cnt++
			}
		}
		return nil
	})
	return cnt, nil
}
