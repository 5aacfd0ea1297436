package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

type Type string

const (
	TypeHomework     Type = "homework"
	TypeAnnouncement Type = "announcement"
	TypeStudent      Type = "student"
	TypeGrade        Type = "grade"
	TypeFee          Type = "fee"

	defaultListLimit = 20
	maxListLimit     = 200
)

var ErrNotFound = core.NewNotFoundError("notification")

type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Type        Type      `json:"type"`
	ReferenceID int64     `json:"reference_id,omitempty"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notice is the content of a notification, before it is addressed to recipients.
type Notice struct {
	Type        Type
	ReferenceID int64
	Message     string
}

// Event is the JSON frame pushed on live channels.
type Event struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

type Filter struct {
	UserID     int64
	UnreadOnly bool
	Limit      int
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification) ([]Notification, error)
		QueryNotifications(ctx context.Context, filter Filter) ([]Notification, error)
		// MarkRead flags one of the user's notifications as read; ErrNotFound if the user has no such notification.
		MarkRead(ctx context.Context, userID, id int64) (Notification, error)
		MarkAllRead(ctx context.Context, userID int64) (int, error)
		CountUnread(ctx context.Context, userID int64) (int, error)
	}

	// Pusher delivers events on live channels. Delivery is best-effort and never reports failures.
	Pusher interface {
		Send(userID int64, event interface{})
		Broadcast(event interface{})
	}

	Service struct {
		repo   Repository
		pusher Pusher
		logger core.Logger
	}
)

func NewService(repo Repository, pusher Pusher, logger core.Logger) *Service {
	return &Service{repo: repo, pusher: pusher, logger: logger}
}

// Notify persists one Notification per recipient, then pushes them live once ctx's transaction (if any) commits.
func (svc *Service) Notify(ctx context.Context, recipients []int64, notice Notice) ([]Notification, error) {
	return svc.notify(ctx, recipients, notice, false)
}

// NotifyAll persists one Notification per recipient and broadcasts the notice to every open channel.
func (svc *Service) NotifyAll(ctx context.Context, recipients []int64, notice Notice) ([]Notification, error) {
	return svc.notify(ctx, recipients, notice, true)
}

func (svc *Service) notify(ctx context.Context, recipients []int64, notice Notice, broadcast bool) ([]Notification, error) {
	recipients = core.UniqueIDs(recipients)
	if len(recipients) == 0 && !broadcast {
		return nil, nil
	}

	now := time.Now().UTC()
	notifs := make([]Notification, 0, len(recipients))
	for _, uid := range recipients {
		notifs = append(notifs, Notification{
			UserID:      uid,
			Type:        notice.Type,
			ReferenceID: notice.ReferenceID,
			Message:     notice.Message,
			CreatedAt:   now,
		})
	}

	var err error
	if len(notifs) > 0 {
		if notifs, err = svc.repo.CreateNotifications(ctx, notifs); err != nil {
			return nil, errors.Wrap(err, "creating notifications")
		}
	}

	if svc.pusher != nil {
		pushed := notifs
		core.AfterCommit(ctx, func() {
			if broadcast {
				svc.pusher.Broadcast(Event{
					Type: "notification",
					Notification: &Notification{
						Type:        notice.Type,
						ReferenceID: notice.ReferenceID,
						Message:     notice.Message,
						CreatedAt:   now,
					},
				})
				return
			}
			for i := range pushed {
				svc.pusher.Send(pushed[i].UserID, Event{Type: "notification", Notification: &pushed[i]})
			}
		})
	}
	return notifs, nil
}

func (svc *Service) List(ctx context.Context, caller user.User, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	notifs, err := svc.repo.QueryNotifications(ctx, Filter{UserID: caller.ID, UnreadOnly: unreadOnly, Limit: limit})
	return notifs, errors.Wrap(err, "querying notifications")
}

func (svc *Service) MarkRead(ctx context.Context, caller user.User, id int64) (Notification, error) {
	return svc.repo.MarkRead(ctx, caller.ID, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, caller user.User) (int, error) {
	n, err := svc.repo.MarkAllRead(ctx, caller.ID)
	return n, errors.Wrap(err, "marking notifications as read")
}

func (svc *Service) UnreadCount(ctx context.Context, caller user.User) (int, error) {
	n, err := svc.repo.CountUnread(ctx, caller.ID)
	return n, errors.Wrap(err, "counting unread notifications")
}
