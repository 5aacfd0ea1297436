// Package jobs runs the periodic background tasks of the api.
package jobs

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

type (
	OverdueFinder interface {
		Overdue(ctx context.Context, asOf core.Date) ([]fee.StudentFee, error)
	}

	Roster interface {
		StudentsByIDs(ctx context.Context, ids ...int64) (map[int64]roster.Student, error)
		GuardianUserIDs(ctx context.Context, student roster.Student) ([]int64, error)
	}

	UserQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Notifier interface {
		Notify(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
	}

	// FeeReminder tells students and their parents about overdue fees.
	FeeReminder struct {
		fees     OverdueFinder
		roster   Roster
		users    UserQuerier
		notifier Notifier
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func NewFeeReminder(
	fees OverdueFinder,
	rstr Roster,
	users UserQuerier,
	notifier Notifier,
	mailSvc core.EmailService,
	logger core.Logger,
) *FeeReminder {
	return &FeeReminder{
		fees:     fees,
		roster:   rstr,
		users:    users,
		notifier: notifier,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// Run reminds every fee overdue as of asOf and returns how many fees were reminded.
// A failure on one fee is logged and does not stop the others.
func (r *FeeReminder) Run(ctx context.Context, asOf core.Date) (int, error) {
	overdue, err := r.fees.Overdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	studentIDs := make([]int64, 0, len(overdue))
	for _, sf := range overdue {
		studentIDs = append(studentIDs, sf.StudentID)
	}
	students, err := r.roster.StudentsByIDs(ctx, core.UniqueIDs(studentIDs)...)
	if err != nil {
		return 0, errors.Wrap(err, "finding students")
	}

	var reminded int
	for _, sf := range overdue {
		if err := ctx.Err(); err != nil {
			return reminded, err
		}
		student, ok := students[sf.StudentID]
		if !ok {
			continue
		}
		if err := r.remind(ctx, sf, student); err != nil {
			r.logger.Error("jobs: reminding overdue fee", err, map[string]interface{}{"student_fee_id": sf.ID})
			continue
		}
		reminded++
	}
	return reminded, nil
}

func (r *FeeReminder) remind(ctx context.Context, sf fee.StudentFee, student roster.Student) error {
	recipients, err := r.roster.GuardianUserIDs(ctx, student)
	if err != nil {
		return err
	}
	_, err = r.notifier.Notify(ctx, recipients, notification.Notice{
		Type:        notification.TypeFee,
		ReferenceID: sf.ID,
		Message:     fmt.Sprintf("%s: %q is overdue, %.2f outstanding", student.Name, sf.HeadName, sf.Balance()),
	})
	if err != nil {
		return err
	}

	active := true
	users, err := r.users.Query(ctx, &user.QueryFilter{IDs: recipients, IsActive: &active}, nil)
	if err != nil {
		return err
	}
	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Fee Reminder",
			TemplateName: "fee_reminder",
			TemplateData: map[string]interface{}{
				"Name":    usr.Name,
				"Head":    sf.HeadName,
				"Student": student.Name,
				"DueDate": sf.DueDate.String(),
				"Balance": sf.Balance(),
			},
		})
	}
	r.mailSvc.SendMessages(messages...)
	return nil
}
