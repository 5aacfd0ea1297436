package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/report"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

var (
	ErrHeadNotFound = core.NewNotFoundError("fee head")
	ErrNotFound     = core.NewNotFoundError("student fee")
	ErrHeadExists   = core.NewConflictError("a fee head with this name already exists")
)

type (
	Repository interface {
		// CreateHead returns ErrHeadExists if the name is taken.
		CreateHead(ctx context.Context, h Head) (Head, error)
		GetHead(ctx context.Context, id int64) (Head, error)
		QueryHeads(ctx context.Context) ([]Head, error)

		CreateStudentFees(ctx context.Context, fees []StudentFee) ([]StudentFee, error)
		// GetStudentFee returns a student fee, locking it until the transaction ends.
		GetStudentFee(ctx context.Context, id int64) (StudentFee, error)
		UpdateStudentFee(ctx context.Context, sf StudentFee) (StudentFee, error)
		QueryStudentFees(ctx context.Context, filter Filter, page core.Page) ([]StudentFee, error)

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		QueryPayments(ctx context.Context, studentFeeID int64) ([]Payment, error)
	}

	Roster interface {
		StudentByID(ctx context.Context, id int64) (roster.Student, error)
		StudentsByIDs(ctx context.Context, ids ...int64) (map[int64]roster.Student, error)
		SectionStudents(ctx context.Context, sectionIDs ...int64) ([]roster.Student, error)
		GuardianUserIDs(ctx context.Context, student roster.Student) ([]int64, error)
	}

	Notifier interface {
		Notify(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		policy   *policy.Policy
		roster   Roster
		notifier Notifier
	}
)

func NewService(repo Repository, tx core.Transactor, pol *policy.Policy, rstr Roster, notifier Notifier) *Service {
	return &Service{repo: repo, tx: tx, policy: pol, roster: rstr, notifier: notifier}
}

func (svc *Service) CreateHead(ctx context.Context, caller user.User, nh NewHead) (Head, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageFees, policy.Target{}); err != nil {
		return Head{}, err
	}
	return svc.repo.CreateHead(ctx, Head{Name: nh.Name, Description: nh.Description})
}

func (svc *Service) ListHeads(ctx context.Context, caller user.User) ([]Head, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageFees, policy.Target{}); err != nil {
		return nil, err
	}
	heads, err := svc.repo.QueryHeads(ctx)
	return heads, errors.Wrap(err, "querying fee heads")
}

// AssignFee charges a fee head to students and notifies them and their parents.
func (svc *Service) AssignFee(ctx context.Context, caller user.User, af AssignFee) ([]StudentFee, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageFees, policy.Target{}); err != nil {
		return nil, err
	}

	var fees []StudentFee
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		head, err := svc.repo.GetHead(ctx, af.HeadID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(nil, core.FieldError{Field: "head_id", Error: "fee head not found"})
			}
			return err
		}

		students, err := svc.targetStudents(ctx, af)
		if err != nil {
			return err
		}
		if len(students) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: "no student to charge"})
		}

		now := time.Now().UTC()
		fees = make([]StudentFee, 0, len(students))
		for _, s := range students {
			fees = append(fees, StudentFee{
				StudentID: s.ID,
				HeadID:    head.ID,
				AmountDue: af.AmountDue,
				DueDate:   af.DueDate,
				Status:    StatusOf(af.AmountDue, 0),
				CreatedAt: now,
			})
		}
		if fees, err = svc.repo.CreateStudentFees(ctx, fees); err != nil {
			return errors.Wrap(err, "creating student fees")
		}

		for i, sf := range fees {
			fees[i].HeadName = head.Name
			recipients, err := svc.roster.GuardianUserIDs(ctx, students[i])
			if err != nil {
				return err
			}
			if _, err = svc.notifier.Notify(ctx, recipients, notification.Notice{
				Type:        notification.TypeFee,
				ReferenceID: sf.ID,
				Message:     fmt.Sprintf("%s: %.2f due on %s for %s", head.Name, sf.AmountDue, sf.DueDate, students[i].Name),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return fees, err
}

func (svc *Service) targetStudents(ctx context.Context, af AssignFee) ([]roster.Student, error) {
	students := make([]roster.Student, 0, len(af.StudentIDs))
	seen := make(map[int64]struct{})
	if len(af.StudentIDs) > 0 {
		byID, err := svc.roster.StudentsByIDs(ctx, af.StudentIDs...)
		if err != nil {
			return nil, err
		}
		for _, id := range af.StudentIDs {
			students = append(students, byID[id])
			seen[id] = struct{}{}
		}
	}
	if af.SectionID != 0 {
		inSection, err := svc.roster.SectionStudents(ctx, af.SectionID)
		if err != nil {
			return nil, err
		}
		for _, s := range inSection {
			if _, ok := seen[s.ID]; !ok {
				students = append(students, s)
			}
		}
	}
	return students, nil
}

// RecordPayment adds a payment to a student fee and updates its paid amount and status atomically.
// Paying more than the balance is a validation error.
func (svc *Service) RecordPayment(ctx context.Context, caller user.User, feeID int64, np NewPayment) (Payment, StudentFee, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageFees, policy.Target{}); err != nil {
		return Payment{}, StudentFee{}, err
	}

	var (
		pmt Payment
		sf  StudentFee
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sf, err = svc.repo.GetStudentFee(ctx, feeID); err != nil {
			return err
		}
		if np.Amount > sf.Balance() {
			return core.NewValidationError(nil, core.FieldError{
				Field: "amount",
				Error: fmt.Sprintf("amount exceeds the balance of %.2f", sf.Balance()),
			})
		}

		pmt, err = svc.repo.CreatePayment(ctx, Payment{
			StudentFeeID: sf.ID,
			Amount:       np.Amount,
			Mode:         np.Mode,
			Reference:    np.Reference,
			PaidAt:       time.Now().UTC(),
			RecordedBy:   caller.ID,
		})
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}

		sf.AmountPaid = report.Round2(sf.AmountPaid + np.Amount)
		sf.Status = StatusOf(sf.AmountDue, sf.AmountPaid)
		if sf, err = svc.repo.UpdateStudentFee(ctx, sf); err != nil {
			return errors.Wrap(err, "updating student fee")
		}

		student, err := svc.roster.StudentByID(ctx, sf.StudentID)
		if err != nil {
			return err
		}
		recipients, err := svc.roster.GuardianUserIDs(ctx, student)
		if err != nil {
			return err
		}
		_, err = svc.notifier.Notify(ctx, recipients, notification.Notice{
			Type:        notification.TypeFee,
			ReferenceID: sf.ID,
			Message:     fmt.Sprintf("Payment of %.2f received for %s, balance %.2f", pmt.Amount, student.Name, sf.Balance()),
		})
		return err
	})
	return pmt, sf, err
}

// StudentFees returns the fees of a student the caller may read.
func (svc *Service) StudentFees(ctx context.Context, caller user.User, studentID int64) ([]StudentFee, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadFees, policy.Target{StudentID: studentID}); err != nil {
		return nil, err
	}
	if _, err := svc.roster.StudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	fees, err := svc.repo.QueryStudentFees(ctx, Filter{StudentID: studentID}, core.Page{})
	return fees, errors.Wrap(err, "querying student fees")
}

// ListFees returns student fees for fee managers.
func (svc *Service) ListFees(ctx context.Context, caller user.User, filter Filter, page core.Page) ([]StudentFee, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageFees, policy.Target{}); err != nil {
		return nil, err
	}
	page.Clean()
	fees, err := svc.repo.QueryStudentFees(ctx, filter, page)
	return fees, errors.Wrap(err, "querying student fees")
}

// Payments returns the payments made on a student fee the caller may read.
func (svc *Service) Payments(ctx context.Context, caller user.User, feeID int64) ([]Payment, error) {
	sf, err := svc.repo.GetStudentFee(ctx, feeID)
	if err != nil {
		if core.IsNotFound(err) && !caller.IsAdmin() && !caller.IsAccountant() {
			return nil, core.ErrForbidden
		}
		return nil, err
	}
	if err = svc.policy.May(ctx, caller, policy.ReadFees, policy.Target{StudentID: sf.StudentID}); err != nil {
		return nil, err
	}
	pmts, err := svc.repo.QueryPayments(ctx, sf.ID)
	return pmts, errors.Wrap(err, "querying payments")
}

// Overdue returns every fee not fully paid and due before asOf, without any access check.
func (svc *Service) Overdue(ctx context.Context, asOf core.Date) ([]StudentFee, error) {
	fees, err := svc.repo.QueryStudentFees(ctx, Filter{DueBefore: asOf, Unpaid: true}, core.Page{})
	return fees, errors.Wrap(err, "querying overdue fees")
}

// Totals aggregates every student fee by status, without any access check.
func (svc *Service) Totals(ctx context.Context) (Totals, error) {
	fees, err := svc.repo.QueryStudentFees(ctx, Filter{}, core.Page{})
	if err != nil {
		return Totals{}, errors.Wrap(err, "querying student fees")
	}
	var t Totals
	for _, sf := range fees {
		switch sf.Status {
		case StatusPaid:
			t.Paid++
		case StatusPartial:
			t.Partial++
		default:
			t.Pending++
		}
		t.TotalDue += sf.AmountDue
		t.TotalPaid += sf.AmountPaid
	}
	t.TotalDue = report.Round2(t.TotalDue)
	t.TotalPaid = report.Round2(t.TotalPaid)
	return t, nil
}
