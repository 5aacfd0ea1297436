package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/report"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

var ErrNotFound = core.NewNotFoundError("exam")

type Exam struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"` // eg. unit test, half-yearly, final
	PeriodID  int64     `json:"period_id,omitempty"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
}

// Mark is the result of one student in one subject of an exam; there is at most one per (exam, student, subject).
type Mark struct {
	ID        int64     `json:"id"`
	ExamID    int64     `json:"exam_id"`
	StudentID int64     `json:"student_id"`
	SubjectID int64     `json:"subject_id"`
	Obtained  float64   `json:"obtained"`
	Max       float64   `json:"max"`
	Grade     string    `json:"grade"`
	Remarks   string    `json:"remarks,omitempty"`
	EnteredBy int64     `json:"entered_by"`
	EnteredAt time.Time `json:"entered_at"`
}

type NewExam struct {
	Name      string    `json:"name" validate:"required,max=100"`
	Type      string    `json:"type" validate:"max=50"`
	PeriodID  int64     `json:"period_id"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Type = core.CleanString(ne.Type)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.EndDate.Before(ne.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must not be before start date"})
	}
	return nil
}

type MarkEntry struct {
	StudentID int64   `json:"student_id" validate:"required"`
	Obtained  float64 `json:"obtained" validate:"gte=0"`
	Remarks   string  `json:"remarks"`
}

// MarkBatch enters the marks of several students for one exam subject.
type MarkBatch struct {
	ExamID    int64       `json:"exam_id" validate:"required"`
	SubjectID int64       `json:"subject_id" validate:"required"`
	Max       float64     `json:"max" validate:"required,gt=0"`
	Entries   []MarkEntry `json:"entries" validate:"required,min=1,dive"`
}

func (mb *MarkBatch) Validate(validate *validator.Validate) error {
	for i := range mb.Entries {
		mb.Entries[i].Remarks = core.CleanString(mb.Entries[i].Remarks)
	}
	if err := validate.Struct(mb); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(mb.Entries))
	for _, e := range mb.Entries {
		if e.Obtained > mb.Max {
			return core.NewValidationError(nil, core.FieldError{
				Field: "entries",
				Error: fmt.Sprintf("marks of student %d exceed the maximum", e.StudentID),
			})
		}
		if _, ok := seen[e.StudentID]; ok {
			return core.NewValidationError(nil, core.FieldError{
				Field: "entries",
				Error: fmt.Sprintf("student %d is listed more than once", e.StudentID),
			})
		}
		seen[e.StudentID] = struct{}{}
	}
	return nil
}

type Filter struct {
	PeriodID int64     `query:"period_id"`
	EndsFrom core.Date `query:"ends_from"` // exams ending on or after the date
}

type MarkFilter struct {
	StudentIDs []int64
	ExamID     int64
	SubjectID  int64
}

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		GetExam(ctx context.Context, id int64) (Exam, error)
		QueryExams(ctx context.Context, filter Filter) ([]Exam, error)
		// UpsertMarks saves marks, replacing any existing mark of the same (exam, student, subject).
		UpsertMarks(ctx context.Context, marks []Mark) ([]Mark, error)
		QueryMarks(ctx context.Context, filter MarkFilter) ([]Mark, error)
	}

	Roster interface {
		StudentByID(ctx context.Context, id int64) (roster.Student, error)
		StudentsByIDs(ctx context.Context, ids ...int64) (map[int64]roster.Student, error)
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

func (svc *Service) CreateExam(ctx context.Context, caller user.User, ne NewExam) (Exam, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageExams, policy.Target{}); err != nil {
		return Exam{}, err
	}
	ex, err := svc.repo.CreateExam(ctx, Exam{
		Name:      ne.Name,
		Type:      ne.Type,
		PeriodID:  ne.PeriodID,
		StartDate: ne.StartDate,
		EndDate:   ne.EndDate,
	})
	return ex, errors.Wrap(err, "creating exam")
}

func (svc *Service) ListExams(ctx context.Context, caller user.User, filter Filter) ([]Exam, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	return svc.Query(ctx, filter)
}

// Query returns exams without any access check, for aggregates.
func (svc *Service) Query(ctx context.Context, filter Filter) ([]Exam, error) {
	exams, err := svc.repo.QueryExams(ctx, filter)
	return exams, errors.Wrap(err, "querying exams")
}

// EnterMarks saves a batch of marks, grading each one. The batch is saved entirely or not at all,
// and each student and their parents are notified.
func (svc *Service) EnterMarks(ctx context.Context, caller user.User, batch MarkBatch) ([]Mark, error) {
	if !caller.IsAdmin() && !caller.IsTeacher() {
		return nil, core.ErrForbidden
	}

	var saved []Mark
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		ex, err := svc.repo.GetExam(ctx, batch.ExamID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(nil, core.FieldError{Field: "exam_id", Error: "exam not found"})
			}
			return err
		}

		ids := make([]int64, 0, len(batch.Entries))
		for _, e := range batch.Entries {
			ids = append(ids, e.StudentID)
		}
		students, err := svc.roster.StudentsByIDs(ctx, ids...)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err = svc.policy.May(ctx, caller, policy.EnterMarks, policy.Target{StudentID: id, SubjectID: batch.SubjectID}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		marks := make([]Mark, 0, len(batch.Entries))
		for _, e := range batch.Entries {
			marks = append(marks, Mark{
				ExamID:    ex.ID,
				StudentID: e.StudentID,
				SubjectID: batch.SubjectID,
				Obtained:  e.Obtained,
				Max:       batch.Max,
				Grade:     report.LetterGrade(e.Obtained, batch.Max),
				Remarks:   e.Remarks,
				EnteredBy: caller.ID,
				EnteredAt: now,
			})
		}
		if saved, err = svc.repo.UpsertMarks(ctx, marks); err != nil {
			return errors.Wrap(err, "saving marks")
		}

		for _, m := range saved {
			recipients, err := svc.roster.GuardianUserIDs(ctx, students[m.StudentID])
			if err != nil {
				return err
			}
			if _, err = svc.notifier.Notify(ctx, recipients, notification.Notice{
				Type:        notification.TypeGrade,
				ReferenceID: m.ID,
				Message:     fmt.Sprintf("%s marks published: %g/%g (%s)", ex.Name, m.Obtained, m.Max, m.Grade),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return saved, err
}

// StudentMarks returns the marks of a student, optionally for one exam.
func (svc *Service) StudentMarks(ctx context.Context, caller user.User, studentID, examID int64) ([]Mark, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadMarks, policy.Target{StudentID: studentID}); err != nil {
		return nil, err
	}
	if _, err := svc.roster.StudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	marks, err := svc.repo.QueryMarks(ctx, MarkFilter{StudentIDs: []int64{studentID}, ExamID: examID})
	if err != nil {
		return nil, errors.Wrap(err, "querying marks")
	}
	if marks == nil {
		marks = []Mark{}
	}
	return marks, nil
}
