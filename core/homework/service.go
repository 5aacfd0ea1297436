package homework

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

var (
	ErrNotFound           = core.NewNotFoundError("homework")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
	ErrAlreadySubmitted   = core.NewConflictError("homework already submitted")
)

type (
	Repository interface {
		CreateHomework(ctx context.Context, hw Homework) (Homework, error)
		GetHomework(ctx context.Context, id int64) (Homework, error)
		QueryHomework(ctx context.Context, filter Filter) ([]Homework, error)

		// CreateSubmission returns ErrAlreadySubmitted if the student already submitted this homework.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id int64) (Submission, error)
		// GetStudentSubmission returns the submission of a student for a homework, locking it until the transaction ends.
		GetStudentSubmission(ctx context.Context, homeworkID, studentID int64) (Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	}

	Roster interface {
		StudentByUserID(ctx context.Context, userID int64) (roster.Student, error)
		StudentByID(ctx context.Context, id int64) (roster.Student, error)
		SectionStudents(ctx context.Context, sectionIDs ...int64) ([]roster.Student, error)
		ChildrenOfUser(ctx context.Context, parentUserID int64) ([]roster.Student, error)
		GuardianUserIDs(ctx context.Context, student roster.Student) ([]int64, error)
	}

	Sections interface {
		TeacherSectionIDs(ctx context.Context, teacherID int64) ([]int64, error)
	}

	Notifier interface {
		Notify(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		policy   *policy.Policy
		roster   Roster
		sections Sections
		notifier Notifier
	}
)

func NewService(repo Repository, tx core.Transactor, pol *policy.Policy, rstr Roster, sections Sections, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		policy:   pol,
		roster:   rstr,
		sections: sections,
		notifier: notifier,
	}
}

// Create assigns new homework to a section and notifies its students.
func (svc *Service) Create(ctx context.Context, caller user.User, nh NewHomework) (Homework, error) {
	target := policy.Target{SectionID: nh.SectionID, SubjectID: nh.SubjectID}
	if err := svc.policy.May(ctx, caller, policy.CreateHomework, target); err != nil {
		return Homework{}, err
	}

	var hw Homework
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		hw, err = svc.repo.CreateHomework(ctx, Homework{
			SectionID:         nh.SectionID,
			SubjectID:         nh.SubjectID,
			TeacherID:         caller.ID,
			Title:             nh.Title,
			Description:       nh.Description,
			DueDate:           nh.DueDate,
			AttachmentURL:     nh.AttachmentURL,
			AllowResubmission: nh.AllowResubmission,
			CreatedAt:         time.Now().UTC(),
		})
		if err != nil {
			return errors.Wrap(err, "creating homework")
		}

		students, err := svc.roster.SectionStudents(ctx, hw.SectionID)
		if err != nil {
			return err
		}
		recipients := make([]int64, 0, len(students))
		for _, s := range students {
			recipients = append(recipients, s.UserID)
		}
		_, err = svc.notifier.Notify(ctx, recipients, notification.Notice{
			Type:        notification.TypeHomework,
			ReferenceID: hw.ID,
			Message:     fmt.Sprintf("New homework: %s (due %s)", hw.Title, hw.DueDate),
		})
		return err
	})
	return hw, err
}

// List returns the homework visible to the caller: students see their section, parents their children's sections,
// teachers what they are assigned to.
func (svc *Service) List(ctx context.Context, caller user.User, filter Filter) ([]Homework, error) {
	switch {
	case caller.IsAdmin():
	case caller.IsTeacher():
		sectionIDs, err := svc.sections.TeacherSectionIDs(ctx, caller.ID)
		if err != nil {
			return nil, errors.Wrap(err, "finding teacher sections")
		}
		if filter.SectionID != 0 {
			if !containsID(sectionIDs, filter.SectionID) {
				filter.TeacherID = caller.ID
			}
			break
		}
		// authored homework stays visible even after an assignment ends
		authored, err := svc.repo.QueryHomework(ctx, Filter{TeacherID: caller.ID, SubjectID: filter.SubjectID, DueFrom: filter.DueFrom})
		if err != nil {
			return nil, errors.Wrap(err, "querying homework")
		}
		if len(sectionIDs) == 0 || filter.TeacherID == caller.ID {
			return authored, nil
		}
		filter.SectionIDs = sectionIDs
		inSections, err := svc.repo.QueryHomework(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying homework")
		}
		return mergeHomework(inSections, authored), nil
	case caller.IsStudent():
		me, err := svc.roster.StudentByUserID(ctx, caller.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return []Homework{}, nil
			}
			return nil, err
		}
		filter.SectionID = me.SectionID
	case caller.IsParent():
		children, err := svc.roster.ChildrenOfUser(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		sectionIDs := make([]int64, 0, len(children))
		for _, c := range children {
			sectionIDs = append(sectionIDs, c.SectionID)
		}
		if len(sectionIDs) == 0 {
			return []Homework{}, nil
		}
		if filter.SectionID != 0 {
			if err := svc.policy.May(ctx, caller, policy.ReadHomework, policy.Target{SectionID: filter.SectionID}); err != nil {
				return nil, err
			}
		} else {
			filter.SectionIDs = core.UniqueIDs(sectionIDs)
		}
	default:
		return nil, core.ErrForbidden
	}

	hws, err := svc.repo.QueryHomework(ctx, filter)
	return hws, errors.Wrap(err, "querying homework")
}

func containsID(ids []int64, id int64) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func mergeHomework(lists ...[]Homework) []Homework {
	seen := make(map[int64]struct{})
	merged := make([]Homework, 0)
	for _, list := range lists {
		for _, hw := range list {
			if _, ok := seen[hw.ID]; ok {
				continue
			}
			seen[hw.ID] = struct{}{}
			merged = append(merged, hw)
		}
	}
	return merged
}

// Get returns a homework the caller may read.
func (svc *Service) Get(ctx context.Context, caller user.User, id int64) (Homework, error) {
	hw, err := svc.repo.GetHomework(ctx, id)
	if err != nil {
		if core.IsNotFound(err) && !caller.IsAdmin() {
			return Homework{}, core.ErrForbidden
		}
		return Homework{}, err
	}
	if hw.TeacherID == caller.ID {
		return hw, nil
	}
	if err = svc.policy.May(ctx, caller, policy.ReadHomework, policy.Target{SectionID: hw.SectionID}); err != nil {
		return Homework{}, err
	}
	return hw, nil
}

// Submit records the caller's submission. A second submission is a conflict unless the homework allows resubmission,
// in which case it replaces the first one. Concurrent submissions of the same student resolve to exactly one winner.
func (svc *Service) Submit(ctx context.Context, caller user.User, homeworkID int64, ns NewSubmission) (Submission, error) {
	if !caller.IsStudent() {
		return Submission{}, core.ErrForbidden
	}
	me, err := svc.roster.StudentByUserID(ctx, caller.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Submission{}, core.ErrForbidden
		}
		return Submission{}, err
	}
	hw, err := svc.repo.GetHomework(ctx, homeworkID)
	if err != nil {
		if core.IsNotFound(err) {
			return Submission{}, core.ErrForbidden
		}
		return Submission{}, err
	}
	if err = svc.policy.May(ctx, caller, policy.SubmitHomework, policy.Target{SectionID: hw.SectionID, StudentID: me.ID}); err != nil {
		return Submission{}, err
	}

	sub := Submission{
		HomeworkID:  hw.ID,
		StudentID:   me.ID,
		Text:        ns.Text,
		FileURL:     ns.FileURL,
		SubmittedAt: time.Now().UTC(),
		Status:      StatusSubmitted,
	}
	if !hw.AllowResubmission {
		return svc.repo.CreateSubmission(ctx, sub)
	}

	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.GetStudentSubmission(ctx, hw.ID, me.ID)
		if err != nil {
			if !core.IsNotFound(err) {
				return err
			}
			sub, err = svc.repo.CreateSubmission(ctx, sub)
			return err
		}
		existing.Text = sub.Text
		existing.FileURL = sub.FileURL
		existing.SubmittedAt = sub.SubmittedAt
		existing.Status = StatusSubmitted
		existing.Marks = nil
		existing.Feedback = ""
		sub, err = svc.repo.UpdateSubmission(ctx, existing)
		return errors.Wrap(err, "updating submission")
	})
	return sub, err
}

// Submissions lists the submissions of a homework, for its author or an admin.
func (svc *Service) Submissions(ctx context.Context, caller user.User, homeworkID int64) ([]Submission, error) {
	hw, err := svc.repo.GetHomework(ctx, homeworkID)
	if err != nil {
		if core.IsNotFound(err) && !caller.IsAdmin() {
			return nil, core.ErrForbidden
		}
		return nil, err
	}
	if err = svc.policy.May(ctx, caller, policy.ReadSubmissions, policy.Target{OwnerID: hw.TeacherID}); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{HomeworkIDs: []int64{hw.ID}})
	return subs, errors.Wrap(err, "querying submissions")
}

// Grade sets the marks and feedback of a submission and notifies the student and their parents.
func (svc *Service) Grade(ctx context.Context, caller user.User, submissionID int64, gs GradeSubmission) (Submission, error) {
	var sub Submission
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = svc.repo.GetSubmission(ctx, submissionID)
		if err != nil {
			if core.IsNotFound(err) && !caller.IsAdmin() {
				return core.ErrForbidden
			}
			return err
		}
		hw, err := svc.repo.GetHomework(ctx, sub.HomeworkID)
		if err != nil {
			return err
		}
		if err = svc.policy.May(ctx, caller, policy.GradeSubmission, policy.Target{OwnerID: hw.TeacherID}); err != nil {
			return err
		}

		sub.Marks = gs.Marks
		sub.Feedback = gs.Feedback
		sub.Status = StatusGraded
		if sub, err = svc.repo.UpdateSubmission(ctx, sub); err != nil {
			return errors.Wrap(err, "updating submission")
		}

		student, err := svc.roster.StudentByID(ctx, sub.StudentID)
		if err != nil {
			return err
		}
		recipients, err := svc.roster.GuardianUserIDs(ctx, student)
		if err != nil {
			return err
		}
		_, err = svc.notifier.Notify(ctx, recipients, notification.Notice{
			Type:        notification.TypeGrade,
			ReferenceID: sub.ID,
			Message:     fmt.Sprintf("%s's submission for %q was graded: %g", student.Name, hw.Title, *sub.Marks),
		})
		return err
	})
	return sub, err
}

// PendingCount returns how many of the given homework the student has not submitted yet.
func (svc *Service) PendingCount(ctx context.Context, studentID int64, hws []Homework) (int, error) {
	if len(hws) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(hws))
	for _, hw := range hws {
		ids = append(ids, hw.ID)
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{HomeworkIDs: ids, StudentID: studentID})
	if err != nil {
		return 0, errors.Wrap(err, "querying submissions")
	}
	return len(hws) - len(subs), nil
}

// Query returns homework without any access check, for aggregates.
func (svc *Service) Query(ctx context.Context, filter Filter) ([]Homework, error) {
	hws, err := svc.repo.QueryHomework(ctx, filter)
	return hws, errors.Wrap(err, "querying homework")
}

// QuerySubmissions returns submissions without any access check, for aggregates.
func (svc *Service) QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, filter)
	return subs, errors.Wrap(err, "querying submissions")
}
