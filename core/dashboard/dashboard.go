// Package dashboard computes the role-specific statistics shown on the home page. Figures are computed on each request.
package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/exam"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/report"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

const recentNotifications = 5

type (
	AdminStats struct {
		TotalStudents   int     `json:"total_students"`
		TotalTeachers   int     `json:"total_teachers"`
		TotalParents    int     `json:"total_parents"`
		TotalClasses    int     `json:"total_classes"`
		TotalSections   int     `json:"total_sections"`
		AttendanceToday float64 `json:"attendance_today"`
	}

	TeacherStats struct {
		SectionsAssigned   int `json:"sections_assigned"`
		HomeworkAuthored   int `json:"homework_authored"`
		PendingSubmissions int `json:"pending_submissions"` // submitted, not graded yet
		StudentsTotal      int `json:"students_total"`
	}

	StudentStats struct {
		AttendanceRate  float64 `json:"attendance_rate"`
		PendingHomework int     `json:"pending_homework"`
		UpcomingExams   int     `json:"upcoming_exams"`
	}

	ChildStats struct {
		StudentID       int64   `json:"student_id"`
		Name            string  `json:"name"`
		AttendanceRate  float64 `json:"attendance_rate"`
		PendingHomework int     `json:"pending_homework"`
	}

	ParentStats struct {
		Children []ChildStats `json:"children"`
	}

	Dashboard struct {
		Role          user.Role                   `json:"role"`
		Stats         interface{}                 `json:"stats"`
		UnreadCount   int                         `json:"unread_notifications"`
		Notifications []notification.Notification `json:"notifications"`
	}
)

type (
	Users interface {
		Count(ctx context.Context, filter *user.QueryFilter) (int, error)
	}

	Academics interface {
		Counts(ctx context.Context) (classes, sections int, err error)
		TeacherSectionIDs(ctx context.Context, teacherID int64) ([]int64, error)
		ActivePeriodID(ctx context.Context) (int64, error)
	}

	Roster interface {
		CountStudents(ctx context.Context, filter roster.StudentFilter) (int, error)
		StudentByUserID(ctx context.Context, userID int64) (roster.Student, error)
		ChildrenOfUser(ctx context.Context, parentUserID int64) ([]roster.Student, error)
	}

	Attendance interface {
		Summary(ctx context.Context, studentID int64, from, to core.Date) (report.AttendanceSummary, error)
		DaySummary(ctx context.Context, day core.Date, studentIDs ...int64) (report.AttendanceSummary, error)
	}

	Homework interface {
		Query(ctx context.Context, filter homework.Filter) ([]homework.Homework, error)
		QuerySubmissions(ctx context.Context, filter homework.SubmissionFilter) ([]homework.Submission, error)
		PendingCount(ctx context.Context, studentID int64, hws []homework.Homework) (int, error)
	}

	Exams interface {
		Query(ctx context.Context, filter exam.Filter) ([]exam.Exam, error)
	}

	Fees interface {
		Totals(ctx context.Context) (fee.Totals, error)
	}

	Notifications interface {
		List(ctx context.Context, caller user.User, unreadOnly bool, limit int) ([]notification.Notification, error)
		UnreadCount(ctx context.Context, caller user.User) (int, error)
	}

	Deps struct {
		Users         Users
		Academics     Academics
		Roster        Roster
		Attendance    Attendance
		Homework      Homework
		Exams         Exams
		Fees          Fees
		Notifications Notifications
	}

	Service struct {
		Deps
		today func() core.Date
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps, today: core.Today}
}

// For returns the dashboard of the caller.
func (svc *Service) For(ctx context.Context, caller user.User) (Dashboard, error) {
	if !caller.IsActive {
		return Dashboard{}, core.ErrForbidden
	}

	var (
		stats interface{}
		err   error
	)
	switch {
	case caller.IsAdmin():
		stats, err = svc.adminStats(ctx)
	case caller.IsTeacher():
		stats, err = svc.teacherStats(ctx, caller)
	case caller.IsStudent():
		stats, err = svc.studentStats(ctx, caller)
	case caller.IsParent():
		stats, err = svc.parentStats(ctx, caller)
	case caller.IsAccountant():
		stats, err = svc.Fees.Totals(ctx)
	default:
		return Dashboard{}, core.ErrForbidden
	}
	if err != nil {
		return Dashboard{}, errors.Wrapf(err, "computing %s dashboard", caller.Role)
	}

	unread, err := svc.Notifications.UnreadCount(ctx, caller)
	if err != nil {
		return Dashboard{}, err
	}
	notifs, err := svc.Notifications.List(ctx, caller, false, recentNotifications)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Role: caller.Role, Stats: stats, UnreadCount: unread, Notifications: notifs}, nil
}

func (svc *Service) adminStats(ctx context.Context) (AdminStats, error) {
	var (
		stats AdminStats
		err   error
	)
	if stats.TotalStudents, err = svc.Roster.CountStudents(ctx, roster.StudentFilter{}); err != nil {
		return stats, err
	}
	if stats.TotalTeachers, err = svc.Users.Count(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleTeacher}}); err != nil {
		return stats, err
	}
	if stats.TotalParents, err = svc.Users.Count(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleParent}}); err != nil {
		return stats, err
	}
	if stats.TotalClasses, stats.TotalSections, err = svc.Academics.Counts(ctx); err != nil {
		return stats, err
	}
	today, err := svc.Attendance.DaySummary(ctx, svc.today())
	if err != nil {
		return stats, err
	}
	stats.AttendanceToday = today.Percentage
	return stats, nil
}

func (svc *Service) teacherStats(ctx context.Context, caller user.User) (TeacherStats, error) {
	var stats TeacherStats
	sectionIDs, err := svc.Academics.TeacherSectionIDs(ctx, caller.ID)
	if err != nil {
		return stats, err
	}
	stats.SectionsAssigned = len(sectionIDs)

	authored, err := svc.Homework.Query(ctx, homework.Filter{TeacherID: caller.ID})
	if err != nil {
		return stats, err
	}
	stats.HomeworkAuthored = len(authored)
	if len(authored) > 0 {
		ids := make([]int64, 0, len(authored))
		for _, hw := range authored {
			ids = append(ids, hw.ID)
		}
		pending, err := svc.Homework.QuerySubmissions(ctx, homework.SubmissionFilter{HomeworkIDs: ids, Status: homework.StatusSubmitted})
		if err != nil {
			return stats, err
		}
		stats.PendingSubmissions = len(pending)
	}

	if len(sectionIDs) > 0 {
		if stats.StudentsTotal, err = svc.Roster.CountStudents(ctx, roster.StudentFilter{SectionIDs: sectionIDs}); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (svc *Service) studentStats(ctx context.Context, caller user.User) (StudentStats, error) {
	var stats StudentStats
	me, err := svc.Roster.StudentByUserID(ctx, caller.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return stats, nil
		}
		return stats, err
	}
	child, err := svc.childStats(ctx, me)
	if err != nil {
		return stats, err
	}
	stats.AttendanceRate = child.AttendanceRate
	stats.PendingHomework = child.PendingHomework

	// exams of the active period, every one when no period is active
	periodID, err := svc.Academics.ActivePeriodID(ctx)
	if err != nil {
		return stats, err
	}
	upcoming, err := svc.Exams.Query(ctx, exam.Filter{PeriodID: periodID, EndsFrom: svc.today()})
	if err != nil {
		return stats, err
	}
	stats.UpcomingExams = len(upcoming)
	return stats, nil
}

func (svc *Service) parentStats(ctx context.Context, caller user.User) (ParentStats, error) {
	children, err := svc.Roster.ChildrenOfUser(ctx, caller.ID)
	if err != nil {
		return ParentStats{}, err
	}
	stats := ParentStats{Children: make([]ChildStats, 0, len(children))}
	for _, c := range children {
		cs, err := svc.childStats(ctx, c)
		if err != nil {
			return stats, err
		}
		stats.Children = append(stats.Children, cs)
	}
	return stats, nil
}

// childStats computes the attendance rate and the number of homework due today or later the student has not submitted.
func (svc *Service) childStats(ctx context.Context, s roster.Student) (ChildStats, error) {
	cs := ChildStats{StudentID: s.ID, Name: s.Name}
	summary, err := svc.Attendance.Summary(ctx, s.ID, core.Date{}, core.Date{})
	if err != nil {
		return cs, err
	}
	cs.AttendanceRate = summary.Percentage

	due, err := svc.Homework.Query(ctx, homework.Filter{SectionID: s.SectionID, DueFrom: svc.today()})
	if err != nil {
		return cs, err
	}
	if cs.PendingHomework, err = svc.Homework.PendingCount(ctx, s.ID, due); err != nil {
		return cs, err
	}
	return cs, nil
}
