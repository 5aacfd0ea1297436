package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/exam"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/testutil"
)

// setUp seeds a school where, today, students 1 and 2 are present and student 3 is absent,
// one homework is due next week (submitted by student 1 only) and one exam is coming.
func setUp(t *testing.T) (*testutil.App, testutil.School) {
	t.Helper()
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	st := school.Students
	today := core.Today()

	_, err := app.Attendance.Mark(ctx, school.Teacher, attendance.Batch{
		SectionID: school.Section.ID,
		Date:      today,
		Entries: []attendance.Entry{
			{StudentID: st[0].ID, Status: attendance.StatusPresent},
			{StudentID: st[1].ID, Status: attendance.StatusPresent},
			{StudentID: st[2].ID, Status: attendance.StatusAbsent},
		},
	})
	require.NoError(t, err)

	hw, err := app.Homework.Create(ctx, school.Teacher, homework.NewHomework{
		SectionID: school.Section.ID,
		SubjectID: school.Subject.ID,
		Title:     "Essay",
		DueDate:   today.AddDays(7),
	})
	require.NoError(t, err)
	_, err = app.Homework.Submit(ctx, school.StudentUsers[0], hw.ID, homework.NewSubmission{Text: "done"})
	require.NoError(t, err)

	_, err = app.Exams.CreateExam(ctx, school.Admin, exam.NewExam{Name: "Finals", StartDate: today.AddDays(10), EndDate: today.AddDays(12)})
	require.NoError(t, err)
	_, err = app.Exams.CreateExam(ctx, school.Admin, exam.NewExam{Name: "Quiz", StartDate: today.AddDays(-10), EndDate: today.AddDays(-9)})
	require.NoError(t, err)
	return app, school
}

func TestService_For(t *testing.T) {
	ctx := context.Background()
	app, school := setUp(t)

	tests := []struct {
		name      string
		caller    user.User
		wantStats interface{}
	}{
		{
			name:   "admin",
			caller: school.Admin,
			wantStats: dashboard.AdminStats{
				TotalStudents:   4,
				TotalTeachers:   2,
				TotalParents:    1,
				TotalClasses:    1,
				TotalSections:   2,
				AttendanceToday: 66.67,
			},
		},
		{
			name:   "teacher",
			caller: school.Teacher,
			wantStats: dashboard.TeacherStats{
				SectionsAssigned:   1,
				HomeworkAuthored:   1,
				PendingSubmissions: 1,
				StudentsTotal:      3,
			},
		},
		{
			name:      "student who submitted",
			caller:    school.StudentUsers[0],
			wantStats: dashboard.StudentStats{AttendanceRate: 100, PendingHomework: 0, UpcomingExams: 1},
		},
		{
			name:      "absent student",
			caller:    school.StudentUsers[2],
			wantStats: dashboard.StudentStats{AttendanceRate: 0, PendingHomework: 1, UpcomingExams: 1},
		},
		{
			name:   "parent",
			caller: school.ParentUser,
			wantStats: dashboard.ParentStats{Children: []dashboard.ChildStats{
				{StudentID: school.Students[0].ID, Name: "Student 1", AttendanceRate: 100},
			}},
		},
		{
			name:      "accountant",
			caller:    school.Accountant,
			wantStats: fee.Totals{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := app.Dashboard.For(ctx, tc.caller)
			require.NoError(t, err)
			assert.Equal(t, tc.caller.Role, d.Role)
			assert.Equal(t, tc.wantStats, d.Stats)
		})
	}
}

func TestService_For_UpcomingExamsOfActivePeriod(t *testing.T) {
	ctx := context.Background()
	app, school := setUp(t)
	today := core.Today()

	var periodIDs []int64
	for _, np := range []academic.NewPeriod{
		{Name: "Last year", StartDate: today.AddDays(-400), EndDate: today.AddDays(-40)},
		{Name: "This year", StartDate: today.AddDays(-30), EndDate: today.AddDays(300), IsActive: true},
	} {
		p, err := app.Academics.CreatePeriod(ctx, school.Admin, np)
		require.NoError(t, err)
		periodIDs = append(periodIDs, p.ID)
	}
	for _, ne := range []exam.NewExam{
		{Name: "Resit", PeriodID: periodIDs[0], StartDate: today.AddDays(3), EndDate: today.AddDays(4)},
		{Name: "Mid-term", PeriodID: periodIDs[1], StartDate: today.AddDays(5), EndDate: today.AddDays(6)},
		{Name: "Past test", PeriodID: periodIDs[1], StartDate: today.AddDays(-5), EndDate: today.AddDays(-4)},
	} {
		_, err := app.Exams.CreateExam(ctx, school.Admin, ne)
		require.NoError(t, err)
	}

	d, err := app.Dashboard.For(ctx, school.StudentUsers[0])
	require.NoError(t, err)
	stats, ok := d.Stats.(dashboard.StudentStats)
	require.True(t, ok)
	assert.Equal(t, 1, stats.UpcomingExams)
}

func TestService_For_Notifications(t *testing.T) {
	ctx := context.Background()
	app, school := setUp(t)

	d, err := app.Dashboard.For(ctx, school.StudentUsers[1])
	require.NoError(t, err)
	assert.Equal(t, 1, d.UnreadCount, "the homework notification")
	assert.Len(t, d.Notifications, 1)

	inactive := school.StudentUsers[1]
	inactive.IsActive = false
	_, err = app.Dashboard.For(ctx, inactive)
	assert.Equal(t, core.ErrForbidden, err)
}
