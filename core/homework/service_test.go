package homework_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/testutil"
)

func createHomework(t *testing.T, app *testutil.App, school testutil.School, resubmit bool) homework.Homework {
	t.Helper()
	nh := homework.NewHomework{
		SectionID:         school.Section.ID,
		SubjectID:         school.Subject.ID,
		Title:             "  Fractions ",
		DueDate:           core.Today().AddDays(7),
		AllowResubmission: resubmit,
	}
	require.NoError(t, nh.Validate(app.Validate))
	hw, err := app.Homework.Create(context.Background(), school.Teacher, nh)
	require.NoError(t, err)
	return hw
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	hw := createHomework(t, app, school, false)
	assert.Equal(t, "Fractions", hw.Title)
	assert.Equal(t, school.Teacher.ID, hw.TeacherID)

	// every student of the section is notified, live too
	for _, usr := range school.StudentUsers {
		notifs, err := app.Notifications.List(ctx, usr, true, 0)
		require.NoError(t, err)
		if assert.Len(t, notifs, 1) {
			assert.Equal(t, notification.TypeHomework, notifs[0].Type)
			assert.Equal(t, hw.ID, notifs[0].ReferenceID)
		}
	}
	assert.ElementsMatch(t,
		[]int64{school.StudentUsers[0].ID, school.StudentUsers[1].ID, school.StudentUsers[2].ID},
		app.Pusher.SentTo())

	notifs, err := app.Notifications.List(ctx, school.OutsiderUser, false, 0)
	require.NoError(t, err)
	assert.Empty(t, notifs)

	t.Run("teacher not assigned to the subject", func(t *testing.T) {
		_, err := app.Homework.Create(ctx, school.OtherTeacher, homework.NewHomework{
			SectionID: school.Section.ID,
			SubjectID: school.Subject.ID,
			Title:     "Nope",
			DueDate:   core.Today(),
		})
		assert.Equal(t, core.ErrForbidden, err)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	hw := createHomework(t, app, school, false)

	tests := []struct {
		name   string
		caller func() []homework.Homework
		want   int
	}{
		{"student of the section", func() []homework.Homework { return list(t, app, school.StudentUsers[1]) }, 1},
		{"student of another section", func() []homework.Homework { return list(t, app, school.OutsiderUser) }, 0},
		{"parent of a student of the section", func() []homework.Homework { return list(t, app, school.ParentUser) }, 1},
		{"author", func() []homework.Homework { return list(t, app, school.Teacher) }, 1},
		{"admin", func() []homework.Homework { return list(t, app, school.Admin) }, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, tc.caller(), tc.want)
		})
	}

	_, err := app.Homework.Get(ctx, school.OutsiderUser, hw.ID)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = app.Homework.Get(ctx, school.OutsiderUser, hw.ID+100)
	assert.Equal(t, core.ErrForbidden, err, "missing homework is reported like an out of scope one")
}

func list(t *testing.T, app *testutil.App, caller user.User) []homework.Homework {
	t.Helper()
	hws, err := app.Homework.List(context.Background(), caller, homework.Filter{})
	require.NoError(t, err)
	return hws
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	hw := createHomework(t, app, school, false)
	student := school.StudentUsers[0]

	sub, err := app.Homework.Submit(ctx, student, hw.ID, homework.NewSubmission{Text: "1/2 + 1/4 = 3/4"})
	require.NoError(t, err)
	assert.Equal(t, homework.StatusSubmitted, sub.Status)
	assert.Equal(t, school.Students[0].ID, sub.StudentID)

	_, err = app.Homework.Submit(ctx, student, hw.ID, homework.NewSubmission{Text: "again"})
	assert.True(t, core.IsConflict(err), "err = %v", err)

	_, err = app.Homework.Submit(ctx, school.OutsiderUser, hw.ID, homework.NewSubmission{Text: "not mine"})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = app.Homework.Submit(ctx, school.Teacher, hw.ID, homework.NewSubmission{Text: "teachers do not submit"})
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_Submit_Concurrent(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	hw := createHomework(t, app, school, false)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.Homework.Submit(ctx, school.StudentUsers[0], hw.ID, homework.NewSubmission{Text: "race"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if core.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}

func TestService_Submit_Resubmission(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	hw := createHomework(t, app, school, true)
	student := school.StudentUsers[0]

	first, err := app.Homework.Submit(ctx, student, hw.ID, homework.NewSubmission{Text: "draft"})
	require.NoError(t, err)
	marks := 4.0
	_, err = app.Homework.Grade(ctx, school.Teacher, first.ID, homework.GradeSubmission{Marks: &marks})
	require.NoError(t, err)

	second, err := app.Homework.Submit(ctx, student, hw.ID, homework.NewSubmission{Text: "final"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "final", second.Text)
	assert.Equal(t, homework.StatusSubmitted, second.Status)
	assert.Nil(t, second.Marks)
}

func TestService_Grade(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	hw := createHomework(t, app, school, false)

	sub, err := app.Homework.Submit(ctx, school.StudentUsers[0], hw.ID, homework.NewSubmission{Text: "done"})
	require.NoError(t, err)

	marks := 8.5
	gs := homework.GradeSubmission{Marks: &marks, Feedback: " well done "}
	require.NoError(t, gs.Validate(app.Validate))

	_, err = app.Homework.Grade(ctx, school.OtherTeacher, sub.ID, gs)
	assert.Equal(t, core.ErrForbidden, err)

	graded, err := app.Homework.Grade(ctx, school.Teacher, sub.ID, gs)
	require.NoError(t, err)
	assert.Equal(t, homework.StatusGraded, graded.Status)
	assert.Equal(t, "well done", graded.Feedback)
	if assert.NotNil(t, graded.Marks) {
		assert.Equal(t, 8.5, *graded.Marks)
	}

	// the student and their parent are told about the grade
	cnt, err := app.Notifications.UnreadCount(ctx, school.StudentUsers[0])
	require.NoError(t, err)
	assert.Equal(t, 2, cnt, "homework and grade notifications")
	cnt, err = app.Notifications.UnreadCount(ctx, school.ParentUser)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	subs, err := app.Homework.Submissions(ctx, school.Teacher, hw.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	_, err = app.Homework.Submissions(ctx, school.OtherTeacher, hw.ID)
	assert.Equal(t, core.ErrForbidden, err)
}

func TestNewSubmission_Validate(t *testing.T) {
	ns := homework.NewSubmission{Text: "   "}
	assert.Error(t, ns.Validate())

	ns = homework.NewSubmission{FileURL: "/uploads/essay.pdf"}
	assert.NoError(t, ns.Validate())
}
