package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/report"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/testutil"
)

var day = core.NewDate(2024, time.September, 1)

func TestService_Mark(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)
	st := school.Students

	batch := attendance.Batch{
		SectionID: school.Section.ID,
		Date:      day,
		Entries: []attendance.Entry{
			{StudentID: st[0].ID, Status: "Present"},
			{StudentID: st[1].ID, Status: attendance.StatusAbsent, Remark: " sick "},
			{StudentID: st[2].ID, Status: attendance.StatusLate},
		},
	}
	require.NoError(t, batch.Validate(app.Validate))

	saved, err := app.Attendance.Mark(ctx, school.Teacher, batch)
	require.NoError(t, err)
	assert.Len(t, saved, 3)

	rep, err := app.Attendance.StudentReport(ctx, school.Admin, st[0].ID, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Equal(t, report.AttendanceSummary{TotalDays: 1, PresentDays: 1, AbsentDays: 0, Percentage: 100}, rep.Summary)

	rep, err = app.Attendance.StudentReport(ctx, school.Admin, st[1].ID, core.Date{}, core.Date{})
	require.NoError(t, err)
	if assert.Len(t, rep.Records, 1) {
		assert.Equal(t, "sick", rep.Records[0].Remark)
	}
	assert.Equal(t, float64(0), rep.Summary.Percentage)

	t.Run("re-marking replaces the record", func(t *testing.T) {
		_, err := app.Attendance.Mark(ctx, school.Teacher, attendance.Batch{
			SectionID: school.Section.ID,
			Date:      day,
			Entries:   []attendance.Entry{{StudentID: st[1].ID, Status: attendance.StatusPresent}},
		})
		require.NoError(t, err)

		rep, err := app.Attendance.StudentReport(ctx, school.Teacher, st[1].ID, core.Date{}, core.Date{})
		require.NoError(t, err)
		assert.Len(t, rep.Records, 1)
		assert.Equal(t, 100.0, rep.Summary.Percentage)
	})

	t.Run("late counts as absent", func(t *testing.T) {
		rep, err := app.Attendance.StudentReport(ctx, school.Admin, st[2].ID, core.Date{}, core.Date{})
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Summary.AbsentDays)
		assert.Equal(t, 1, rep.Summary.LateDays)
	})
}

func TestService_Mark_Denied(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	tests := []struct {
		name  string
		batch attendance.Batch
		err   func(error) bool
	}{
		{
			name: "teacher of another section",
			batch: attendance.Batch{
				SectionID: school.OtherSection.ID,
				Date:      day,
				Entries:   []attendance.Entry{{StudentID: school.Outsider.ID, Status: attendance.StatusPresent}},
			},
			err: func(err error) bool { return err == core.ErrForbidden },
		},
		{
			name: "student outside the section",
			batch: attendance.Batch{
				SectionID: school.Section.ID,
				Date:      day,
				Entries: []attendance.Entry{
					{StudentID: school.Students[0].ID, Status: attendance.StatusPresent},
					{StudentID: school.Outsider.ID, Status: attendance.StatusPresent},
				},
			},
			err: func(err error) bool {
				_, ok := err.(*core.ValidationError)
				return ok
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.Attendance.Mark(ctx, school.Teacher, tc.batch)
			assert.True(t, tc.err(err), "unexpected error: %v", err)
		})
	}

	// the rejected batch saved nothing
	rep, err := app.Attendance.StudentReport(ctx, school.Admin, school.Students[0].ID, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Empty(t, rep.Records)

	_, err = app.Attendance.Mark(ctx, school.StudentUsers[0], attendance.Batch{SectionID: school.Section.ID, Date: day})
	assert.Equal(t, core.ErrForbidden, err)
}

func TestBatch_Validate(t *testing.T) {
	app := testutil.NewApp()
	tests := []struct {
		name    string
		batch   attendance.Batch
		wantErr bool
	}{
		{"valid", attendance.Batch{SectionID: 1, Date: day, Entries: []attendance.Entry{{StudentID: 1, Status: attendance.StatusHalfDay}}}, false},
		{"no entries", attendance.Batch{SectionID: 1, Date: day}, true},
		{"no date", attendance.Batch{SectionID: 1, Entries: []attendance.Entry{{StudentID: 1, Status: attendance.StatusPresent}}}, true},
		{"unknown status", attendance.Batch{SectionID: 1, Date: day, Entries: []attendance.Entry{{StudentID: 1, Status: "sleeping"}}}, true},
		{
			"duplicate student",
			attendance.Batch{SectionID: 1, Date: day, Entries: []attendance.Entry{
				{StudentID: 1, Status: attendance.StatusPresent},
				{StudentID: 1, Status: attendance.StatusAbsent},
			}},
			true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.batch.Validate(app.Validate)
			assert.Equal(t, tc.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestService_SectionDay(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	_, err := app.Attendance.Mark(ctx, school.Teacher, attendance.Batch{
		SectionID: school.Section.ID,
		Date:      day,
		Entries:   []attendance.Entry{{StudentID: school.Students[0].ID, Status: attendance.StatusPresent}},
	})
	require.NoError(t, err)

	sheet, err := app.Attendance.SectionDay(ctx, school.Teacher, school.Section.ID, day)
	require.NoError(t, err)
	require.Len(t, sheet.Students, 3)

	statuses := make(map[int64]attendance.Status)
	for _, e := range sheet.Students {
		statuses[e.StudentID] = e.Status
	}
	assert.Equal(t, attendance.StatusPresent, statuses[school.Students[0].ID])
	assert.Equal(t, attendance.Status(""), statuses[school.Students[1].ID])

	_, err = app.Attendance.SectionDay(ctx, school.OtherTeacher, school.Section.ID, day)
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_StudentReport_Scope(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	_, err := app.Attendance.StudentReport(ctx, school.ParentUser, school.Students[0].ID, core.Date{}, core.Date{})
	assert.NoError(t, err)
	_, err = app.Attendance.StudentReport(ctx, school.ParentUser, school.Students[1].ID, core.Date{}, core.Date{})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = app.Attendance.StudentReport(ctx, school.StudentUsers[1], school.Students[1].ID, core.Date{}, core.Date{})
	assert.NoError(t, err)
	_, err = app.Attendance.StudentReport(ctx, school.StudentUsers[1], school.Students[0].ID, core.Date{}, core.Date{})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = app.Attendance.StudentReport(ctx, school.Admin, school.Students[0].ID, day, day.AddDays(-1))
	assert.Error(t, err)
}

func TestService_StudentReport_UnknownStudent(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	_, err := app.Attendance.StudentReport(ctx, school.Admin, 99999, core.Date{}, core.Date{})
	assert.Equal(t, roster.ErrStudentNotFound, err)
	_, err = app.Attendance.StudentReport(ctx, school.Teacher, 99999, core.Date{}, core.Date{})
	assert.Equal(t, core.ErrForbidden, err)
}
