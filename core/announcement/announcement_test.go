package announcement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/testutil"
)

func TestService_List(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	for _, na := range []announcement.NewAnnouncement{
		{Title: "School closed on Friday", Message: "Holiday"},
		{Title: "Staff meeting", Message: "Room 4", TargetType: announcement.TargetRole, TargetRole: user.RoleTeacher},
		{Title: "Field trip", Message: "Bring lunch", TargetType: announcement.TargetSection, TargetID: school.Section.ID},
		{Title: "Grade 5 exams", Message: "Next week", TargetType: announcement.TargetClass, TargetID: school.Class.ID},
	} {
		require.NoError(t, na.Validate(app.Validate))
		_, err := app.Announcements.Create(ctx, school.Admin, na)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		caller user.User
		want   []string
	}{
		{"admin", school.Admin, []string{"Grade 5 exams", "Field trip", "Staff meeting", "School closed on Friday"}},
		{"teacher", school.Teacher, []string{"Grade 5 exams", "Field trip", "Staff meeting", "School closed on Friday"}},
		{"teacher without section", school.OtherTeacher, []string{"Staff meeting", "School closed on Friday"}},
		{"student of the section", school.StudentUsers[0], []string{"Grade 5 exams", "Field trip", "School closed on Friday"}},
		{"student of another section", school.OutsiderUser, []string{"Grade 5 exams", "School closed on Friday"}},
		{"parent", school.ParentUser, []string{"Grade 5 exams", "Field trip", "School closed on Friday"}},
		{"accountant", school.Accountant, []string{"School closed on Friday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			anns, err := app.Announcements.List(ctx, tc.caller, core.Page{})
			require.NoError(t, err)
			titles := make([]string, 0, len(anns))
			for _, a := range anns {
				titles = append(titles, a.Title)
			}
			assert.Equal(t, tc.want, titles)
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	school := app.Seed(t)

	_, err := app.Announcements.Create(ctx, school.Teacher, announcement.NewAnnouncement{Title: "Hi", Message: "Hello", TargetType: announcement.TargetAll})
	assert.Equal(t, core.ErrForbidden, err)

	ann, err := app.Announcements.Create(ctx, school.Admin, announcement.NewAnnouncement{
		Title:      "Field trip",
		Message:    "Bring lunch",
		TargetType: announcement.TargetSection,
		TargetID:   school.Section.ID,
	})
	require.NoError(t, err)

	// students of the section, their parents and the section's teachers
	want := []int64{school.ParentUser.ID, school.Teacher.ID}
	for _, u := range school.StudentUsers {
		want = append(want, u.ID)
	}
	assert.ElementsMatch(t, want, app.Pusher.SentTo())
	for _, usr := range []user.User{school.ParentUser, school.Teacher} {
		notifs, err := app.Notifications.List(ctx, usr, true, 0)
		require.NoError(t, err)
		if assert.Len(t, notifs, 1) {
			assert.Equal(t, notification.TypeAnnouncement, notifs[0].Type)
			assert.Equal(t, ann.ID, notifs[0].ReferenceID)
		}
	}
	notifs, err := app.Notifications.List(ctx, school.OtherTeacher, true, 0)
	require.NoError(t, err)
	assert.Empty(t, notifs)

	t.Run("announcements to everyone are broadcast", func(t *testing.T) {
		_, err := app.Announcements.Create(ctx, school.Admin, announcement.NewAnnouncement{
			Title:      "Holiday",
			Message:    "No school",
			TargetType: announcement.TargetAll,
		})
		require.NoError(t, err)

		var broadcasts int
		for _, p := range app.Pusher.Pushes() {
			if p.Broadcast {
				broadcasts++
			}
		}
		assert.Equal(t, 1, broadcasts)

		cnt, err := app.Notifications.UnreadCount(ctx, school.Accountant)
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
	})
}

func TestNewAnnouncement_Validate(t *testing.T) {
	app := testutil.NewApp()
	tests := []struct {
		name    string
		na      announcement.NewAnnouncement
		wantErr bool
	}{
		{"defaults to everyone", announcement.NewAnnouncement{Title: "a", Message: "b"}, false},
		{"role without role", announcement.NewAnnouncement{Title: "a", Message: "b", TargetType: "role"}, true},
		{"unknown role", announcement.NewAnnouncement{Title: "a", Message: "b", TargetType: "role", TargetRole: "janitor"}, true},
		{"section without id", announcement.NewAnnouncement{Title: "a", Message: "b", TargetType: "section"}, true},
		{"unknown target", announcement.NewAnnouncement{Title: "a", Message: "b", TargetType: "planet"}, true},
		{"no message", announcement.NewAnnouncement{Title: "a"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.na.Validate(app.Validate)
			assert.Equal(t, tc.wantErr, err != nil, "err = %v", err)
		})
	}
}
