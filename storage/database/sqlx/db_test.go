package sqlxrepos

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database"
)

// testDB connects to TEST_DATABASE_URL, migrates it and empties every table.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "up"))
	_, err = db.Exec(`TRUNCATE users, academic_periods, class_groups, sections, subjects, teacher_assignments,
		students, teachers, parents, student_parents, attendance_records, homework, submissions, exams, marks,
		fee_heads, student_fees, fee_payments, announcements, notifications RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, db *sqlx.DB, email string, role user.Role) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := NewUserRepository(db).CreateUser(context.Background(), user.User{
		Name:         email,
		Email:        email,
		Role:         role,
		IsActive:     true,
		PasswordHash: []byte("x"),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return usr
}

// createStudents seeds a section with n students.
func createStudents(t *testing.T, db *sqlx.DB, n int) (academic.Section, []roster.Student) {
	t.Helper()
	ctx := context.Background()
	acad := NewAcademicRepository(db)
	rstr := NewRosterRepository(db)

	class, err := acad.CreateClass(ctx, academic.ClassGroup{Name: "Grade 5"})
	require.NoError(t, err)
	sec, err := acad.CreateSection(ctx, academic.Section{ClassID: class.ID, Name: "A", Capacity: 40})
	require.NoError(t, err)

	students := make([]roster.Student, 0, n)
	for i := 0; i < n; i++ {
		usr := createUser(t, db, "student"+string(rune('a'+i))+"@campus.dev", user.RoleStudent)
		s, err := rstr.CreateStudent(ctx, roster.Student{
			UserID:      usr.ID,
			SectionID:   sec.ID,
			AdmissionNo: "ADM-" + string(rune('A'+i)),
		})
		require.NoError(t, err)
		students = append(students, s)
	}
	return sec, students
}

func TestUserRepository_Uniqueness(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	usr := createUser(t, db, "admin@campus.dev", user.RoleAdmin)

	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "admin@campus.dev", ""))
	assert.NoError(t, repo.CheckUniqueness(ctx, "admin@campus.dev", "", usr.ID))

	_, err := repo.CreateUser(ctx, user.User{Email: "admin@campus.dev", Role: user.RoleAdmin, PasswordHash: []byte("x")})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
}

func TestTransactor_InTx(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tr := database.NewTransactor(db)
	users := NewUserRepository(db)

	errBoom := errors.New("boom")
	var afterCommit int
	err := tr.InTx(ctx, func(ctx context.Context) error {
		_, err := users.CreateUser(ctx, user.User{Email: "rolled@back.dev", Role: user.RoleStudent, PasswordHash: []byte("x")})
		require.NoError(t, err)
		core.AfterCommit(ctx, func() { afterCommit++ })
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 0, afterCommit)

	cnt, err := users.CountUsers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)

	err = tr.InTx(ctx, func(ctx context.Context) error {
		core.AfterCommit(ctx, func() { afterCommit++ })
		_, err := users.CreateUser(ctx, user.User{Email: "kept@campus.dev", Role: user.RoleStudent, PasswordHash: []byte("x")})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, afterCommit)
}

func TestAttendanceRepository_UpsertRecords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewAttendanceRepository(db)
	_, students := createStudents(t, db, 1)
	teacher := createUser(t, db, "teacher@campus.dev", user.RoleTeacher)
	day := core.NewDate(2024, time.September, 1)

	rec := attendance.Record{StudentID: students[0].ID, Date: day, Status: attendance.StatusAbsent, RecordedBy: teacher.ID, CreatedAt: time.Now()}
	first, err := repo.UpsertRecords(ctx, []attendance.Record{rec})
	require.NoError(t, err)

	rec.Status = attendance.StatusPresent
	again, err := repo.UpsertRecords(ctx, []attendance.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)

	records, err := repo.QueryRecords(ctx, attendance.Filter{StudentIDs: []int64{students[0].ID}, From: day, To: day})
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, attendance.StatusPresent, records[0].Status)
		assert.True(t, records[0].Date.Equal(day))
	}
}

func TestHomeworkRepository_CreateSubmission_Concurrent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewHomeworkRepository(db)
	sec, students := createStudents(t, db, 1)
	teacher := createUser(t, db, "teacher@campus.dev", user.RoleTeacher)

	subj, err := NewAcademicRepository(db).CreateSubject(ctx, academic.Subject{ClassID: sec.ClassID, Name: "Maths", Code: "MTH"})
	require.NoError(t, err)
	hw, err := repo.CreateHomework(ctx, homework.Homework{
		SectionID: sec.ID,
		SubjectID: subj.ID,
		TeacherID: teacher.ID,
		Title:     "Fractions",
		DueDate:   core.NewDate(2024, time.September, 10),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	const attempts = 5
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
			_, err := repo.CreateSubmission(ctx, homework.Submission{
				HomeworkID:  hw.ID,
				StudentID:   students[0].ID,
				Text:        "done",
				SubmittedAt: time.Now(),
				Status:      homework.StatusSubmitted,
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				created++
			case homework.ErrAlreadySubmitted:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}

func TestAnnouncementRepository_Audience(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewAnnouncementRepository(db)
	admin := createUser(t, db, "admin@campus.dev", user.RoleAdmin)

	for _, a := range []announcement.Announcement{
		{Title: "Holiday", TargetType: announcement.TargetAll},
		{Title: "Staff meeting", TargetType: announcement.TargetRole, TargetRole: user.RoleTeacher},
		{Title: "Field trip", TargetType: announcement.TargetSection, TargetID: 7},
		{Title: "Exams", TargetType: announcement.TargetClass, TargetID: 3},
	} {
		a.Message = a.Title
		a.CreatedBy = admin.ID
		a.CreatedAt = time.Now()
		_, err := repo.CreateAnnouncement(ctx, a)
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		audience announcement.Audience
		want     int
	}{
		{name: "everything", audience: announcement.Audience{All: true}, want: 4},
		{name: "teacher", audience: announcement.Audience{Role: user.RoleTeacher}, want: 2},
		{name: "section", audience: announcement.Audience{Role: user.RoleStudent, SectionIDs: []int64{7}, ClassIDs: []int64{3}}, want: 3},
		{name: "other section", audience: announcement.Audience{Role: user.RoleStudent, SectionIDs: []int64{8}}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			anns, err := repo.QueryAnnouncements(ctx, tc.audience, core.Page{})
			require.NoError(t, err)
			assert.Len(t, anns, tc.want)
		})
	}
}
