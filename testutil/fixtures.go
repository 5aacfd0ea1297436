package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
)

// Password is the password of every user created by the fixtures.
const Password = "Pa$$w0rd!"

var (
	pwdHash     []byte
	pwdHashOnce sync.Once
)

// passwordHash hashes Password once, at the lowest cost, to keep the fixtures fast.
func passwordHash(t *testing.T) []byte {
	pwdHashOnce.Do(func() {
		var err error
		if pwdHash, err = bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost); err != nil {
			t.Fatalf("hashing password: %v", err)
		}
	})
	return pwdHash
}

// CreateUser saves an active user with Password as password.
func CreateUser(t *testing.T, repo user.Repository, name, email string, role user.Role, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:         name,
		Email:        email,
		Role:         role,
		IsActive:     true,
		PasswordHash: passwordHash(t),
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// School is a small seeded school:
// Teacher teaches Subject in Section, which holds Students;
// Parent is linked to Students[0]; Outsider studies in OtherSection.
type School struct {
	Admin        user.User
	Accountant   user.User
	Teacher      user.User
	OtherTeacher user.User
	ParentUser   user.User

	Class        academic.ClassGroup
	Section      academic.Section
	OtherSection academic.Section
	Subject      academic.Subject

	Students     []roster.Student
	StudentUsers []user.User
	Outsider     roster.Student
	OutsiderUser user.User
	Parent       roster.Parent
}

// Seed fills app's Record Store with a School, without going through the services.
func (app *App) Seed(t *testing.T) School {
	t.Helper()
	ctx := context.Background()
	users := inmemdb.NewUserRepository(app.DB)
	acad := inmemdb.NewAcademicRepository(app.DB)
	rstr := inmemdb.NewRosterRepository(app.DB)

	var s School
	s.Admin = CreateUser(t, users, "Ada Admin", "admin@campus.dev", user.RoleAdmin)
	s.Accountant = CreateUser(t, users, "Abel Accountant", "accountant@campus.dev", user.RoleAccountant)
	s.Teacher = CreateUser(t, users, "Tina Teacher", "teacher@campus.dev", user.RoleTeacher)
	s.OtherTeacher = CreateUser(t, users, "Omar Teacher", "other.teacher@campus.dev", user.RoleTeacher)
	s.ParentUser = CreateUser(t, users, "Paula Parent", "parent@campus.dev", user.RoleParent)

	var err error
	s.Class, err = acad.CreateClass(ctx, academic.ClassGroup{Name: "Grade 5"})
	require.NoError(t, err)
	s.Section, err = acad.CreateSection(ctx, academic.Section{ClassID: s.Class.ID, Name: "A", Capacity: 40})
	require.NoError(t, err)
	s.OtherSection, err = acad.CreateSection(ctx, academic.Section{ClassID: s.Class.ID, Name: "B", Capacity: 40})
	require.NoError(t, err)
	s.Subject, err = acad.CreateSubject(ctx, academic.Subject{ClassID: s.Class.ID, Name: "Mathematics", Code: "MTH5"})
	require.NoError(t, err)
	_, err = acad.CreateAssignment(ctx, academic.Assignment{TeacherID: s.Teacher.ID, SubjectID: s.Subject.ID, SectionID: s.Section.ID})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		usr := CreateUser(t, users, fmt.Sprintf("Student %d", i), fmt.Sprintf("student%d@campus.dev", i), user.RoleStudent)
		student, err := rstr.CreateStudent(ctx, roster.Student{
			UserID:      usr.ID,
			SectionID:   s.Section.ID,
			AdmissionNo: fmt.Sprintf("ADM%03d", i),
			RollNo:      fmt.Sprint(i),
		})
		require.NoError(t, err)
		s.StudentUsers = append(s.StudentUsers, usr)
		s.Students = append(s.Students, student)
	}

	s.OutsiderUser = CreateUser(t, users, "Otto Outsider", "outsider@campus.dev", user.RoleStudent)
	s.Outsider, err = rstr.CreateStudent(ctx, roster.Student{UserID: s.OutsiderUser.ID, SectionID: s.OtherSection.ID, AdmissionNo: "ADM900"})
	require.NoError(t, err)

	s.Parent, err = rstr.CreateParent(ctx, roster.Parent{UserID: s.ParentUser.ID, Relation: "mother"})
	require.NoError(t, err)
	require.NoError(t, rstr.LinkParent(ctx, s.Parent.ID, s.Students[0].ID))
	return s
}
