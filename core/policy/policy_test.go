package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/user"
)

type student struct{ id, section int64 }

type fakeFacts struct {
	students    map[int64]student // userID -> student
	sections    map[int64]int64   // studentID -> sectionID
	assignments map[[3]int64]bool // {teacherUserID, sectionID, subjectID}
	links       map[[2]int64]bool // {parentUserID, studentID}
	parents     map[int64]int64   // userID -> parentID
}

func (f fakeFacts) StudentOfUser(_ context.Context, userID int64) (int64, int64, error) {
	s, ok := f.students[userID]
	if !ok {
		return 0, 0, core.NewNotFoundError("student")
	}
	return s.id, s.section, nil
}

func (f fakeFacts) ParentOfUser(_ context.Context, userID int64) (int64, error) {
	p, ok := f.parents[userID]
	if !ok {
		return 0, core.NewNotFoundError("parent")
	}
	return p, nil
}

func (f fakeFacts) StudentSection(_ context.Context, studentID int64) (int64, error) {
	sec, ok := f.sections[studentID]
	if !ok {
		return 0, core.NewNotFoundError("student")
	}
	return sec, nil
}

func (f fakeFacts) TeacherAssigned(_ context.Context, teacherUserID, sectionID, subjectID int64) (bool, error) {
	if subjectID != 0 {
		return f.assignments[[3]int64{teacherUserID, sectionID, subjectID}], nil
	}
	for k := range f.assignments {
		if k[0] == teacherUserID && k[1] == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeFacts) ParentOf(_ context.Context, parentUserID, studentID int64) (bool, error) {
	return f.links[[2]int64{parentUserID, studentID}], nil
}

func (f fakeFacts) ChildInSection(_ context.Context, parentUserID, sectionID int64) (bool, error) {
	for k := range f.links {
		if k[0] == parentUserID && f.sections[k[1]] == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func TestPolicy_May(t *testing.T) {
	facts := fakeFacts{
		// users: 1 admin, 2 teacher, 3 & 4 students, 5 parent of student 30, 6 accountant, 7 super admin
		students:    map[int64]student{3: {id: 30, section: 100}, 4: {id: 40, section: 200}},
		sections:    map[int64]int64{30: 100, 40: 200},
		assignments: map[[3]int64]bool{{2, 100, 9}: true},
		links:       map[[2]int64]bool{{5, 30}: true},
		parents:     map[int64]int64{5: 50},
	}
	p := policy.New(facts)

	admin := user.User{ID: 1, Role: user.RoleAdmin, IsActive: true}
	teacher := user.User{ID: 2, Role: user.RoleTeacher, IsActive: true}
	student1 := user.User{ID: 3, Role: user.RoleStudent, IsActive: true}
	student2 := user.User{ID: 4, Role: user.RoleStudent, IsActive: true}
	parent := user.User{ID: 5, Role: user.RoleParent, IsActive: true}
	accountant := user.User{ID: 6, Role: user.RoleAccountant, IsActive: true}
	superAdmin := user.User{ID: 7, Role: user.RoleSuperAdmin, IsActive: true}
	inactiveAdmin := user.User{ID: 8, Role: user.RoleAdmin}

	tests := []struct {
		name   string
		caller user.User
		action policy.Action
		target policy.Target
		allow  bool
	}{
		{name: "admin reads any attendance", caller: admin, action: policy.ReadAttendance, target: policy.Target{StudentID: 40}, allow: true},
		{name: "super admin manages fees", caller: superAdmin, action: policy.ManageFees, allow: true},
		{name: "inactive admin denied", caller: inactiveAdmin, action: policy.ReadAcademics},

		{name: "student reads own attendance", caller: student1, action: policy.ReadAttendance, target: policy.Target{StudentID: 30}, allow: true},
		{name: "student reads other's attendance", caller: student1, action: policy.ReadAttendance, target: policy.Target{StudentID: 40}},
		{name: "student reads unknown student's attendance", caller: student1, action: policy.ReadAttendance, target: policy.Target{StudentID: 999}},
		{name: "student cannot mark attendance", caller: student1, action: policy.MarkAttendance, target: policy.Target{SectionID: 100}},
		{name: "student submits in own section", caller: student2, action: policy.SubmitHomework, target: policy.Target{SectionID: 200, StudentID: 40}, allow: true},
		{name: "student submits for another section", caller: student2, action: policy.SubmitHomework, target: policy.Target{SectionID: 100, StudentID: 40}},
		{name: "student reads own section homework", caller: student1, action: policy.ReadHomework, target: policy.Target{SectionID: 100}, allow: true},
		{name: "student cannot manage fees", caller: student1, action: policy.ManageFees},

		{name: "teacher marks assigned section", caller: teacher, action: policy.MarkAttendance, target: policy.Target{SectionID: 100}, allow: true},
		{name: "teacher marks unassigned section", caller: teacher, action: policy.MarkAttendance, target: policy.Target{SectionID: 200}},
		{name: "teacher homework on assigned subject", caller: teacher, action: policy.CreateHomework, target: policy.Target{SectionID: 100, SubjectID: 9}, allow: true},
		{name: "teacher homework on other subject", caller: teacher, action: policy.CreateHomework, target: policy.Target{SectionID: 100, SubjectID: 8}},
		{name: "teacher marks for assigned student", caller: teacher, action: policy.EnterMarks, target: policy.Target{StudentID: 30, SubjectID: 9}, allow: true},
		{name: "teacher marks for unassigned student", caller: teacher, action: policy.EnterMarks, target: policy.Target{StudentID: 40, SubjectID: 9}},
		{name: "teacher reads own submissions", caller: teacher, action: policy.ReadSubmissions, target: policy.Target{OwnerID: 2}, allow: true},
		{name: "teacher reads others' submissions", caller: teacher, action: policy.ReadSubmissions, target: policy.Target{OwnerID: 1}},
		{name: "teacher cannot read fees", caller: teacher, action: policy.ReadFees, target: policy.Target{StudentID: 30}},

		{name: "parent reads linked student", caller: parent, action: policy.ReadMarks, target: policy.Target{StudentID: 30}, allow: true},
		{name: "parent reads unlinked student", caller: parent, action: policy.ReadMarks, target: policy.Target{StudentID: 40}},
		{name: "parent reads child's section homework", caller: parent, action: policy.ReadHomework, target: policy.Target{SectionID: 100}, allow: true},
		{name: "parent reads other section homework", caller: parent, action: policy.ReadHomework, target: policy.Target{SectionID: 200}},
		{name: "parent reads own profile", caller: parent, action: policy.ReadParent, target: policy.Target{ParentID: 50}, allow: true},

		{name: "accountant records payments", caller: accountant, action: policy.ManageFees, allow: true},
		{name: "accountant cannot mark attendance", caller: accountant, action: policy.MarkAttendance, target: policy.Target{SectionID: 100}},
		{name: "accountant cannot create announcement", caller: accountant, action: policy.CreateAnnouncement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.May(context.Background(), tt.caller, tt.action, tt.target)
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, core.ErrForbidden, err)
			}
		})
	}
}
