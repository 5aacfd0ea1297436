package policy

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// Action is a capability that may be granted to a role.
type Action int

const (
	ManageUsers Action = iota + 1
	ManageAcademics
	ReadAcademics
	ManageRoster
	ReadStudent
	ListStudents
	ReadParent
	MarkAttendance
	ReadAttendance
	CreateHomework
	ReadHomework
	SubmitHomework
	ReadSubmissions
	GradeSubmission
	ManageExams
	EnterMarks
	ReadMarks
	ManageFees
	ReadFees
	CreateAnnouncement
	ReadAnnouncements
)

var actionNames = map[Action]string{
	ManageUsers:        "manage_users",
	ManageAcademics:    "manage_academics",
	ReadAcademics:      "read_academics",
	ManageRoster:       "manage_roster",
	ReadStudent:        "read_student",
	ListStudents:       "list_students",
	ReadParent:         "read_parent",
	MarkAttendance:     "mark_attendance",
	ReadAttendance:     "read_attendance",
	CreateHomework:     "create_homework",
	ReadHomework:       "read_homework",
	SubmitHomework:     "submit_homework",
	ReadSubmissions:    "read_submissions",
	GradeSubmission:    "grade_submission",
	ManageExams:        "manage_exams",
	EnterMarks:         "enter_marks",
	ReadMarks:          "read_marks",
	ManageFees:         "manage_fees",
	ReadFees:           "read_fees",
	CreateAnnouncement: "create_announcement",
	ReadAnnouncements:  "read_announcements",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Target describes the record an action applies to. Zero fields are unknown / not applicable.
type Target struct {
	StudentID int64 // student profile owning the record
	SectionID int64
	SubjectID int64
	ParentID  int64 // parent profile
	OwnerID   int64 // identity that authored the record
}

// Facts resolves the relationships the rules depend on, through explicit Record Store lookups.
type Facts interface {
	// StudentOfUser returns the student profile id and section id of a student identity.
	StudentOfUser(ctx context.Context, userID int64) (studentID, sectionID int64, err error)
	// ParentOfUser returns the parent profile id of a parent identity.
	ParentOfUser(ctx context.Context, userID int64) (parentID int64, err error)
	// StudentSection returns the section the student belongs to.
	StudentSection(ctx context.Context, studentID int64) (sectionID int64, err error)
	// TeacherAssigned reports whether the teacher identity teaches in sectionID;
	// subjectID 0 matches any subject and also accepts the section's class teacher.
	TeacherAssigned(ctx context.Context, teacherUserID, sectionID, subjectID int64) (bool, error)
	// ParentOf reports whether the parent identity is linked to the student.
	ParentOf(ctx context.Context, parentUserID, studentID int64) (bool, error)
	// ChildInSection reports whether the parent identity has a linked student in the section.
	ChildInSection(ctx context.Context, parentUserID, sectionID int64) (bool, error)
}

type rule func(ctx context.Context, facts Facts, caller user.User, target Target) (bool, error)

// Policy is the single capability table consulted before every mutation or sensitive read.
type Policy struct {
	facts Facts
	table map[user.Role]map[Action]rule
}

func New(facts Facts) *Policy {
	return &Policy{facts: facts, table: capabilities()}
}

// May returns nil if caller may perform action on target, core.ErrForbidden otherwise.
// Records that do not exist are denied the same way as records outside the caller's scope.
func (p *Policy) May(ctx context.Context, caller user.User, action Action, target Target) error {
	if !caller.IsActive {
		return core.ErrForbidden
	}
	rules, ok := p.table[caller.Role]
	if !ok {
		return core.ErrForbidden
	}
	r, ok := rules[action]
	if !ok {
		return core.ErrForbidden
	}
	allowed, err := r(ctx, p.facts, caller, target)
	if err != nil {
		if core.IsNotFound(err) {
			return core.ErrForbidden
		}
		return errors.Wrapf(err, "checking %s", action)
	}
	if !allowed {
		return core.ErrForbidden
	}
	return nil
}

// Can is May without the error details.
func (p *Policy) Can(ctx context.Context, caller user.User, action Action, target Target) bool {
	return p.May(ctx, caller, action, target) == nil
}

func capabilities() map[user.Role]map[Action]rule {
	full := make(map[Action]rule, len(actionNames))
	for a := range actionNames {
		full[a] = always
	}

	return map[user.Role]map[Action]rule{
		user.RoleSuperAdmin: full,
		user.RoleAdmin:      full,
		user.RoleTeacher: {
			ReadAcademics:     always,
			ReadAnnouncements: always,
			ListStudents:      always,
			ReadHomework:      always,
			ReadStudent:       teacherOfStudent,
			ReadAttendance:    teacherOfStudentOrSection,
			MarkAttendance:    teacherOfSection,
			CreateHomework:    teacherOfSubject,
			ReadSubmissions:   owner,
			GradeSubmission:   owner,
			EnterMarks:        teacherOfStudentSubject,
			ReadMarks:         teacherOfStudent,
		},
		user.RoleStudent: {
			ReadAcademics:     always,
			ReadAnnouncements: always,
			ReadStudent:       ownStudent,
			ReadAttendance:    ownStudent,
			ReadMarks:         ownStudent,
			ReadFees:          ownStudent,
			ReadHomework:      ownSection,
			SubmitHomework:    ownSectionAndStudent,
		},
		user.RoleParent: {
			ReadAcademics:     always,
			ReadAnnouncements: always,
			ReadParent:        ownParent,
			ReadStudent:       parentOfStudent,
			ReadAttendance:    parentOfStudent,
			ReadMarks:         parentOfStudent,
			ReadFees:          parentOfStudent,
			ReadHomework:      parentOfSection,
		},
		user.RoleAccountant: {
			ReadAcademics:     always,
			ReadAnnouncements: always,
			ListStudents:      always,
			ReadStudent:       always,
			ReadParent:        always,
			ManageFees:        always,
			ReadFees:          always,
		},
	}
}

// Rules

func always(context.Context, Facts, user.User, Target) (bool, error) { return true, nil }

func owner(_ context.Context, _ Facts, caller user.User, t Target) (bool, error) {
	return t.OwnerID != 0 && t.OwnerID == caller.ID, nil
}

func teacherOfSection(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.SectionID == 0 {
		return false, nil
	}
	return facts.TeacherAssigned(ctx, caller.ID, t.SectionID, 0)
}

func teacherOfSubject(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.SectionID == 0 || t.SubjectID == 0 {
		return false, nil
	}
	return facts.TeacherAssigned(ctx, caller.ID, t.SectionID, t.SubjectID)
}

func teacherOfStudent(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.StudentID == 0 {
		return false, nil
	}
	sectionID, err := facts.StudentSection(ctx, t.StudentID)
	if err != nil {
		return false, err
	}
	return facts.TeacherAssigned(ctx, caller.ID, sectionID, 0)
}

func teacherOfStudentOrSection(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.StudentID != 0 {
		return teacherOfStudent(ctx, facts, caller, t)
	}
	return teacherOfSection(ctx, facts, caller, t)
}

func teacherOfStudentSubject(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.StudentID == 0 || t.SubjectID == 0 {
		return false, nil
	}
	sectionID, err := facts.StudentSection(ctx, t.StudentID)
	if err != nil {
		return false, err
	}
	return facts.TeacherAssigned(ctx, caller.ID, sectionID, t.SubjectID)
}

func ownStudent(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.StudentID == 0 {
		return false, nil
	}
	studentID, _, err := facts.StudentOfUser(ctx, caller.ID)
	if err != nil {
		return false, err
	}
	return studentID == t.StudentID, nil
}

func ownSection(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.SectionID == 0 {
		return false, nil
	}
	_, sectionID, err := facts.StudentOfUser(ctx, caller.ID)
	if err != nil {
		return false, err
	}
	return sectionID == t.SectionID, nil
}

func ownSectionAndStudent(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.SectionID == 0 || t.StudentID == 0 {
		return false, nil
	}
	studentID, sectionID, err := facts.StudentOfUser(ctx, caller.ID)
	if err != nil {
		return false, err
	}
	return studentID == t.StudentID && sectionID == t.SectionID, nil
}

func ownParent(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.ParentID == 0 {
		return false, nil
	}
	parentID, err := facts.ParentOfUser(ctx, caller.ID)
	if err != nil {
		return false, err
	}
	return parentID == t.ParentID, nil
}

func parentOfStudent(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.StudentID == 0 {
		return false, nil
	}
	return facts.ParentOf(ctx, caller.ID, t.StudentID)
}

func parentOfSection(ctx context.Context, facts Facts, caller user.User, t Target) (bool, error) {
	if t.SectionID == 0 {
		return false, nil
	}
	return facts.ChildInSection(ctx, caller.ID, t.SectionID)
}
