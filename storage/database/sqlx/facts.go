package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
)

type policyFacts struct {
	base
}

var _ policy.Facts = (*policyFacts)(nil) // interface compliance check

func NewPolicyFacts(db *sqlx.DB) *policyFacts {
	return &policyFacts{base{db}}
}

func (f *policyFacts) StudentOfUser(ctx context.Context, userID int64) (studentID, sectionID int64, err error) {
	var row struct {
		ID        int64 `db:"id"`
		SectionID int64 `db:"section_id"`
	}
	if err = getRow(ctx, f.conn(ctx), &row, "SELECT id, section_id FROM students WHERE user_id = ?", userID); err != nil {
		return 0, 0, trapNoRowsErr(err, roster.ErrStudentNotFound, "selecting student of user")
	}
	return row.ID, row.SectionID, nil
}

func (f *policyFacts) ParentOfUser(ctx context.Context, userID int64) (parentID int64, err error) {
	if err = getRow(ctx, f.conn(ctx), &parentID, "SELECT id FROM parents WHERE user_id = ?", userID); err != nil {
		return 0, trapNoRowsErr(err, roster.ErrParentNotFound, "selecting parent of user")
	}
	return parentID, nil
}

func (f *policyFacts) StudentSection(ctx context.Context, studentID int64) (sectionID int64, err error) {
	if err = getRow(ctx, f.conn(ctx), &sectionID, "SELECT section_id FROM students WHERE id = ?", studentID); err != nil {
		return 0, trapNoRowsErr(err, roster.ErrStudentNotFound, "selecting student section")
	}
	return sectionID, nil
}

func (f *policyFacts) TeacherAssigned(ctx context.Context, teacherUserID, sectionID, subjectID int64) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM teacher_assignments WHERE teacher_id = ? AND section_id = ? AND subject_id = ?)`
	args := []interface{}{teacherUserID, sectionID, subjectID}
	if subjectID == 0 {
		q = `SELECT EXISTS (SELECT 1 FROM teacher_assignments WHERE teacher_id = ? AND section_id = ?)
			OR EXISTS (SELECT 1 FROM sections WHERE id = ? AND class_teacher_id = ?)`
		args = []interface{}{teacherUserID, sectionID, sectionID, teacherUserID}
	}

	var assigned bool
	err := getRow(ctx, f.conn(ctx), &assigned, q, args...)
	return assigned, errors.Wrap(err, "checking teacher assignment")
}

func (f *policyFacts) ParentOf(ctx context.Context, parentUserID, studentID int64) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM student_parents sp JOIN parents p ON p.id = sp.parent_id
		WHERE p.user_id = ? AND sp.student_id = ?)`
	var linked bool
	err := getRow(ctx, f.conn(ctx), &linked, q, parentUserID, studentID)
	return linked, errors.Wrap(err, "checking parent link")
}

func (f *policyFacts) ChildInSection(ctx context.Context, parentUserID, sectionID int64) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM student_parents sp
		JOIN parents p ON p.id = sp.parent_id
		JOIN students s ON s.id = sp.student_id
		WHERE p.user_id = ? AND s.section_id = ?)`
	var linked bool
	err := getRow(ctx, f.conn(ctx), &linked, q, parentUserID, sectionID)
	return linked, errors.Wrap(err, "checking child section")
}
