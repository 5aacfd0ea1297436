package inmemdb

import (
	"context"

	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
)

type policyFacts struct {
	db *DB
}

var _ policy.Facts = (*policyFacts)(nil) // interface compliance check

func NewPolicyFacts(db *DB) *policyFacts {
	return &policyFacts{db: db}
}

func (f *policyFacts) StudentOfUser(_ context.Context, userID int64) (studentID, sectionID int64, err error) {
	err = roster.ErrStudentNotFound
	_ = f.db.read(func(t *tables) error {
		for _, s := range t.students {
			if s.UserID == userID {
				studentID, sectionID, err = s.ID, s.SectionID, nil
				return nil
			}
		}
		return nil
	})
	return studentID, sectionID, err
}

func (f *policyFacts) ParentOfUser(_ context.Context, userID int64) (parentID int64, err error) {
	err = roster.ErrParentNotFound
	_ = f.db.read(func(t *tables) error {
		for _, p := range t.parents {
			if p.UserID == userID {
				parentID, err = p.ID, nil
				return nil
			}
		}
		return nil
	})
	return parentID, err
}

func (f *policyFacts) StudentSection(_ context.Context, studentID int64) (int64, error) {
	var (
		s  roster.Student
		ok bool
	)
	_ = f.db.read(func(t *tables) error {
		s, ok = t.students[studentID]
		return nil
	})
	if !ok {
		return 0, roster.ErrStudentNotFound
	}
	return s.SectionID, nil
}

func (f *policyFacts) TeacherAssigned(_ context.Context, teacherUserID, sectionID, subjectID int64) (bool, error) {
	var assigned bool
	_ = f.db.read(func(t *tables) error {
		for _, a := range t.assignments {
			if a.TeacherID == teacherUserID && a.SectionID == sectionID && (subjectID == 0 || a.SubjectID == subjectID) {
				assigned = true
				return nil
			}
		}
		if subjectID == 0 {
			sec, ok := t.sections[sectionID]
			assigned = ok && sec.ClassTeacherID == teacherUserID
		}
		return nil
	})
	return assigned, nil
}

func (t *tables) parentLinked(parentUserID int64, match func(s roster.Student) bool) bool {
	parentIDs := make(map[int64]struct{})
	for _, p := range t.parents {
		if p.UserID == parentUserID {
			parentIDs[p.ID] = struct{}{}
		}
	}
	for _, l := range t.links {
		if _, ok := parentIDs[l.ParentID]; !ok {
			continue
		}
		if s, ok := t.students[l.StudentID]; ok && match(s) {
			return true
		}
	}
	return false
}

func (f *policyFacts) ParentOf(_ context.Context, parentUserID, studentID int64) (bool, error) {
	var linked bool
	_ = f.db.read(func(t *tables) error {
		linked = t.parentLinked(parentUserID, func(s roster.Student) bool { return s.ID == studentID })
		return nil
	})
	return linked, nil
}

func (f *policyFacts) ChildInSection(_ context.Context, parentUserID, sectionID int64) (bool, error) {
	var linked bool
	_ = f.db.read(func(t *tables) error {
		linked = t.parentLinked(parentUserID, func(s roster.Student) bool { return s.SectionID == sectionID })
		return nil
	})
	return linked, nil
}
