package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (t *tables) student(s roster.Student) roster.Student {
	usr := t.users[s.UserID]
	s.Name = usr.Name
	s.Email = usr.Email
	return s
}

func (t *tables) teacher(tc roster.Teacher) roster.Teacher {
	usr := t.users[tc.UserID]
	tc.Name = usr.Name
	tc.Email = usr.Email
	return tc
}

func (t *tables) parent(p roster.Parent) roster.Parent {
	usr := t.users[p.UserID]
	p.Name = usr.Name
	p.Email = usr.Email
	p.Phone = usr.Phone
	return p
}

func (t *tables) matchStudent(s roster.Student, filter roster.StudentFilter) bool {
	if filter.SectionID != 0 && s.SectionID != filter.SectionID {
		return false
	}
	if len(filter.SectionIDs) > 0 {
		if _, ok := idSet(filter.SectionIDs)[s.SectionID]; !ok {
			return false
		}
	}
	if len(filter.IDs) > 0 {
		if _, ok := idSet(filter.IDs)[s.ID]; !ok {
			return false
		}
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		name := strings.ToLower(t.users[s.UserID].Name)
		if !strings.Contains(name, q) && !strings.Contains(strings.ToLower(s.AdmissionNo), q) {
			return false
		}
	}
	return true
}

// Students

func (repo *rosterRepository) CreateStudent(ctx context.Context, s roster.Student) (roster.Student, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, st := range t.students {
			if strings.EqualFold(st.AdmissionNo, s.AdmissionNo) {
				return roster.ErrAdmissionNoExists
			}
		}
		s.ID = t.nextID("student")
		t.students[s.ID] = s
		s = t.student(s)
		return nil
	})
	if err != nil {
		return roster.Student{}, err
	}
	return s, nil
}

func (repo *rosterRepository) getStudent(match func(roster.Student) bool) (roster.Student, error) {
	var (
		s     roster.Student
		found bool
	)
	_ = repo.db.read(func(t *tables) error {
		for _, st := range t.students {
			if match(st) {
				s, found = t.student(st), true
				return nil
			}
		}
		return nil
	})
	if !found {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	return s, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id int64) (roster.Student, error) {
	return repo.getStudent(func(s roster.Student) bool { return s.ID == id })
}

func (repo *rosterRepository) GetStudentByUserID(_ context.Context, userID int64) (roster.Student, error) {
	return repo.getStudent(func(s roster.Student) bool { return s.UserID == userID })
}

func (repo *rosterRepository) QueryStudents(_ context.Context, filter roster.StudentFilter, page core.Page) ([]roster.Student, error) {
	students := make([]roster.Student, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.students {
			if t.matchStudent(s, filter) {
				students = append(students, t.student(s))
			}
		}
		return nil
	})
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	start, end := paginate(len(students), page)
	return students[start:end], nil
}

func (repo *rosterRepository) CountStudents(_ context.Context, filter roster.StudentFilter) (int, error) {
	var cnt int
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.students {
			if t.matchStudent(s, filter) {
				cnt++
			}
		}
		return nil
	})
	return cnt, nil
}

// Teachers

func (repo *rosterRepository) CreateTeacher(ctx context.Context, tc roster.Teacher) (roster.Teacher, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.teachers {
			if strings.EqualFold(other.EmployeeID, tc.EmployeeID) {
				return roster.ErrEmployeeIDExists
			}
		}
		tc.ID = t.nextID("teacher")
		t.teachers[tc.ID] = tc
		tc = t.teacher(tc)
		return nil
	})
	if err != nil {
		return roster.Teacher{}, err
	}
	return tc, nil
}

func (repo *rosterRepository) GetTeacher(_ context.Context, id int64) (roster.Teacher, error) {
	var (
		tc roster.Teacher
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		if tc, ok = t.teachers[id]; ok {
			tc = t.teacher(tc)
		}
		return nil
	})
	if !ok {
		return roster.Teacher{}, roster.ErrTeacherNotFound
	}
	return tc, nil
}

func (repo *rosterRepository) UpdateTeacher(ctx context.Context, tc roster.Teacher) (roster.Teacher, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.teachers[tc.ID]; !ok {
			return roster.ErrTeacherNotFound
		}
		t.teachers[tc.ID] = tc
		tc = t.teacher(tc)
		return nil
	})
	if err != nil {
		return roster.Teacher{}, err
	}
	return tc, nil
}

func (repo *rosterRepository) QueryTeachers(_ context.Context, page core.Page) ([]roster.Teacher, error) {
	teachers := make([]roster.Teacher, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, tc := range t.teachers {
			teachers = append(teachers, t.teacher(tc))
		}
		return nil
	})
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	start, end := paginate(len(teachers), page)
	return teachers[start:end], nil
}

// Parents

func (repo *rosterRepository) CreateParent(ctx context.Context, p roster.Parent) (roster.Parent, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		p.ID = t.nextID("parent")
		t.parents[p.ID] = p
		p = t.parent(p)
		return nil
	})
	return p, err
}

func (repo *rosterRepository) getParent(match func(roster.Parent) bool) (roster.Parent, error) {
	var (
		p     roster.Parent
		found bool
	)
	_ = repo.db.read(func(t *tables) error {
		for _, pr := range t.parents {
			if match(pr) {
				p, found = t.parent(pr), true
				return nil
			}
		}
		return nil
	})
	if !found {
		return roster.Parent{}, roster.ErrParentNotFound
	}
	return p, nil
}

func (repo *rosterRepository) GetParent(_ context.Context, id int64) (roster.Parent, error) {
	return repo.getParent(func(p roster.Parent) bool { return p.ID == id })
}

func (repo *rosterRepository) GetParentByUserID(_ context.Context, userID int64) (roster.Parent, error) {
	return repo.getParent(func(p roster.Parent) bool { return p.UserID == userID })
}

func (repo *rosterRepository) QueryParents(_ context.Context, page core.Page) ([]roster.Parent, error) {
	parents := make([]roster.Parent, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, p := range t.parents {
			parents = append(parents, t.parent(p))
		}
		return nil
	})
	sort.Slice(parents, func(i, j int) bool { return parents[i].ID < parents[j].ID })
	start, end := paginate(len(parents), page)
	return parents[start:end], nil
}

func (repo *rosterRepository) LinkParent(ctx context.Context, parentID, studentID int64) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, l := range t.links {
			if l.ParentID == parentID && l.StudentID == studentID {
				return roster.ErrAlreadyLinked
			}
		}
		t.links = append(t.links, parentLink{ParentID: parentID, StudentID: studentID})
		return nil
	})
}

func (repo *rosterRepository) ChildrenOf(_ context.Context, parentID int64) ([]roster.Student, error) {
	children := make([]roster.Student, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, l := range t.links {
			if l.ParentID != parentID {
				continue
			}
			if s, ok := t.students[l.StudentID]; ok {
				children = append(children, t.student(s))
			}
		}
		return nil
	})
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (repo *rosterRepository) ParentsOf(_ context.Context, studentID int64) ([]roster.Parent, error) {
	parents := make([]roster.Parent, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, l := range t.links {
			if l.StudentID != studentID {
				continue
			}
			if p, ok := t.parents[l.ParentID]; ok {
				parents = append(parents, t.parent(p))
			}
		}
		return nil
	})
	sort.Slice(parents, func(i, j int) bool { return parents[i].ID < parents[j].ID })
	return parents, nil
}
