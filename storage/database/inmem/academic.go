package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/campus/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// Periods

func (repo *academicRepository) CreatePeriod(ctx context.Context, p academic.Period) (academic.Period, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		p.ID = t.nextID("period")
		t.periods[p.ID] = p
		return nil
	})
	return p, err
}

func (repo *academicRepository) GetPeriod(_ context.Context, id int64) (academic.Period, error) {
	var (
		p  academic.Period
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		p, ok = t.periods[id]
		return nil
	})
	if !ok {
		return academic.Period{}, academic.ErrPeriodNotFound
	}
	return p, nil
}

func (repo *academicRepository) QueryPeriods(context.Context) ([]academic.Period, error) {
	periods := make([]academic.Period, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, p := range t.periods {
			periods = append(periods, p)
		}
		return nil
	})
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate.After(periods[j].StartDate) })
	return periods, nil
}

func (repo *academicRepository) ActivatePeriod(ctx context.Context, id int64) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.periods[id]; !ok {
			return academic.ErrPeriodNotFound
		}
		for pid, p := range t.periods {
			p.IsActive = pid == id
			t.periods[pid] = p
		}
		return nil
	})
}

// Classes

func (repo *academicRepository) CreateClass(ctx context.Context, c academic.ClassGroup) (academic.ClassGroup, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		c.ID = t.nextID("class")
		t.classes[c.ID] = c
		return nil
	})
	return c, err
}

func (repo *academicRepository) GetClass(_ context.Context, id int64) (academic.ClassGroup, error) {
	var (
		c  academic.ClassGroup
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		c, ok = t.classes[id]
		return nil
	})
	if !ok {
		return academic.ClassGroup{}, academic.ErrClassNotFound
	}
	return c, nil
}

func (repo *academicRepository) QueryClasses(_ context.Context, periodID int64) ([]academic.ClassGroup, error) {
	classes := make([]academic.ClassGroup, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, c := range t.classes {
			if periodID == 0 || c.PeriodID == periodID {
				classes = append(classes, c)
			}
		}
		return nil
	})
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes, nil
}

// Sections

func (repo *academicRepository) CreateSection(ctx context.Context, s academic.Section) (academic.Section, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, sec := range t.sections {
			if sec.ClassID == s.ClassID && strings.EqualFold(sec.Name, s.Name) {
				return academic.ErrSectionExists
			}
		}
		s.ID = t.nextID("section")
		t.sections[s.ID] = s
		return nil
	})
	if err != nil {
		return academic.Section{}, err
	}
	return s, nil
}

func (repo *academicRepository) GetSection(_ context.Context, id int64) (academic.Section, error) {
	var (
		s  academic.Section
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		s, ok = t.sections[id]
		return nil
	})
	if !ok {
		return academic.Section{}, academic.ErrSectionNotFound
	}
	return s, nil
}

func (repo *academicRepository) QuerySections(_ context.Context, classID int64) ([]academic.Section, error) {
	sections := make([]academic.Section, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.sections {
			if classID == 0 || s.ClassID == classID {
				sections = append(sections, s)
			}
		}
		return nil
	})
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

func (repo *academicRepository) UpdateSection(ctx context.Context, s academic.Section) (academic.Section, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.sections[s.ID]; !ok {
			return academic.ErrSectionNotFound
		}
		t.sections[s.ID] = s
		return nil
	})
	if err != nil {
		return academic.Section{}, err
	}
	return s, nil
}

// Subjects

func (repo *academicRepository) CreateSubject(ctx context.Context, s academic.Subject) (academic.Subject, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, subj := range t.subjects {
			if strings.EqualFold(subj.Code, s.Code) {
				return academic.ErrSubjectCodeExists
			}
		}
		s.ID = t.nextID("subject")
		t.subjects[s.ID] = s
		return nil
	})
	if err != nil {
		return academic.Subject{}, err
	}
	return s, nil
}

func (repo *academicRepository) GetSubject(_ context.Context, id int64) (academic.Subject, error) {
	var (
		s  academic.Subject
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		s, ok = t.subjects[id]
		return nil
	})
	if !ok {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	return s, nil
}

func (repo *academicRepository) QuerySubjects(_ context.Context, classID int64) ([]academic.Subject, error) {
	subjects := make([]academic.Subject, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.subjects {
			if classID == 0 || s.ClassID == classID {
				subjects = append(subjects, s)
			}
		}
		return nil
	})
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

// Assignments

func (repo *academicRepository) CreateAssignment(ctx context.Context, a academic.Assignment) (academic.Assignment, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, as := range t.assignments {
			if as.TeacherID == a.TeacherID && as.SubjectID == a.SubjectID && as.SectionID == a.SectionID {
				return academic.ErrAssignmentExists
			}
		}
		a.ID = t.nextID("assignment")
		t.assignments[a.ID] = a
		return nil
	})
	if err != nil {
		return academic.Assignment{}, err
	}
	return a, nil
}

func (repo *academicRepository) QueryAssignments(_ context.Context, filter academic.AssignmentFilter) ([]academic.Assignment, error) {
	assignments := make([]academic.Assignment, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, a := range t.assignments {
			if (filter.TeacherID == 0 || a.TeacherID == filter.TeacherID) &&
				(filter.SectionID == 0 || a.SectionID == filter.SectionID) &&
				(filter.SubjectID == 0 || a.SubjectID == filter.SubjectID) {
				assignments = append(assignments, a)
			}
		}
		return nil
	})
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}
