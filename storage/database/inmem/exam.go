package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		e.ID = t.nextID("exam")
		t.exams[e.ID] = e
		return nil
	})
	return e, err
}

func (repo *examRepository) GetExam(_ context.Context, id int64) (exam.Exam, error) {
	var (
		e  exam.Exam
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		e, ok = t.exams[id]
		return nil
	})
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

func (repo *examRepository) QueryExams(_ context.Context, filter exam.Filter) ([]exam.Exam, error) {
	exams := make([]exam.Exam, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, e := range t.exams {
			if (filter.PeriodID != 0 && e.PeriodID != filter.PeriodID) ||
				(!filter.EndsFrom.IsZero() && e.EndDate.Before(filter.EndsFrom)) {
				continue
			}
			exams = append(exams, e)
		}
		return nil
	})
	sort.Slice(exams, func(i, j int) bool {
		if exams[i].StartDate.Equal(exams[j].StartDate) {
			return exams[i].ID < exams[j].ID
		}
		return exams[i].StartDate.Before(exams[j].StartDate)
	})
	return exams, nil
}

func (repo *examRepository) UpsertMarks(ctx context.Context, marks []exam.Mark) ([]exam.Mark, error) {
	saved := make([]exam.Mark, 0, len(marks))
	err := repo.db.write(ctx, func(t *tables) error {
		for _, m := range marks {
			for id, existing := range t.marks {
				if existing.ExamID == m.ExamID && existing.StudentID == m.StudentID && existing.SubjectID == m.SubjectID {
					m.ID = id
					break
				}
			}
			if m.ID == 0 {
				m.ID = t.nextID("mark")
			}
			t.marks[m.ID] = m
			saved = append(saved, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *examRepository) QueryMarks(_ context.Context, filter exam.MarkFilter) ([]exam.Mark, error) {
	students := idSet(filter.StudentIDs)
	marks := make([]exam.Mark, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, m := range t.marks {
			if _, ok := students[m.StudentID]; len(students) > 0 && !ok {
				continue
			}
			if (filter.ExamID != 0 && m.ExamID != filter.ExamID) ||
				(filter.SubjectID != 0 && m.SubjectID != filter.SubjectID) {
				continue
			}
			marks = append(marks, m)
		}
		return nil
	})
	sort.Slice(marks, func(i, j int) bool { return marks[i].ID < marks[j].ID })
	return marks, nil
}
