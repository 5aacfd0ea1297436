package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core/homework"
)

type homeworkRepository struct {
	db *DB
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db *DB) *homeworkRepository {
	return &homeworkRepository{db: db}
}

func (repo *homeworkRepository) CreateHomework(ctx context.Context, hw homework.Homework) (homework.Homework, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		hw.ID = t.nextID("homework")
		t.homework[hw.ID] = hw
		return nil
	})
	return hw, err
}

func (repo *homeworkRepository) GetHomework(_ context.Context, id int64) (homework.Homework, error) {
	var (
		hw homework.Homework
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		hw, ok = t.homework[id]
		return nil
	})
	if !ok {
		return homework.Homework{}, homework.ErrNotFound
	}
	return hw, nil
}

func (repo *homeworkRepository) QueryHomework(_ context.Context, filter homework.Filter) ([]homework.Homework, error) {
	sections := idSet(filter.SectionIDs)
	hws := make([]homework.Homework, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, hw := range t.homework {
			if _, ok := sections[hw.SectionID]; len(sections) > 0 && !ok {
				continue
			}
			if (filter.SectionID != 0 && hw.SectionID != filter.SectionID) ||
				(filter.SubjectID != 0 && hw.SubjectID != filter.SubjectID) ||
				(filter.TeacherID != 0 && hw.TeacherID != filter.TeacherID) ||
				(!filter.DueFrom.IsZero() && hw.DueDate.Before(filter.DueFrom)) {
				continue
			}
			hws = append(hws, hw)
		}
		return nil
	})
	sort.Slice(hws, func(i, j int) bool {
		if hws[i].DueDate.Equal(hws[j].DueDate) {
			return hws[i].ID > hws[j].ID
		}
		return hws[i].DueDate.After(hws[j].DueDate)
	})
	return hws, nil
}

func (repo *homeworkRepository) CreateSubmission(ctx context.Context, s homework.Submission) (homework.Submission, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.submissions {
			if other.HomeworkID == s.HomeworkID && other.StudentID == s.StudentID {
				return homework.ErrAlreadySubmitted
			}
		}
		s.ID = t.nextID("submission")
		t.submissions[s.ID] = s
		return nil
	})
	if err != nil {
		return homework.Submission{}, err
	}
	return s, nil
}

func (repo *homeworkRepository) GetSubmission(_ context.Context, id int64) (homework.Submission, error) {
	var (
		s  homework.Submission
		ok bool
	)
	_ = repo.db.read(func(t *tables) error {
		s, ok = t.submissions[id]
		return nil
	})
	if !ok {
		return homework.Submission{}, homework.ErrSubmissionNotFound
	}
	return s, nil
}

func (repo *homeworkRepository) GetStudentSubmission(_ context.Context, homeworkID, studentID int64) (homework.Submission, error) {
	var (
		s     homework.Submission
		found bool
	)
	_ = repo.db.read(func(t *tables) error {
		for _, sub := range t.submissions {
			if sub.HomeworkID == homeworkID && sub.StudentID == studentID {
				s, found = sub, true
				return nil
			}
		}
		return nil
	})
	if !found {
		return homework.Submission{}, homework.ErrSubmissionNotFound
	}
	return s, nil
}

func (repo *homeworkRepository) UpdateSubmission(ctx context.Context, s homework.Submission) (homework.Submission, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.submissions[s.ID]; !ok {
			return homework.ErrSubmissionNotFound
		}
		t.submissions[s.ID] = s
		return nil
	})
	if err != nil {
		return homework.Submission{}, err
	}
	return s, nil
}

func (repo *homeworkRepository) QuerySubmissions(_ context.Context, filter homework.SubmissionFilter) ([]homework.Submission, error) {
	hws := idSet(filter.HomeworkIDs)
	subs := make([]homework.Submission, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.submissions {
			if _, ok := hws[s.HomeworkID]; len(hws) > 0 && !ok {
				continue
			}
			if (filter.StudentID != 0 && s.StudentID != filter.StudentID) ||
				(filter.Status != "" && s.Status != filter.Status) {
				continue
			}
			subs = append(subs, s)
		}
		return nil
	})
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}
