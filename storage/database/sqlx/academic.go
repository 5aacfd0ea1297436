package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
)

type (
	periodRow struct {
		ID        int64     `db:"id"`
		Name      string    `db:"name"`
		StartDate core.Date `db:"start_date"`
		EndDate   core.Date `db:"end_date"`
		IsActive  bool      `db:"is_active"`
	}

	classRow struct {
		ID       int64      `db:"id"`
		Name     string     `db:"name"`
		PeriodID null.Int64 `db:"period_id"`
	}

	sectionRow struct {
		ID             int64      `db:"id"`
		ClassID        int64      `db:"class_id"`
		Name           string     `db:"name"`
		Capacity       int        `db:"capacity"`
		ClassTeacherID null.Int64 `db:"class_teacher_id"`
	}

	subjectRow struct {
		ID      int64  `db:"id"`
		ClassID int64  `db:"class_id"`
		Name    string `db:"name"`
		Code    string `db:"code"`
	}

	assignmentRow struct {
		ID        int64 `db:"id"`
		TeacherID int64 `db:"teacher_id"`
		SubjectID int64 `db:"subject_id"`
		SectionID int64 `db:"section_id"`
	}
)

func nullID(id int64) null.Int64 {
	return null.NewInt64(id, id != 0)
}

func (r periodRow) period() academic.Period {
	return academic.Period(r)
}

func (r classRow) class() academic.ClassGroup {
	return academic.ClassGroup{ID: r.ID, Name: r.Name, PeriodID: r.PeriodID.Int64}
}

func (r subjectRow) subject() academic.Subject {
	return academic.Subject(r)
}

func (r assignmentRow) assignment() academic.Assignment {
	return academic.Assignment(r)
}

func (r sectionRow) section() academic.Section {
	return academic.Section{
		ID:             r.ID,
		ClassID:        r.ClassID,
		Name:           r.Name,
		Capacity:       r.Capacity,
		ClassTeacherID: r.ClassTeacherID.Int64,
	}
}

const (
	periodColumns     = "id, name, start_date, end_date, is_active"
	sectionColumns    = "id, class_id, name, capacity, class_teacher_id"
	subjectColumns    = "id, class_id, name, code"
	assignmentColumns = "id, teacher_id, subject_id, section_id"
)

type academicRepository struct {
	base
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{base{db}}
}

// Periods

func (repo *academicRepository) CreatePeriod(ctx context.Context, p academic.Period) (academic.Period, error) {
	q := "INSERT INTO academic_periods (name, start_date, end_date) VALUES (?, ?, ?) RETURNING " + periodColumns
	var r periodRow
	if err := getRow(ctx, repo.conn(ctx), &r, q, p.Name, p.StartDate, p.EndDate); err != nil {
		return academic.Period{}, errors.Wrap(err, "inserting period")
	}
	return r.period(), nil
}

func (repo *academicRepository) GetPeriod(ctx context.Context, id int64) (academic.Period, error) {
	var r periodRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+periodColumns+" FROM academic_periods WHERE id = ?", id); err != nil {
		return academic.Period{}, trapNoRowsErr(err, academic.ErrPeriodNotFound, "selecting period")
	}
	return r.period(), nil
}

func (repo *academicRepository) QueryPeriods(ctx context.Context) ([]academic.Period, error) {
	var rows []periodRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+periodColumns+" FROM academic_periods ORDER BY start_date DESC, id"); err != nil {
		return nil, errors.Wrap(err, "selecting periods")
	}
	periods := make([]academic.Period, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.period())
	}
	return periods, nil
}

// ActivatePeriod clears the active flag first: the partial unique index is checked row by row.
func (repo *academicRepository) ActivatePeriod(ctx context.Context, id int64) error {
	conn := repo.conn(ctx)
	if _, err := exec(ctx, conn, "UPDATE academic_periods SET is_active = FALSE WHERE is_active AND id <> ?", id); err != nil {
		return errors.Wrap(err, "deactivating periods")
	}
	n, err := exec(ctx, conn, "UPDATE academic_periods SET is_active = TRUE WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "activating period")
	}
	if n == 0 {
		return academic.ErrPeriodNotFound
	}
	return nil
}

// Classes

func (repo *academicRepository) CreateClass(ctx context.Context, c academic.ClassGroup) (academic.ClassGroup, error) {
	var r classRow
	q := "INSERT INTO class_groups (name, period_id) VALUES (?, ?) RETURNING id, name, period_id"
	if err := getRow(ctx, repo.conn(ctx), &r, q, c.Name, nullID(c.PeriodID)); err != nil {
		return academic.ClassGroup{}, errors.Wrap(err, "inserting class")
	}
	return r.class(), nil
}

func (repo *academicRepository) GetClass(ctx context.Context, id int64) (academic.ClassGroup, error) {
	var r classRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT id, name, period_id FROM class_groups WHERE id = ?", id); err != nil {
		return academic.ClassGroup{}, trapNoRowsErr(err, academic.ErrClassNotFound, "selecting class")
	}
	return r.class(), nil
}

func (repo *academicRepository) QueryClasses(ctx context.Context, periodID int64) ([]academic.ClassGroup, error) {
	var w where
	if periodID != 0 {
		w.add("period_id = ?", periodID)
	}
	var rows []classRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT id, name, period_id FROM class_groups"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]academic.ClassGroup, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

// Sections

func (repo *academicRepository) CreateSection(ctx context.Context, s academic.Section) (academic.Section, error) {
	var r sectionRow
	q := "INSERT INTO sections (class_id, name, capacity, class_teacher_id) VALUES (?, ?, ?, ?) RETURNING " + sectionColumns
	if err := getRow(ctx, repo.conn(ctx), &r, q, s.ClassID, s.Name, s.Capacity, nullID(s.ClassTeacherID)); err != nil {
		if isUniqueViolation(err, "sections_class_name_idx") {
			return academic.Section{}, academic.ErrSectionExists
		}
		return academic.Section{}, errors.Wrap(err, "inserting section")
	}
	return r.section(), nil
}

func (repo *academicRepository) GetSection(ctx context.Context, id int64) (academic.Section, error) {
	var r sectionRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+sectionColumns+" FROM sections WHERE id = ?", id); err != nil {
		return academic.Section{}, trapNoRowsErr(err, academic.ErrSectionNotFound, "selecting section")
	}
	return r.section(), nil
}

func (repo *academicRepository) QuerySections(ctx context.Context, classID int64) ([]academic.Section, error) {
	var w where
	if classID != 0 {
		w.add("class_id = ?", classID)
	}
	var rows []sectionRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+sectionColumns+" FROM sections"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting sections")
	}
	sections := make([]academic.Section, 0, len(rows))
	for _, r := range rows {
		sections = append(sections, r.section())
	}
	return sections, nil
}

func (repo *academicRepository) UpdateSection(ctx context.Context, s academic.Section) (academic.Section, error) {
	var r sectionRow
	q := "UPDATE sections SET name = ?, capacity = ?, class_teacher_id = ? WHERE id = ? RETURNING " + sectionColumns
	if err := getRow(ctx, repo.conn(ctx), &r, q, s.Name, s.Capacity, nullID(s.ClassTeacherID), s.ID); err != nil {
		if isUniqueViolation(err, "sections_class_name_idx") {
			return academic.Section{}, academic.ErrSectionExists
		}
		return academic.Section{}, trapNoRowsErr(err, academic.ErrSectionNotFound, "updating section")
	}
	return r.section(), nil
}

// Subjects

func (repo *academicRepository) CreateSubject(ctx context.Context, s academic.Subject) (academic.Subject, error) {
	var r subjectRow
	q := "INSERT INTO subjects (class_id, name, code) VALUES (?, ?, ?) RETURNING " + subjectColumns
	if err := getRow(ctx, repo.conn(ctx), &r, q, s.ClassID, s.Name, s.Code); err != nil {
		if isUniqueViolation(err, "subjects_code_idx") {
			return academic.Subject{}, academic.ErrSubjectCodeExists
		}
		return academic.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return r.subject(), nil
}

func (repo *academicRepository) GetSubject(ctx context.Context, id int64) (academic.Subject, error) {
	var r subjectRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id); err != nil {
		return academic.Subject{}, trapNoRowsErr(err, academic.ErrSubjectNotFound, "selecting subject")
	}
	return r.subject(), nil
}

func (repo *academicRepository) QuerySubjects(ctx context.Context, classID int64) ([]academic.Subject, error) {
	var w where
	if classID != 0 {
		w.add("class_id = ?", classID)
	}
	var rows []subjectRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+subjectColumns+" FROM subjects"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	subjects := make([]academic.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects, nil
}

// Teacher assignments

func (repo *academicRepository) CreateAssignment(ctx context.Context, a academic.Assignment) (academic.Assignment, error) {
	var r assignmentRow
	q := "INSERT INTO teacher_assignments (teacher_id, subject_id, section_id) VALUES (?, ?, ?) RETURNING " + assignmentColumns
	if err := getRow(ctx, repo.conn(ctx), &r, q, a.TeacherID, a.SubjectID, a.SectionID); err != nil {
		if isUniqueViolation(err) {
			return academic.Assignment{}, academic.ErrAssignmentExists
		}
		return academic.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return r.assignment(), nil
}

func (repo *academicRepository) QueryAssignments(ctx context.Context, filter academic.AssignmentFilter) ([]academic.Assignment, error) {
	var w where
	if filter.TeacherID != 0 {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.SectionID != 0 {
		w.add("section_id = ?", filter.SectionID)
	}
	if filter.SubjectID != 0 {
		w.add("subject_id = ?", filter.SubjectID)
	}
	var rows []assignmentRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+assignmentColumns+" FROM teacher_assignments"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]academic.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}
