package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/exam"
)

const (
	examColumns = "id, name, type, period_id, start_date, end_date"
	markColumns = "id, exam_id, student_id, subject_id, obtained, max, grade, remarks, entered_by, entered_at"
)

type (
	examRow struct {
		ID        int64       `db:"id"`
		Name      string      `db:"name"`
		Type      null.String `db:"type"`
		PeriodID  null.Int64  `db:"period_id"`
		StartDate core.Date   `db:"start_date"`
		EndDate   core.Date   `db:"end_date"`
	}

	markRow struct {
		ID        int64       `db:"id"`
		ExamID    int64       `db:"exam_id"`
		StudentID int64       `db:"student_id"`
		SubjectID int64       `db:"subject_id"`
		Obtained  float64     `db:"obtained"`
		Max       float64     `db:"max"`
		Grade     string      `db:"grade"`
		Remarks   null.String `db:"remarks"`
		EnteredBy int64       `db:"entered_by"`
		EnteredAt time.Time   `db:"entered_at"`
	}
)

func (r examRow) exam() exam.Exam {
	return exam.Exam{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type.String,
		PeriodID:  r.PeriodID.Int64,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}
}

func (r markRow) mark() exam.Mark {
	return exam.Mark{
		ID:        r.ID,
		ExamID:    r.ExamID,
		StudentID: r.StudentID,
		SubjectID: r.SubjectID,
		Obtained:  r.Obtained,
		Max:       r.Max,
		Grade:     r.Grade,
		Remarks:   r.Remarks.String,
		EnteredBy: r.EnteredBy,
		EnteredAt: r.EnteredAt.UTC(),
	}
}

type examRepository struct {
	base
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{base{db}}
}

func (repo *examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	q := "INSERT INTO exams (name, type, period_id, start_date, end_date) VALUES (?, ?, ?, ?, ?) RETURNING " + examColumns
	var r examRow
	if err := getRow(ctx, repo.conn(ctx), &r, q, e.Name, nullString(e.Type), nullID(e.PeriodID), e.StartDate, e.EndDate); err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return r.exam(), nil
}

func (repo *examRepository) GetExam(ctx context.Context, id int64) (exam.Exam, error) {
	var r examRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+examColumns+" FROM exams WHERE id = ?", id); err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "selecting exam")
	}
	return r.exam(), nil
}

func (repo *examRepository) QueryExams(ctx context.Context, filter exam.Filter) ([]exam.Exam, error) {
	var w where
	if filter.PeriodID != 0 {
		w.add("period_id = ?", filter.PeriodID)
	}
	if !filter.EndsFrom.IsZero() {
		w.add("end_date >= ?", filter.EndsFrom)
	}

	var rows []examRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+examColumns+" FROM exams"+w.String()+" ORDER BY start_date, id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, r := range rows {
		exams = append(exams, r.exam())
	}
	return exams, nil
}

func (repo *examRepository) UpsertMarks(ctx context.Context, marks []exam.Mark) ([]exam.Mark, error) {
	q := `INSERT INTO marks (exam_id, student_id, subject_id, obtained, max, grade, remarks, entered_by, entered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (exam_id, student_id, subject_id) DO UPDATE
		SET obtained = EXCLUDED.obtained, max = EXCLUDED.max, grade = EXCLUDED.grade, remarks = EXCLUDED.remarks,
			entered_by = EXCLUDED.entered_by, entered_at = EXCLUDED.entered_at
		RETURNING ` + markColumns

	conn := repo.conn(ctx)
	saved := make([]exam.Mark, 0, len(marks))
	for _, m := range marks {
		var r markRow
		err := getRow(ctx, conn, &r, q, m.ExamID, m.StudentID, m.SubjectID, m.Obtained, m.Max, m.Grade,
			nullString(m.Remarks), m.EnteredBy, m.EnteredAt.UTC())
		if err != nil {
			return nil, errors.Wrapf(err, "upserting mark of student %d", m.StudentID)
		}
		saved = append(saved, r.mark())
	}
	return saved, nil
}

func (repo *examRepository) QueryMarks(ctx context.Context, filter exam.MarkFilter) ([]exam.Mark, error) {
	var w where
	if len(filter.StudentIDs) > 0 {
		w.add("student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if filter.ExamID != 0 {
		w.add("exam_id = ?", filter.ExamID)
	}
	if filter.SubjectID != 0 {
		w.add("subject_id = ?", filter.SubjectID)
	}

	var rows []markRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+markColumns+" FROM marks"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting marks")
	}
	marks := make([]exam.Mark, 0, len(rows))
	for _, r := range rows {
		marks = append(marks, r.mark())
	}
	return marks, nil
}
