package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/homework"
)

const (
	homeworkColumns = `id, section_id, subject_id, teacher_id, title, description, due_date, attachment_url,
		allow_resubmission, created_at`
	submissionColumns = "id, homework_id, student_id, text, file_url, submitted_at, marks, feedback, status"
)

type (
	homeworkRow struct {
		ID                int64       `db:"id"`
		SectionID         int64       `db:"section_id"`
		SubjectID         int64       `db:"subject_id"`
		TeacherID         int64       `db:"teacher_id"`
		Title             string      `db:"title"`
		Description       null.String `db:"description"`
		DueDate           core.Date   `db:"due_date"`
		AttachmentURL     null.String `db:"attachment_url"`
		AllowResubmission bool        `db:"allow_resubmission"`
		CreatedAt         time.Time   `db:"created_at"`
	}

	submissionRow struct {
		ID          int64        `db:"id"`
		HomeworkID  int64        `db:"homework_id"`
		StudentID   int64        `db:"student_id"`
		Text        null.String  `db:"text"`
		FileURL     null.String  `db:"file_url"`
		SubmittedAt time.Time    `db:"submitted_at"`
		Marks       null.Float64 `db:"marks"`
		Feedback    null.String  `db:"feedback"`
		Status      string       `db:"status"`
	}
)

func (r homeworkRow) homework() homework.Homework {
	return homework.Homework{
		ID:                r.ID,
		SectionID:         r.SectionID,
		SubjectID:         r.SubjectID,
		TeacherID:         r.TeacherID,
		Title:             r.Title,
		Description:       r.Description.String,
		DueDate:           r.DueDate,
		AttachmentURL:     r.AttachmentURL.String,
		AllowResubmission: r.AllowResubmission,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}

func (r submissionRow) submission() homework.Submission {
	return homework.Submission{
		ID:          r.ID,
		HomeworkID:  r.HomeworkID,
		StudentID:   r.StudentID,
		Text:        r.Text.String,
		FileURL:     r.FileURL.String,
		SubmittedAt: r.SubmittedAt.UTC(),
		Marks:       r.Marks.Ptr(),
		Feedback:    r.Feedback.String,
		Status:      homework.SubmissionStatus(r.Status),
	}
}

type homeworkRepository struct {
	base
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db *sqlx.DB) *homeworkRepository {
	return &homeworkRepository{base{db}}
}

func (repo *homeworkRepository) CreateHomework(ctx context.Context, hw homework.Homework) (homework.Homework, error) {
	q := `INSERT INTO homework (section_id, subject_id, teacher_id, title, description, due_date, attachment_url,
		allow_resubmission, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING ` + homeworkColumns
	var r homeworkRow
	err := getRow(ctx, repo.conn(ctx), &r, q, hw.SectionID, hw.SubjectID, hw.TeacherID, hw.Title, nullString(hw.Description),
		hw.DueDate, nullString(hw.AttachmentURL), hw.AllowResubmission, hw.CreatedAt.UTC())
	if err != nil {
		return homework.Homework{}, errors.Wrap(err, "inserting homework")
	}
	return r.homework(), nil
}

func (repo *homeworkRepository) GetHomework(ctx context.Context, id int64) (homework.Homework, error) {
	var r homeworkRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+homeworkColumns+" FROM homework WHERE id = ?", id); err != nil {
		return homework.Homework{}, trapNoRowsErr(err, homework.ErrNotFound, "selecting homework")
	}
	return r.homework(), nil
}

func (repo *homeworkRepository) QueryHomework(ctx context.Context, filter homework.Filter) ([]homework.Homework, error) {
	var w where
	if len(filter.SectionIDs) > 0 {
		w.add("section_id = ANY(?)", pq.Array(filter.SectionIDs))
	}
	if filter.SectionID != 0 {
		w.add("section_id = ?", filter.SectionID)
	}
	if filter.SubjectID != 0 {
		w.add("subject_id = ?", filter.SubjectID)
	}
	if filter.TeacherID != 0 {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if !filter.DueFrom.IsZero() {
		w.add("due_date >= ?", filter.DueFrom)
	}

	var rows []homeworkRow
	q := "SELECT " + homeworkColumns + " FROM homework" + w.String() + " ORDER BY due_date DESC, id DESC"
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting homework")
	}
	hws := make([]homework.Homework, 0, len(rows))
	for _, r := range rows {
		hws = append(hws, r.homework())
	}
	return hws, nil
}

// CreateSubmission relies on the (homework_id, student_id) unique constraint: of concurrent duplicates, exactly one is inserted.
func (repo *homeworkRepository) CreateSubmission(ctx context.Context, s homework.Submission) (homework.Submission, error) {
	q := `INSERT INTO submissions (homework_id, student_id, text, file_url, submitted_at, marks, feedback, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING ` + submissionColumns
	var r submissionRow
	err := getRow(ctx, repo.conn(ctx), &r, q, s.HomeworkID, s.StudentID, nullString(s.Text), nullString(s.FileURL),
		s.SubmittedAt.UTC(), null.Float64FromPtr(s.Marks), nullString(s.Feedback), string(s.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return homework.Submission{}, homework.ErrAlreadySubmitted
		}
		return homework.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return r.submission(), nil
}

func (repo *homeworkRepository) GetSubmission(ctx context.Context, id int64) (homework.Submission, error) {
	var r submissionRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?"+forUpdate(ctx), id); err != nil {
		return homework.Submission{}, trapNoRowsErr(err, homework.ErrSubmissionNotFound, "selecting submission")
	}
	return r.submission(), nil
}

func (repo *homeworkRepository) GetStudentSubmission(ctx context.Context, homeworkID, studentID int64) (homework.Submission, error) {
	var r submissionRow
	q := "SELECT " + submissionColumns + " FROM submissions WHERE homework_id = ? AND student_id = ?" + forUpdate(ctx)
	if err := getRow(ctx, repo.conn(ctx), &r, q, homeworkID, studentID); err != nil {
		return homework.Submission{}, trapNoRowsErr(err, homework.ErrSubmissionNotFound, "selecting submission")
	}
	return r.submission(), nil
}

func (repo *homeworkRepository) UpdateSubmission(ctx context.Context, s homework.Submission) (homework.Submission, error) {
	q := `UPDATE submissions SET text = ?, file_url = ?, submitted_at = ?, marks = ?, feedback = ?, status = ?
		WHERE id = ? RETURNING ` + submissionColumns
	var r submissionRow
	err := getRow(ctx, repo.conn(ctx), &r, q, nullString(s.Text), nullString(s.FileURL), s.SubmittedAt.UTC(),
		null.Float64FromPtr(s.Marks), nullString(s.Feedback), string(s.Status), s.ID)
	if err != nil {
		return homework.Submission{}, trapNoRowsErr(err, homework.ErrSubmissionNotFound, "updating submission")
	}
	return r.submission(), nil
}

func (repo *homeworkRepository) QuerySubmissions(ctx context.Context, filter homework.SubmissionFilter) ([]homework.Submission, error) {
	var w where
	if len(filter.HomeworkIDs) > 0 {
		w.add("homework_id = ANY(?)", pq.Array(filter.HomeworkIDs))
	}
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}

	var rows []submissionRow
	q := "SELECT " + submissionColumns + " FROM submissions" + w.String() + " ORDER BY id"
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]homework.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}
