package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
)

const attendanceColumns = "id, student_id, date, status, remark, recorded_by, created_at"

type attendanceRow struct {
	ID         int64       `db:"id"`
	StudentID  int64       `db:"student_id"`
	Date       core.Date   `db:"date"`
	Status     string      `db:"status"`
	Remark     null.String `db:"remark"`
	RecordedBy int64       `db:"recorded_by"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Date:       r.Date,
		Status:     attendance.Status(r.Status),
		Remark:     r.Remark.String,
		RecordedBy: r.RecordedBy,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type attendanceRepository struct {
	base
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{base{db}}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records []attendance.Record) ([]attendance.Record, error) {
	q := `INSERT INTO attendance_records (student_id, date, status, remark, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, date) DO UPDATE
		SET status = EXCLUDED.status, remark = EXCLUDED.remark, recorded_by = EXCLUDED.recorded_by, created_at = EXCLUDED.created_at
		RETURNING ` + attendanceColumns

	conn := repo.conn(ctx)
	saved := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		var r attendanceRow
		err := getRow(ctx, conn, &r, q,
			rec.StudentID, rec.Date, string(rec.Status), nullString(rec.Remark), rec.RecordedBy, rec.CreatedAt.UTC())
		if err != nil {
			return nil, errors.Wrapf(err, "upserting attendance of student %d", rec.StudentID)
		}
		saved = append(saved, r.record())
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.Filter) ([]attendance.Record, error) {
	var w where
	if len(filter.StudentIDs) > 0 {
		w.add("student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To)
	}

	var rows []attendanceRow
	q := "SELECT " + attendanceColumns + " FROM attendance_records" + w.String() + " ORDER BY date, student_id"
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}
