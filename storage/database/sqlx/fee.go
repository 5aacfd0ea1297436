package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/fee"
)

const (
	selectStudentFees = `SELECT sf.id, sf.student_id, sf.head_id, h.name AS head_name, sf.amount_due, sf.amount_paid,
		sf.due_date, sf.status, sf.created_at FROM student_fees sf JOIN fee_heads h ON h.id = sf.head_id`
	paymentColumns = "id, student_fee_id, amount, mode, reference, paid_at, recorded_by"
)

type (
	headRow struct {
		ID          int64       `db:"id"`
		Name        string      `db:"name"`
		Description null.String `db:"description"`
	}

	studentFeeRow struct {
		ID         int64     `db:"id"`
		StudentID  int64     `db:"student_id"`
		HeadID     int64     `db:"head_id"`
		HeadName   string    `db:"head_name"`
		AmountDue  float64   `db:"amount_due"`
		AmountPaid float64   `db:"amount_paid"`
		DueDate    core.Date `db:"due_date"`
		Status     string    `db:"status"`
		CreatedAt  time.Time `db:"created_at"`
	}

	paymentRow struct {
		ID           int64       `db:"id"`
		StudentFeeID int64       `db:"student_fee_id"`
		Amount       float64     `db:"amount"`
		Mode         string      `db:"mode"`
		Reference    null.String `db:"reference"`
		PaidAt       time.Time   `db:"paid_at"`
		RecordedBy   int64       `db:"recorded_by"`
	}
)

func (r headRow) head() fee.Head {
	return fee.Head{ID: r.ID, Name: r.Name, Description: r.Description.String}
}

func (r studentFeeRow) studentFee() fee.StudentFee {
	return fee.StudentFee{
		ID:         r.ID,
		StudentID:  r.StudentID,
		HeadID:     r.HeadID,
		HeadName:   r.HeadName,
		AmountDue:  r.AmountDue,
		AmountPaid: r.AmountPaid,
		DueDate:    r.DueDate,
		Status:     fee.Status(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r paymentRow) payment() fee.Payment {
	return fee.Payment{
		ID:           r.ID,
		StudentFeeID: r.StudentFeeID,
		Amount:       r.Amount,
		Mode:         r.Mode,
		Reference:    r.Reference.String,
		PaidAt:       r.PaidAt.UTC(),
		RecordedBy:   r.RecordedBy,
	}
}

type feeRepository struct {
	base
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{base{db}}
}

// Heads

func (repo *feeRepository) CreateHead(ctx context.Context, h fee.Head) (fee.Head, error) {
	var r headRow
	q := "INSERT INTO fee_heads (name, description) VALUES (?, ?) RETURNING id, name, description"
	if err := getRow(ctx, repo.conn(ctx), &r, q, h.Name, nullString(h.Description)); err != nil {
		if isUniqueViolation(err, "fee_heads_name_idx") {
			return fee.Head{}, fee.ErrHeadExists
		}
		return fee.Head{}, errors.Wrap(err, "inserting fee head")
	}
	return r.head(), nil
}

func (repo *feeRepository) GetHead(ctx context.Context, id int64) (fee.Head, error) {
	var r headRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT id, name, description FROM fee_heads WHERE id = ?", id); err != nil {
		return fee.Head{}, trapNoRowsErr(err, fee.ErrHeadNotFound, "selecting fee head")
	}
	return r.head(), nil
}

func (repo *feeRepository) QueryHeads(ctx context.Context) ([]fee.Head, error) {
	var rows []headRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT id, name, description FROM fee_heads ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "selecting fee heads")
	}
	heads := make([]fee.Head, 0, len(rows))
	for _, r := range rows {
		heads = append(heads, r.head())
	}
	return heads, nil
}

// Student fees

func (repo *feeRepository) CreateStudentFees(ctx context.Context, fees []fee.StudentFee) ([]fee.StudentFee, error) {
	q := `INSERT INTO student_fees (student_id, head_id, amount_due, amount_paid, due_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`

	conn := repo.conn(ctx)
	ids := make([]int64, 0, len(fees))
	for _, sf := range fees {
		var id int64
		err := getRow(ctx, conn, &id, q, sf.StudentID, sf.HeadID, sf.AmountDue, sf.AmountPaid, sf.DueDate,
			string(sf.Status), sf.CreatedAt.UTC())
		if err != nil {
			return nil, errors.Wrapf(err, "inserting fee of student %d", sf.StudentID)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []fee.StudentFee{}, nil
	}

	var rows []studentFeeRow
	if err := selectRows(ctx, conn, &rows, selectStudentFees+" WHERE sf.id = ANY(?) ORDER BY sf.id", pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting student fees")
	}
	return studentFeesOf(rows), nil
}

func studentFeesOf(rows []studentFeeRow) []fee.StudentFee {
	fees := make([]fee.StudentFee, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.studentFee())
	}
	return fees
}

func (repo *feeRepository) GetStudentFee(ctx context.Context, id int64) (fee.StudentFee, error) {
	var r studentFeeRow
	q := selectStudentFees + " WHERE sf.id = ?"
	if forUpdate(ctx) != "" {
		q += " FOR UPDATE OF sf"
	}
	if err := getRow(ctx, repo.conn(ctx), &r, q, id); err != nil {
		return fee.StudentFee{}, trapNoRowsErr(err, fee.ErrNotFound, "selecting student fee")
	}
	return r.studentFee(), nil
}

func (repo *feeRepository) UpdateStudentFee(ctx context.Context, sf fee.StudentFee) (fee.StudentFee, error) {
	q := "UPDATE student_fees SET amount_due = ?, amount_paid = ?, due_date = ?, status = ? WHERE id = ?"
	n, err := exec(ctx, repo.conn(ctx), q, sf.AmountDue, sf.AmountPaid, sf.DueDate, string(sf.Status), sf.ID)
	if err != nil {
		return fee.StudentFee{}, errors.Wrap(err, "updating student fee")
	}
	if n == 0 {
		return fee.StudentFee{}, fee.ErrNotFound
	}
	return repo.GetStudentFee(ctx, sf.ID)
}

func (repo *feeRepository) QueryStudentFees(ctx context.Context, filter fee.Filter, page core.Page) ([]fee.StudentFee, error) {
	var w where
	if len(filter.StudentIDs) > 0 {
		w.add("sf.student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if filter.StudentID != 0 {
		w.add("sf.student_id = ?", filter.StudentID)
	}
	if filter.HeadID != 0 {
		w.add("sf.head_id = ?", filter.HeadID)
	}
	if filter.Status != "" {
		w.add("sf.status = ?", string(filter.Status))
	}
	if filter.Unpaid {
		w.add("sf.status <> ?", string(fee.StatusPaid))
	}
	if !filter.DueBefore.IsZero() {
		w.add("sf.due_date < ?", filter.DueBefore)
	}

	var rows []studentFeeRow
	q := selectStudentFees + w.String() + " ORDER BY sf.due_date, sf.id" + paging(page)
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting student fees")
	}
	return studentFeesOf(rows), nil
}

// Payments

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	q := `INSERT INTO fee_payments (student_fee_id, amount, mode, reference, paid_at, recorded_by)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + paymentColumns
	var r paymentRow
	err := getRow(ctx, repo.conn(ctx), &r, q, p.StudentFeeID, p.Amount, p.Mode, nullString(p.Reference), p.PaidAt.UTC(), p.RecordedBy)
	if err != nil {
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return r.payment(), nil
}

func (repo *feeRepository) QueryPayments(ctx context.Context, studentFeeID int64) ([]fee.Payment, error) {
	var rows []paymentRow
	q := "SELECT " + paymentColumns + " FROM fee_payments WHERE student_fee_id = ? ORDER BY id"
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, studentFeeID); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	pmts := make([]fee.Payment, 0, len(rows))
	for _, r := range rows {
		pmts = append(pmts, r.payment())
	}
	return pmts, nil
}
