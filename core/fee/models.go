package fee

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/report"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// StatusOf derives the status of a fee from the amounts due and paid.
func StatusOf(due, paid float64) Status {
	switch {
	case paid >= due:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

type Head struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// StudentFee is an amount a student owes under a fee head.
type StudentFee struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	HeadID     int64     `json:"head_id"`
	HeadName   string    `json:"head_name,omitempty"` // read-only
	AmountDue  float64   `json:"amount_due"`
	AmountPaid float64   `json:"amount_paid"`
	DueDate    core.Date `json:"due_date"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func (sf StudentFee) Balance() float64 {
	return report.Round2(sf.AmountDue - sf.AmountPaid)
}

// IsOverdue reports whether the fee is not fully paid and due before asOf.
func (sf StudentFee) IsOverdue(asOf core.Date) bool {
	return sf.Status != StatusPaid && sf.DueDate.Before(asOf)
}

type Payment struct {
	ID           int64     `json:"id"`
	StudentFeeID int64     `json:"student_fee_id"`
	Amount       float64   `json:"amount"`
	Mode         string    `json:"mode"`
	Reference    string    `json:"reference,omitempty"`
	PaidAt       time.Time `json:"paid_at"`
	RecordedBy   int64     `json:"recorded_by"`
}

// Totals aggregates every student fee.
type Totals struct {
	Pending   int     `json:"pending"`
	Partial   int     `json:"partial"`
	Paid      int     `json:"paid"`
	TotalDue  float64 `json:"total_due"`
	TotalPaid float64 `json:"total_paid"`
}

type NewHead struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

func (nh *NewHead) Validate(validate *validator.Validate) error {
	nh.Name = core.CleanString(nh.Name)
	nh.Description = core.CleanString(nh.Description)
	return validate.Struct(nh)
}

// AssignFee charges a fee head to the listed students, or to every student of a section.
type AssignFee struct {
	HeadID     int64     `json:"head_id" validate:"required"`
	StudentIDs []int64   `json:"student_ids" validate:"required_without=SectionID"`
	SectionID  int64     `json:"section_id" validate:"required_without=StudentIDs"`
	AmountDue  float64   `json:"amount_due" validate:"required,gt=0"`
	DueDate    core.Date `json:"due_date" validate:"required"`
}

func (af *AssignFee) Validate(validate *validator.Validate) error {
	af.AmountDue = report.Round2(af.AmountDue)
	af.StudentIDs = core.UniqueIDs(af.StudentIDs)
	return validate.Struct(af)
}

type NewPayment struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Mode      string  `json:"mode" validate:"required,oneof=cash bank card online cheque"`
	Reference string  `json:"reference" validate:"max=100"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Amount = report.Round2(np.Amount)
	np.Mode = core.CleanString(np.Mode, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	return validate.Struct(np)
}

type Filter struct {
	StudentIDs []int64 `query:"-"`
	StudentID  int64   `query:"student_id"`
	HeadID     int64   `query:"head_id"`
	Status     Status  `query:"status"`
	// DueBefore keeps fees due strictly before the date.
	DueBefore core.Date `query:"due_before"`
	Unpaid    bool      `query:"unpaid"`
}
