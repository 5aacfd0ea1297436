package attendance

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/report"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half_day"

	statusTag  = "attendance_status"
	statusText = "status must be one of present, absent, late, half_day"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay:
		return true
	}
	return false
}

// Record is the attendance of one student on one day; there is at most one per (student, date).
type Record struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	Date       core.Date `json:"date"`
	Status     Status    `json:"status"`
	Remark     string    `json:"remark,omitempty"`
	RecordedBy int64     `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type Entry struct {
	StudentID int64  `json:"student_id" validate:"required"`
	Status    Status `json:"status" validate:"required,attendance_status"`
	Remark    string `json:"remark"`
}

// Batch marks the attendance of several students of one section on one day.
type Batch struct {
	SectionID int64     `json:"section_id" validate:"required"`
	Date      core.Date `json:"date" validate:"required"`
	Entries   []Entry   `json:"entries" validate:"required,min=1,dive"`
}

func (b *Batch) Validate(validate *validator.Validate) error {
	for i := range b.Entries {
		b.Entries[i].Status = Status(core.CleanString(string(b.Entries[i].Status), true /* lower */))
		b.Entries[i].Remark = core.CleanString(b.Entries[i].Remark)
	}
	if err := validate.Struct(b); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(b.Entries))
	for _, e := range b.Entries {
		if _, ok := seen[e.StudentID]; ok {
			return core.NewValidationError(nil, core.FieldError{
				Field: "entries",
				Error: fmt.Sprintf("student %d is listed more than once", e.StudentID),
			})
		}
		seen[e.StudentID] = struct{}{}
	}
	return nil
}

type Filter struct {
	StudentIDs []int64
	From       core.Date
	To         core.Date
}

// StudentReport is the attendance of one student over a period.
type StudentReport struct {
	StudentID int64                    `json:"student_id"`
	Records   []Record                 `json:"records"`
	Summary   report.AttendanceSummary `json:"summary"`
}

// SectionDay is the attendance sheet of a section for one day; Status is empty for unmarked students.
type SectionDay struct {
	SectionID int64          `json:"section_id"`
	Date      core.Date      `json:"date"`
	Students  []SectionEntry `json:"students"`
}

type SectionEntry struct {
	StudentID int64  `json:"student_id"`
	Name      string `json:"name"`
	RollNo    string `json:"roll_no,omitempty"`
	Status    Status `json:"status,omitempty"`
	Remark    string `json:"remark,omitempty"`
}

type (
	Repository interface {
		// UpsertRecords saves records, replacing any existing record of the same (student, date).
		UpsertRecords(ctx context.Context, records []Record) ([]Record, error)
		QueryRecords(ctx context.Context, filter Filter) ([]Record, error)
	}

	Roster interface {
		StudentByID(ctx context.Context, id int64) (roster.Student, error)
		SectionStudents(ctx context.Context, sectionIDs ...int64) ([]roster.Student, error)
	}

	Service struct {
		repo   Repository
		tx     core.Transactor
		policy *policy.Policy
		roster Roster
	}
)

func NewService(repo Repository, tx core.Transactor, pol *policy.Policy, rstr Roster) *Service {
	return &Service{repo: repo, tx: tx, policy: pol, roster: rstr}
}

// Summarize aggregates records into an attendance summary.
func Summarize(records []Record) report.AttendanceSummary {
	var present, late, halfDay int
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			present++
		case StatusLate:
			late++
		case StatusHalfDay:
			halfDay++
		}
	}
	return report.NewAttendanceSummary(len(records), present, late, halfDay)
}

// Mark records a batch of attendance for one section and day. The batch is saved entirely or not at all.
func (svc *Service) Mark(ctx context.Context, caller user.User, batch Batch) ([]Record, error) {
	if err := svc.policy.May(ctx, caller, policy.MarkAttendance, policy.Target{SectionID: batch.SectionID}); err != nil {
		return nil, err
	}

	var saved []Record
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		students, err := svc.roster.SectionStudents(ctx, batch.SectionID)
		if err != nil {
			return err
		}
		inSection := make(map[int64]struct{}, len(students))
		for _, s := range students {
			inSection[s.ID] = struct{}{}
		}

		now := time.Now().UTC()
		records := make([]Record, 0, len(batch.Entries))
		for _, e := range batch.Entries {
			if _, ok := inSection[e.StudentID]; !ok {
				return core.NewValidationError(nil, core.FieldError{
					Field: "entries",
					Error: fmt.Sprintf("student %d does not belong to section %d", e.StudentID, batch.SectionID),
				})
			}
			records = append(records, Record{
				StudentID:  e.StudentID,
				Date:       batch.Date,
				Status:     e.Status,
				Remark:     e.Remark,
				RecordedBy: caller.ID,
				CreatedAt:  now,
			})
		}

		saved, err = svc.repo.UpsertRecords(ctx, records)
		return errors.Wrap(err, "saving attendance")
	})
	return saved, err
}

// StudentReport returns the records of a student between from and to (both optional, inclusive) with their summary.
func (svc *Service) StudentReport(ctx context.Context, caller user.User, studentID int64, from, to core.Date) (StudentReport, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAttendance, policy.Target{StudentID: studentID}); err != nil {
		return StudentReport{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return StudentReport{}, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "end date must not be before start date"})
	}
	if _, err := svc.roster.StudentByID(ctx, studentID); err != nil {
		return StudentReport{}, err
	}

	records, err := svc.repo.QueryRecords(ctx, Filter{StudentIDs: []int64{studentID}, From: from, To: to})
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []Record{}
	}
	return StudentReport{StudentID: studentID, Records: records, Summary: Summarize(records)}, nil
}

// Summary returns the attendance summary of a student without any access check, for aggregates.
func (svc *Service) Summary(ctx context.Context, studentID int64, from, to core.Date) (report.AttendanceSummary, error) {
	records, err := svc.repo.QueryRecords(ctx, Filter{StudentIDs: []int64{studentID}, From: from, To: to})
	if err != nil {
		return report.AttendanceSummary{}, errors.Wrap(err, "querying attendance")
	}
	return Summarize(records), nil
}

// DaySummary aggregates the attendance of the given students on one day, every student when none is given.
func (svc *Service) DaySummary(ctx context.Context, day core.Date, studentIDs ...int64) (report.AttendanceSummary, error) {
	filter := Filter{From: day, To: day, StudentIDs: studentIDs}
	records, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return report.AttendanceSummary{}, errors.Wrap(err, "querying attendance")
	}
	return Summarize(records), nil
}

// SectionDay returns the attendance sheet of a section for one day.
func (svc *Service) SectionDay(ctx context.Context, caller user.User, sectionID int64, day core.Date) (SectionDay, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAttendance, policy.Target{SectionID: sectionID}); err != nil {
		return SectionDay{}, err
	}
	if day.IsZero() {
		day = core.Today()
	}

	students, err := svc.roster.SectionStudents(ctx, sectionID)
	if err != nil {
		return SectionDay{}, err
	}
	sheet := SectionDay{SectionID: sectionID, Date: day, Students: make([]SectionEntry, 0, len(students))}
	if len(students) == 0 {
		return sheet, nil
	}

	ids := make([]int64, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	records, err := svc.repo.QueryRecords(ctx, Filter{StudentIDs: ids, From: day, To: day})
	if err != nil {
		return SectionDay{}, errors.Wrap(err, "querying attendance")
	}
	byStudent := make(map[int64]Record, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	for _, s := range students {
		entry := SectionEntry{StudentID: s.ID, Name: s.Name, RollNo: s.RollNo}
		if r, ok := byStudent[s.ID]; ok {
			entry.Status = r.Status
			entry.Remark = r.Remark
		}
		sheet.Students = append(sheet.Students, entry)
	}
	return sheet, nil
}

// InitValidators registers the attendance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
