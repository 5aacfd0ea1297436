package academic

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

type (
	Period struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		StartDate core.Date `json:"start_date"`
		EndDate   core.Date `json:"end_date"`
		IsActive  bool      `json:"is_active"`
	}

	ClassGroup struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		PeriodID int64  `json:"period_id,omitempty"`
	}

	Section struct {
		ID             int64  `json:"id"`
		ClassID        int64  `json:"class_id"`
		Name           string `json:"name"`
		Capacity       int    `json:"capacity"`
		ClassTeacherID int64  `json:"class_teacher_id,omitempty"` // identity of the class teacher
	}

	Subject struct {
		ID      int64  `json:"id"`
		ClassID int64  `json:"class_id"`
		Name    string `json:"name"`
		Code    string `json:"code"`
	}

	// Assignment states that a teacher identity teaches a subject in a section.
	Assignment struct {
		ID        int64 `json:"id"`
		TeacherID int64 `json:"teacher_id"`
		SubjectID int64 `json:"subject_id"`
		SectionID int64 `json:"section_id"`
	}

	ClassWithSections struct {
		ClassGroup
		Sections []Section `json:"sections"`
	}
)

const defaultSectionCapacity = 40

type NewPeriod struct {
	Name      string    `json:"name" validate:"required"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
	IsActive  bool      `json:"is_active"`
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.EndDate.After(np.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must be after start date"})
	}
	return nil
}

type NewClass struct {
	Name     string `json:"name" validate:"required"`
	PeriodID int64  `json:"period_id"`
	// Sections is a comma separated list of section names, eg. "A,B,C".
	Sections string `json:"sections"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type NewSection struct {
	ClassID        int64  `json:"class_id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Capacity       int    `json:"capacity" validate:"gte=0"`
	ClassTeacherID int64  `json:"class_teacher_id"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type NewSubject struct {
	ClassID int64  `json:"class_id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Code    string `json:"code" validate:"required,alphanum_"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	return validate.Struct(ns)
}

type NewAssignment struct {
	TeacherID int64 `json:"teacher_id" validate:"required"`
	SubjectID int64 `json:"subject_id" validate:"required"`
	SectionID int64 `json:"section_id" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	return validate.Struct(na)
}

type AssignmentFilter struct {
	TeacherID int64 `query:"teacher_id"`
	SectionID int64 `query:"section_id"`
	SubjectID int64 `query:"subject_id"`
}
