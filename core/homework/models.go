package homework

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusGraded    SubmissionStatus = "graded"
)

type Homework struct {
	ID                int64     `json:"id"`
	SectionID         int64     `json:"section_id"`
	SubjectID         int64     `json:"subject_id"`
	TeacherID         int64     `json:"teacher_id"` // author identity
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	DueDate           core.Date `json:"due_date"`
	AttachmentURL     string    `json:"attachment_url,omitempty"`
	AllowResubmission bool      `json:"allow_resubmission"`
	CreatedAt         time.Time `json:"created_at"`
}

// Submission is the work of one student for one homework; there is at most one per (homework, student).
type Submission struct {
	ID          int64            `json:"id"`
	HomeworkID  int64            `json:"homework_id"`
	StudentID   int64            `json:"student_id"`
	Text        string           `json:"text,omitempty"`
	FileURL     string           `json:"file_url,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Marks       *float64         `json:"marks"`
	Feedback    string           `json:"feedback,omitempty"`
	Status      SubmissionStatus `json:"status"`
}

type NewHomework struct {
	SectionID         int64     `json:"section_id" form:"section_id" validate:"required"`
	SubjectID         int64     `json:"subject_id" form:"subject_id" validate:"required"`
	Title             string    `json:"title" form:"title" validate:"required,max=200"`
	Description       string    `json:"description" form:"description"`
	DueDate           core.Date `json:"due_date" form:"due_date" validate:"required"`
	AllowResubmission bool      `json:"allow_resubmission" form:"allow_resubmission"`
	AttachmentURL     string    `json:"-" form:"-"`
}

func (nh *NewHomework) Validate(validate *validator.Validate) error {
	nh.Title = core.CleanString(nh.Title)
	nh.Description = core.CleanString(nh.Description)
	return validate.Struct(nh)
}

type NewSubmission struct {
	Text    string `json:"text" form:"text"`
	FileURL string `json:"-" form:"-"`
}

func (ns *NewSubmission) Validate() error {
	ns.Text = core.CleanString(ns.Text)
	if ns.Text == "" && ns.FileURL == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "text", Error: "a text or a file is required"})
	}
	return nil
}

type GradeSubmission struct {
	Marks    *float64 `json:"marks" validate:"required,gte=0"`
	Feedback string   `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type Filter struct {
	SectionIDs []int64   `query:"-"`
	SectionID  int64     `query:"section_id"`
	SubjectID  int64     `query:"subject_id"`
	TeacherID  int64     `query:"teacher_id"`
	DueFrom    core.Date `query:"due_from"`
}

type SubmissionFilter struct {
	HomeworkIDs []int64
	StudentID   int64
	Status      SubmissionStatus
}
