package announcement

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
)

type TargetType string

const (
	TargetAll     TargetType = "all"
	TargetRole    TargetType = "role"
	TargetClass   TargetType = "class"
	TargetSection TargetType = "section"
)

type Announcement struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	TargetType TargetType `json:"target_type"`
	TargetRole user.Role  `json:"target_role,omitempty"`
	TargetID   int64      `json:"target_id,omitempty"` // class or section id
	CreatedBy  int64      `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

type NewAnnouncement struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Message    string     `json:"message" validate:"required"`
	TargetType TargetType `json:"target_type" validate:"omitempty,oneof=all role class section"`
	TargetRole user.Role  `json:"target_role" validate:"omitempty,role"`
	TargetID   int64      `json:"target_id"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Message = core.CleanString(na.Message)
	na.TargetType = TargetType(core.CleanString(string(na.TargetType), true /* lower */))
	if na.TargetType == "" {
		na.TargetType = TargetAll
	}
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.TargetType == TargetRole && na.TargetRole == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "target_role", Error: "target_role is required"})
	}
	if (na.TargetType == TargetClass || na.TargetType == TargetSection) && na.TargetID == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "target_id", Error: "target_id is required"})
	}
	return nil
}

// Audience selects the announcements addressed to someone: those to everyone, to Role, or to any of the sections or classes.
type Audience struct {
	All        bool // every announcement, regardless of target
	Role       user.Role
	SectionIDs []int64
	ClassIDs   []int64
}

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		// QueryAnnouncements returns the announcements visible to the audience, newest first.
		QueryAnnouncements(ctx context.Context, audience Audience, page core.Page) ([]Announcement, error)
	}

	UserService interface {
		IDsByRole(ctx context.Context, roles ...user.Role) ([]int64, error)
	}

	Sections interface {
		SectionIDsOfClass(ctx context.Context, classID int64) ([]int64, error)
		ClassIDsOfSections(ctx context.Context, sectionIDs ...int64) ([]int64, error)
		TeacherSectionIDs(ctx context.Context, teacherID int64) ([]int64, error)
		SectionTeacherIDs(ctx context.Context, sectionIDs ...int64) ([]int64, error)
	}

	Roster interface {
		StudentByUserID(ctx context.Context, userID int64) (roster.Student, error)
		SectionStudents(ctx context.Context, sectionIDs ...int64) ([]roster.Student, error)
		ChildrenOfUser(ctx context.Context, parentUserID int64) ([]roster.Student, error)
		GuardianUserIDs(ctx context.Context, student roster.Student) ([]int64, error)
	}

	Notifier interface {
		Notify(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
		NotifyAll(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		policy   *policy.Policy
		users    UserService
		sections Sections
		roster   Roster
		notifier Notifier
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	pol *policy.Policy,
	users UserService,
	sections Sections,
	rstr Roster,
	notifier Notifier,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		policy:   pol,
		users:    users,
		sections: sections,
		roster:   rstr,
		notifier: notifier,
	}
}

// Create publishes an announcement and notifies its audience. Announcements to everyone are also broadcast live.
func (svc *Service) Create(ctx context.Context, caller user.User, na NewAnnouncement) (Announcement, error) {
	if err := svc.policy.May(ctx, caller, policy.CreateAnnouncement, policy.Target{}); err != nil {
		return Announcement{}, err
	}

	var ann Announcement
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		recipients, err := svc.recipients(ctx, na)
		if err != nil {
			return err
		}

		ann, err = svc.repo.CreateAnnouncement(ctx, Announcement{
			Title:      na.Title,
			Message:    na.Message,
			TargetType: na.TargetType,
			TargetRole: na.TargetRole,
			TargetID:   na.TargetID,
			CreatedBy:  caller.ID,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return errors.Wrap(err, "creating announcement")
		}

		notice := notification.Notice{
			Type:        notification.TypeAnnouncement,
			ReferenceID: ann.ID,
			Message:     fmt.Sprintf("New announcement: %s", ann.Title),
		}
		if ann.TargetType == TargetAll {
			_, err = svc.notifier.NotifyAll(ctx, recipients, notice)
		} else {
			_, err = svc.notifier.Notify(ctx, recipients, notice)
		}
		return err
	})
	return ann, err
}

func (svc *Service) recipients(ctx context.Context, na NewAnnouncement) ([]int64, error) {
	switch na.TargetType {
	case TargetRole:
		return svc.users.IDsByRole(ctx, na.TargetRole)
	case TargetClass, TargetSection:
		sectionIDs := []int64{na.TargetID}
		if na.TargetType == TargetClass {
			var err error
			if sectionIDs, err = svc.sections.SectionIDsOfClass(ctx, na.TargetID); err != nil {
				return nil, err
			}
		}
		students, err := svc.roster.SectionStudents(ctx, sectionIDs...)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(students)*2)
		for _, s := range students {
			guardians, err := svc.roster.GuardianUserIDs(ctx, s)
			if err != nil {
				return nil, err
			}
			ids = append(ids, guardians...)
		}
		teachers, err := svc.sections.SectionTeacherIDs(ctx, sectionIDs...)
		if err != nil {
			return nil, err
		}
		return core.UniqueIDs(append(ids, teachers...)), nil
	default:
		return svc.users.IDsByRole(ctx, user.AllRoles...)
	}
}

// List returns the announcements addressed to the caller, newest first. Admins see every announcement.
func (svc *Service) List(ctx context.Context, caller user.User, page core.Page) ([]Announcement, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAnnouncements, policy.Target{}); err != nil {
		return nil, err
	}
	page.Clean()

	audience, err := svc.audienceOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	anns, err := svc.repo.QueryAnnouncements(ctx, audience, page)
	return anns, errors.Wrap(err, "querying announcements")
}

func (svc *Service) audienceOf(ctx context.Context, caller user.User) (Audience, error) {
	audience := Audience{Role: caller.Role}
	var sectionIDs []int64

	switch {
	case caller.IsAdmin():
		audience.All = true
		return audience, nil
	case caller.IsTeacher():
		ids, err := svc.sections.TeacherSectionIDs(ctx, caller.ID)
		if err != nil {
			return Audience{}, err
		}
		sectionIDs = ids
	case caller.IsStudent():
		me, err := svc.roster.StudentByUserID(ctx, caller.ID)
		if err != nil && !core.IsNotFound(err) {
			return Audience{}, err
		}
		if err == nil {
			sectionIDs = []int64{me.SectionID}
		}
	case caller.IsParent():
		children, err := svc.roster.ChildrenOfUser(ctx, caller.ID)
		if err != nil {
			return Audience{}, err
		}
		for _, c := range children {
			sectionIDs = append(sectionIDs, c.SectionID)
		}
	}

	if len(sectionIDs) > 0 {
		classIDs, err := svc.sections.ClassIDsOfSections(ctx, sectionIDs...)
		if err != nil {
			return Audience{}, err
		}
		audience.SectionIDs = core.UniqueIDs(sectionIDs)
		audience.ClassIDs = classIDs
	}
	return audience, nil
}
