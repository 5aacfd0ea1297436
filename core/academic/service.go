package academic

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/user"
)

var (
	ErrPeriodNotFound     = core.NewNotFoundError("academic period")
	ErrClassNotFound      = core.NewNotFoundError("class")
	ErrSectionNotFound    = core.NewNotFoundError("section")
	ErrSubjectNotFound    = core.NewNotFoundError("subject")
	ErrSubjectCodeExists  = core.NewConflictError("a subject with this code already exists")
	ErrSectionExists      = core.NewConflictError("a section with this name already exists in this class")
	ErrAssignmentExists   = core.NewConflictError("this teacher is already assigned to this subject and section")
	errNotATeacher        = "user is not an active teacher"
	errSubjectOutOfClass  = "subject does not belong to the section's class"
	errUnknownPeriodField = "academic period not found"
)

type (
	Repository interface {
		CreatePeriod(ctx context.Context, p Period) (Period, error)
		GetPeriod(ctx context.Context, id int64) (Period, error)
		QueryPeriods(ctx context.Context) ([]Period, error)
		// ActivatePeriod marks period id as the only active one.
		ActivatePeriod(ctx context.Context, id int64) error

		CreateClass(ctx context.Context, c ClassGroup) (ClassGroup, error)
		GetClass(ctx context.Context, id int64) (ClassGroup, error)
		QueryClasses(ctx context.Context, periodID int64) ([]ClassGroup, error)

		// CreateSection returns ErrSectionExists if the class already has a section with that name.
		CreateSection(ctx context.Context, s Section) (Section, error)
		GetSection(ctx context.Context, id int64) (Section, error)
		QuerySections(ctx context.Context, classID int64) ([]Section, error)
		UpdateSection(ctx context.Context, s Section) (Section, error)

		// CreateSubject returns ErrSubjectCodeExists if the code is taken.
		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubject(ctx context.Context, id int64) (Subject, error)
		QuerySubjects(ctx context.Context, classID int64) ([]Subject, error)

		// CreateAssignment returns ErrAssignmentExists if the triple is already recorded.
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
	}

	Service struct {
		repo   Repository
		tx     core.Transactor
		policy *policy.Policy
		users  UserGetter
	}
)

func NewService(repo Repository, tx core.Transactor, pol *policy.Policy, users UserGetter) *Service {
	return &Service{repo: repo, tx: tx, policy: pol, users: users}
}

// Periods

func (svc *Service) CreatePeriod(ctx context.Context, caller user.User, np NewPeriod) (Period, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Period{}, err
	}

	var period Period
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		period, err = svc.repo.CreatePeriod(ctx, Period{Name: np.Name, StartDate: np.StartDate, EndDate: np.EndDate})
		if err != nil {
			return errors.Wrap(err, "creating period")
		}
		if np.IsActive {
			if err = svc.repo.ActivatePeriod(ctx, period.ID); err != nil {
				return errors.Wrap(err, "activating period")
			}
			period.IsActive = true
		}
		return nil
	})
	return period, err
}

func (svc *Service) ActivatePeriod(ctx context.Context, caller user.User, id int64) (Period, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Period{}, err
	}

	var period Period
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if period, err = svc.repo.GetPeriod(ctx, id); err != nil {
			return err
		}
		if err = svc.repo.ActivatePeriod(ctx, id); err != nil {
			return errors.Wrap(err, "activating period")
		}
		period.IsActive = true
		return nil
	})
	return period, err
}

func (svc *Service) ListPeriods(ctx context.Context, caller user.User) ([]Period, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	periods, err := svc.repo.QueryPeriods(ctx)
	return periods, errors.Wrap(err, "querying periods")
}

// ActivePeriodID returns the id of the active period, 0 when none is active.
func (svc *Service) ActivePeriodID(ctx context.Context) (int64, error) {
	periods, err := svc.repo.QueryPeriods(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying periods")
	}
	for _, p := range periods {
		if p.IsActive {
			return p.ID, nil
		}
	}
	return 0, nil
}

// Classes & Sections

// CreateClass creates a class and, in the same transaction, one section per name listed in nc.Sections.
func (svc *Service) CreateClass(ctx context.Context, caller user.User, nc NewClass) (ClassWithSections, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return ClassWithSections{}, err
	}

	capacity := nc.Capacity
	if capacity == 0 {
		capacity = defaultSectionCapacity
	}

	var res ClassWithSections
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if nc.PeriodID != 0 {
			if _, err := svc.repo.GetPeriod(ctx, nc.PeriodID); err != nil {
				if core.IsNotFound(err) {
					return core.NewValidationError(nil, core.FieldError{Field: "period_id", Error: errUnknownPeriodField})
				}
				return err
			}
		}

		class, err := svc.repo.CreateClass(ctx, ClassGroup{Name: nc.Name, PeriodID: nc.PeriodID})
		if err != nil {
			return errors.Wrap(err, "creating class")
		}
		res.ClassGroup = class
		res.Sections = make([]Section, 0)

		for _, name := range core.SplitList(nc.Sections) {
			sec, err := svc.repo.CreateSection(ctx, Section{ClassID: class.ID, Name: name, Capacity: capacity})
			if err != nil {
				return errors.Wrapf(err, "creating section %q", name)
			}
			res.Sections = append(res.Sections, sec)
		}
		return nil
	})
	return res, err
}

func (svc *Service) ListClasses(ctx context.Context, caller user.User, periodID int64) ([]ClassGroup, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	classes, err := svc.repo.QueryClasses(ctx, periodID)
	return classes, errors.Wrap(err, "querying classes")
}

func (svc *Service) CreateSection(ctx context.Context, caller user.User, ns NewSection) (Section, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Section{}, err
	}
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Section{}, err
	}
	if ns.ClassTeacherID != 0 {
		if err := svc.checkTeacher(ctx, ns.ClassTeacherID, "class_teacher_id"); err != nil {
			return Section{}, err
		}
	}
	if ns.Capacity == 0 {
		ns.Capacity = defaultSectionCapacity
	}
	return svc.repo.CreateSection(ctx, Section{
		ClassID:        ns.ClassID,
		Name:           ns.Name,
		Capacity:       ns.Capacity,
		ClassTeacherID: ns.ClassTeacherID,
	})
}

func (svc *Service) GetSection(ctx context.Context, caller user.User, id int64) (Section, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return Section{}, err
	}
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) ListSections(ctx context.Context, caller user.User, classID int64) ([]Section, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	sections, err := svc.repo.QuerySections(ctx, classID)
	return sections, errors.Wrap(err, "querying sections")
}

// SectionCapacity returns the capacity of the section, 0 meaning unlimited.
func (svc *Service) SectionCapacity(ctx context.Context, sectionID int64) (int, error) {
	sec, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return 0, err
	}
	return sec.Capacity, nil
}

// SectionIDsOfClass returns the ids of every section of the class.
func (svc *Service) SectionIDsOfClass(ctx context.Context, classID int64) ([]int64, error) {
	sections, err := svc.repo.QuerySections(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	ids := make([]int64, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// ClassIDsOfSections returns the classes the given sections belong to.
func (svc *Service) ClassIDsOfSections(ctx context.Context, sectionIDs ...int64) ([]int64, error) {
	if len(sectionIDs) == 0 {
		return []int64{}, nil
	}
	want := make(map[int64]struct{}, len(sectionIDs))
	for _, id := range sectionIDs {
		want[id] = struct{}{}
	}
	sections, err := svc.repo.QuerySections(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	ids := make([]int64, 0, len(sectionIDs))
	for _, s := range sections {
		if _, ok := want[s.ID]; ok {
			ids = append(ids, s.ClassID)
		}
	}
	return core.UniqueIDs(ids), nil
}

// Counts returns the number of classes and sections.
func (svc *Service) Counts(ctx context.Context) (classes, sections int, err error) {
	cls, err := svc.repo.QueryClasses(ctx, 0)
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying classes")
	}
	secs, err := svc.repo.QuerySections(ctx, 0)
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying sections")
	}
	return len(cls), len(secs), nil
}

// SetClassTeacher designates teacherID (0 to unset) as the class teacher of the section.
func (svc *Service) SetClassTeacher(ctx context.Context, caller user.User, sectionID, teacherID int64) (Section, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Section{}, err
	}
	sec, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return Section{}, err
	}
	if teacherID != 0 {
		if err = svc.checkTeacher(ctx, teacherID, "teacher_id"); err != nil {
			return Section{}, err
		}
	}
	sec.ClassTeacherID = teacherID
	sec, err = svc.repo.UpdateSection(ctx, sec)
	return sec, errors.Wrap(err, "updating section")
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, caller user.User, ns NewSubject) (Subject, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Subject{}, err
	}
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Subject{}, err
	}
	return svc.repo.CreateSubject(ctx, Subject{ClassID: ns.ClassID, Name: ns.Name, Code: ns.Code})
}

func (svc *Service) ListSubjects(ctx context.Context, caller user.User, classID int64) ([]Subject, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	subjects, err := svc.repo.QuerySubjects(ctx, classID)
	return subjects, errors.Wrap(err, "querying subjects")
}

func (svc *Service) GetSubject(ctx context.Context, id int64) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

// Teacher assignments

func (svc *Service) AssignTeacher(ctx context.Context, caller user.User, na NewAssignment) (Assignment, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageAcademics, policy.Target{}); err != nil {
		return Assignment{}, err
	}
	if err := svc.checkTeacher(ctx, na.TeacherID, "teacher_id"); err != nil {
		return Assignment{}, err
	}
	sec, err := svc.repo.GetSection(ctx, na.SectionID)
	if err != nil {
		return Assignment{}, err
	}
	subj, err := svc.repo.GetSubject(ctx, na.SubjectID)
	if err != nil {
		return Assignment{}, err
	}
	if subj.ClassID != sec.ClassID {
		return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: errSubjectOutOfClass})
	}
	return svc.repo.CreateAssignment(ctx, Assignment{TeacherID: na.TeacherID, SubjectID: na.SubjectID, SectionID: na.SectionID})
}

// ListAssignments returns teacher assignments; teachers only see their own.
func (svc *Service) ListAssignments(ctx context.Context, caller user.User, filter AssignmentFilter) ([]Assignment, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadAcademics, policy.Target{}); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		if !caller.IsTeacher() {
			return nil, core.ErrForbidden
		}
		filter.TeacherID = caller.ID
	}
	assignments, err := svc.repo.QueryAssignments(ctx, filter)
	return assignments, errors.Wrap(err, "querying assignments")
}

// TeacherSectionIDs returns the sections a teacher is assigned to or is the class teacher of.
func (svc *Service) TeacherSectionIDs(ctx context.Context, teacherID int64) ([]int64, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.SectionID)
	}
	sections, err := svc.repo.QuerySections(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	for _, s := range sections {
		if s.ClassTeacherID == teacherID {
			ids = append(ids, s.ID)
		}
	}
	return core.UniqueIDs(ids), nil
}

// SectionTeacherIDs returns the teachers assigned to any of the sections, class teachers included.
func (svc *Service) SectionTeacherIDs(ctx context.Context, sectionIDs ...int64) ([]int64, error) {
	wanted := make(map[int64]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		wanted[id] = true
	}

	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	var ids []int64
	for _, a := range assignments {
		if wanted[a.SectionID] {
			ids = append(ids, a.TeacherID)
		}
	}
	sections, err := svc.repo.QuerySections(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	for _, s := range sections {
		if wanted[s.ID] && s.ClassTeacherID != 0 {
			ids = append(ids, s.ClassTeacherID)
		}
	}
	return core.UniqueIDs(ids), nil
}

func (svc *Service) checkTeacher(ctx context.Context, id int64, field string) error {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: errNotATeacher})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() || !usr.IsActive {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: errNotATeacher})
	}
	return nil
}
