package roster

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/user"
)

var (
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrTeacherNotFound    = core.NewNotFoundError("teacher")
	ErrParentNotFound     = core.NewNotFoundError("parent")
	ErrAdmissionNoExists  = core.NewConflictError("a student with this admission number already exists")
	ErrEmployeeIDExists   = core.NewConflictError("a teacher with this employee id already exists")
	ErrAlreadyLinked      = core.NewConflictError("this parent is already linked to this student")
	errUnknownSection     = "section not found"
	errSectionFull        = "section is full"
	errUnknownStudentsFmt = "student %d not found"
)

type (
	Repository interface {
		// CreateStudent returns ErrAdmissionNoExists if the admission number is taken.
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		GetStudentByUserID(ctx context.Context, userID int64) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter, page core.Page) ([]Student, error)
		CountStudents(ctx context.Context, filter StudentFilter) (int, error)

		// CreateTeacher returns ErrEmployeeIDExists if the employee id is taken.
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id int64) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		QueryTeachers(ctx context.Context, page core.Page) ([]Teacher, error)

		CreateParent(ctx context.Context, p Parent) (Parent, error)
		GetParent(ctx context.Context, id int64) (Parent, error)
		GetParentByUserID(ctx context.Context, userID int64) (Parent, error)
		QueryParents(ctx context.Context, page core.Page) ([]Parent, error)
		// LinkParent returns ErrAlreadyLinked if the link exists.
		LinkParent(ctx context.Context, parentID, studentID int64) error
		ChildrenOf(ctx context.Context, parentID int64) ([]Student, error)
		ParentsOf(ctx context.Context, studentID int64) ([]Parent, error)
	}

	UserService interface {
		Create(ctx context.Context, nu user.NewUser) (user.User, error)
		IDsByRole(ctx context.Context, roles ...user.Role) ([]int64, error)
	}

	SectionGetter interface {
		SectionCapacity(ctx context.Context, sectionID int64) (int, error)
		TeacherSectionIDs(ctx context.Context, teacherID int64) ([]int64, error)
	}

	Notifier interface {
		Notify(ctx context.Context, recipients []int64, notice notification.Notice) ([]notification.Notification, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		policy   *policy.Policy
		users    UserService
		sections SectionGetter
		notifier Notifier
	}
)

func NewService(repo Repository, tx core.Transactor, pol *policy.Policy, users UserService, sections SectionGetter, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		policy:   pol,
		users:    users,
		sections: sections,
		notifier: notifier,
	}
}

// Students

// CreateStudent creates the student identity and profile atomically, then notifies the admins.
func (svc *Service) CreateStudent(ctx context.Context, caller user.User, ns NewStudent) (Student, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return Student{}, err
	}

	var student Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		capacity, err := svc.sections.SectionCapacity(ctx, ns.SectionID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: errUnknownSection})
			}
			return errors.Wrap(err, "finding section")
		}
		if capacity > 0 {
			cnt, err := svc.repo.CountStudents(ctx, StudentFilter{SectionID: ns.SectionID})
			if err != nil {
				return errors.Wrap(err, "counting students")
			}
			if cnt >= capacity {
				return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: errSectionFull})
			}
		}

		usr, err := svc.users.Create(ctx, ns.newUser(user.RoleStudent))
		if err != nil {
			return err
		}
		student, err = svc.repo.CreateStudent(ctx, Student{
			UserID:      usr.ID,
			SectionID:   ns.SectionID,
			AdmissionNo: ns.AdmissionNo,
			RollNo:      ns.RollNo,
			DateOfBirth: ns.DateOfBirth,
			Gender:      ns.Gender,
			Address:     ns.Address,
			Name:        usr.Name,
			Email:       usr.Email,
		})
		if err != nil {
			return err
		}

		admins, err := svc.users.IDsByRole(ctx, user.AdminRoles...)
		if err != nil {
			return err
		}
		_, err = svc.notifier.Notify(ctx, admins, notification.Notice{
			Type:        notification.TypeStudent,
			ReferenceID: student.ID,
			Message:     fmt.Sprintf("New student %s (%s) was admitted", student.Name, student.AdmissionNo),
		})
		return err
	})
	return student, err
}

// GetStudent returns a student profile the caller may read.
// Out of scope and missing profiles are both reported as core.ErrForbidden to non-admins.
func (svc *Service) GetStudent(ctx context.Context, caller user.User, id int64) (Student, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadStudent, policy.Target{StudentID: id}); err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudent(ctx, id)
}

// ListStudents lists the students visible to the caller: teachers see their sections, parents their children,
// students themselves.
func (svc *Service) ListStudents(ctx context.Context, caller user.User, filter StudentFilter, page core.Page) ([]Student, error) {
	page.Clean()
	filter.Clean()

	switch {
	case svc.policy.Can(ctx, caller, policy.ListStudents, policy.Target{}):
		if caller.IsTeacher() {
			sectionIDs, err := svc.sections.TeacherSectionIDs(ctx, caller.ID)
			if err != nil {
				return nil, errors.Wrap(err, "finding teacher sections")
			}
			if len(sectionIDs) == 0 {
				return []Student{}, nil
			}
			filter.SectionIDs = sectionIDs
		}
	case caller.IsParent():
		parent, err := svc.repo.GetParentByUserID(ctx, caller.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return []Student{}, nil
			}
			return nil, err
		}
		children, err := svc.repo.ChildrenOf(ctx, parent.ID)
		if err != nil {
			return nil, errors.Wrap(err, "finding children")
		}
		if len(children) == 0 {
			return []Student{}, nil
		}
		for _, c := range children {
			filter.IDs = append(filter.IDs, c.ID)
		}
	case caller.IsStudent():
		me, err := svc.repo.GetStudentByUserID(ctx, caller.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return []Student{}, nil
			}
			return nil, err
		}
		filter.IDs = []int64{me.ID}
	default:
		return nil, core.ErrForbidden
	}

	students, err := svc.repo.QueryStudents(ctx, filter, page)
	return students, errors.Wrap(err, "querying students")
}

// StudentByUserID returns the student profile of a student identity.
func (svc *Service) StudentByUserID(ctx context.Context, userID int64) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

// StudentByID returns a student profile without any access check, for internal lookups.
func (svc *Service) StudentByID(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// SectionStudents returns every student of the given sections.
func (svc *Service) SectionStudents(ctx context.Context, sectionIDs ...int64) ([]Student, error) {
	if len(sectionIDs) == 0 {
		return []Student{}, nil
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{SectionIDs: sectionIDs}, core.Page{})
	return students, errors.Wrap(err, "querying section students")
}

// StudentsByIDs returns the students with the given ids; missing ids are reported as a validation error.
func (svc *Service) StudentsByIDs(ctx context.Context, ids ...int64) (map[int64]Student, error) {
	ids = core.UniqueIDs(ids)
	res := make(map[int64]Student, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{IDs: ids}, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for _, s := range students {
		res[s.ID] = s
	}
	for _, id := range ids {
		if _, ok := res[id]; !ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: fmt.Sprintf(errUnknownStudentsFmt, id)})
		}
	}
	return res, nil
}

// GuardianUserIDs returns the identities of the student and of every linked parent.
func (svc *Service) GuardianUserIDs(ctx context.Context, student Student) ([]int64, error) {
	parents, err := svc.repo.ParentsOf(ctx, student.ID)
	if err != nil {
		return nil, errors.Wrap(err, "finding parents")
	}
	ids := make([]int64, 0, len(parents)+1)
	ids = append(ids, student.UserID)
	for _, p := range parents {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (svc *Service) CountStudents(ctx context.Context, filter StudentFilter) (int, error) {
	cnt, err := svc.repo.CountStudents(ctx, filter)
	return cnt, errors.Wrap(err, "counting students")
}

// Teachers

func (svc *Service) CreateTeacher(ctx context.Context, caller user.User, nt NewTeacher) (Teacher, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return Teacher{}, err
	}

	var teacher Teacher
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		usr, err := svc.users.Create(ctx, nt.newUser(user.RoleTeacher))
		if err != nil {
			return err
		}
		teacher, err = svc.repo.CreateTeacher(ctx, Teacher{
			UserID:         usr.ID,
			EmployeeID:     nt.EmployeeID,
			Qualification:  nt.Qualification,
			Specialization: nt.Specialization,
			Experience:     nt.Experience,
			Name:           usr.Name,
			Email:          usr.Email,
		})
		return err
	})
	return teacher, err
}

func (svc *Service) UpdateTeacher(ctx context.Context, caller user.User, id int64, ut UpdateTeacher) (Teacher, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return Teacher{}, err
	}
	teacher, err := svc.repo.GetTeacher(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if ut.Qualification != nil {
		teacher.Qualification = core.CleanString(*ut.Qualification)
	}
	if ut.Specialization != nil {
		teacher.Specialization = core.CleanString(*ut.Specialization)
	}
	if ut.Experience != nil {
		teacher.Experience = *ut.Experience
	}
	teacher, err = svc.repo.UpdateTeacher(ctx, teacher)
	return teacher, errors.Wrap(err, "updating teacher")
}

func (svc *Service) ListTeachers(ctx context.Context, caller user.User, page core.Page) ([]Teacher, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return nil, err
	}
	page.Clean()
	teachers, err := svc.repo.QueryTeachers(ctx, page)
	return teachers, errors.Wrap(err, "querying teachers")
}

// Parents

func (svc *Service) CreateParent(ctx context.Context, caller user.User, np NewParent) (Parent, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return Parent{}, err
	}

	var parent Parent
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.StudentsByIDs(ctx, np.StudentIDs...); err != nil {
			return err
		}
		usr, err := svc.users.Create(ctx, np.newUser(user.RoleParent))
		if err != nil {
			return err
		}
		parent, err = svc.repo.CreateParent(ctx, Parent{
			UserID:   usr.ID,
			Relation: np.Relation,
			Name:     usr.Name,
			Email:    usr.Email,
			Phone:    usr.Phone,
		})
		if err != nil {
			return err
		}
		for _, sid := range core.UniqueIDs(np.StudentIDs) {
			if err = svc.repo.LinkParent(ctx, parent.ID, sid); err != nil {
				return err
			}
		}
		return nil
	})
	return parent, err
}

func (svc *Service) ListParents(ctx context.Context, caller user.User, page core.Page) ([]Parent, error) {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return nil, err
	}
	page.Clean()
	parents, err := svc.repo.QueryParents(ctx, page)
	return parents, errors.Wrap(err, "querying parents")
}

func (svc *Service) LinkParent(ctx context.Context, caller user.User, parentID, studentID int64) error {
	if err := svc.policy.May(ctx, caller, policy.ManageRoster, policy.Target{}); err != nil {
		return err
	}
	if _, err := svc.repo.GetParent(ctx, parentID); err != nil {
		return err
	}
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return err
	}
	return svc.repo.LinkParent(ctx, parentID, studentID)
}

// Children returns the students linked to the parent profile.
func (svc *Service) Children(ctx context.Context, caller user.User, parentID int64) ([]Student, error) {
	if err := svc.policy.May(ctx, caller, policy.ReadParent, policy.Target{ParentID: parentID}); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetParent(ctx, parentID); err != nil {
		return nil, err
	}
	children, err := svc.repo.ChildrenOf(ctx, parentID)
	return children, errors.Wrap(err, "finding children")
}

// ChildrenOfUser returns the students linked to a parent identity.
func (svc *Service) ChildrenOfUser(ctx context.Context, parentUserID int64) ([]Student, error) {
	parent, err := svc.repo.GetParentByUserID(ctx, parentUserID)
	if err != nil {
		if core.IsNotFound(err) {
			return []Student{}, nil
		}
		return nil, err
	}
	children, err := svc.repo.ChildrenOf(ctx, parent.ID)
	return children, errors.Wrap(err, "finding children")
}
