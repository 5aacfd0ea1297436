package roster

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

type (
	Student struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"user_id"`
		SectionID   int64     `json:"section_id"`
		AdmissionNo string    `json:"admission_no"`
		RollNo      string    `json:"roll_no,omitempty"`
		DateOfBirth core.Date `json:"date_of_birth"`
		Gender      string    `json:"gender,omitempty"`
		Address     string    `json:"address,omitempty"`

		// identity details, read-only
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	Teacher struct {
		ID             int64  `json:"id"`
		UserID         int64  `json:"user_id"`
		EmployeeID     string `json:"employee_id"`
		Qualification  string `json:"qualification,omitempty"`
		Specialization string `json:"specialization,omitempty"`
		Experience     int    `json:"experience"`

		Name  string `json:"name"`
		Email string `json:"email"`
	}

	Parent struct {
		ID       int64  `json:"id"`
		UserID   int64  `json:"user_id"`
		Relation string `json:"relation,omitempty"`

		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone,omitempty"`
	}
)

type StudentFilter struct {
	SectionID  int64   `query:"section_id"`
	SectionIDs []int64 `query:"-"`
	IDs        []int64 `query:"-"`
	Search     string  `query:"search"`
}

func (f *StudentFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}

// account holds the identity fields shared by every profile creation request.
type account struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (a account) newUser(role user.Role) user.NewUser {
	return user.NewUser{
		Name:            a.Name,
		Email:           a.Email,
		Phone:           a.Phone,
		Password:        a.Password,
		PasswordConfirm: a.PasswordConfirm,
		Role:            role,
	}
}

type NewStudent struct {
	account
	SectionID   int64     `json:"section_id" validate:"required"`
	AdmissionNo string    `json:"admission_no" validate:"required,alphanum_"`
	RollNo      string    `json:"roll_no"`
	DateOfBirth core.Date `json:"date_of_birth" validate:"required"`
	Gender      string    `json:"gender" validate:"omitempty,oneof=male female other"`
	Address     string    `json:"address"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.AdmissionNo = core.CleanString(ns.AdmissionNo)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	nu := ns.newUser(user.RoleStudent)
	if err := nu.Validate(validate); err != nil {
		return err
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	ns.account = account{nu.Name, nu.Email, nu.Phone, nu.Password, nu.PasswordConfirm}
	return nil
}

type NewTeacher struct {
	account
	EmployeeID     string `json:"employee_id" validate:"required,alphanum_"`
	Qualification  string `json:"qualification"`
	Specialization string `json:"specialization"`
	Experience     int    `json:"experience" validate:"gte=0"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nu := nt.newUser(user.RoleTeacher)
	if err := nu.Validate(validate); err != nil {
		return err
	}
	if err := validate.Struct(nt); err != nil {
		return err
	}
	nt.account = account{nu.Name, nu.Email, nu.Phone, nu.Password, nu.PasswordConfirm}
	return nil
}

type UpdateTeacher struct {
	Qualification  *string `json:"qualification"`
	Specialization *string `json:"specialization"`
	Experience     *int    `json:"experience" validate:"omitempty,gte=0"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}

type NewParent struct {
	account
	Relation string `json:"relation" validate:"omitempty,oneof=father mother guardian other"`
	// StudentIDs are linked to the new parent right away.
	StudentIDs []int64 `json:"student_ids"`
}

func (np *NewParent) Validate(validate *validator.Validate) error {
	np.Relation = core.CleanString(np.Relation, true /* lower */)
	nu := np.newUser(user.RoleParent)
	if err := nu.Validate(validate); err != nil {
		return err
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	np.account = account{nu.Name, nu.Email, nu.Phone, nu.Password, nu.PasswordConfirm}
	return nil
}
