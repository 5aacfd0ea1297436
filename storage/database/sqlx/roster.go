package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/roster"
)

type (
	studentRow struct {
		ID          int64       `db:"id"`
		UserID      int64       `db:"user_id"`
		SectionID   int64       `db:"section_id"`
		AdmissionNo string      `db:"admission_no"`
		RollNo      null.String `db:"roll_no"`
		DateOfBirth core.Date   `db:"date_of_birth"`
		Gender      null.String `db:"gender"`
		Address     null.String `db:"address"`
		Name        string      `db:"name"`
		Email       string      `db:"email"`
	}

	teacherRow struct {
		ID             int64       `db:"id"`
		UserID         int64       `db:"user_id"`
		EmployeeID     string      `db:"employee_id"`
		Qualification  null.String `db:"qualification"`
		Specialization null.String `db:"specialization"`
		Experience     int         `db:"experience"`
		Name           string      `db:"name"`
		Email          string      `db:"email"`
	}

	parentRow struct {
		ID       int64       `db:"id"`
		UserID   int64       `db:"user_id"`
		Relation null.String `db:"relation"`
		Name     string      `db:"name"`
		Email    string      `db:"email"`
		Phone    null.String `db:"phone"`
	}
)

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func (r studentRow) student() roster.Student {
	return roster.Student{
		ID:          r.ID,
		UserID:      r.UserID,
		SectionID:   r.SectionID,
		AdmissionNo: r.AdmissionNo,
		RollNo:      r.RollNo.String,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender.String,
		Address:     r.Address.String,
		Name:        r.Name,
		Email:       r.Email,
	}
}

func studentsOf(rows []studentRow) []roster.Student {
	students := make([]roster.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students
}

func (r teacherRow) teacher() roster.Teacher {
	return roster.Teacher{
		ID:             r.ID,
		UserID:         r.UserID,
		EmployeeID:     r.EmployeeID,
		Qualification:  r.Qualification.String,
		Specialization: r.Specialization.String,
		Experience:     r.Experience,
		Name:           r.Name,
		Email:          r.Email,
	}
}

func (r parentRow) parent() roster.Parent {
	return roster.Parent{
		ID:       r.ID,
		UserID:   r.UserID,
		Relation: r.Relation.String,
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone.String,
	}
}

func parentsOf(rows []parentRow) []roster.Parent {
	parents := make([]roster.Parent, 0, len(rows))
	for _, r := range rows {
		parents = append(parents, r.parent())
	}
	return parents
}

const (
	selectStudents = `SELECT s.id, s.user_id, s.section_id, s.admission_no, s.roll_no, s.date_of_birth, s.gender, s.address,
		u.name, u.email FROM students s JOIN users u ON u.id = s.user_id`
	selectTeachers = `SELECT t.id, t.user_id, t.employee_id, t.qualification, t.specialization, t.experience,
		u.name, u.email FROM teachers t JOIN users u ON u.id = t.user_id`
	selectParents = `SELECT p.id, p.user_id, p.relation, u.name, u.email, u.phone FROM parents p JOIN users u ON u.id = p.user_id`
)

type rosterRepository struct {
	base
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *sqlx.DB) *rosterRepository {
	return &rosterRepository{base{db}}
}

// Students

func (repo *rosterRepository) CreateStudent(ctx context.Context, s roster.Student) (roster.Student, error) {
	q := `INSERT INTO students (user_id, section_id, admission_no, roll_no, date_of_birth, gender, address)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	var id int64
	err := getRow(ctx, repo.conn(ctx), &id, q,
		s.UserID, s.SectionID, s.AdmissionNo, nullString(s.RollNo), s.DateOfBirth, nullString(s.Gender), nullString(s.Address))
	if err != nil {
		if isUniqueViolation(err, "students_admission_no_idx") {
			return roster.Student{}, roster.ErrAdmissionNoExists
		}
		return roster.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.GetStudent(ctx, id)
}

func (repo *rosterRepository) getStudent(ctx context.Context, cond string, arg interface{}) (roster.Student, error) {
	var r studentRow
	if err := getRow(ctx, repo.conn(ctx), &r, selectStudents+" WHERE "+cond, arg); err != nil {
		return roster.Student{}, trapNoRowsErr(err, roster.ErrStudentNotFound, "selecting student")
	}
	return r.student(), nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id int64) (roster.Student, error) {
	return repo.getStudent(ctx, "s.id = ?", id)
}

func (repo *rosterRepository) GetStudentByUserID(ctx context.Context, userID int64) (roster.Student, error) {
	return repo.getStudent(ctx, "s.user_id = ?", userID)
}

func studentWhere(filter roster.StudentFilter) *where {
	w := new(where)
	if filter.SectionID != 0 {
		w.add("s.section_id = ?", filter.SectionID)
	}
	if len(filter.SectionIDs) > 0 {
		w.add("s.section_id = ANY(?)", pq.Array(filter.SectionIDs))
	}
	if len(filter.IDs) > 0 {
		w.add("s.id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(u.name ILIKE ? OR s.admission_no ILIKE ?)", val, val)
	}
	return w
}

func (repo *rosterRepository) QueryStudents(ctx context.Context, filter roster.StudentFilter, page core.Page) ([]roster.Student, error) {
	w := studentWhere(filter)
	var rows []studentRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, selectStudents+w.String()+" ORDER BY s.id"+paging(page), w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return studentsOf(rows), nil
}

func (repo *rosterRepository) CountStudents(ctx context.Context, filter roster.StudentFilter) (int, error) {
	w := studentWhere(filter)
	q := "SELECT COUNT(*) FROM students s JOIN users u ON u.id = s.user_id" + w.String()
	var cnt int
	if err := getRow(ctx, repo.conn(ctx), &cnt, q, w.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return cnt, nil
}

// Teachers

func (repo *rosterRepository) CreateTeacher(ctx context.Context, tc roster.Teacher) (roster.Teacher, error) {
	q := `INSERT INTO teachers (user_id, employee_id, qualification, specialization, experience)
		VALUES (?, ?, ?, ?, ?) RETURNING id`
	var id int64
	err := getRow(ctx, repo.conn(ctx), &id, q,
		tc.UserID, tc.EmployeeID, nullString(tc.Qualification), nullString(tc.Specialization), tc.Experience)
	if err != nil {
		if isUniqueViolation(err, "teachers_employee_id_idx") {
			return roster.Teacher{}, roster.ErrEmployeeIDExists
		}
		return roster.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return repo.GetTeacher(ctx, id)
}

func (repo *rosterRepository) GetTeacher(ctx context.Context, id int64) (roster.Teacher, error) {
	var r teacherRow
	if err := getRow(ctx, repo.conn(ctx), &r, selectTeachers+" WHERE t.id = ?", id); err != nil {
		return roster.Teacher{}, trapNoRowsErr(err, roster.ErrTeacherNotFound, "selecting teacher")
	}
	return r.teacher(), nil
}

func (repo *rosterRepository) UpdateTeacher(ctx context.Context, tc roster.Teacher) (roster.Teacher, error) {
	q := "UPDATE teachers SET qualification = ?, specialization = ?, experience = ? WHERE id = ?"
	n, err := exec(ctx, repo.conn(ctx), q, nullString(tc.Qualification), nullString(tc.Specialization), tc.Experience, tc.ID)
	if err != nil {
		return roster.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n == 0 {
		return roster.Teacher{}, roster.ErrTeacherNotFound
	}
	return repo.GetTeacher(ctx, tc.ID)
}

func (repo *rosterRepository) QueryTeachers(ctx context.Context, page core.Page) ([]roster.Teacher, error) {
	var rows []teacherRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, selectTeachers+" ORDER BY t.id"+paging(page)); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	teachers := make([]roster.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.teacher())
	}
	return teachers, nil
}

// Parents

func (repo *rosterRepository) CreateParent(ctx context.Context, p roster.Parent) (roster.Parent, error) {
	var id int64
	q := "INSERT INTO parents (user_id, relation) VALUES (?, ?) RETURNING id"
	if err := getRow(ctx, repo.conn(ctx), &id, q, p.UserID, nullString(p.Relation)); err != nil {
		return roster.Parent{}, errors.Wrap(err, "inserting parent")
	}
	return repo.GetParent(ctx, id)
}

func (repo *rosterRepository) getParent(ctx context.Context, cond string, arg interface{}) (roster.Parent, error) {
	var r parentRow
	if err := getRow(ctx, repo.conn(ctx), &r, selectParents+" WHERE "+cond, arg); err != nil {
		return roster.Parent{}, trapNoRowsErr(err, roster.ErrParentNotFound, "selecting parent")
	}
	return r.parent(), nil
}

func (repo *rosterRepository) GetParent(ctx context.Context, id int64) (roster.Parent, error) {
	return repo.getParent(ctx, "p.id = ?", id)
}

func (repo *rosterRepository) GetParentByUserID(ctx context.Context, userID int64) (roster.Parent, error) {
	return repo.getParent(ctx, "p.user_id = ?", userID)
}

func (repo *rosterRepository) QueryParents(ctx context.Context, page core.Page) ([]roster.Parent, error) {
	var rows []parentRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, selectParents+" ORDER BY p.id"+paging(page)); err != nil {
		return nil, errors.Wrap(err, "selecting parents")
	}
	return parentsOf(rows), nil
}

func (repo *rosterRepository) LinkParent(ctx context.Context, parentID, studentID int64) error {
	_, err := exec(ctx, repo.conn(ctx), "INSERT INTO student_parents (parent_id, student_id) VALUES (?, ?)", parentID, studentID)
	if err != nil {
		if isUniqueViolation(err) {
			return roster.ErrAlreadyLinked
		}
		return errors.Wrap(err, "linking parent")
	}
	return nil
}

func (repo *rosterRepository) ChildrenOf(ctx context.Context, parentID int64) ([]roster.Student, error) {
	q := selectStudents + " JOIN student_parents sp ON sp.student_id = s.id WHERE sp.parent_id = ? ORDER BY s.id"
	var rows []studentRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, parentID); err != nil {
		return nil, errors.Wrap(err, "selecting children")
	}
	return studentsOf(rows), nil
}

func (repo *rosterRepository) ParentsOf(ctx context.Context, studentID int64) ([]roster.Parent, error) {
	q := selectParents + " JOIN student_parents sp ON sp.parent_id = p.id WHERE sp.student_id = ? ORDER BY p.id"
	var rows []parentRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting parents")
	}
	return parentsOf(rows), nil
}
