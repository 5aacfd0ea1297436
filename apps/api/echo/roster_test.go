package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/roster"
)

const newPassword = "N3w-Secr3t-Pwd"

func newStudentBody(sectionID int64, email, admissionNo string) []byte {
	return []byte(fmt.Sprintf(
		`{"name":"Nia Student","email":%q,"password":%q,"password_confirm":%q,"section_id":%d,"admission_no":%q,"date_of_birth":"2014-03-21","gender":"Female"}`,
		email, newPassword, newPassword, sectionID, admissionNo,
	))
}

func Test_rosterApi_students(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	rec := env.do(http.MethodPost, "/v1/sections", admToken, []byte(fmt.Sprintf(`{"class_id":%d,"name":"Tiny","capacity":1}`, s.Class.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tiny academic.Section
	decode(t, rec, &tiny)

	runHTTPTests(t, env, []httpTest{
		{
			name: "Teacher cannot admit", method: http.MethodPost, path: "/v1/students", token: env.token(t, s.Teacher),
			body: newStudentBody(tiny.ID, "nia@campus.dev", "ADM100"), wantCode: http.StatusForbidden,
		},
		{
			name: "Passwords mismatch", method: http.MethodPost, path: "/v1/students", token: admToken,
			body: []byte(fmt.Sprintf(
				`{"name":"Nia","email":"nia@campus.dev","password":%q,"password_confirm":"nope","section_id":%d,"admission_no":"ADM100","date_of_birth":"2014-03-21"}`,
				newPassword, tiny.ID,
			)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown section", method: http.MethodPost, path: "/v1/students", token: admToken,
			body:     newStudentBody(9999, "nia@campus.dev", "ADM100"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"section_id": "section not found"}),
		},
		{
			name: "Email taken", method: http.MethodPost, path: "/v1/students", token: admToken,
			body: newStudentBody(tiny.ID, s.StudentUsers[0].Email, "ADM100"), wantCode: http.StatusBadRequest,
		},
		{
			name: "Admitted", method: http.MethodPost, path: "/v1/students", token: admToken,
			body: newStudentBody(tiny.ID, "nia@campus.dev", "ADM100"), wantCode: http.StatusCreated,
		},
		{
			name: "Section full", method: http.MethodPost, path: "/v1/students", token: admToken,
			body:     newStudentBody(tiny.ID, "noa@campus.dev", "ADM101"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"section_id": "section is full"}),
		},
	})

	t.Run("New student can log in", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/auth/login", "", []byte(fmt.Sprintf(`{"login":"nia@campus.dev","password":%q}`, newPassword)))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("Admins are notified", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/notifications", admToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.TypeStudent, notifs[0].Type)
		assert.Contains(t, notifs[0].Message, "ADM100")
	})

	listed := func(t *testing.T, token, query string) []int64 {
		rec := env.do(http.MethodGet, "/v1/students"+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []roster.Student
		decode(t, rec, &students)
		ids := make([]int64, 0, len(students))
		for _, st := range students {
			ids = append(ids, st.ID)
		}
		return ids
	}

	t.Run("Listing scope", func(t *testing.T) {
		assert.Len(t, listed(t, admToken, ""), 5)
		assert.Len(t, listed(t, admToken, fmt.Sprintf("?section_id=%d", s.Section.ID)), 3)
		assert.Len(t, listed(t, env.token(t, s.Teacher), ""), 3)
		assert.Empty(t, listed(t, env.token(t, s.OtherTeacher), ""))
		assert.Equal(t, []int64{s.Students[0].ID}, listed(t, env.token(t, s.ParentUser), ""))
		assert.Equal(t, []int64{s.Students[1].ID}, listed(t, env.token(t, s.StudentUsers[1]), ""))
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Student reads self", path: fmt.Sprintf("/v1/students/%d", s.Students[1].ID), token: env.token(t, s.StudentUsers[1])},
		{
			name: "Student reads another", path: fmt.Sprintf("/v1/students/%d", s.Students[0].ID),
			token: env.token(t, s.StudentUsers[1]), wantCode: http.StatusForbidden,
		},
		{name: "Teacher reads own student", path: fmt.Sprintf("/v1/students/%d", s.Students[0].ID), token: env.token(t, s.Teacher)},
		{
			name: "Teacher reads other student", path: fmt.Sprintf("/v1/students/%d", s.Outsider.ID),
			token: env.token(t, s.Teacher), wantCode: http.StatusForbidden,
		},
		{name: "Parent reads child", path: fmt.Sprintf("/v1/students/%d", s.Students[0].ID), token: env.token(t, s.ParentUser)},
		{name: "Admin reads unknown", path: "/v1/students/9999", token: admToken, wantCode: http.StatusNotFound},
		{name: "Bad id", path: "/v1/students/abc", token: admToken, wantCode: http.StatusNotFound},
	})
}

func Test_rosterApi_teachers(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	body := []byte(fmt.Sprintf(
		`{"name":"Theo Teacher","email":"theo@campus.dev","password":%q,"password_confirm":%q,"employee_id":"EMP042","experience":3}`,
		newPassword, newPassword,
	))
	rec := env.do(http.MethodPost, "/v1/teachers", admToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var teacher roster.Teacher
	decode(t, rec, &teacher)
	assert.Equal(t, "EMP042", teacher.EmployeeID)
	assert.Equal(t, "theo@campus.dev", teacher.Email)

	path := fmt.Sprintf("/v1/teachers/%d", teacher.ID)
	runHTTPTests(t, env, []httpTest{
		{name: "Teacher cannot list", path: "/v1/teachers", token: env.token(t, s.Teacher), wantCode: http.StatusForbidden},
		{
			name: "Negative experience", method: http.MethodPatch, path: path, token: admToken,
			body: []byte(`{"experience":-1}`), wantCode: http.StatusBadRequest,
		},
		{name: "Unknown teacher", method: http.MethodPatch, path: "/v1/teachers/9999", token: admToken, body: []byte(`{}`), wantCode: http.StatusNotFound},
	})

	t.Run("Partial update", func(t *testing.T) {
		rec := env.do(http.MethodPatch, path, admToken, []byte(`{"specialization":" Algebra "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated roster.Teacher
		decode(t, rec, &updated)
		assert.Equal(t, "Algebra", updated.Specialization)
		assert.Equal(t, 3, updated.Experience)
	})

	t.Run("Listed", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/teachers", admToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var teachers []roster.Teacher
		decode(t, rec, &teachers)
		require.Len(t, teachers, 1)
		assert.Equal(t, teacher.ID, teachers[0].ID)
	})
}

func Test_rosterApi_parents(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	parentBody := func(email string, studentIDs ...int64) []byte {
		ids := "[]"
		if len(studentIDs) > 0 {
			ids = fmt.Sprintf("[%d]", studentIDs[0])
		}
		return []byte(fmt.Sprintf(
			`{"name":"Pat Parent","email":%q,"password":%q,"password_confirm":%q,"relation":"Father","student_ids":%s}`,
			email, newPassword, newPassword, ids,
		))
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "Unknown child", method: http.MethodPost, path: "/v1/parents", token: admToken,
			body: parentBody("pat@campus.dev", 9999), wantCode: http.StatusBadRequest,
		},
		{name: "Parent cannot list parents", path: "/v1/parents", token: env.token(t, s.ParentUser), wantCode: http.StatusForbidden},
	})

	rec := env.do(http.MethodPost, "/v1/parents", admToken, parentBody("pat@campus.dev", s.Students[1].ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var parent roster.Parent
	decode(t, rec, &parent)
	assert.Equal(t, "father", parent.Relation)

	childrenPath := fmt.Sprintf("/v1/parents/%d/children", parent.ID)
	runHTTPTests(t, env, []httpTest{
		{
			name: "Student id required", method: http.MethodPost, path: childrenPath, token: admToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
		{
			name: "Parent cannot link", method: http.MethodPost, path: childrenPath, token: env.token(t, s.ParentUser),
			body: []byte(fmt.Sprintf(`{"student_id":%d}`, s.Students[2].ID)), wantCode: http.StatusForbidden,
		},
		{
			name: "Linked", method: http.MethodPost, path: childrenPath, token: admToken,
			body:     []byte(fmt.Sprintf(`{"student_id":%d}`, s.Students[2].ID)),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Student linked."}),
		},
		{
			name: "Unknown parent", method: http.MethodPost, path: "/v1/parents/9999/children", token: admToken,
			body: []byte(fmt.Sprintf(`{"student_id":%d}`, s.Students[2].ID)), wantCode: http.StatusNotFound,
		},
		{name: "Other parent's children", path: childrenPath, token: env.token(t, s.ParentUser), wantCode: http.StatusForbidden},
	})

	t.Run("Children", func(t *testing.T) {
		rec := env.do(http.MethodGet, fmt.Sprintf("/v1/parents/%d/children", s.Parent.ID), env.token(t, s.ParentUser))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var kids []roster.Student
		decode(t, rec, &kids)
		require.Len(t, kids, 1)
		assert.Equal(t, s.Students[0].ID, kids[0].ID)

		rec = env.do(http.MethodGet, childrenPath, admToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &kids)
		require.Len(t, kids, 2)
		assert.ElementsMatch(t, []int64{s.Students[1].ID, s.Students[2].ID}, []int64{kids[0].ID, kids[1].ID})
	})
}
