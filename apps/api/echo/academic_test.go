package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/academic"
)

func Test_academicApi_periods(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	runHTTPTests(t, env, []httpTest{
		{
			name: "Teacher cannot manage", method: http.MethodPost, path: "/v1/periods", token: env.token(t, s.Teacher),
			body: []byte(`{"name":"2024-2025","start_date":"2024-09-01","end_date":"2025-06-30"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "End before start", method: http.MethodPost, path: "/v1/periods", token: admToken,
			body:     []byte(`{"name":"2024-2025","start_date":"2025-06-30","end_date":"2024-09-01"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end_date": "end date must be after start date"}),
		},
		{
			name: "Active period", method: http.MethodPost, path: "/v1/periods", token: admToken,
			body: []byte(`{"name":"2023-2024","start_date":"2023-09-01","end_date":"2024-06-30","is_active":true}`), wantCode: http.StatusCreated,
		},
		{
			name: "Next period", method: http.MethodPost, path: "/v1/periods", token: admToken,
			body: []byte(`{"name":"2024-2025","start_date":"2024-09-01","end_date":"2025-06-30"}`), wantCode: http.StatusCreated,
		},
		{name: "Unknown period", method: http.MethodPost, path: "/v1/periods/9999/activate", token: admToken, wantCode: http.StatusNotFound},
	})

	periods := func(t *testing.T) []academic.Period {
		rec := env.do(http.MethodGet, "/v1/periods", env.token(t, s.StudentUsers[0]))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ps []academic.Period
		decode(t, rec, &ps)
		require.Len(t, ps, 2)
		return ps
	}

	ps := periods(t)
	assert.Equal(t, "2024-2025", ps[0].Name)
	assert.False(t, ps[0].IsActive)
	assert.True(t, ps[1].IsActive)

	t.Run("Activating moves the active flag", func(t *testing.T) {
		rec := env.do(http.MethodPost, fmt.Sprintf("/v1/periods/%d/activate", ps[0].ID), admToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		ps := periods(t)
		assert.True(t, ps[0].IsActive)
		assert.False(t, ps[1].IsActive)
	})
}

func Test_academicApi_structure(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	rec := env.do(http.MethodPost, "/v1/classes", admToken, []byte(`{"name":" Grade 6 ","sections":"A, B,,C","capacity":30}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class academic.ClassWithSections
	decode(t, rec, &class)
	assert.Equal(t, "Grade 6", class.Name)
	require.Len(t, class.Sections, 3)
	for i, name := range []string{"A", "B", "C"} {
		assert.Equal(t, name, class.Sections[i].Name)
		assert.Equal(t, 30, class.Sections[i].Capacity)
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "Unknown period", method: http.MethodPost, path: "/v1/classes", token: admToken,
			body:     []byte(`{"name":"Grade 7","period_id":9999}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"period_id": "academic period not found"}),
		},
		{
			name: "Teacher cannot create classes", method: http.MethodPost, path: "/v1/classes", token: env.token(t, s.Teacher),
			body: []byte(`{"name":"Grade 7"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Section of unknown class", method: http.MethodPost, path: "/v1/sections", token: admToken,
			body: []byte(`{"class_id":9999,"name":"D"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "Section with default capacity", method: http.MethodPost, path: "/v1/sections", token: admToken,
			body: []byte(fmt.Sprintf(`{"class_id":%d,"name":"D"}`, class.ID)), wantCode: http.StatusCreated,
		},
		{
			name: "Bad subject code", method: http.MethodPost, path: "/v1/subjects", token: admToken,
			body: []byte(fmt.Sprintf(`{"class_id":%d,"name":"Science","code":"SC 6!"}`, class.ID)), wantCode: http.StatusBadRequest,
		},
		{
			name: "Subject", method: http.MethodPost, path: "/v1/subjects", token: admToken,
			body: []byte(fmt.Sprintf(`{"class_id":%d,"name":"Science","code":"SCI6"}`, class.ID)), wantCode: http.StatusCreated,
		},
	})

	t.Run("Listing", func(t *testing.T) {
		token := env.token(t, s.ParentUser)

		rec := env.do(http.MethodGet, "/v1/classes", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var classes []academic.ClassGroup
		decode(t, rec, &classes)
		assert.Len(t, classes, 2)

		rec = env.do(http.MethodGet, fmt.Sprintf("/v1/sections?class_id=%d", class.ID), token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sections []academic.Section
		decode(t, rec, &sections)
		require.Len(t, sections, 4)
		assert.Equal(t, 40, sections[3].Capacity)

		rec = env.do(http.MethodGet, fmt.Sprintf("/v1/subjects?class_id=%d", class.ID), token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var subjects []academic.Subject
		decode(t, rec, &subjects)
		require.Len(t, subjects, 1)
		assert.Equal(t, "SCI6", subjects[0].Code)
	})

	t.Run("Class teacher", func(t *testing.T) {
		path := fmt.Sprintf("/v1/sections/%d/class-teacher", class.Sections[0].ID)
		runHTTPTests(t, env, []httpTest{
			{
				name: "Not a teacher", method: http.MethodPut, path: path, token: admToken,
				body:     []byte(fmt.Sprintf(`{"teacher_id":%d}`, s.ParentUser.ID)),
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"teacher_id": "user is not an active teacher"}),
			},
			{name: "Set", method: http.MethodPut, path: path, token: admToken, body: []byte(fmt.Sprintf(`{"teacher_id":%d}`, s.OtherTeacher.ID))},
		})

		rec := env.do(http.MethodGet, fmt.Sprintf("/v1/sections/%d", class.Sections[0].ID), env.token(t, s.OtherTeacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sec academic.Section
		decode(t, rec, &sec)
		assert.Equal(t, s.OtherTeacher.ID, sec.ClassTeacherID)
	})
}

func Test_academicApi_assignments(t *testing.T) {
	env := setup(t)
	s := env.school
	admToken := env.token(t, s.Admin)

	assign := func(teacherID, subjectID, sectionID int64) []byte {
		return []byte(fmt.Sprintf(`{"teacher_id":%d,"subject_id":%d,"section_id":%d}`, teacherID, subjectID, sectionID))
	}

	rec := env.do(http.MethodPost, "/v1/classes", admToken, []byte(`{"name":"Grade 6","sections":"A"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grade6 academic.ClassWithSections
	decode(t, rec, &grade6)

	runHTTPTests(t, env, []httpTest{
		{name: "Fields required", method: http.MethodPost, path: "/v1/assignments", token: admToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "Subject of another class", method: http.MethodPost, path: "/v1/assignments", token: admToken,
			body:     assign(s.OtherTeacher.ID, s.Subject.ID, grade6.Sections[0].ID),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"subject_id": "subject does not belong to the section's class"}),
		},
		{
			name: "Student is not a teacher", method: http.MethodPost, path: "/v1/assignments", token: admToken,
			body: assign(s.StudentUsers[0].ID, s.Subject.ID, s.OtherSection.ID), wantCode: http.StatusBadRequest,
		},
		{
			name: "Assigned", method: http.MethodPost, path: "/v1/assignments", token: admToken,
			body: assign(s.OtherTeacher.ID, s.Subject.ID, s.OtherSection.ID), wantCode: http.StatusCreated,
		},
		{name: "Student cannot list", path: "/v1/assignments", token: env.token(t, s.StudentUsers[0]), wantCode: http.StatusForbidden},
	})

	list := func(t *testing.T, token, query string) []academic.Assignment {
		rec := env.do(http.MethodGet, "/v1/assignments"+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var as []academic.Assignment
		decode(t, rec, &as)
		return as
	}

	assert.Len(t, list(t, admToken, ""), 2)
	assert.Len(t, list(t, admToken, fmt.Sprintf("?section_id=%d", s.OtherSection.ID)), 1)

	// teachers only see their own assignments, whatever the filter says
	own := list(t, env.token(t, s.Teacher), fmt.Sprintf("?teacher_id=%d", s.OtherTeacher.ID))
	require.Len(t, own, 1)
	assert.Equal(t, s.Section.ID, own[0].SectionID)
}
