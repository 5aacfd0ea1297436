package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/attendance"
)

func Test_attendanceApi(t *testing.T) {
	env := setup(t)
	s := env.school

	batch := func(date string, entries ...string) []byte {
		return []byte(fmt.Sprintf(`{"section_id":%d,"date":%q,"entries":[%s]}`, s.Section.ID, date, strings.Join(entries, ",")))
	}
	entry := func(studentID int64, status string) string {
		return fmt.Sprintf(`{"student_id":%d,"status":%q}`, studentID, status)
	}
	st0, st1, st2 := s.Students[0].ID, s.Students[1].ID, s.Students[2].ID

	runHTTPTests(t, env, []httpTest{
		{
			name: "Other teacher forbidden", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.OtherTeacher),
			body: batch("2024-09-02", entry(st0, "present")), wantCode: http.StatusForbidden,
		},
		{
			name: "Invalid status", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Teacher),
			body: batch("2024-09-02", entry(st0, "sleeping")), wantCode: http.StatusBadRequest,
		},
		{
			name: "Student listed twice", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Teacher),
			body: batch("2024-09-02", entry(st0, "present"), entry(st0, "absent")), wantCode: http.StatusBadRequest,
		},
		{
			name: "Student of another section", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Teacher),
			body: batch("2024-09-02", entry(st0, "present"), entry(s.Outsider.ID, "present")), wantCode: http.StatusBadRequest,
		},
		{
			name: "Day 1", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Teacher),
			body: batch("2024-09-02", entry(st0, "present"), entry(st1, "absent"), entry(st2, "late")),
		},
		{
			name: "Day 2", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Teacher),
			body: batch("2024-09-03", entry(st0, "absent"), entry(st1, "present")),
		},
		{
			name: "Day 2 re-marked", method: http.MethodPost, path: "/v1/attendance/mark", token: env.token(t, s.Admin),
			body: batch("2024-09-03", entry(st0, "half_day")),
		},
	})

	t.Run("Rejected batches saved nothing", func(t *testing.T) {
		rec := env.do(http.MethodGet, fmt.Sprintf("/v1/attendance/students/%d?to=2024-09-02", st0), env.token(t, s.Teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.StudentReport
		decode(t, rec, &rep)
		require.Len(t, rep.Records, 1)
		assert.Equal(t, attendance.StatusPresent, rep.Records[0].Status)
	})

	t.Run("Student report", func(t *testing.T) {
		rec := env.do(http.MethodGet, fmt.Sprintf("/v1/attendance/students/%d", st0), env.token(t, s.ParentUser))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.StudentReport
		decode(t, rec, &rep)
		assert.Equal(t, 2, rep.Summary.TotalDays)
		assert.Equal(t, 1, rep.Summary.PresentDays)
		assert.Equal(t, 1, rep.Summary.AbsentDays)
		assert.Equal(t, 1, rep.Summary.HalfDays)
		assert.Equal(t, 50.0, rep.Summary.Percentage)
	})

	runHTTPTests(t, env, []httpTest{
		{
			name: "Parent of another student", path: fmt.Sprintf("/v1/attendance/students/%d", st1),
			token: env.token(t, s.ParentUser), wantCode: http.StatusForbidden,
		},
		{
			name: "Student reads own", path: fmt.Sprintf("/v1/attendance/students/%d", st1),
			token: env.token(t, s.StudentUsers[1]),
		},
		{
			name: "Student reads another", path: fmt.Sprintf("/v1/attendance/students/%d", st0),
			token: env.token(t, s.StudentUsers[1]), wantCode: http.StatusForbidden,
		},
		{
			name: "Bad date", path: fmt.Sprintf("/v1/attendance/students/%d?from=yesterday", st0),
			token: env.token(t, s.Admin), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"from": "invalid date, expected YYYY-MM-DD"}),
		},
		{
			name: "Inverted range", path: fmt.Sprintf("/v1/attendance/students/%d?from=2024-09-03&to=2024-09-02", st0),
			token: env.token(t, s.Admin), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("Section day", func(t *testing.T) {
		rec := env.do(http.MethodGet, fmt.Sprintf("/v1/attendance/sections/%d?date=2024-09-03", s.Section.ID), env.token(t, s.Teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sheet attendance.SectionDay
		decode(t, rec, &sheet)
		require.Len(t, sheet.Students, 3)

		statuses := make(map[int64]attendance.Status)
		for _, e := range sheet.Students {
			statuses[e.StudentID] = e.Status
		}
		assert.Equal(t, map[int64]attendance.Status{
			st0: attendance.StatusHalfDay,
			st1: attendance.StatusPresent,
			st2: "",
		}, statuses)
	})
}

