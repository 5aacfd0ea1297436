package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/services/blob"
	"github.com/trezcool/campus/services/realtime"
	"github.com/trezcool/campus/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	*testutil.App
	school testutil.School
	auth   *echoapi.Auth
	hub    *realtime.Hub
	srv    *echoapi.Server
}

// setup serves a seeded School; configure runs before any service reads the config.
func setup(t *testing.T, configure ...func(conf *core.Config)) *testEnv {
	t.Helper()
	app := testutil.NewApp()
	app.Conf.Uploads.Dir = t.TempDir()
	for _, fn := range configure {
		fn(app.Conf)
	}

	blobs, err := blob.NewDiskStore(app.Conf)
	require.NoError(t, err)
	hub := realtime.NewHubWithOptions(realtime.Options{QueueSize: 8}, app.Logger)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            app.Conf,
		Logger:          app.Logger,
		Validate:        app.Validate,
		Translator:      app.Translator,
		Policy:          app.Policy,
		Blobs:           blobs,
		Hub:             hub,
		UserSvc:         app.Users,
		AcademicSvc:     app.Academics,
		RosterSvc:       app.Roster,
		AttendanceSvc:   app.Attendance,
		HomeworkSvc:     app.Homework,
		ExamSvc:         app.Exams,
		FeeSvc:          app.Fees,
		AnnouncementSvc: app.Announcements,
		NotificationSvc: app.Notifications,
		DashboardSvc:    app.Dashboard,
	})
	t.Cleanup(func() {
		hub.Shutdown()
		_ = srv.Close()
	})

	return &testEnv{
		App:    app,
		school: app.Seed(t),
		auth:   echoapi.NewAuth(app.Conf),
		hub:    hub,
		srv:    srv,
	}
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.auth.GenerateToken(env.auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorded response.
func (env *testEnv) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	env.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

// newMultipartRequest builds a multipart form with fields and, if filename is set, one file under fileField.
func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
