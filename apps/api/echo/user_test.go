package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/testutil"
)

func deactivate(t *testing.T, env *testEnv, usr user.User) user.User {
	t.Helper()
	inactive := false
	usr, err := env.Users.Update(context.Background(), usr, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)
	return usr
}

func Test_authApi_login(t *testing.T) {
	env := setup(t)
	student := env.school.StudentUsers[0]
	naughty := deactivate(t, env, env.school.StudentUsers[1])

	login := func(l, p string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Login: l, Password: p})
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "Login required", method: http.MethodPost, path: "/v1/auth/login", body: login("", testutil.Password),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"login": "this field is required"}),
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/auth/login", body: login(student.Email, "nope"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/auth/login", body: login("ghost@campus.dev", testutil.Password),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "Inactive user", method: http.MethodPost, path: "/v1/auth/login", body: login(naughty.Email, testutil.Password),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("Logged in", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/auth/login", "", login(" STUDENT1@campus.dev ", testutil.Password))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		assert.Equal(t, student.ID, resp.User.ID)
		assert.False(t, resp.User.LastLogin.IsZero())

		claims, err := env.auth.ParseToken(resp.Token)
		require.NoError(t, err)
		uid, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, student.ID, uid)
		assert.Equal(t, user.RoleStudent, claims.Role)

		rec = env.do(http.MethodGet, "/v1/users/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		decode(t, rec, &me)
		assert.Equal(t, student.Email, me.Email)
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)
	student := env.school.StudentUsers[0]
	naughty := env.school.StudentUsers[1]
	naughtyToken := env.token(t, naughty)
	deactivate(t, env, naughty)

	now := time.Now()
	unrefreshable := env.auth.UserClaims(student, now.Add(-2*env.Conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := env.auth.GenerateToken(unrefreshable)
	require.NoError(t, err)

	expired := env.auth.UserClaims(student)
	expired.ExpiresAt = now.Add(-time.Minute).Unix()
	expiredToken, err := env.auth.GenerateToken(expired)
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, env.auth.UserClaims(student)).SignedString([]byte("not the key"))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Expired token", token: expiredToken, wantCode: http.StatusUnauthorized},
		{name: "Forged token", token: forged, wantCode: http.StatusUnauthorized},
		{
			name: "Inactive user not allowed", token: naughtyToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/token-refresh"
	}
	runHTTPTests(t, env, tests)

	t.Run("Token refreshed", func(t *testing.T) {
		orig := env.auth.UserClaims(student, now.Add(-time.Hour).Unix())
		token, err := env.auth.GenerateToken(orig)
		require.NoError(t, err)

		rec := env.do(http.MethodPost, "/v1/auth/token-refresh", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		claims, err := env.auth.ParseToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, orig.OrigIssuedAt, claims.OrigIssuedAt)
	})
}

func Test_authApi_passwordReset(t *testing.T) {
	env := setup(t)
	student := env.school.StudentUsers[0]
	success := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	runHTTPTests(t, env, []httpTest{
		{
			name: "Invalid email", method: http.MethodPost, path: "/v1/auth/password-reset",
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "nope"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown email", method: http.MethodPost, path: "/v1/auth/password-reset",
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "ghost@campus.dev"}),
			wantData: success,
		},
	})
	require.Empty(t, env.Mailer.SentMessages())

	rec := env.do(http.MethodPost, "/v1/auth/password-reset", "", marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}))
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := env.Mailer.SentMessages()
	require.Len(t, msgs, 1)
	data := msgs[0].TemplateData.(map[string]interface{})

	const newPwd = "N3w-Secr3t-Pwd"
	confirm := func(uid, token string) []byte {
		return marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: newPwd, PasswordConfirm: newPwd})
	}
	runHTTPTests(t, env, []httpTest{
		{
			name: "Bad token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: confirm(data["UID"].(string), "bad-token"), wantCode: http.StatusBadRequest,
		},
		{
			name: "Password reset", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body:     confirm(data["UID"].(string), data["Token"].(string)),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	})

	rec = env.do(http.MethodPost, "/v1/auth/login", "", marchallObj(t, echoapi.LoginRequest{Login: student.Email, Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_userApi_admin(t *testing.T) {
	env := setup(t)
	s := env.school
	adminToken := env.token(t, s.Admin)

	superAdmin := testutil.CreateUser(t, inmemdb.NewUserRepository(env.DB), "Sam Super", "super@campus.dev", user.RoleSuperAdmin)
	newUser := marchallObj(t, user.NewUser{
		Name:            "Nina New",
		Email:           "nina@campus.dev",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
		Role:            user.RoleTeacher,
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: env.token(t, s.Teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Malformed id", path: "/v1/users/abc", token: adminToken, wantCode: http.StatusNotFound},
		{name: "Unknown id", path: "/v1/users/9999", token: adminToken, wantCode: http.StatusNotFound},
		{name: "Retrieve", path: fmt.Sprintf("/v1/users/%d", s.Teacher.ID), token: adminToken, wantData: marchallObj(t, s.Teacher)},
		{name: "Create", method: http.MethodPost, path: "/v1/users", token: adminToken, body: newUser, wantCode: http.StatusCreated},
		{
			name: "Duplicate email", method: http.MethodPost, path: "/v1/users", token: adminToken, body: newUser,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Cannot delete self", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", s.Admin.ID),
			token: adminToken, wantCode: http.StatusForbidden,
		},
		{
			name: "Cannot delete a super admin", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", superAdmin.ID),
			token: adminToken, wantCode: http.StatusForbidden,
		},
		{
			name: "Me cannot change own role", method: http.MethodPut, path: "/v1/users/me", token: env.token(t, s.Teacher),
			body: []byte(`{"role":"admin"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", s.OtherTeacher.ID),
			token: adminToken, wantCode: http.StatusNoContent,
		},
	})

	t.Run("Deleted user token is unauthorized", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/users/me", env.token(t, s.OtherTeacher))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
