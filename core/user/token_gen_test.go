package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeVerifyToken(t *testing.T) {
	secret := "secret"
	timeout := 3 * 24 * time.Hour

	now := time.Now()
	usr := User{
		ID:        1,
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken, err := makeToken(usr, secret)
	require.NoError(t, err)

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := makeToken(usr, secret)
	nowFunc = time.Now // reset
	require.NoError(t, err)

	// a password change invalidates previous tokens
	changed := usr
	require.NoError(t, changed.SetPassword("other"))

	tests := []struct {
		name    string
		usr     User
		token   string
		secret  string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "other secret", usr: usr, token: validToken, secret: "other", wantErr: errInvalidToken},
		{name: "password changed", usr: changed, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := secret
			if tt.secret != "" {
				sec = tt.secret
			}
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token, sec, timeout))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := EncodeUID(User{ID: 4242})
	id, err := decodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}

func TestRole_CanGrant(t *testing.T) {
	tests := []struct {
		caller Role
		role   Role
		want   bool
	}{
		{caller: RoleSuperAdmin, role: RoleSuperAdmin, want: true},
		{caller: RoleAdmin, role: RoleSuperAdmin, want: false},
		{caller: RoleAdmin, role: RoleAccountant, want: true},
		{caller: RoleAccountant, role: RoleAdmin, want: false},
		{caller: RoleTeacher, role: RoleStudent, want: true},
		{caller: RoleStudent, role: RoleParent, want: false},
	}
	for _, tt := range tests {
		t.Run(string(tt.caller)+"->"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, User{Role: tt.caller}.CanGrant(tt.role))
		})
	}
	assert.False(t, Role("janitor").IsValid())
}
