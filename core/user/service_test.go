package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/testutil"
)

func TestService_Update(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(app.DB)

	usr := testutil.CreateUser(t, repo, "Ada Lovelace", "ada@campus.dev", user.RoleTeacher)
	usr.Phone = "+243999000111"
	usr, err := repo.UpdateUser(ctx, usr)
	require.NoError(t, err)

	t.Run("Deactivate only", func(t *testing.T) {
		inactive := false
		updated, err := app.Users.Update(ctx, usr, user.UpdateUser{IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)

		saved, err := app.Users.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.False(t, saved.IsActive)
		assert.Equal(t, "Ada Lovelace", saved.Name)
		assert.Equal(t, "ada@campus.dev", saved.Email)
		assert.Equal(t, "+243999000111", saved.Phone)
		assert.Equal(t, user.RoleTeacher, saved.Role)
	})

	t.Run("Provided fields are cleaned", func(t *testing.T) {
		updated, err := app.Users.Update(ctx, usr, user.UpdateUser{Name: " Ada King ", Email: " ADA.KING@campus.dev "})
		require.NoError(t, err)
		assert.Equal(t, "Ada King", updated.Name)
		assert.Equal(t, "ada.king@campus.dev", updated.Email)
		assert.Equal(t, "+243999000111", updated.Phone)
		assert.Equal(t, user.RoleTeacher, updated.Role)
	})
}
