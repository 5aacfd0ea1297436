package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/user"
)

func TestDB_InTx(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	users := NewUserRepository(db)

	errBoom := errors.New("boom")
	var afterCommit int

	err := db.InTx(ctx, func(ctx context.Context) error {
		_, err := users.CreateUser(ctx, user.User{Email: "rolled@back.dev", Role: user.RoleStudent})
		require.NoError(t, err)
		core.AfterCommit(ctx, func() { afterCommit++ })
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 0, afterCommit, "hooks must not run on rollback")

	cnt, err := users.CountUsers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)

	err = db.InTx(ctx, func(ctx context.Context) error {
		if _, err := users.CreateUser(ctx, user.User{Email: "kept@campus.dev", Role: user.RoleStudent}); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return db.InTx(ctx, func(ctx context.Context) error {
			core.AfterCommit(ctx, func() { afterCommit++ })
			_, err := users.CreateUser(ctx, user.User{Email: "nested@campus.dev", Role: user.RoleStudent})
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, afterCommit)

	cnt, err = users.CountUsers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
}

func TestAttendanceRepository_UpsertRecords(t *testing.T) {
	ctx := context.Background()
	repo := NewAttendanceRepository(NewDB())
	day := core.NewDate(2024, time.September, 1)

	first, err := repo.UpsertRecords(ctx, []attendance.Record{{StudentID: 1, Date: day, Status: attendance.StatusAbsent}})
	require.NoError(t, err)
	again, err := repo.UpsertRecords(ctx, []attendance.Record{{StudentID: 1, Date: day, Status: attendance.StatusPresent}})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)

	records, err := repo.QueryRecords(ctx, attendance.Filter{StudentIDs: []int64{1}})
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, attendance.StatusPresent, records[0].Status)
	}
}

func TestHomeworkRepository_CreateSubmission_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewHomeworkRepository(NewDB())

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateSubmission(ctx, homework.Submission{HomeworkID: 5, StudentID: 7, Status: homework.StatusSubmitted})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if core.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}
