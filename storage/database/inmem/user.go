package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(strings.ToLower(usr.Email), s) &&
			!strings.Contains(usr.Phone, s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, r := range filter.Roles {
			if usr.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.IDs) > 0 {
		if _, ok := idSet(filter.IDs)[usr.ID]; !ok {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) CheckUniqueness(_ context.Context, email, phone string, excludedIDs ...int64) error {
	excluded := idSet(excludedIDs)
	return repo.db.read(func(t *tables) error {
		for _, usr := range t.users {
			if _, ok := excluded[usr.ID]; ok {
				continue
			}
			if usr.Email == email {
				return user.ErrEmailExists
			}
			if phone != "" && usr.Phone == phone {
				return user.ErrPhoneExists
			}
		}
		return nil
	})
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		usr.ID = t.nextID("user")
		t.users[usr.ID] = usr
		return nil
	})
	return usr, err
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, usr := range t.users {
			if matchUser(usr, filter) {
				users = append(users, usr)
			}
		}
		return nil
	})
	sortUsers(users, ordering)
	return users, nil
}

// sortUsers orders by the first known ordering field, by id otherwise.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	less := func(i, j int) bool { return users[i].ID < users[j].ID }
	if len(ordering) > 0 {
		ord := ordering[0]
		var cmp func(a, b user.User) bool
		switch ord.Field {
		case "name":
			cmp = func(a, b user.User) bool { return a.Name < b.Name }
		case "email":
			cmp = func(a, b user.User) bool { return a.Email < b.Email }
		case "role":
			cmp = func(a, b user.User) bool { return a.Role < b.Role }
		case "created_at":
			cmp = func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
		case "last_login":
			cmp = func(a, b user.User) bool { return a.LastLogin.Before(b.LastLogin) }
		}
		if cmp != nil {
			less = func(i, j int) bool {
				if ord.Ascending {
					return cmp(users[i], users[j])
				}
				return cmp(users[j], users[i])
			}
		}
	}
	sort.SliceStable(users, less)
}

func (repo *userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	users, err := repo.QueryUsers(ctx, filter, nil)
	return len(users), err
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	var (
		usr   user.User
		found bool
	)
	_ = repo.db.read(func(t *tables) error {
		if filter.ID != 0 {
			usr, found = t.users[filter.ID]
			return nil
		}
		for _, u := range t.users {
			switch {
			case filter.Email != "":
				found = u.Email == filter.Email
			case filter.EmailOrPhone != "":
				found = u.Email == filter.EmailOrPhone || (u.Phone != "" && u.Phone == filter.EmailOrPhone)
			}
			if found {
				usr = u
				return nil
			}
		}
		return nil
	})
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.users[usr.ID]; !ok {
			return user.ErrNotFound
		}
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int64) (int, error) {
	var cnt int
	err := repo.db.write(ctx, func(t *tables) error {
		for _, id := range ids {
			if _, ok := t.users[id]; ok {
				delete(t.users, id)
				cnt++
			}
		}
		return nil
	})
	return cnt, err
}
