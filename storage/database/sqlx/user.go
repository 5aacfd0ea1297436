package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

const userColumns = "id, name, email, phone, role, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		Role:         string(usr.Role),
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone.String,
		Role:         user.Role(r.Role),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func usersOf(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{base{db}}
}

func (repo *userRepository) mapUniqueErr(err error) error {
	switch {
	case isUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	case isUniqueViolation(err, "users_phone_key"):
		return user.ErrPhoneExists
	}
	return err
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, email, phone string, excludedIDs ...int64) error {
	var w where
	if phone != "" {
		w.add("(email = ? OR phone = ?)", email, phone)
	} else {
		w.add("email = ?", email)
	}
	if len(excludedIDs) > 0 {
		w.add("NOT (id = ANY(?))", pq.Array(excludedIDs))
	}

	var rows []userRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, "SELECT "+userColumns+" FROM users"+w.String(), w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	if len(rows) > 0 {
		return user.ErrPhoneExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := toUserRow(usr)
	q := `INSERT INTO users (name, email, phone, role, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING ` + userColumns
	var created userRow
	err := getRow(ctx, repo.conn(ctx), &created, q,
		r.Name, r.Email, r.Phone, r.Role, r.IsActive, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin)
	if err != nil {
		return user.User{}, errors.Wrap(repo.mapUniqueErr(err), "inserting user")
	}
	return created.user(), nil
}

func userWhere(filter *user.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	// users with Name, Email or Phone matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", val, val, val)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		w.add("role = ANY(?)", pq.Array(roles))
	}
	if len(filter.IDs) > 0 {
		w.add("id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}
	return w
}

var userOrderFields = map[string]bool{"name": true, "email": true, "role": true, "created_at": true, "last_login": true}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	w := userWhere(filter)

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if userOrderFields[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	orderBy = append(orderBy, "id ASC")

	q := fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s", userColumns, w.String(), strings.Join(orderBy, ", "))
	var rows []userRow
	if err := selectRows(ctx, repo.conn(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return usersOf(rows), nil
}

func (repo *userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	w := userWhere(filter)
	var cnt int
	if err := getRow(ctx, repo.conn(ctx), &cnt, "SELECT COUNT(*) FROM users"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return cnt, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.EmailOrPhone != "":
		w.add("(email = ? OR phone = ?)", filter.EmailOrPhone, filter.EmailOrPhone)
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := getRow(ctx, repo.conn(ctx), &r, "SELECT "+userColumns+" FROM users"+w.String()+" LIMIT 1", w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return r.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := toUserRow(usr)
	q := `UPDATE users SET name = ?, email = ?, phone = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ? RETURNING ` + userColumns
	var updated userRow
	err := getRow(ctx, repo.conn(ctx), &updated, q,
		r.Name, r.Email, r.Phone, r.Role, r.IsActive, r.PasswordHash, r.UpdatedAt, r.LastLogin, r.ID)
	if err != nil {
		return user.User{}, trapNoRowsErr(repo.mapUniqueErr(err), user.ErrNotFound, "updating user")
	}
	return updated.user(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := exec(ctx, repo.conn(ctx), "DELETE FROM users WHERE id = ANY(?)", pq.Array(ids))
	return n, errors.Wrap(err, "deleting users")
}
