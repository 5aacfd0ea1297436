// Package sqlxrepos is the Postgres Record Store, written with sqlx over lib/pq.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/storage/database"
)

const pqUniqueViolation = "23505"

// base is embedded by every repository.
type base struct {
	db *sqlx.DB
}

func (b base) conn(ctx context.Context) sqlx.ExtContext {
	return database.Conn(ctx, b.db)
}

// forUpdate returns the row locking clause when ctx carries a transaction.
func forUpdate(ctx context.Context) string {
	if database.InTransaction(ctx) {
		return " FOR UPDATE"
	}
	return ""
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports whether err violates a unique constraint or index, optionally a named one.
func isUniqueViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}

// where accumulates AND-ed conditions written with "?" placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// paging renders LIMIT / OFFSET; a zero limit means no limit.
func paging(page core.Page) string {
	var b strings.Builder
	if page.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(page.Offset))
	}
	return b.String()
}

func selectRows(ctx context.Context, q sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func getRow(ctx context.Context, q sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (int, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
