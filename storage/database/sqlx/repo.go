package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/wwu-chemlab/chemlab/core"
)

type repository struct {
	exec core.DBExecutor
}

// getExec returns the executor passed by a service (usually a transaction) or the repository's DB.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo repository) get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func (repo repository) all(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement and returns the new id.
func (repo repository) insert(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, exec, &id, exec.Rebind(query+" RETURNING id"), args...)
	return id, err
}

// execOne runs an UPDATE or DELETE statement and returns notFound if no row was affected.
func (repo repository) execOne(ctx context.Context, exec core.DBExecutor, notFound error, query string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// trapNoRowsErr maps the sql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// where accumulates AND-ed conditions and their args.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy builds an ORDER BY clause from the orderings whose field is in columns, ignoring the others.
func orderBy(ordering []core.DBOrdering, columns map[string]string, deflt string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		list = append(list, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(list) == 0 {
		if deflt == "" {
			return ""
		}
		return " ORDER BY " + deflt
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// dbTime normalizes t the way both engines store it.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// wrapUnlessNotFound leaves not-found errors untouched so that they keep their message.
func wrapUnlessNotFound(err error, msg string) error {
	if err == nil || errors.Is(err, core.ErrNotFound) {
		return err
	}
	return errors.Wrap(err, msg)
}
