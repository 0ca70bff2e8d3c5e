package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/user"
)

const userColumns = `id, username, email, first_name, last_name, is_active, roles, password_hash, created_at, updated_at, last_login`

var userOrderingColumns = map[string]string{
	"username":   "username",
	"email":      "email",
	"first_name": "first_name",
	"last_name":  "last_name",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	IsActive     bool      `db:"is_active"`
	Roles        string    `db:"roles"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	u := userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        usr.Email,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		IsActive:     usr.IsActive,
		Roles:        strings.Join(usr.Roles, ","),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    dbTime(usr.CreatedAt),
		UpdatedAt:    dbTime(usr.UpdatedAt),
	}
	if usr.LastLogin.Valid {
		u.LastLogin = null.TimeFrom(dbTime(usr.LastLogin.Time))
	}
	return u
}

func (repo userRepository) unboil(u userRow) user.User {
	roles := []string{}
	if u.Roles != "" {
		roles = strings.Split(u.Roles, ",")
	}
	usr := user.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     u.IsActive,
		Roles:        roles,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if u.LastLogin.Valid {
		usr.LastLogin = null.TimeFrom(u.LastLogin.Time.UTC())
	}
	return usr
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, repo.unboil(u))
	}
	return users
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	q := `SELECT username, email FROM "user" WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		if q, args, err = sqlx.In(q+" AND id NOT IN (?)", username, email, ids); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
	}

	var found []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := repo.all(ctx, exe, &found, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, f := range found {
		if f.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.boil(usr)
	q := `INSERT INTO "user" (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := repo.getExec(exec).ExecContext(ctx, repo.getExec(exec).Rebind(q),
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.IsActive, u.Roles, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where

	if filter != nil {
		// users with one of the names, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)",
				val, val, val, val)
		}
		// users with any of the provided roles
		if len(filter.Roles) > 0 {
			conds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				conds = append(conds, "(',' || roles || ',') LIKE ?")
				w.args = append(w.args, "%,"+role+",%")
			}
			w.conds = append(w.conds, "("+strings.Join(conds, " OR ")+")")
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", dbTime(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", dbTime(filter.CreatedTo))
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + orderBy(ordering, userOrderingColumns, "created_at DESC")
	var rows []userRow
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM "user" WHERE `
	var args []interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q += "id = ?"
		args = append(args, filter.ID)
	case filter.Username != "":
		q += "username = ?"
		args = append(args, filter.Username)
	case filter.Email != "":
		q += "email = ?"
		args = append(args, filter.Email)
	case filter.UsernameOrEmail != "":
		q += "(username = ? OR email = ?)"
		args = append(args, filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var u userRow
	if err := repo.get(ctx, repo.getExec(exec), &u, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	u := repo.boil(usr)
	q := `UPDATE "user" SET username = ?, email = ?, first_name = ?, last_name = ?, is_active = ?, roles = ?,
		password_hash = ?, created_at = ?, updated_at = ?, last_login = ? WHERE id = ?`
	err := repo.execOne(ctx, repo.getExec(exec), user.ErrNotFound, q,
		u.Username, u.Email, u.FirstName, u.LastName, u.IsActive, u.Roles, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin, u.ID)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return user.ErrNotFound
	}

	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, valid)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if err = repo.execOne(ctx, repo.getExec(exec), user.ErrNotFound, q, args...); err != nil {
		if err == user.ErrNotFound {
			return err
		}
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
