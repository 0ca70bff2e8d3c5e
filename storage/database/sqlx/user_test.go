package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/user"
	testutil "github.com/wwu-chemlab/chemlab/tests"
)

func usernames(users []user.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	walter := testutil.CreateUser(t, repo, "Walter", "wwhite", "walter@wallawalla.edu", "", []string{user.RoleInstructor}, true, now.Add(-3*time.Hour))
	jesse := testutil.CreateUser(t, repo, "Jesse", "jesse", "jesse@wallawalla.edu", "", []string{user.RoleStudent}, true, now.Add(-2*time.Hour))
	badger := testutil.CreateUser(t, repo, "Brandon", "badger", "badger@wallawalla.edu", "", []string{user.RoleStudent, user.RoleInstructor}, false, now.Add(-time.Hour))

	t.Run("CheckUniqueness", func(t *testing.T) {
		tests := []struct {
			name            string
			username, email string
			excluded        []user.User
			wantErr         error
		}{
			{name: "free", username: "gale", email: "gale@wallawalla.edu"},
			{name: "username taken", username: "jesse", email: "gale@wallawalla.edu", wantErr: user.ErrUsernameExists},
			{name: "email taken", username: "gale", email: "jesse@wallawalla.edu", wantErr: user.ErrEmailExists},
			{name: "both taken by different users", username: "wwhite", email: "jesse@wallawalla.edu", wantErr: user.ErrUsernameExists},
			{name: "excluded self", username: "jesse", email: "jesse@wallawalla.edu", excluded: []user.User{jesse}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := repo.CheckUniqueness(ctx, tt.username, tt.email, tt.excluded)
				assert.Equal(t, tt.wantErr, err)
			})
		}
	})

	t.Run("GetUser", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: walter.ID})
		require.NoError(t, err)
		assert.Equal(t, walter.Username, got.Username)
		assert.Equal(t, []string{user.RoleInstructor}, got.Roles)

		got, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "jesse@wallawalla.edu"})
		require.NoError(t, err)
		assert.Equal(t, jesse.ID, got.ID)

		for _, f := range []user.GetFilter{{ID: "not-a-uuid"}, {Username: "gale"}, {}} {
			_, err = repo.GetUser(ctx, f)
			assert.True(t, errors.Is(err, user.ErrNotFound), "%+v", f)
		}
	})

	t.Run("QueryUsers", func(t *testing.T) {
		active := true
		tests := []struct {
			name     string
			filter   *user.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "all, newest first", want: []string{"badger", "jesse", "wwhite"}},
			{name: "search", filter: &user.QueryFilter{Search: "WALT"}, want: []string{"wwhite"}},
			{name: "any role", filter: &user.QueryFilter{Roles: []string{user.RoleInstructor}}, want: []string{"badger", "wwhite"}},
			{name: "active", filter: &user.QueryFilter{IsActive: &active}, want: []string{"jesse", "wwhite"}},
			{
				name: "created range", filter: &user.QueryFilter{CreatedFrom: now.Add(-150 * time.Minute), CreatedTo: now},
				want: []string{"badger", "jesse"},
			},
			{
				name: "ordering", ordering: []core.DBOrdering{{Field: "username", Ascending: true}, {Field: "password_hash"}},
				want: []string{"badger", "jesse", "wwhite"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryUsers(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, tt.want, usernames(got))
			})
		}
	})

	t.Run("UpdateUser", func(t *testing.T) {
		badger.IsActive = true
		badger.LastLogin = null.TimeFrom(now)
		badger.Roles = []string{user.RoleStudent}
		_, err := repo.UpdateUser(ctx, badger)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{Username: "badger"})
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		assert.Equal(t, []string{user.RoleStudent}, got.Roles)
		assert.WithinDuration(t, now, got.LastLogin.Time, time.Second)

		ghost := badger
		ghost.ID = "8f8c5b94-4f2e-4f57-a1df-3f5bb8bd1c40"
		_, err = repo.UpdateUser(ctx, ghost)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("DeleteUsers", func(t *testing.T) {
		assert.Equal(t, user.ErrNotFound, repo.DeleteUsers(ctx, []string{"lol"}))
		require.NoError(t, repo.DeleteUsers(ctx, []string{jesse.ID, badger.ID, "lol"}))

		got, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"wwhite"}, usernames(got))

		assert.Equal(t, user.ErrNotFound, repo.DeleteUsers(ctx, []string{jesse.ID}))
	})
}

func TestRepository_transaction(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	testutil.CreateUser(t, userRepoTx{repo, tx}, "Gale", "gale", "gale@wallawalla.edu", "", nil, true)
	require.NoError(t, tx.Rollback())

	_, err = repo.GetUser(ctx, user.GetFilter{Username: "gale"})
	assert.True(t, errors.Is(err, user.ErrNotFound))
}

// userRepoTx runs CreateUser within tx.
type userRepoTx struct {
	*userRepository
	tx core.DBExecutor
}

func (r userRepoTx) CreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	return r.userRepository.CreateUser(ctx, usr, r.tx)
}
