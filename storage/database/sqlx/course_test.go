package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
	testutil "github.com/wwu-chemlab/chemlab/tests"
)

func TestCourseRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	walter := testutil.CreateUser(t, usrRepo, "Walter", "wwhite", "walter@wallawalla.edu", "", []string{user.RoleInstructor}, true)
	jesse := testutil.CreateUser(t, usrRepo, "Jesse", "jesse", "jesse@wallawalla.edu", "", []string{user.RoleStudent}, true)
	badger := testutil.CreateUser(t, usrRepo, "Brandon", "badger", "badger@wallawalla.edu", "", []string{user.RoleStudent}, true)

	chem := testutil.CreateCourse(t, repo, "CHEM 101")
	bio := testutil.CreateCourse(t, repo, "BIO 101")
	ins := testutil.CreateInstructor(t, repo, walter.ID, "1000001")
	lgA := testutil.CreateLabGroup(t, repo, chem.ID, ins.ID, "A", "FALL2026", "keyA")
	lgB := testutil.CreateLabGroup(t, repo, bio.ID, ins.ID, "A", "FALL2026", "keyB")
	stJesse := testutil.CreateStudent(t, repo, jesse.ID, "2000001", lgA.ID)
	stBadger := testutil.CreateStudent(t, repo, badger.ID, "2000002", 0)

	t.Run("courses", func(t *testing.T) {
		got, err := repo.QueryCourses(ctx, []core.DBOrdering{{Field: "name", Ascending: true}})
		require.NoError(t, err)
		assert.Equal(t, []course.Course{bio, chem}, got)

		chem.Name = "CHEM 141"
		_, err = repo.UpdateCourse(ctx, chem)
		require.NoError(t, err)
		c, err := repo.GetCourse(ctx, chem.ID)
		require.NoError(t, err)
		assert.Equal(t, "CHEM 141", c.Name)

		_, err = repo.GetCourse(ctx, 999)
		assert.Equal(t, course.ErrCourseNotFound, err)
		assert.Equal(t, course.ErrCourseNotFound, repo.DeleteCourse(ctx, 999))
	})

	t.Run("one profile per user", func(t *testing.T) {
		_, err := repo.CreateInstructor(ctx, course.Instructor{UserID: walter.ID, WWUID: "1000002"})
		assert.Equal(t, course.ErrInstructorExists, err)
		_, err = repo.CreateStudent(ctx, course.Student{UserID: jesse.ID, WWUID: "2000003"})
		assert.Equal(t, course.ErrStudentExists, err)

		st := stBadger
		st.UserID = jesse.ID
		_, err = repo.UpdateStudent(ctx, st)
		assert.Equal(t, course.ErrStudentExists, err)
	})

	t.Run("profiles by user", func(t *testing.T) {
		got, err := repo.GetInstructorByUser(ctx, walter.ID)
		require.NoError(t, err)
		assert.Equal(t, ins, got)

		st, err := repo.GetStudentByUser(ctx, jesse.ID)
		require.NoError(t, err)
		assert.Equal(t, stJesse, st)

		_, err = repo.GetStudentByUser(ctx, walter.ID)
		assert.Equal(t, course.ErrStudentNotFound, err)
	})

	t.Run("lab groups", func(t *testing.T) {
		_, err := repo.CreateLabGroup(ctx, course.LabGroup{CourseID: chem.ID, InstructorID: ins.ID, GroupName: "A", Term: "FALL2026", EnrollKey: "k"})
		assert.Equal(t, course.ErrLabGroupExists, err)

		// same name, another term
		lgOld := testutil.CreateLabGroup(t, repo, chem.ID, ins.ID, "A", "FALL2025", "keyOld")

		got, err := repo.QueryLabGroups(ctx, &course.LabGroupFilter{Term: "FALL2026"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []course.LabGroup{lgA, lgB}, got)

		got, err = repo.QueryLabGroups(ctx, &course.LabGroupFilter{Course: chem.ID}, []core.DBOrdering{{Field: "term", Ascending: true}})
		require.NoError(t, err)
		assert.Equal(t, []course.LabGroup{lgOld, lgA}, got)

		lgOld.Term = "FALL2026"
		_, err = repo.UpdateLabGroup(ctx, lgOld)
		assert.Equal(t, course.ErrLabGroupExists, err)
	})

	t.Run("students by lab group", func(t *testing.T) {
		got, err := repo.QueryStudents(ctx, &course.StudentFilter{LabGroup: lgA.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []course.Student{stJesse}, got)

		got, err = repo.QueryStudents(ctx, nil, []core.DBOrdering{{Field: "wwuid"}})
		require.NoError(t, err)
		assert.Equal(t, []course.Student{stBadger, stJesse}, got)
	})

	t.Run("deleting a lab group unassigns its students", func(t *testing.T) {
		require.NoError(t, repo.DeleteLabGroup(ctx, lgA.ID))

		st, err := repo.GetStudent(ctx, stJesse.ID)
		require.NoError(t, err)
		assert.Equal(t, null.Int64{}, st.LabGroupID)
		assert.Equal(t, course.ErrLabGroupNotFound, repo.DeleteLabGroup(ctx, lgA.ID))
	})

	t.Run("deleting a user deletes their profiles", func(t *testing.T) {
		require.NoError(t, usrRepo.DeleteUsers(ctx, []string{walter.ID}))

		_, err := repo.GetInstructor(ctx, ins.ID)
		assert.Equal(t, course.ErrInstructorNotFound, err)
		// lab groups go with their instructor
		_, err = repo.GetLabGroup(ctx, lgB.ID)
		assert.Equal(t, course.ErrLabGroupNotFound, err)
	})
}
