package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/user"
	testutil "github.com/wwu-chemlab/chemlab/tests"
)

func TestAssignmentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	crsRepo := NewCourseRepository(db)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	walter := testutil.CreateUser(t, usrRepo, "Walter", "wwhite", "walter@wallawalla.edu", "", []string{user.RoleInstructor}, true)
	jesse := testutil.CreateUser(t, usrRepo, "Jesse", "jesse", "jesse@wallawalla.edu", "", []string{user.RoleStudent}, true)
	badger := testutil.CreateUser(t, usrRepo, "Brandon", "badger", "badger@wallawalla.edu", "", []string{user.RoleStudent}, true)

	chem := testutil.CreateCourse(t, crsRepo, "CHEM 101")
	ins := testutil.CreateInstructor(t, crsRepo, walter.ID, "1000001")
	lgA := testutil.CreateLabGroup(t, crsRepo, chem.ID, ins.ID, "A", "FALL2026", "keyA")
	lgB := testutil.CreateLabGroup(t, crsRepo, chem.ID, ins.ID, "B", "FALL2026", "keyB")
	stJesse := testutil.CreateStudent(t, crsRepo, jesse.ID, "2000002", lgA.ID)
	stBadger := testutil.CreateStudent(t, crsRepo, badger.ID, "2000001", lgA.ID)

	stoich := testutil.CreateTemplate(t, repo, chem.ID, "Stoichiometry")
	titration := testutil.CreateTemplate(t, repo, chem.ID, "Titration")
	mass := testutil.CreateTaskTemplate(t, repo, assignment.TaskTemplate{
		TemplateID: stoich.ID, Name: "mass", Prompt: "Mass of the product?",
		NumericOnly: true, NumericAccuracy: null.IntFrom(2), Answer: null.StringFrom("7.00"),
	})
	color := testutil.CreateTaskTemplate(t, repo, assignment.TaskTemplate{
		TemplateID: stoich.ID, Name: "color", Prompt: "Color of the solution?", Answer: null.StringFrom("blue"),
	})
	burette := testutil.CreateTaskTemplate(t, repo, assignment.TaskTemplate{
		TemplateID: titration.ID, Name: "burette", Prompt: "Final burette reading?", AttemptsAllowed: null.IntFrom(1),
	})

	now := time.Now().UTC()
	open := testutil.CreateAssignment(t, repo, stoich.ID, lgA.ID, now.Add(-time.Hour), now.Add(time.Hour))
	closed := testutil.CreateAssignment(t, repo, titration.ID, lgA.ID, now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	openB := testutil.CreateAssignment(t, repo, titration.ID, lgB.ID, now.Add(-time.Hour), now.Add(time.Hour))

	t.Run("task templates are unique per template", func(t *testing.T) {
		_, err := repo.CreateTaskTemplate(ctx, assignment.TaskTemplate{TemplateID: stoich.ID, Name: "mass", Prompt: "again"})
		assert.Equal(t, assignment.ErrTaskTemplateExists, err)

		c := color
		c.Name = "mass"
		_, err = repo.UpdateTaskTemplate(ctx, c)
		assert.Equal(t, assignment.ErrTaskTemplateExists, err)
	})

	t.Run("nullable task fields", func(t *testing.T) {
		got, err := repo.GetTaskTemplate(ctx, burette.ID)
		require.NoError(t, err)
		assert.Equal(t, burette, got)
		assert.False(t, got.Answer.Valid)
		assert.False(t, got.NumericAccuracy.Valid)
	})

	t.Run("assignments carry their template name", func(t *testing.T) {
		got, err := repo.GetAssignment(ctx, open.ID)
		require.NoError(t, err)
		assert.Equal(t, "Stoichiometry", got.Name)
		assert.WithinDuration(t, now.Add(-time.Hour), got.OpenDate, time.Millisecond)
		assert.Equal(t, time.UTC, got.OpenDate.Location())
	})

	t.Run("open filters", func(t *testing.T) {
		asmts, err := repo.QueryAssignments(ctx, &assignment.AssignmentFilter{LabGroup: lgA.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Assignment{closed, open}, asmts)

		asmts, err = repo.QueryAssignments(ctx, &assignment.AssignmentFilter{LabGroup: lgA.ID, OpenAt: now}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Assignment{open}, asmts)

		asmts, err = repo.QueryAssignments(ctx, &assignment.AssignmentFilter{Template: titration.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Assignment{closed, openB}, asmts)

		templates, err := repo.QueryTemplates(ctx, &assignment.TemplateFilter{OpenFor: lgA.ID, OpenAt: now}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Template{stoich}, templates)

		templates, err = repo.QueryTemplates(ctx, &assignment.TemplateFilter{OpenFor: lgB.ID, OpenAt: now}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Template{titration}, templates)

		tasks, err := repo.QueryTaskTemplates(ctx, &assignment.TaskTemplateFilter{OpenFor: lgA.ID, OpenAt: now}, nil)
		require.NoError(t, err)
		assert.Equal(t, []assignment.TaskTemplate{mass, color}, tasks)

		// nothing is open after the close dates
		tasks, err = repo.QueryTaskTemplates(ctx, &assignment.TaskTemplateFilter{OpenFor: lgA.ID, OpenAt: now.Add(2 * time.Hour)}, nil)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	var entry assignment.Entry
	t.Run("entries", func(t *testing.T) {
		var err error
		entry, err = repo.CreateEntry(ctx, assignment.Entry{StudentID: stJesse.ID, AssignmentID: open.ID, StartDate: now})
		require.NoError(t, err)

		_, err = repo.CreateEntry(ctx, assignment.Entry{StudentID: stJesse.ID, AssignmentID: open.ID, StartDate: now})
		assert.Equal(t, assignment.ErrAlreadyStarted, err)

		_, err = repo.GetEntry(ctx, stBadger.ID, open.ID)
		assert.Equal(t, assignment.ErrEntryNotFound, err)

		got, err := repo.GetEntry(ctx, stJesse.ID, open.ID)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		assert.False(t, got.IsSubmitted())
	})

	t.Run("task entries", func(t *testing.T) {
		te, err := repo.SaveTaskEntry(ctx, assignment.TaskEntry{EntryID: entry.ID, TaskTemplateID: mass.ID, Attempts: 1, RawInput: "6.5"})
		require.NoError(t, err)
		require.NotZero(t, te.ID)

		te.Attempts, te.Passed, te.RawInput = 2, true, "7.001"
		_, err = repo.SaveTaskEntry(ctx, te)
		require.NoError(t, err)

		got, err := repo.GetTaskEntry(ctx, entry.ID, mass.ID)
		require.NoError(t, err)
		assert.Equal(t, te, got)

		_, err = repo.GetTaskEntry(ctx, entry.ID, color.ID)
		assert.Equal(t, assignment.ErrTaskEntryNotFound, err)

		_, err = repo.SaveTaskEntry(ctx, assignment.TaskEntry{EntryID: entry.ID, TaskTemplateID: color.ID, Attempts: 1, RawInput: "deep, blue"})
		require.NoError(t, err)

		all, err := repo.QueryTaskEntries(ctx, entry.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, mass.ID, all[0].TaskTemplateID)

		ghost := te
		ghost.ID = 999
		_, err = repo.SaveTaskEntry(ctx, ghost)
		assert.Equal(t, assignment.ErrTaskEntryNotFound, err)
	})

	t.Run("submit", func(t *testing.T) {
		entry.SubmitDate = null.TimeFrom(now.Add(time.Minute))
		entry.Grade = null.Float64From(50)
		_, err := repo.UpdateEntry(ctx, entry)
		require.NoError(t, err)

		entries, err := repo.QueryEntries(ctx, open.ID, nil)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].IsSubmitted())
		assert.Equal(t, 50.0, entries[0].Grade.Float64)
		assert.Equal(t, time.UTC, entries[0].SubmitDate.Time.Location())
	})

	t.Run("export rows", func(t *testing.T) {
		// badger started but answered nothing
		badgerEntry, err := repo.CreateEntry(ctx, assignment.Entry{StudentID: stBadger.ID, AssignmentID: open.ID, StartDate: now})
		require.NoError(t, err)

		rows, err := repo.QueryExportRows(ctx, open.ID)
		require.NoError(t, err)
		assert.Equal(t, []assignment.ExportRow{
			{EntryID: badgerEntry.ID, WWUID: "2000001"},
			{EntryID: entry.ID, WWUID: "2000002", Task: null.StringFrom("color"), RawInput: null.StringFrom("deep, blue")},
			{EntryID: entry.ID, WWUID: "2000002", Task: null.StringFrom("mass"), RawInput: null.StringFrom("7.001")},
		}, rows)

		rows, err = repo.QueryExportRows(ctx, closed.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("deleting an assignment deletes its entries", func(t *testing.T) {
		require.NoError(t, repo.DeleteAssignment(ctx, open.ID))
		_, err := repo.GetEntry(ctx, stJesse.ID, open.ID)
		assert.Equal(t, assignment.ErrEntryNotFound, err)
		assert.Equal(t, assignment.ErrAssignmentNotFound, repo.DeleteAssignment(ctx, open.ID))
	})
}
