package echoapi

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
	testutil "github.com/wwu-chemlab/chemlab/tests"
)

// labFixture is a course with two lab groups, each with its own instructor and student.
type labFixture struct {
	admin, walter, gale, jesse, badger, skinny, nobody user.User

	chem, bio   course.Course
	insW, insG  course.Instructor
	lgA, lgB    course.LabGroup
	jesseSt     course.Student
	badgerSt    course.Student
	stoich      assignment.Template // open for lgA and lgB
	titration   assignment.Template // closed for lgA
	mass, color assignment.TaskTemplate
	limit       assignment.TaskTemplate
	burette     assignment.TaskTemplate

	open, closed, openB assignment.Assignment
}

func newLabFixture(t *testing.T, app *testApp) *labFixture {
	t.Helper()
	f := new(labFixture)
	f.admin = testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@wallawalla.edu", "", []string{user.RoleAdmin}, true)
	f.walter = testutil.CreateUser(t, app.usrRepo, "Walter", "wwhite", "walter@wallawalla.edu", "", []string{user.RoleInstructor}, true)
	f.gale = testutil.CreateUser(t, app.usrRepo, "Gale", "gale", "gale@wallawalla.edu", "", []string{user.RoleInstructor}, true)
	f.jesse = testutil.CreateUser(t, app.usrRepo, "Jesse", "jesse", "jesse@wallawalla.edu", "", []string{user.RoleStudent}, true)
	f.badger = testutil.CreateUser(t, app.usrRepo, "Badger", "badger", "badger@wallawalla.edu", "", []string{user.RoleStudent}, true)
	f.skinny = testutil.CreateUser(t, app.usrRepo, "Skinny", "skinny", "skinny@wallawalla.edu", "", []string{user.RoleStudent}, true)
	f.nobody = testutil.CreateUser(t, app.usrRepo, "Nobody", "nobody", "nobody@wallawalla.edu", "", nil, true)

	term := course.CurrentTerm(time.Now().UTC())
	f.chem = testutil.CreateCourse(t, app.crsRepo, "CHEM 101")
	f.bio = testutil.CreateCourse(t, app.crsRepo, "BIOL 101")
	f.insW = testutil.CreateInstructor(t, app.crsRepo, f.walter.ID, "1000001")
	f.insG = testutil.CreateInstructor(t, app.crsRepo, f.gale.ID, "1000002")
	f.lgA = testutil.CreateLabGroup(t, app.crsRepo, f.chem.ID, f.insW.ID, "A", term, "keyA")
	f.lgB = testutil.CreateLabGroup(t, app.crsRepo, f.chem.ID, f.insG.ID, "B", term, "keyB")
	f.jesseSt = testutil.CreateStudent(t, app.crsRepo, f.jesse.ID, "2000001", f.lgA.ID)
	f.badgerSt = testutil.CreateStudent(t, app.crsRepo, f.badger.ID, "2000002", f.lgB.ID)
	testutil.CreateStudent(t, app.crsRepo, f.skinny.ID, "2000003", 0)

	f.stoich = testutil.CreateTemplate(t, app.asgRepo, f.chem.ID, "Stoichiometry")
	f.titration = testutil.CreateTemplate(t, app.asgRepo, f.chem.ID, "Titration")
	f.mass = testutil.CreateTaskTemplate(t, app.asgRepo, assignment.TaskTemplate{
		TemplateID:      f.stoich.ID,
		Name:            "mass",
		Prompt:          "Mass of NaCl in grams?",
		NumericOnly:     true,
		NumericAccuracy: null.IntFrom(2),
		Answer:          null.StringFrom("7.00"),
	})
	f.color = testutil.CreateTaskTemplate(t, app.asgRepo, assignment.TaskTemplate{
		TemplateID: f.stoich.ID,
		Name:       "color",
		Prompt:     "Color of the solution?",
		Answer:     null.StringFrom("Blue"),
	})
	f.limit = testutil.CreateTaskTemplate(t, app.asgRepo, assignment.TaskTemplate{
		TemplateID:      f.stoich.ID,
		Name:            "limiting",
		Prompt:          "Limiting reagent?",
		AttemptsAllowed: null.IntFrom(1),
		Answer:          null.StringFrom("Cl2"),
	})
	f.burette = testutil.CreateTaskTemplate(t, app.asgRepo, assignment.TaskTemplate{
		TemplateID: f.titration.ID,
		Name:       "burette",
		Prompt:     "Final burette reading?",
	})

	open, close := window(0)
	f.open = testutil.CreateAssignment(t, app.asgRepo, f.stoich.ID, f.lgA.ID, open, close)
	f.openB = testutil.CreateAssignment(t, app.asgRepo, f.stoich.ID, f.lgB.ID, open, close)
	open, close = window(-3 * time.Hour)
	f.closed = testutil.CreateAssignment(t, app.asgRepo, f.titration.ID, f.lgA.ID, open, close)
	return f
}

func Test_assignmentApi_templates(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	insToken := app.token(t, f.walter)
	stToken := app.token(t, f.jesse)

	app.run(t, http.MethodGet, []httpTest{
		{name: "Auth required", path: "/template", wantCode: http.StatusUnauthorized},
		{name: "Staff see every template", path: "/template", token: insToken, wantData: wrapped(t, "templates", f.stoich, f.titration)},
		{name: "Filter by course", path: fmt.Sprintf("/template?course=%d", f.bio.ID), token: insToken, wantData: wrapped(t, "templates")},
		{name: "Students see open templates", path: "/template", token: stToken, wantData: wrapped(t, "templates", f.stoich)},
		{name: "Students without lab group see nothing", path: "/template", token: app.token(t, f.skinny), wantData: wrapped(t, "templates")},
		{
			name: "Student profile required", path: "/template", token: app.token(t, f.nobody),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "a student profile is required"}),
		},
		{name: "Retrieve open", path: fmt.Sprintf("/template/%d", f.stoich.ID), token: stToken, wantData: marshalObj(t, f.stoich)},
		{
			name: "Retrieve closed", path: fmt.Sprintf("/template/%d", f.titration.ID), token: stToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "assignment template not found"}),
		},
		{name: "Staff retrieve closed", path: fmt.Sprintf("/template/%d", f.titration.ID), token: insToken, wantData: marshalObj(t, f.titration)},
	})

	app.run(t, http.MethodPost, []httpTest{
		{name: "Instructor required", path: "/template", token: stToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
		{
			name: "Unknown course", path: "/template", token: insToken, body: []byte(`{"course": 999, "name": "Gas laws"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"course": "invalid course: object does not exist"}),
		},
		{
			name: "Created", path: "/template", token: insToken, body: []byte(fmt.Sprintf(`{"course": %d, "name": " Gas laws "}`, f.chem.ID)),
			wantCode: http.StatusCreated, wantData: marshalObj(t, assignment.Template{ID: f.titration.ID + 1, CourseID: f.chem.ID, Name: "Gas laws"}),
		},
	})

	app.run(t, http.MethodPut, []httpTest{
		{
			name: "Updated", path: fmt.Sprintf("/template/%d", f.titration.ID), token: insToken,
			body:     []byte(fmt.Sprintf(`{"course": %d, "name": "Acid-base titration"}`, f.chem.ID)),
			wantData: marshalObj(t, assignment.Template{ID: f.titration.ID, CourseID: f.chem.ID, Name: "Acid-base titration"}),
		},
	})

	app.run(t, http.MethodDelete, []httpTest{
		{name: "Deleted", path: fmt.Sprintf("/template/%d", f.titration.ID+1), token: insToken, wantCode: http.StatusNoContent},
		{name: "Unknown", path: fmt.Sprintf("/template/%d", f.titration.ID+1), token: insToken, wantCode: http.StatusNotFound},
	})
}

func Test_assignmentApi_taskTemplates(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	insToken := app.token(t, f.walter)
	stToken := app.token(t, f.jesse)

	app.run(t, http.MethodGet, []httpTest{
		{
			name: "Staff see answers", path: fmt.Sprintf("/tasktemplate?template=%d", f.stoich.ID), token: insToken,
			wantData: wrapped(t, "task_templates", f.mass, f.color, f.limit),
		},
		{
			name: "Students see open tasks without answers", path: "/tasktemplate", token: stToken,
			wantData: wrapped(t, "task_templates", f.mass.ForStudent(), f.color.ForStudent(), f.limit.ForStudent()),
		},
		{name: "Retrieve open", path: fmt.Sprintf("/tasktemplate/%d", f.mass.ID), token: stToken, wantData: marshalObj(t, f.mass.ForStudent())},
		{
			name: "Retrieve closed", path: fmt.Sprintf("/tasktemplate/%d", f.burette.ID), token: stToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "task template not found"}),
		},
		{name: "Staff retrieve", path: fmt.Sprintf("/tasktemplate/%d", f.burette.ID), token: insToken, wantData: marshalObj(t, f.burette)},
	})

	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Invalid settings", path: "/tasktemplate", token: insToken,
			body: []byte(fmt.Sprintf(`{"assignment_template": %d, "name": "moles", "prompt": "Moles?", "attempts_allowed": 0,
				"numeric_accuracy": 16, "numeric_only": true, "answer": "many"}`, f.stoich.ID)),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"attempts_allowed": "attempts_allowed must be at least 1",
				"numeric_accuracy": "numeric_accuracy must be between 0 and 15",
				"answer":           "answer must be a number for numeric tasks",
			}),
		},
		{
			name: "Unknown template", path: "/tasktemplate", token: insToken,
			body:     []byte(`{"assignment_template": 999, "name": "moles", "prompt": "Moles?"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"assignment_template": "invalid assignment_template: object does not exist"}),
		},
		{
			name: "Duplicate name", path: "/tasktemplate", token: insToken,
			body:     []byte(fmt.Sprintf(`{"assignment_template": %d, "name": "mass", "prompt": "Mass?"}`, f.stoich.ID)),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "a task with this name already exists in the assignment template"}),
		},
	})

	t.Run("Created", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"assignment_template": %d, "name": "moles", "prompt": "Moles of NaCl?",
			"numeric_only": true, "numeric_accuracy": 3, "answer": "0.120", "attempts_allowed": 3}`, f.stoich.ID))
		req, rec := newAuthRequest(http.MethodPost, "/tasktemplate", insToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var task assignment.TaskTemplate
		decode(t, rec, &task)
		assert.Equal(t, "moles", task.Name)
		assert.Equal(t, null.IntFrom(3), task.NumericAccuracy)
		assert.Equal(t, null.StringFrom("0.120"), task.Answer)
	})

	f.burette.Answer = null.StringFrom("24.5")
	f.burette.Prompt = "Final reading?"
	app.run(t, http.MethodPut, []httpTest{
		{
			name: "Updated", path: fmt.Sprintf("/tasktemplate/%d", f.burette.ID), token: insToken,
			body:     []byte(fmt.Sprintf(`{"assignment_template": %d, "name": "burette", "prompt": "Final reading?", "answer": "24.5"}`, f.titration.ID)),
			wantData: marshalObj(t, f.burette),
		},
	})

	app.run(t, http.MethodDelete, []httpTest{
		{name: "Deleted", path: fmt.Sprintf("/tasktemplate/%d", f.burette.ID), token: insToken, wantCode: http.StatusNoContent},
	})
}

func Test_assignmentApi_assignments(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	insToken := app.token(t, f.walter)
	stToken := app.token(t, f.jesse)

	app.run(t, http.MethodGet, []httpTest{
		{
			name: "Staff filter by lab group", path: fmt.Sprintf("/assignment?labgroup=%d", f.lgA.ID), token: insToken,
			wantData: wrapped(t, "assignments", f.closed, f.open),
		},
		{name: "Students see open assignments of their lab group", path: "/assignment", token: stToken, wantData: wrapped(t, "assignments", f.open)},
		{name: "Students retrieve closed assignments", path: fmt.Sprintf("/assignment/%d", f.closed.ID), token: stToken, wantData: marshalObj(t, f.closed)},
		{
			name: "Other lab group", path: fmt.Sprintf("/assignment/%d", f.openB.ID), token: stToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "assignment not found"}),
		},
	})

	open, close := window(24 * time.Hour)
	bio := testutil.CreateTemplate(t, app.asgRepo, f.bio.ID, "Cells")
	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Close before open", path: "/assignment", token: insToken,
			body: []byte(fmt.Sprintf(`{"assignment_template": %d, "labgroup": %d, "open_date": %q, "close_date": %q}`,
				f.titration.ID, f.lgB.ID, close.Format(time.RFC3339), open.Format(time.RFC3339))),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Different courses", path: "/assignment", token: insToken,
			body: []byte(fmt.Sprintf(`{"assignment_template": %d, "labgroup": %d, "open_date": %q, "close_date": %q}`,
				bio.ID, f.lgB.ID, open.Format(time.RFC3339), close.Format(time.RFC3339))),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"labgroup": "labgroup and assignment_template must belong to the same course"}),
		},
		{
			name: "Unknown refs", path: "/assignment", token: insToken,
			body: []byte(fmt.Sprintf(`{"assignment_template": 999, "labgroup": 999, "open_date": %q, "close_date": %q}`,
				open.Format(time.RFC3339), close.Format(time.RFC3339))),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"assignment_template": "invalid assignment_template: object does not exist",
				"labgroup":            "invalid labgroup: object does not exist",
			}),
		},
	})

	t.Run("Created", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"assignment_template": %d, "labgroup": %d, "open_date": %q, "close_date": %q}`,
			f.titration.ID, f.lgB.ID, open.Format(time.RFC3339), close.Format(time.RFC3339)))
		req, rec := newAuthRequest(http.MethodPost, "/assignment", insToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var a assignment.Assignment
		decode(t, rec, &a)
		assert.Equal(t, "Titration", a.Name)
		assert.Equal(t, f.lgB.ID, a.LabGroupID)
		assert.WithinDuration(t, open, a.OpenDate, time.Second)
	})

	app.run(t, http.MethodDelete, []httpTest{
		{name: "Students cannot delete", path: fmt.Sprintf("/assignment/%d", f.open.ID), token: stToken, wantCode: http.StatusForbidden},
		{name: "Deleted", path: fmt.Sprintf("/assignment/%d", f.openB.ID), token: insToken, wantCode: http.StatusNoContent},
	})
}

func Test_assignmentApi_lifecycle(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	stToken := app.token(t, f.jesse)

	openPath := func(suffix string) string { return fmt.Sprintf("/assignment/%d%s", f.open.ID, suffix) }
	taskPath := func(task assignment.TaskTemplate) string { return openPath(fmt.Sprintf("/task/%d", task.ID)) }
	notStarted := marshalObj(t, httpErr{Error: "assignment not started"})

	// before starting
	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Student profile required", path: openPath("/start"), token: app.token(t, f.walter),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "a student profile is required"}),
		},
		{name: "Answer before start", path: taskPath(f.mass), token: stToken, body: []byte(`{"value": "7"}`), wantCode: http.StatusBadRequest, wantData: notStarted},
		{name: "Submit before start", path: openPath("/submit"), token: stToken, wantCode: http.StatusBadRequest, wantData: notStarted},
		{
			name: "Start closed", path: fmt.Sprintf("/assignment/%d/start", f.closed.ID), token: stToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "assignment is not open"}),
		},
		{name: "Start other lab group's", path: fmt.Sprintf("/assignment/%d/start", f.openB.ID), token: stToken, wantCode: http.StatusNotFound},
		{name: "Start unknown", path: "/assignment/999/start", token: stToken, wantCode: http.StatusNotFound},
	})
	app.run(t, http.MethodGet, []httpTest{
		{name: "No task entries yet", path: openPath("/task"), token: stToken, wantData: wrapped(t, "task_entries")},
		{
			name: "No entry yet", path: openPath("/entry"), token: stToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "assignment entry not found"}),
		},
	})

	var entry assignment.Entry
	t.Run("Started", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, openPath("/start"), stToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decode(t, rec, &entry)
		assert.Equal(t, f.jesseSt.ID, entry.StudentID)
		assert.Equal(t, f.open.ID, entry.AssignmentID)
		assert.False(t, entry.IsSubmitted())
		assert.False(t, entry.Grade.Valid)
	})

	taskEntry := func(task assignment.TaskTemplate, attempts int, passed bool, input string) []byte {
		return marshalObj(t, map[string]interface{}{
			"assignment_entry": entry.ID,
			"task_template":    task.ID,
			"attempts":         attempts,
			"passed":           passed,
			"raw_input":        input,
		})
	}
	// checks the body without the task entry pk
	answer := func(name string, task assignment.TaskTemplate, value string, attempts int, passed bool) {
		t.Run(name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, taskPath(task), stToken, []byte(fmt.Sprintf(`{"value": %q}`, value)))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got map[string]interface{}
			decode(t, rec, &got)
			delete(got, "pk")
			ok, err := jsonBytesEqual(marshalObj(t, got), taskEntry(task, attempts, passed, value))
			require.NoError(t, err)
			assert.True(t, ok, "got %s", rec.Body.String())
		})
	}

	app.run(t, http.MethodPost, []httpTest{
		{name: "Start twice", path: openPath("/start"), token: stToken, wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "assignment already started"})},
		{
			name: "Blank answer", path: taskPath(f.mass), token: stToken, body: []byte(`{"value": "  "}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"value": "this field is required"}),
		},
		{
			name: "Not a number", path: taskPath(f.mass), token: stToken, body: []byte(`{"value": "seven"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"value": "a number is required"}),
		},
		{
			name: "Task of another template", path: taskPath(f.burette), token: stToken, body: []byte(`{"value": "1"}`),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "task template not found"}),
		},
	})

	answer("Wrong mass", f.mass, "7.1", 1, false)
	answer("Mass within accuracy", f.mass, "7.004", 2, true)
	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Passed tasks are locked", path: taskPath(f.mass), token: stToken, body: []byte(`{"value": "7"}`),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "task already passed"}),
		},
	})
	answer("Wrong color", f.color, "red", 1, false)
	answer("Wrong limiting reagent", f.limit, "Na", 1, false)
	app.run(t, http.MethodPost, []httpTest{
		{
			name: "No attempts left", path: taskPath(f.limit), token: stToken, body: []byte(`{"value": "cl2"}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "no attempts left for this task"}),
		},
	})

	app.run(t, http.MethodGet, []httpTest{
		{
			name: "Task entries", path: openPath("/task"), token: stToken,
			wantData: marshalObj(t, TaskEntryList{TaskEntries: []assignment.TaskEntry{
				{ID: 1, EntryID: entry.ID, TaskTemplateID: f.mass.ID, Attempts: 2, Passed: true, RawInput: "7.004"},
				{ID: 2, EntryID: entry.ID, TaskTemplateID: f.color.ID, Attempts: 1, RawInput: "red"},
				{ID: 3, EntryID: entry.ID, TaskTemplateID: f.limit.ID, Attempts: 1, RawInput: "Na"},
			}}),
		},
		{name: "Entry", path: openPath("/entry"), token: stToken, wantData: marshalObj(t, entry)},
	})

	t.Run("Submitted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, openPath("/submit"), stToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var e assignment.Entry
		decode(t, rec, &e)
		assert.True(t, e.IsSubmitted())
		assert.Equal(t, null.Float64From(33.33), e.Grade)
	})

	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Submit twice", path: openPath("/submit"), token: stToken,
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "assignment already submitted"}),
		},
		{
			name: "Answer after submit", path: taskPath(f.color), token: stToken, body: []byte(`{"value": "blue"}`),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "assignment already submitted"}),
		},
	})

	app.run(t, http.MethodGet, []httpTest{
		{name: "Instructor required", path: openPath("/entries"), token: stToken, wantCode: http.StatusForbidden},
		{name: "Unknown assignment", path: "/assignment/999/entries", token: app.token(t, f.walter), wantCode: http.StatusNotFound},
	})

	t.Run("Entries", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, openPath("/entries"), app.token(t, f.walter))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var list EntryList
		decode(t, rec, &list)
		require.Len(t, list.Entries, 1)
		assert.Equal(t, entry.ID, list.Entries[0].ID)
		assert.Equal(t, null.Float64From(33.33), list.Entries[0].Grade)
	})
}

func Test_assignmentApi_closedWhileStarted(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	stToken := app.token(t, f.jesse)

	app.run(t, http.MethodPost, []httpTest{
		{name: "Started", path: fmt.Sprintf("/assignment/%d/start", f.open.ID), token: stToken, wantCode: http.StatusCreated},
	})

	// the instructor closes the assignment early
	open, close := window(-3 * time.Hour)
	app.run(t, http.MethodPut, []httpTest{
		{
			name: "Closed", path: fmt.Sprintf("/assignment/%d", f.open.ID), token: app.token(t, f.walter),
			body: []byte(fmt.Sprintf(`{"assignment_template": %d, "labgroup": %d, "open_date": %q, "close_date": %q}`,
				f.stoich.ID, f.lgA.ID, open.Format(time.RFC3339), close.Format(time.RFC3339))),
		},
	})

	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Answer after close", path: fmt.Sprintf("/assignment/%d/task/%d", f.open.ID, f.color.ID), token: stToken,
			body: []byte(`{"value": "blue"}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "assignment is not open"}),
		},
	})

	t.Run("Submit after close", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/assignment/%d/submit", f.open.ID), stToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var e assignment.Entry
		decode(t, rec, &e)
		assert.Equal(t, null.Float64From(0), e.Grade)
	})
}

func Test_assignmentApi_exportCSV(t *testing.T) {
	app := setup(t)
	f := newLabFixture(t, app)
	path := fmt.Sprintf("/assignment/%d/csv", f.open.ID)

	// jesse answers two tasks, badger (another lab group) answers nothing
	jesseToken := app.token(t, f.jesse)
	app.run(t, http.MethodPost, []httpTest{
		{name: "Started", path: fmt.Sprintf("/assignment/%d/start", f.open.ID), token: jesseToken, wantCode: http.StatusCreated},
		{name: "Mass", path: fmt.Sprintf("/assignment/%d/task/%d", f.open.ID, f.mass.ID), token: jesseToken, body: []byte(`{"value": "7.00"}`)},
		{name: "Color", path: fmt.Sprintf("/assignment/%d/task/%d", f.open.ID, f.color.ID), token: jesseToken, body: []byte(`{"value": "deep, blue"}`)},
	})

	app.run(t, http.MethodGet, []httpTest{
		{name: "Students not allowed", path: path, token: jesseToken, wantCode: http.StatusForbidden},
		{
			name: "Instructor of another lab group", path: path, token: app.token(t, f.gale),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Unknown assignment", path: "/assignment/999/csv", token: app.token(t, f.walter), wantCode: http.StatusNotFound},
	})

	want := "student,color,limiting,mass\r\n" +
		"2000001,\"deep, blue\",,7.00\r\n"
	disposition := fmt.Sprintf("attachment; filename=%q", assignment.ExportFilename(f.stoich.Name, f.lgA.GroupName, f.lgA.Term))

	for name, usr := range map[string]user.User{"Lab group instructor": f.walter, "Admin": f.admin} {
		t.Run(name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, app.token(t, usr))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.Equal(t, csvContentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, disposition, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, want, rec.Body.String())
		})
	}
}
