package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/storage/database"
)

var (
	templateOrderingColumns     = map[string]string{"pk": "t.id", "name": "t.name", "course": "t.course_id"}
	taskTemplateOrderingColumns = map[string]string{"pk": "tt.id", "name": "tt.name", "assignment_template": "tt.assignment_template_id"}
	assignmentOrderingColumns   = map[string]string{
		"pk":                  "a.id",
		"name":                "t.name",
		"assignment_template": "a.assignment_template_id",
		"labgroup":            "a.labgroup_id",
		"open_date":           "a.open_date",
		"close_date":          "a.close_date",
	}
	entryOrderingColumns = map[string]string{
		"pk":          "id",
		"student":     "student_id",
		"start_date":  "start_date",
		"submit_date": "submit_date",
		"grade":       "grade",
	}
)

type (
	templateRow struct {
		ID       int64  `db:"id"`
		CourseID int64  `db:"course_id"`
		Name     string `db:"name"`
	}

	taskTemplateRow struct {
		ID              int64       `db:"id"`
		TemplateID      int64       `db:"assignment_template_id"`
		Name            string      `db:"name"`
		Summary         string      `db:"summary"`
		Prompt          string      `db:"prompt"`
		PromptFormat    null.String `db:"prompt_format"`
		ImageURLs       null.String `db:"image_urls"`
		AttemptsAllowed null.Int    `db:"attempts_allowed"`
		NumericAccuracy null.Int    `db:"numeric_accuracy"`
		NumericOnly     bool        `db:"numeric_only"`
		Answer          null.String `db:"answer"`
	}

	assignmentRow struct {
		ID         int64     `db:"id"`
		TemplateID int64     `db:"assignment_template_id"`
		LabGroupID int64     `db:"labgroup_id"`
		OpenDate   time.Time `db:"open_date"`
		CloseDate  time.Time `db:"close_date"`
		Name       string    `db:"name"`
	}

	entryRow struct {
		ID           int64        `db:"id"`
		StudentID    int64        `db:"student_id"`
		AssignmentID int64        `db:"assignment_id"`
		StartDate    time.Time    `db:"start_date"`
		SubmitDate   null.Time    `db:"submit_date"`
		Grade        null.Float64 `db:"grade"`
	}

	taskEntryRow struct {
		ID             int64  `db:"id"`
		EntryID        int64  `db:"assignment_entry_id"`
		TaskTemplateID int64  `db:"task_template_id"`
		Attempts       int    `db:"attempts"`
		Passed         bool   `db:"passed"`
		RawInput       string `db:"raw_input"`
	}

	exportRow struct {
		EntryID  int64       `db:"entry_id"`
		WWUID    string      `db:"wwuid"`
		Task     null.String `db:"task"`
		RawInput null.String `db:"raw_input"`
	}
)

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{repository{exec: exec}}
}

// openAssignmentCond keeps rows whose template (at templateCol) has an assignment for a lab group open at an instant.
func openAssignmentCond(templateCol string) string {
	return "EXISTS (SELECT 1 FROM assignment oa WHERE oa.assignment_template_id = " + templateCol +
		" AND oa.labgroup_id = ? AND oa.open_date < ? AND oa.close_date > ?)"
}

// Templates

const templateColumns = "t.id, t.course_id, t.name"

func (repo assignmentRepository) CreateTemplate(ctx context.Context, t assignment.Template, exec ...core.DBExecutor) (assignment.Template, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), "INSERT INTO assignment_template (course_id, name) VALUES (?, ?)", t.CourseID, t.Name)
	if err != nil {
		return assignment.Template{}, errors.Wrap(err, "inserting assignment template")
	}
	t.ID = id
	return t, nil
}

func (repo assignmentRepository) QueryTemplates(ctx context.Context, filter *assignment.TemplateFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Template, error) {
	var w where
	if filter != nil {
		if filter.Course != 0 {
			w.add("t.course_id = ?", filter.Course)
		}
		if filter.OpenFor != 0 {
			at := dbTime(filter.OpenAt)
			w.add(openAssignmentCond("t.id"), filter.OpenFor, at, at)
		}
	}

	var rows []templateRow
	q := "SELECT " + templateColumns + " FROM assignment_template t" + w.String() + orderBy(ordering, templateOrderingColumns, "t.id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignment templates")
	}
	templates := make([]assignment.Template, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, assignment.Template(r))
	}
	return templates, nil
}

func (repo assignmentRepository) GetTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.Template, error) {
	var r templateRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT "+templateColumns+" FROM assignment_template t WHERE t.id = ?", id); err != nil {
		return assignment.Template{}, trapNoRowsErr(err, assignment.ErrTemplateNotFound, "finding assignment template")
	}
	return assignment.Template(r), nil
}

func (repo assignmentRepository) UpdateTemplate(ctx context.Context, t assignment.Template, exec ...core.DBExecutor) (assignment.Template, error) {
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrTemplateNotFound,
		"UPDATE assignment_template SET course_id = ?, name = ? WHERE id = ?", t.CourseID, t.Name, t.ID)
	return t, wrapUnlessNotFound(err, "updating assignment template")
}

func (repo assignmentRepository) DeleteTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrTemplateNotFound, "DELETE FROM assignment_template WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting assignment template")
}

// Task Templates

const taskTemplateColumns = `tt.id, tt.assignment_template_id, tt.name, tt.summary, tt.prompt, tt.prompt_format, tt.image_urls,
	tt.attempts_allowed, tt.numeric_accuracy, tt.numeric_only, tt.answer`

func (repo assignmentRepository) CreateTaskTemplate(ctx context.Context, t assignment.TaskTemplate, exec ...core.DBExecutor) (assignment.TaskTemplate, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), `INSERT INTO task_template (assignment_template_id, name, summary, prompt,
		prompt_format, image_urls, attempts_allowed, numeric_accuracy, numeric_only, answer) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TemplateID, t.Name, t.Summary, t.Prompt, t.PromptFormat, t.ImageURLs, t.AttemptsAllowed, t.NumericAccuracy, t.NumericOnly, t.Answer)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return assignment.TaskTemplate{}, assignment.ErrTaskTemplateExists
		}
		return assignment.TaskTemplate{}, errors.Wrap(err, "inserting task template")
	}
	t.ID = id
	return t, nil
}

func (repo assignmentRepository) QueryTaskTemplates(ctx context.Context, filter *assignment.TaskTemplateFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.TaskTemplate, error) {
	var w where
	if filter != nil {
		if filter.Template != 0 {
			w.add("tt.assignment_template_id = ?", filter.Template)
		}
		if filter.OpenFor != 0 {
			at := dbTime(filter.OpenAt)
			w.add(openAssignmentCond("tt.assignment_template_id"), filter.OpenFor, at, at)
		}
	}

	var rows []taskTemplateRow
	q := "SELECT " + taskTemplateColumns + " FROM task_template tt" + w.String() + orderBy(ordering, taskTemplateOrderingColumns, "tt.id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying task templates")
	}
	tasks := make([]assignment.TaskTemplate, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, assignment.TaskTemplate(r))
	}
	return tasks, nil
}

func (repo assignmentRepository) GetTaskTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.TaskTemplate, error) {
	var r taskTemplateRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT "+taskTemplateColumns+" FROM task_template tt WHERE tt.id = ?", id); err != nil {
		return assignment.TaskTemplate{}, trapNoRowsErr(err, assignment.ErrTaskNotFound, "finding task template")
	}
	return assignment.TaskTemplate(r), nil
}

func (repo assignmentRepository) UpdateTaskTemplate(ctx context.Context, t assignment.TaskTemplate, exec ...core.DBExecutor) (assignment.TaskTemplate, error) {
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrTaskNotFound, `UPDATE task_template SET assignment_template_id = ?,
		name = ?, summary = ?, prompt = ?, prompt_format = ?, image_urls = ?, attempts_allowed = ?, numeric_accuracy = ?,
		numeric_only = ?, answer = ? WHERE id = ?`,
		t.TemplateID, t.Name, t.Summary, t.Prompt, t.PromptFormat, t.ImageURLs, t.AttemptsAllowed, t.NumericAccuracy, t.NumericOnly, t.Answer, t.ID)
	if database.IsUniqueViolation(err) {
		return assignment.TaskTemplate{}, assignment.ErrTaskTemplateExists
	}
	return t, wrapUnlessNotFound(err, "updating task template")
}

func (repo assignmentRepository) DeleteTaskTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrTaskNotFound, "DELETE FROM task_template WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting task template")
}

// Assignments

const assignmentSelect = `SELECT a.id, a.assignment_template_id, a.labgroup_id, a.open_date, a.close_date, t.name
	FROM assignment a JOIN assignment_template t ON t.id = a.assignment_template_id`

func (repo assignmentRepository) unboilAssignment(r assignmentRow) assignment.Assignment {
	a := assignment.Assignment(r)
	a.OpenDate = a.OpenDate.UTC()
	a.CloseDate = a.CloseDate.UTC()
	return a
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)
	id, err := repo.insert(ctx, exe,
		"INSERT INTO assignment (assignment_template_id, labgroup_id, open_date, close_date) VALUES (?, ?, ?, ?)",
		a.TemplateID, a.LabGroupID, dbTime(a.OpenDate), dbTime(a.CloseDate))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return repo.GetAssignment(ctx, id, exe)
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.AssignmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	var w where
	if filter != nil {
		if filter.LabGroup != 0 {
			w.add("a.labgroup_id = ?", filter.LabGroup)
		}
		if filter.Template != 0 {
			w.add("a.assignment_template_id = ?", filter.Template)
		}
		if !filter.OpenAt.IsZero() {
			at := dbTime(filter.OpenAt)
			w.add("a.open_date < ? AND a.close_date > ?", at, at)
		}
	}

	var rows []assignmentRow
	q := assignmentSelect + w.String() + orderBy(ordering, assignmentOrderingColumns, "a.open_date ASC, a.id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asmts := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		asmts = append(asmts, repo.unboilAssignment(r))
	}
	return asmts, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var r assignmentRow
	if err := repo.get(ctx, repo.getExec(exec), &r, assignmentSelect+" WHERE a.id = ?", id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrAssignmentNotFound, "finding assignment")
	}
	return repo.unboilAssignment(r), nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)
	err := repo.execOne(ctx, exe, assignment.ErrAssignmentNotFound,
		"UPDATE assignment SET assignment_template_id = ?, labgroup_id = ?, open_date = ?, close_date = ? WHERE id = ?",
		a.TemplateID, a.LabGroupID, dbTime(a.OpenDate), dbTime(a.CloseDate), a.ID)
	if err != nil {
		return assignment.Assignment{}, wrapUnlessNotFound(err, "updating assignment")
	}
	return repo.GetAssignment(ctx, a.ID, exe)
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrAssignmentNotFound, "DELETE FROM assignment WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting assignment")
}

// Entries

const entryColumns = "id, student_id, assignment_id, start_date, submit_date, grade"

func (repo assignmentRepository) unboilEntry(r entryRow) assignment.Entry {
	e := assignment.Entry(r)
	e.StartDate = e.StartDate.UTC()
	if e.SubmitDate.Valid {
		e.SubmitDate.Time = e.SubmitDate.Time.UTC()
	}
	return e
}

func nullDBTime(t null.Time) null.Time {
	if !t.Valid {
		return t
	}
	return null.TimeFrom(dbTime(t.Time))
}

func (repo assignmentRepository) CreateEntry(ctx context.Context, e assignment.Entry, exec ...core.DBExecutor) (assignment.Entry, error) {
	e.StartDate = dbTime(e.StartDate)
	e.SubmitDate = nullDBTime(e.SubmitDate)
	id, err := repo.insert(ctx, repo.getExec(exec),
		"INSERT INTO assignment_entry (student_id, assignment_id, start_date, submit_date, grade) VALUES (?, ?, ?, ?, ?)",
		e.StudentID, e.AssignmentID, e.StartDate, e.SubmitDate, e.Grade)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return assignment.Entry{}, assignment.ErrAlreadyStarted
		}
		return assignment.Entry{}, errors.Wrap(err, "inserting assignment entry")
	}
	e.ID = id
	return e, nil
}

func (repo assignmentRepository) GetEntry(ctx context.Context, studentID, assignmentID int64, exec ...core.DBExecutor) (assignment.Entry, error) {
	var r entryRow
	err := repo.get(ctx, repo.getExec(exec), &r,
		"SELECT "+entryColumns+" FROM assignment_entry WHERE student_id = ? AND assignment_id = ?", studentID, assignmentID)
	if err != nil {
		return assignment.Entry{}, trapNoRowsErr(err, assignment.ErrEntryNotFound, "finding assignment entry")
	}
	return repo.unboilEntry(r), nil
}

func (repo assignmentRepository) QueryEntries(ctx context.Context, assignmentID int64, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Entry, error) {
	var rows []entryRow
	q := "SELECT " + entryColumns + " FROM assignment_entry WHERE assignment_id = ?" + orderBy(ordering, entryOrderingColumns, "id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying assignment entries")
	}
	entries := make([]assignment.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, repo.unboilEntry(r))
	}
	return entries, nil
}

func (repo assignmentRepository) UpdateEntry(ctx context.Context, e assignment.Entry, exec ...core.DBExecutor) (assignment.Entry, error) {
	e.StartDate = dbTime(e.StartDate)
	e.SubmitDate = nullDBTime(e.SubmitDate)
	err := repo.execOne(ctx, repo.getExec(exec), assignment.ErrEntryNotFound,
		"UPDATE assignment_entry SET start_date = ?, submit_date = ?, grade = ? WHERE id = ?",
		e.StartDate, e.SubmitDate, e.Grade, e.ID)
	return e, wrapUnlessNotFound(err, "updating assignment entry")
}

// Task Entries

const taskEntryColumns = "id, assignment_entry_id, task_template_id, attempts, passed, raw_input"

func (repo assignmentRepository) GetTaskEntry(ctx context.Context, entryID, taskTemplateID int64, exec ...core.DBExecutor) (assignment.TaskEntry, error) {
	var r taskEntryRow
	err := repo.get(ctx, repo.getExec(exec), &r,
		"SELECT "+taskEntryColumns+" FROM task_entry WHERE assignment_entry_id = ? AND task_template_id = ?", entryID, taskTemplateID)
	if err != nil {
		return assignment.TaskEntry{}, trapNoRowsErr(err, assignment.ErrTaskEntryNotFound, "finding task entry")
	}
	return assignment.TaskEntry(r), nil
}

func (repo assignmentRepository) QueryTaskEntries(ctx context.Context, entryID int64, exec ...core.DBExecutor) ([]assignment.TaskEntry, error) {
	var rows []taskEntryRow
	q := "SELECT " + taskEntryColumns + " FROM task_entry WHERE assignment_entry_id = ? ORDER BY id ASC"
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, entryID); err != nil {
		return nil, errors.Wrap(err, "querying task entries")
	}
	entries := make([]assignment.TaskEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, assignment.TaskEntry(r))
	}
	return entries, nil
}

func (repo assignmentRepository) SaveTaskEntry(ctx context.Context, te assignment.TaskEntry, exec ...core.DBExecutor) (assignment.TaskEntry, error) {
	exe := repo.getExec(exec)
	if te.ID == 0 {
		id, err := repo.insert(ctx, exe,
			"INSERT INTO task_entry (assignment_entry_id, task_template_id, attempts, passed, raw_input) VALUES (?, ?, ?, ?, ?)",
			te.EntryID, te.TaskTemplateID, te.Attempts, te.Passed, te.RawInput)
		if err != nil {
			return assignment.TaskEntry{}, errors.Wrap(err, "inserting task entry")
		}
		te.ID = id
		return te, nil
	}

	err := repo.execOne(ctx, exe, assignment.ErrTaskEntryNotFound,
		"UPDATE task_entry SET attempts = ?, passed = ?, raw_input = ? WHERE id = ?", te.Attempts, te.Passed, te.RawInput, te.ID)
	return te, wrapUnlessNotFound(err, "updating task entry")
}

func (repo assignmentRepository) QueryExportRows(ctx context.Context, assignmentID int64, exec ...core.DBExecutor) ([]assignment.ExportRow, error) {
	q := `SELECT e.id AS entry_id, s.wwuid, tt.name AS task, te.raw_input
		FROM assignment_entry e
		JOIN student s ON s.id = e.student_id
		LEFT JOIN task_entry te ON te.assignment_entry_id = e.id
		LEFT JOIN task_template tt ON tt.id = te.task_template_id
		WHERE e.assignment_id = ?
		ORDER BY s.wwuid, e.id, tt.name`

	var rows []exportRow
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying export rows")
	}
	export := make([]assignment.ExportRow, 0, len(rows))
	for _, r := range rows {
		export = append(export, assignment.ExportRow(r))
	}
	return export, nil
}
