package assignment

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
)

var (
	// errors
	ErrTemplateNotFound   = core.NewNotFoundError("assignment template not found")
	ErrTaskNotFound       = core.NewNotFoundError("task template not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrEntryNotFound      = core.NewNotFoundError("assignment entry not found")
	ErrTaskEntryNotFound  = core.NewNotFoundError("task entry not found")

	ErrAssignmentClosed = core.NewPermissionError("assignment is not open")
	ErrNoAttemptsLeft   = core.NewPermissionError("no attempts left for this task")

	ErrAlreadyStarted   = core.NewConflictError("assignment already started")
	ErrAlreadySubmitted = core.NewConflictError("assignment already submitted")
	ErrTaskPassed       = core.NewConflictError("task already passed")

	ErrNotStarted = core.NewValidationError(errors.New("assignment not started"))

	ErrTaskTemplateExists = errors.New("a task with this name already exists in the assignment template")

	errInvalidTaskTemplate = errors.New("invalid task template")
	errCourseMismatch      = "labgroup and assignment_template must belong to the same course"
)

type (
	Repository interface {
		CreateTemplate(ctx context.Context, t Template, exec ...core.DBExecutor) (Template, error)
		QueryTemplates(ctx context.Context, filter *TemplateFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Template, error)
		GetTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) (Template, error)
		UpdateTemplate(ctx context.Context, t Template, exec ...core.DBExecutor) (Template, error)
		DeleteTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateTaskTemplate(ctx context.Context, t TaskTemplate, exec ...core.DBExecutor) (TaskTemplate, error)
		QueryTaskTemplates(ctx context.Context, filter *TaskTemplateFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]TaskTemplate, error)
		GetTaskTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) (TaskTemplate, error)
		UpdateTaskTemplate(ctx context.Context, t TaskTemplate, exec ...core.DBExecutor) (TaskTemplate, error)
		DeleteTaskTemplate(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) error

		// CreateEntry returns ErrAlreadyStarted if the student already has an entry for the assignment.
		CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		GetEntry(ctx context.Context, studentID, assignmentID int64, exec ...core.DBExecutor) (Entry, error)
		QueryEntries(ctx context.Context, assignmentID int64, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Entry, error)
		UpdateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)

		GetTaskEntry(ctx context.Context, entryID, taskTemplateID int64, exec ...core.DBExecutor) (TaskEntry, error)
		QueryTaskEntries(ctx context.Context, entryID int64, exec ...core.DBExecutor) ([]TaskEntry, error)
		// SaveTaskEntry inserts te when its ID is zero and updates it otherwise.
		SaveTaskEntry(ctx context.Context, te TaskEntry, exec ...core.DBExecutor) (TaskEntry, error)

		// QueryExportRows returns one row per (entry, task entry) of the assignment,
		// and a row with an invalid Task for entries without task entries.
		QueryExportRows(ctx context.Context, assignmentID int64, exec ...core.DBExecutor) ([]ExportRow, error)
	}

	// Roster is the part of the course service assignments rely on.
	Roster interface {
		CheckCourse(ctx context.Context, id int64) error
		GetLabGroup(ctx context.Context, id int64) (course.LabGroup, error)
	}

	Service interface {
		CheckTemplate(ctx context.Context, id int64) error
		// CheckAssignmentRefs checks that both objects exist and belong to the same course.
		CheckAssignmentRefs(ctx context.Context, templateID, labGroupID int64) error

		CreateTemplate(ctx context.Context, data TemplateData) (Template, error)
		QueryTemplates(ctx context.Context, filter *TemplateFilter, ordering []core.DBOrdering) ([]Template, error)
		GetTemplate(ctx context.Context, id int64) (Template, error)
		UpdateTemplate(ctx context.Context, id int64, data TemplateData) (Template, error)
		DeleteTemplate(ctx context.Context, id int64) error

		CreateTaskTemplate(ctx context.Context, data TaskTemplateData) (TaskTemplate, error)
		QueryTaskTemplates(ctx context.Context, filter *TaskTemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error)
		GetTaskTemplate(ctx context.Context, id int64) (TaskTemplate, error)
		UpdateTaskTemplate(ctx context.Context, id int64, data TaskTemplateData) (TaskTemplate, error)
		DeleteTaskTemplate(ctx context.Context, id int64) error

		CreateAssignment(ctx context.Context, data AssignmentData) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int64) (Assignment, error)
		UpdateAssignment(ctx context.Context, id int64, data AssignmentData) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int64) error

		// The ForStudent variants only expose what is open for the student's lab group.
		QueryTemplatesForStudent(ctx context.Context, st course.Student, filter *TemplateFilter, ordering []core.DBOrdering) ([]Template, error)
		GetTemplateForStudent(ctx context.Context, st course.Student, id int64) (Template, error)
		QueryTaskTemplatesForStudent(ctx context.Context, st course.Student, filter *TaskTemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error)
		GetTaskTemplateForStudent(ctx context.Context, st course.Student, id int64) (TaskTemplate, error)
		QueryAssignmentsForStudent(ctx context.Context, st course.Student, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		// GetAssignmentForStudent returns assignments of the student's lab group, open or not.
		GetAssignmentForStudent(ctx context.Context, st course.Student, id int64) (Assignment, error)

		StartAssignment(ctx context.Context, st course.Student, assignmentID int64) (Entry, error)
		AnswerTask(ctx context.Context, st course.Student, assignmentID, taskID int64, data AnswerData) (TaskEntry, error)
		SubmitAssignment(ctx context.Context, st course.Student, assignmentID int64) (Entry, error)
		GetEntry(ctx context.Context, st course.Student, assignmentID int64) (Entry, error)
		QueryTaskEntries(ctx context.Context, st course.Student, assignmentID int64) ([]TaskEntry, error)
		QueryEntries(ctx context.Context, assignmentID int64, ordering []core.DBOrdering) ([]Entry, error)

		// ExportCSV returns the answers of every student to the assignment as a CSV file.
		ExportCSV(ctx context.Context, assignmentID int64) (filename string, data []byte, err error)
	}

	service struct {
		db     core.DB
		repo   Repository
		roster Roster
		now    func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, roster Roster) Service {
	return &service{
		db:     db,
		repo:   repo,
		roster: roster,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) CheckTemplate(ctx context.Context, id int64) error {
	_, err := svc.repo.GetTemplate(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewFieldError("assignment_template", "invalid assignment_template: object does not exist")
	}
	return err
}

func (svc *service) CheckAssignmentRefs(ctx context.Context, templateID, labGroupID int64) error {
	var flds []core.FieldError

	tmpl, err := svc.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		flds = append(flds, core.FieldError{Field: "assignment_template", Error: "invalid assignment_template: object does not exist"})
	}
	lg, err := svc.roster.GetLabGroup(ctx, labGroupID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		flds = append(flds, core.FieldError{Field: "labgroup", Error: "invalid labgroup: object does not exist"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid assignment"), flds...)
	}

	if tmpl.CourseID != lg.CourseID {
		return core.NewFieldError("labgroup", errCourseMismatch)
	}
	return nil
}

// Templates

func (svc *service) CreateTemplate(ctx context.Context, data TemplateData) (Template, error) {
	t, err := svc.repo.CreateTemplate(ctx, Template{CourseID: data.Course, Name: data.Name})
	return t, errors.Wrap(err, "creating assignment template")
}

func (svc *service) QueryTemplates(ctx context.Context, filter *TemplateFilter, ordering []core.DBOrdering) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx, filter, ordering)
}

func (svc *service) GetTemplate(ctx context.Context, id int64) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *service) UpdateTemplate(ctx context.Context, id int64, data TemplateData) (Template, error) {
	return svc.repo.UpdateTemplate(ctx, Template{ID: id, CourseID: data.Course, Name: data.Name})
}

func (svc *service) DeleteTemplate(ctx context.Context, id int64) error {
	return svc.repo.DeleteTemplate(ctx, id)
}

func (svc *service) QueryTemplatesForStudent(ctx context.Context, st course.Student, filter *TemplateFilter, ordering []core.DBOrdering) ([]Template, error) {
	if !st.LabGroupID.Valid {
		return []Template{}, nil
	}
	if filter == nil {
		filter = new(TemplateFilter)
	}
	filter.OpenFor = st.LabGroupID.Int64
	filter.OpenAt = svc.now()
	return svc.repo.QueryTemplates(ctx, filter, ordering)
}

func (svc *service) GetTemplateForStudent(ctx context.Context, st course.Student, id int64) (Template, error) {
	open, err := svc.openTemplate(ctx, st, id)
	if err != nil {
		return Template{}, err
	}
	if !open {
		return Template{}, ErrTemplateNotFound
	}
	return svc.repo.GetTemplate(ctx, id)
}

// openTemplate reports whether the template has an assignment open now for the student's lab group.
func (svc *service) openTemplate(ctx context.Context, st course.Student, templateID int64) (bool, error) {
	if !st.LabGroupID.Valid {
		return false, nil
	}
	asmts, err := svc.repo.QueryAssignments(ctx, &AssignmentFilter{
		LabGroup: st.LabGroupID.Int64,
		Template: templateID,
		OpenAt:   svc.now(),
	}, nil)
	return len(asmts) > 0, err
}

// Task Templates

func (svc *service) CreateTaskTemplate(ctx context.Context, data TaskTemplateData) (TaskTemplate, error) {
	t, err := svc.repo.CreateTaskTemplate(ctx, taskTemplateFromData(0, data))
	if err != nil {
		return TaskTemplate{}, taskUniqueErr(err)
	}
	return t, nil
}

func (svc *service) QueryTaskTemplates(ctx context.Context, filter *TaskTemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error) {
	return svc.repo.QueryTaskTemplates(ctx, filter, ordering)
}

func (svc *service) GetTaskTemplate(ctx context.Context, id int64) (TaskTemplate, error) {
	return svc.repo.GetTaskTemplate(ctx, id)
}

func (svc *service) UpdateTaskTemplate(ctx context.Context, id int64, data TaskTemplateData) (TaskTemplate, error) {
	t, err := svc.repo.UpdateTaskTemplate(ctx, taskTemplateFromData(id, data))
	if err != nil {
		return TaskTemplate{}, taskUniqueErr(err)
	}
	return t, nil
}

func (svc *service) DeleteTaskTemplate(ctx context.Context, id int64) error {
	return svc.repo.DeleteTaskTemplate(ctx, id)
}

func (svc *service) QueryTaskTemplatesForStudent(ctx context.Context, st course.Student, filter *TaskTemplateFilter, ordering []core.DBOrdering) ([]TaskTemplate, error) {
	if !st.LabGroupID.Valid {
		return []TaskTemplate{}, nil
	}
	if filter == nil {
		filter = new(TaskTemplateFilter)
	}
	filter.OpenFor = st.LabGroupID.Int64
	filter.OpenAt = svc.now()
	return svc.repo.QueryTaskTemplates(ctx, filter, ordering)
}

func (svc *service) GetTaskTemplateForStudent(ctx context.Context, st course.Student, id int64) (TaskTemplate, error) {
	t, err := svc.repo.GetTaskTemplate(ctx, id)
	if err != nil {
		return TaskTemplate{}, err
	}
	open, err := svc.openTemplate(ctx, st, t.TemplateID)
	if err != nil {
		return TaskTemplate{}, err
	}
	if !open {
		return TaskTemplate{}, ErrTaskNotFound
	}
	return t, nil
}

func taskTemplateFromData(id int64, data TaskTemplateData) TaskTemplate {
	return TaskTemplate{
		ID:              id,
		TemplateID:      data.AssignmentTemplate,
		Name:            data.Name,
		Summary:         data.Summary,
		Prompt:          data.Prompt,
		PromptFormat:    data.PromptFormat,
		ImageURLs:       data.ImageURLs,
		AttemptsAllowed: data.AttemptsAllowed,
		NumericAccuracy: data.NumericAccuracy,
		NumericOnly:     data.NumericOnly,
		Answer:          data.Answer,
	}
}

func taskUniqueErr(err error) error {
	if errors.Cause(err) == ErrTaskTemplateExists {
		return core.NewValidationError(ErrTaskTemplateExists, core.FieldError{Field: "name", Error: ErrTaskTemplateExists.Error()})
	}
	return err
}

// Assignments

func (svc *service) CreateAssignment(ctx context.Context, data AssignmentData) (Assignment, error) {
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		TemplateID: data.AssignmentTemplate,
		LabGroupID: data.LabGroup,
		OpenDate:   data.OpenDate,
		CloseDate:  data.CloseDate,
	})
	return a, errors.Wrap(err, "creating assignment")
}

func (svc *service) QueryAssignments(ctx context.Context, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *service) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) UpdateAssignment(ctx context.Context, id int64, data AssignmentData) (Assignment, error) {
	return svc.repo.UpdateAssignment(ctx, Assignment{
		ID:         id,
		TemplateID: data.AssignmentTemplate,
		LabGroupID: data.LabGroup,
		OpenDate:   data.OpenDate,
		CloseDate:  data.CloseDate,
	})
}

func (svc *service) DeleteAssignment(ctx context.Context, id int64) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) QueryAssignmentsForStudent(ctx context.Context, st course.Student, filter *AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	if !st.LabGroupID.Valid {
		return []Assignment{}, nil
	}
	if filter == nil {
		filter = new(AssignmentFilter)
	}
	filter.LabGroup = st.LabGroupID.Int64
	filter.OpenAt = svc.now()
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *service) GetAssignmentForStudent(ctx context.Context, st course.Student, id int64) (Assignment, error) {
	return svc.studentAssignment(ctx, st, id)
}

func (svc *service) studentAssignment(ctx context.Context, st course.Student, id int64, exec ...core.DBExecutor) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id, exec...)
	if err != nil {
		return Assignment{}, err
	}
	if !st.InLabGroup(a.LabGroupID) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

// Entries

func (svc *service) StartAssignment(ctx context.Context, st course.Student, assignmentID int64) (Entry, error) {
	var e Entry
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		a, err := svc.studentAssignment(ctx, st, assignmentID, tx)
		if err != nil {
			return err
		}
		now := svc.now()
		if !a.IsOpen(now) {
			return ErrAssignmentClosed
		}
		if _, err = svc.repo.GetEntry(ctx, st.ID, a.ID, tx); err == nil {
			return ErrAlreadyStarted
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		e, err = svc.repo.CreateEntry(ctx, Entry{StudentID: st.ID, AssignmentID: a.ID, StartDate: now}, tx)
		return err
	})
	return e, err
}

func (svc *service) AnswerTask(ctx context.Context, st course.Student, assignmentID, taskID int64, data AnswerData) (TaskEntry, error) {
	var te TaskEntry
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		a, err := svc.studentAssignment(ctx, st, assignmentID, tx)
		if err != nil {
			return err
		}
		e, err := svc.startedEntry(ctx, st, a.ID, tx)
		if err != nil {
			return err
		}
		if e.IsSubmitted() {
			return ErrAlreadySubmitted
		}
		if !a.IsOpen(svc.now()) {
			return ErrAssignmentClosed
		}

		task, err := svc.repo.GetTaskTemplate(ctx, taskID, tx)
		if err != nil {
			return err
		}
		if task.TemplateID != a.TemplateID {
			return ErrTaskNotFound
		}

		te, err = svc.repo.GetTaskEntry(ctx, e.ID, task.ID, tx)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			te = TaskEntry{EntryID: e.ID, TaskTemplateID: task.ID}
		}
		if te.Passed {
			return ErrTaskPassed
		}
		if task.AttemptsAllowed.Valid && te.Attempts >= task.AttemptsAllowed.Int {
			return ErrNoAttemptsLeft
		}

		passed, err := task.Check(data.Value)
		if err != nil {
			return err
		}
		te.Attempts++
		te.Passed = passed
		te.RawInput = data.Value
		te, err = svc.repo.SaveTaskEntry(ctx, te, tx)
		return err
	})
	return te, err
}

func (svc *service) SubmitAssignment(ctx context.Context, st course.Student, assignmentID int64) (Entry, error) {
	var e Entry
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		a, err := svc.studentAssignment(ctx, st, assignmentID, tx)
		if err != nil {
			return err
		}
		if e, err = svc.startedEntry(ctx, st, a.ID, tx); err != nil {
			return err
		}
		if e.IsSubmitted() {
			return ErrAlreadySubmitted
		}

		tasks, err := svc.repo.QueryTaskTemplates(ctx, &TaskTemplateFilter{Template: a.TemplateID}, nil, tx)
		if err != nil {
			return err
		}
		entries, err := svc.repo.QueryTaskEntries(ctx, e.ID, tx)
		if err != nil {
			return err
		}

		e.SubmitDate = null.TimeFrom(svc.now())
		e.Grade = null.Float64From(Grade(tasks, entries))
		e, err = svc.repo.UpdateEntry(ctx, e, tx)
		return err
	})
	return e, err
}

// startedEntry returns the student's entry for the assignment or ErrNotStarted.
func (svc *service) startedEntry(ctx context.Context, st course.Student, assignmentID int64, tx core.DBExecutor) (Entry, error) {
	e, err := svc.repo.GetEntry(ctx, st.ID, assignmentID, tx)
	if errors.Is(err, core.ErrNotFound) {
		return Entry{}, ErrNotStarted
	}
	return e, err
}

func (svc *service) GetEntry(ctx context.Context, st course.Student, assignmentID int64) (Entry, error) {
	a, err := svc.studentAssignment(ctx, st, assignmentID)
	if err != nil {
		return Entry{}, err
	}
	return svc.repo.GetEntry(ctx, st.ID, a.ID)
}

func (svc *service) QueryTaskEntries(ctx context.Context, st course.Student, assignmentID int64) ([]TaskEntry, error) {
	a, err := svc.studentAssignment(ctx, st, assignmentID)
	if err != nil {
		return nil, err
	}
	e, err := svc.repo.GetEntry(ctx, st.ID, a.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return []TaskEntry{}, nil
		}
		return nil, err
	}
	return svc.repo.QueryTaskEntries(ctx, e.ID)
}

func (svc *service) QueryEntries(ctx context.Context, assignmentID int64, ordering []core.DBOrdering) ([]Entry, error) {
	if _, err := svc.repo.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEntries(ctx, assignmentID, ordering)
}

// Export

func (svc *service) ExportCSV(ctx context.Context, assignmentID int64) (string, []byte, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return "", nil, err
	}
	lg, err := svc.roster.GetLabGroup(ctx, a.LabGroupID)
	if err != nil {
		return "", nil, errors.Wrap(err, "getting lab group")
	}
	tasks, err := svc.repo.QueryTaskTemplates(ctx, &TaskTemplateFilter{Template: a.TemplateID}, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "querying tasks")
	}
	rows, err := svc.repo.QueryExportRows(ctx, a.ID)
	if err != nil {
		return "", nil, errors.Wrap(err, "querying answers")
	}

	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Name
	}
	var buf bytes.Buffer
	if err = WriteCSV(&buf, names, rows); err != nil {
		return "", nil, errors.Wrap(err, "writing csv")
	}
	return ExportFilename(a.Name, lg.GroupName, lg.Term), buf.Bytes(), nil
}
