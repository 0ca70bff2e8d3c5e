package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
)

const csvContentType = "text/csv; charset=utf-8"

type assignmentApi struct {
	users    user.Service
	courses  course.Service
	svc      assignment.Service
	validate *validator.Validate
}

func registerAssignmentAPI(
	e *echo.Echo,
	jwt echo.MiddlewareFunc,
	users user.Service,
	courses course.Service,
	svc assignment.Service,
	validate *validator.Validate,
) {
	api := assignmentApi{
		users:    users,
		courses:  courses,
		svc:      svc,
		validate: validate,
	}
	instructorOnly := instructorMiddleware(users)

	tg := e.Group("/template", jwt, activeUserMiddleware(users))
	tg.GET("", api.queryTemplates)
	tg.GET("/:id", api.retrieveTemplate)
	tg.POST("", api.createTemplate, instructorOnly)
	tg.PUT("/:id", api.updateTemplate, instructorOnly)
	tg.DELETE("/:id", api.destroyTemplate, instructorOnly)

	ttg := e.Group("/tasktemplate", jwt, activeUserMiddleware(users))
	ttg.GET("", api.queryTaskTemplates)
	ttg.GET("/:id", api.retrieveTaskTemplate)
	ttg.POST("", api.createTaskTemplate, instructorOnly)
	ttg.PUT("/:id", api.updateTaskTemplate, instructorOnly)
	ttg.DELETE("/:id", api.destroyTaskTemplate, instructorOnly)

	ag := e.Group("/assignment", jwt, activeUserMiddleware(users))
	ag.GET("", api.queryAssignments)
	ag.GET("/:id", api.retrieveAssignment)
	ag.POST("", api.createAssignment, instructorOnly)
	ag.PUT("/:id", api.updateAssignment, instructorOnly)
	ag.DELETE("/:id", api.destroyAssignment, instructorOnly)

	// student lifecycle
	ag.POST("/:id/start", api.start)
	ag.GET("/:id/entry", api.retrieveEntry)
	ag.GET("/:id/task", api.queryTaskEntries)
	ag.POST("/:id/task/:task", api.answer)
	ag.POST("/:id/submit", api.submit)

	ag.GET("/:id/entries", api.queryEntries, instructorOnly)
	ag.GET("/:id/csv", api.exportCSV, instructorOnly)
}

type (
	TemplateList struct {
		Templates []assignment.Template `json:"templates"`
	}

	TaskTemplateList struct {
		TaskTemplates []assignment.TaskTemplate `json:"task_templates"`
	}

	StudentTaskTemplateList struct {
		TaskTemplates []assignment.StudentTaskTemplate `json:"task_templates"`
	}

	AssignmentList struct {
		Assignments []assignment.Assignment `json:"assignments"`
	}

	EntryList struct {
		Entries []assignment.Entry `json:"assignment_entries"`
	}

	TaskEntryList struct {
		TaskEntries []assignment.TaskEntry `json:"task_entries"`
	}
)

// viewer returns the student profile of the context user, or nil for staff.
func (api *assignmentApi) viewer(ctx echo.Context) (*course.Student, error) {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	if isStaff(usr) {
		return nil, nil
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Templates

func (api *assignmentApi) queryTemplates(ctx echo.Context) error {
	filter := new(assignment.TemplateFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, TemplateList{Templates: []assignment.Template{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	var templates []assignment.Template
	if st == nil {
		templates, err = api.svc.QueryTemplates(ctx.Request().Context(), filter, ordering.Orderings)
	} else {
		templates, err = api.svc.QueryTemplatesForStudent(ctx.Request().Context(), *st, filter, ordering.Orderings)
	}
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if templates == nil {
		templates = []assignment.Template{}
	}
	return ctx.JSON(http.StatusOK, TemplateList{Templates: templates})
}

func (api *assignmentApi) retrieveTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	var t assignment.Template
	if st == nil {
		t, err = api.svc.GetTemplate(ctx.Request().Context(), id)
	} else {
		t, err = api.svc.GetTemplateForStudent(ctx.Request().Context(), *st, id)
	}
	if err != nil {
		return errors.Wrap(err, "getting template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assignmentApi) createTemplate(ctx echo.Context) error {
	var data assignment.TemplateData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateData")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.courses); err != nil {
		return err
	}

	t, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *assignmentApi) updateTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data assignment.TemplateData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.courses); err != nil {
		return err
	}

	t, err := api.svc.UpdateTemplate(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assignmentApi) destroyTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Task Templates

func (api *assignmentApi) queryTaskTemplates(ctx echo.Context) error {
	filter := new(assignment.TaskTemplateFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, TaskTemplateList{TaskTemplates: []assignment.TaskTemplate{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	if st == nil {
		tasks, err := api.svc.QueryTaskTemplates(ctx.Request().Context(), filter, ordering.Orderings)
		if err != nil {
			return errors.Wrap(err, "querying task templates")
		}
		if tasks == nil {
			tasks = []assignment.TaskTemplate{}
		}
		return ctx.JSON(http.StatusOK, TaskTemplateList{TaskTemplates: tasks})
	}

	tasks, err := api.svc.QueryTaskTemplatesForStudent(ctx.Request().Context(), *st, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying task templates")
	}
	studentTasks := make([]assignment.StudentTaskTemplate, len(tasks))
	for i, t := range tasks {
		studentTasks[i] = t.ForStudent()
	}
	return ctx.JSON(http.StatusOK, StudentTaskTemplateList{TaskTemplates: studentTasks})
}

func (api *assignmentApi) retrieveTaskTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	if st == nil {
		t, err := api.svc.GetTaskTemplate(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "getting task template")
		}
		return ctx.JSON(http.StatusOK, t)
	}

	t, err := api.svc.GetTaskTemplateForStudent(ctx.Request().Context(), *st, id)
	if err != nil {
		return errors.Wrap(err, "getting task template")
	}
	return ctx.JSON(http.StatusOK, t.ForStudent())
}

func (api *assignmentApi) createTaskTemplate(ctx echo.Context) error {
	var data assignment.TaskTemplateData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskTemplateData")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	t, err := api.svc.CreateTaskTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task template")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *assignmentApi) updateTaskTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data assignment.TaskTemplateData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskTemplateData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	t, err := api.svc.UpdateTaskTemplate(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating task template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assignmentApi) destroyTaskTemplate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTaskTemplate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting task template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

func (api *assignmentApi) queryAssignments(ctx echo.Context) error {
	filter := new(assignment.AssignmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, AssignmentList{Assignments: []assignment.Assignment{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	var assignments []assignment.Assignment
	if st == nil {
		assignments, err = api.svc.QueryAssignments(ctx.Request().Context(), filter, ordering.Orderings)
	} else {
		assignments, err = api.svc.QueryAssignmentsForStudent(ctx.Request().Context(), *st, filter, ordering.Orderings)
	}
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, AssignmentList{Assignments: assignments})
}

func (api *assignmentApi) retrieveAssignment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.viewer(ctx)
	if err != nil {
		return err
	}

	var a assignment.Assignment
	if st == nil {
		a, err = api.svc.GetAssignment(ctx.Request().Context(), id)
	} else {
		a, err = api.svc.GetAssignmentForStudent(ctx.Request().Context(), *st, id)
	}
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) createAssignment(ctx echo.Context) error {
	var data assignment.AssignmentData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentData")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) updateAssignment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data assignment.AssignmentData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	a, err := api.svc.UpdateAssignment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroyAssignment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignment(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Entries

func (api *assignmentApi) start(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return err
	}

	e, err := api.svc.StartAssignment(ctx.Request().Context(), st, id)
	if err != nil {
		return errors.Wrap(err, "starting assignment")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *assignmentApi) retrieveEntry(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return err
	}

	e, err := api.svc.GetEntry(ctx.Request().Context(), st, id)
	if err != nil {
		return errors.Wrap(err, "getting entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *assignmentApi) queryTaskEntries(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return err
	}

	entries, err := api.svc.QueryTaskEntries(ctx.Request().Context(), st, id)
	if err != nil {
		return errors.Wrap(err, "querying task entries")
	}
	if entries == nil {
		entries = []assignment.TaskEntry{}
	}
	return ctx.JSON(http.StatusOK, TaskEntryList{TaskEntries: entries})
}

func (api *assignmentApi) answer(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	taskID, err := paramID(ctx, "task")
	if err != nil {
		return err
	}
	var data assignment.AnswerData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return err
	}

	te, err := api.svc.AnswerTask(ctx.Request().Context(), st, id, taskID, data)
	if err != nil {
		return errors.Wrap(err, "answering task")
	}
	return ctx.JSON(http.StatusOK, te)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := getContextStudent(ctx, api.users, api.courses)
	if err != nil {
		return err
	}

	e, err := api.svc.SubmitAssignment(ctx.Request().Context(), st, id)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *assignmentApi) queryEntries(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.svc.QueryEntries(ctx.Request().Context(), id, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}
	if entries == nil {
		entries = []assignment.Entry{}
	}
	return ctx.JSON(http.StatusOK, EntryList{Entries: entries})
}

// Export

func (api *assignmentApi) exportCSV(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	a, err := api.svc.GetAssignment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	if err = api.checkLabGroupInstructor(ctx, a.LabGroupID); err != nil {
		return err
	}

	filename, data, err := api.svc.ExportCSV(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "exporting assignment")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, csvContentType, data)
}

// checkLabGroupInstructor only lets admins and the instructor of the lab group through.
func (api *assignmentApi) checkLabGroupInstructor(ctx echo.Context, labGroupID int64) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.IsAdmin() {
		return nil
	}

	lg, err := api.courses.GetLabGroup(ctx.Request().Context(), labGroupID)
	if err != nil {
		return errors.Wrap(err, "getting lab group")
	}
	ins, err := api.courses.GetInstructorByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return errHttpForbidden
		}
		return errors.Wrap(err, "finding instructor by user")
	}
	if ins.ID != lg.InstructorID {
		return errHttpForbidden
	}
	return nil
}
