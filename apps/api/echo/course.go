package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
)

type courseApi struct {
	users    user.Service
	svc      course.Service
	validate *validator.Validate
}

func registerCourseAPI(
	e *echo.Echo,
	jwt echo.MiddlewareFunc,
	users user.Service,
	svc course.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		users:    users,
		svc:      svc,
		validate: validate,
	}

	cg := e.Group("/course", jwt, instructorMiddleware(users))
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)

	ig := e.Group("/instructor", jwt, adminMiddleware(users))
	ig.GET("", api.queryInstructors)
	ig.POST("", api.createInstructor)
	ig.GET("/:id", api.retrieveInstructor)
	ig.PUT("/:id", api.updateInstructor)
	ig.DELETE("/:id", api.destroyInstructor)

	sg := e.Group("/student", jwt, activeUserMiddleware(users))
	sg.POST("", api.createStudent)
	sg.GET("", api.queryStudents, instructorMiddleware(users))
	sg.GET("/:id", api.retrieveStudent, instructorMiddleware(users))
	sg.PUT("/:id", api.updateStudent, instructorMiddleware(users))
	sg.DELETE("/:id", api.destroyStudent, instructorMiddleware(users))

	eg := e.Group("/enroll", jwt, activeUserMiddleware(users))
	eg.GET("", api.enrollStatus)
	eg.POST("", api.enroll)
}

type (
	CourseList struct {
		Courses []course.Course `json:"courses"`
	}

	InstructorList struct {
		Instructors []course.Instructor `json:"instructors"`
	}

	StudentList struct {
		Students []course.Student `json:"students"`
	}

	// EnrollStatus is the context user with their student profile, if any.
	EnrollStatus struct {
		User    user.User       `json:"user"`
		Student *course.Student `json:"student"`
	}
)

// Courses

func (api *courseApi) queryCourses(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, CourseList{Courses: courses})
}

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.CourseData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	c, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.CourseData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Instructors

func (api *courseApi) queryInstructors(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	instructors, err := api.svc.QueryInstructors(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying instructors")
	}
	if instructors == nil {
		instructors = []course.Instructor{}
	}
	return ctx.JSON(http.StatusOK, InstructorList{Instructors: instructors})
}

func (api *courseApi) createInstructor(ctx echo.Context) error {
	var data course.InstructorData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InstructorData")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	ins, err := api.svc.CreateInstructor(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating instructor")
	}
	return ctx.JSON(http.StatusCreated, ins)
}

func (api *courseApi) retrieveInstructor(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	ins, err := api.svc.GetInstructor(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting instructor")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *courseApi) updateInstructor(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.InstructorData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InstructorData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	ins, err := api.svc.UpdateInstructor(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating instructor")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *courseApi) destroyInstructor(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteInstructor(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting instructor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *courseApi) queryStudents(ctx echo.Context) error {
	filter := new(course.StudentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, StudentList{Students: []course.Student{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []course.Student{}
	}
	return ctx.JSON(http.StatusOK, StudentList{Students: students})
}

func (api *courseApi) createStudent(ctx echo.Context) error {
	var data course.StudentData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentData")
	}

	// students create their own profile, and join a lab group by enrolling
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !isStaff(ctxUsr) {
		data.User = ctxUsr.ID
		data.LabGroup.Valid = false
	}

	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *courseApi) retrieveStudent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *courseApi) updateStudent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.StudentData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.UpdateStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *courseApi) destroyStudent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollment

func (api *courseApi) enrollStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	status := EnrollStatus{User: usr}
	st, err := api.svc.GetStudentByUser(ctx.Request().Context(), usr.ID)
	switch {
	case err == nil:
		status.Student = &st
	case errors.Is(err, core.ErrNotFound):
	default:
		return errors.Wrap(err, "finding student by user")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data course.EnrollData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := getContextStudent(ctx, api.users, api.svc)
	if err != nil {
		return err
	}
	if _, err = api.svc.Enroll(ctx.Request().Context(), st, data); err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
