package course

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/user"
)

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("course not found")
	ErrInstructorNotFound = core.NewNotFoundError("instructor not found")
	ErrStudentNotFound    = core.NewNotFoundError("student not found")
	ErrLabGroupNotFound   = core.NewNotFoundError("lab group not found")
	ErrWrongEnrollKey     = core.NewPermissionError("incorrect enroll key")

	ErrInstructorExists = errors.New("this user already has an instructor profile")
	ErrStudentExists    = errors.New("this user already has a student profile")
	ErrLabGroupExists   = errors.New("a lab group with this course, group name and term already exists")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateInstructor(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error)
		QueryInstructors(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Instructor, error)
		GetInstructor(ctx context.Context, id int64, exec ...core.DBExecutor) (Instructor, error)
		GetInstructorByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Instructor, error)
		UpdateInstructor(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error)
		DeleteInstructor(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id int64, exec ...core.DBExecutor) (Student, error)
		GetStudentByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, id int64, exec ...core.DBExecutor) error

		CreateLabGroup(ctx context.Context, lg LabGroup, exec ...core.DBExecutor) (LabGroup, error)
		QueryLabGroups(ctx context.Context, filter *LabGroupFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]LabGroup, error)
		GetLabGroup(ctx context.Context, id int64, exec ...core.DBExecutor) (LabGroup, error)
		UpdateLabGroup(ctx context.Context, lg LabGroup, exec ...core.DBExecutor) (LabGroup, error)
		DeleteLabGroup(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// Users is the part of the user service the roster relies on.
	Users interface {
		GetByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error)
		GrantRole(ctx context.Context, id, role string, exec ...core.DBExecutor) error
		RevokeRole(ctx context.Context, id, role string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUser(ctx context.Context, id string) error
		CheckCourse(ctx context.Context, id int64) error
		CheckInstructor(ctx context.Context, id int64) error
		CheckLabGroup(ctx context.Context, id int64) error

		CreateCourse(ctx context.Context, data CourseData) (Course, error)
		QueryCourses(ctx context.Context, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id int64) (Course, error)
		UpdateCourse(ctx context.Context, id int64, data CourseData) (Course, error)
		DeleteCourse(ctx context.Context, id int64) error

		CreateInstructor(ctx context.Context, data InstructorData) (Instructor, error)
		QueryInstructors(ctx context.Context, ordering []core.DBOrdering) ([]Instructor, error)
		GetInstructor(ctx context.Context, id int64) (Instructor, error)
		GetInstructorByUser(ctx context.Context, userID string) (Instructor, error)
		UpdateInstructor(ctx context.Context, id int64, data InstructorData) (Instructor, error)
		DeleteInstructor(ctx context.Context, id int64) error

		CreateStudent(ctx context.Context, data StudentData) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		GetStudentByUser(ctx context.Context, userID string) (Student, error)
		UpdateStudent(ctx context.Context, id int64, data StudentData) (Student, error)
		DeleteStudent(ctx context.Context, id int64) error

		CreateLabGroup(ctx context.Context, data LabGroupData) (LabGroup, error)
		// QueryLabGroups defaults filter.Term to the current term.
		QueryLabGroups(ctx context.Context, filter *LabGroupFilter, ordering []core.DBOrdering) ([]LabGroup, error)
		GetLabGroup(ctx context.Context, id int64) (LabGroup, error)
		UpdateLabGroup(ctx context.Context, id int64, data LabGroupData) (LabGroup, error)
		DeleteLabGroup(ctx context.Context, id int64) error

		// Enroll moves the student into the lab group if enrollKey matches the lab group's.
		Enroll(ctx context.Context, st Student, data EnrollData) (Student, error)
		CurrentTerm() string
	}

	service struct {
		db    core.DB
		repo  Repository
		users Users
		loc   *time.Location
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, users Users, conf *core.Config) Service {
	loc := conf.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{db: db, repo: repo, users: users, loc: loc}
}

// uniqueErr turns a repository uniqueness error into a ValidationError on field.
func uniqueErr(err error, field string, known ...error) error {
	for _, k := range known {
		if errors.Cause(err) == k {
			return core.NewValidationError(k, core.FieldError{Field: field, Error: k.Error()})
		}
	}
	return err
}

// invalidRef reports a reference to an object that does not exist as a ValidationError on field.
func invalidRef(err error, field string) error {
	if errors.Is(err, core.ErrNotFound) {
		msg := "invalid " + field + ": object does not exist"
		return core.NewFieldError(field, msg)
	}
	return err
}

func (svc *service) CheckUser(ctx context.Context, id string) error {
	_, err := svc.users.GetByID(ctx, id)
	return invalidRef(err, "user")
}

func (svc *service) CheckCourse(ctx context.Context, id int64) error {
	_, err := svc.repo.GetCourse(ctx, id)
	return invalidRef(err, "course")
}

func (svc *service) CheckInstructor(ctx context.Context, id int64) error {
	_, err := svc.repo.GetInstructor(ctx, id)
	return invalidRef(err, "instructor")
}

func (svc *service) CheckLabGroup(ctx context.Context, id int64) error {
	_, err := svc.repo.GetLabGroup(ctx, id)
	return invalidRef(err, "labgroup")
}

// Courses

func (svc *service) CreateCourse(ctx context.Context, data CourseData) (Course, error) {
	c, err := svc.repo.CreateCourse(ctx, Course{Name: data.Name})
	return c, errors.Wrap(err, "creating course")
}

func (svc *service) QueryCourses(ctx context.Context, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, ordering)
}

func (svc *service) GetCourse(ctx context.Context, id int64) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) UpdateCourse(ctx context.Context, id int64, data CourseData) (Course, error) {
	return svc.repo.UpdateCourse(ctx, Course{ID: id, Name: data.Name})
}

func (svc *service) DeleteCourse(ctx context.Context, id int64) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Instructors

func (svc *service) CreateInstructor(ctx context.Context, data InstructorData) (Instructor, error) {
	var ins Instructor
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if ins, err = svc.repo.CreateInstructor(ctx, Instructor{UserID: data.User, WWUID: data.WWUID}, tx); err != nil {
			return uniqueErr(err, "user", ErrInstructorExists)
		}
		return svc.users.GrantRole(ctx, ins.UserID, user.RoleInstructor, tx)
	})
	return ins, err
}

func (svc *service) QueryInstructors(ctx context.Context, ordering []core.DBOrdering) ([]Instructor, error) {
	return svc.repo.QueryInstructors(ctx, ordering)
}

func (svc *service) GetInstructor(ctx context.Context, id int64) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, id)
}

func (svc *service) GetInstructorByUser(ctx context.Context, userID string) (Instructor, error) {
	return svc.repo.GetInstructorByUser(ctx, userID)
}

func (svc *service) UpdateInstructor(ctx context.Context, id int64, data InstructorData) (Instructor, error) {
	var ins Instructor
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetInstructor(ctx, id, tx)
		if err != nil {
			return err
		}
		if ins, err = svc.repo.UpdateInstructor(ctx, Instructor{ID: id, UserID: data.User, WWUID: data.WWUID}, tx); err != nil {
			return uniqueErr(err, "user", ErrInstructorExists)
		}
		return svc.moveRole(ctx, orig.UserID, ins.UserID, user.RoleInstructor, tx)
	})
	return ins, err
}

func (svc *service) DeleteInstructor(ctx context.Context, id int64) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		ins, err := svc.repo.GetInstructor(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteInstructor(ctx, id, tx); err != nil {
			return err
		}
		return svc.users.RevokeRole(ctx, ins.UserID, user.RoleInstructor, tx)
	})
}

// moveRole revokes role from the previous profile owner and grants it to the new one.
func (svc *service) moveRole(ctx context.Context, fromID, toID, role string, tx core.DBExecutor) error {
	if fromID == toID {
		return nil
	}
	if err := svc.users.RevokeRole(ctx, fromID, role, tx); err != nil {
		return err
	}
	return svc.users.GrantRole(ctx, toID, role, tx)
}

// Students

func (svc *service) CreateStudent(ctx context.Context, data StudentData) (Student, error) {
	var st Student
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		newSt := Student{UserID: data.User, LabGroupID: data.LabGroup, WWUID: data.WWUID}
		if st, err = svc.repo.CreateStudent(ctx, newSt, tx); err != nil {
			return uniqueErr(err, "user", ErrStudentExists)
		}
		return svc.users.GrantRole(ctx, st.UserID, user.RoleStudent, tx)
	})
	return st, err
}

func (svc *service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) GetStudentByUser(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUser(ctx, userID)
}

func (svc *service) UpdateStudent(ctx context.Context, id int64, data StudentData) (Student, error) {
	var st Student
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetStudent(ctx, id, tx)
		if err != nil {
			return err
		}
		upd := Student{ID: id, UserID: data.User, LabGroupID: data.LabGroup, WWUID: data.WWUID}
		if st, err = svc.repo.UpdateStudent(ctx, upd, tx); err != nil {
			return uniqueErr(err, "user", ErrStudentExists)
		}
		return svc.moveRole(ctx, orig.UserID, st.UserID, user.RoleStudent, tx)
	})
	return st, err
}

func (svc *service) DeleteStudent(ctx context.Context, id int64) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		st, err := svc.repo.GetStudent(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteStudent(ctx, id, tx); err != nil {
			return err
		}
		return svc.users.RevokeRole(ctx, st.UserID, user.RoleStudent, tx)
	})
}

// Lab Groups

func (svc *service) CreateLabGroup(ctx context.Context, data LabGroupData) (LabGroup, error) {
	lg, err := svc.repo.CreateLabGroup(ctx, LabGroup{
		CourseID:     data.Course,
		InstructorID: data.Instructor,
		GroupName:    data.GroupName,
		Term:         data.Term,
		EnrollKey:    data.EnrollKey,
	})
	if err != nil {
		return LabGroup{}, uniqueErr(err, "group_name", ErrLabGroupExists)
	}
	return lg, nil
}

func (svc *service) QueryLabGroups(ctx context.Context, filter *LabGroupFilter, ordering []core.DBOrdering) ([]LabGroup, error) {
	if filter == nil {
		filter = new(LabGroupFilter)
	}
	if filter.Term == "" {
		filter.Term = svc.CurrentTerm()
	}
	return svc.repo.QueryLabGroups(ctx, filter, ordering)
}

func (svc *service) GetLabGroup(ctx context.Context, id int64) (LabGroup, error) {
	return svc.repo.GetLabGroup(ctx, id)
}

func (svc *service) UpdateLabGroup(ctx context.Context, id int64, data LabGroupData) (LabGroup, error) {
	lg, err := svc.repo.UpdateLabGroup(ctx, LabGroup{
		ID:           id,
		CourseID:     data.Course,
		InstructorID: data.Instructor,
		GroupName:    data.GroupName,
		Term:         data.Term,
		EnrollKey:    data.EnrollKey,
	})
	if err != nil {
		return LabGroup{}, uniqueErr(err, "group_name", ErrLabGroupExists)
	}
	return lg, nil
}

func (svc *service) DeleteLabGroup(ctx context.Context, id int64) error {
	return svc.repo.DeleteLabGroup(ctx, id)
}

func (svc *service) Enroll(ctx context.Context, st Student, data EnrollData) (Student, error) {
	lg, err := svc.repo.GetLabGroup(ctx, data.LabGroup)
	if err != nil {
		return Student{}, err
	}
	if subtle.ConstantTimeCompare([]byte(lg.EnrollKey), []byte(data.EnrollKey)) == 0 {
		return Student{}, ErrWrongEnrollKey
	}
	st.LabGroupID = null.Int64From(lg.ID)
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) CurrentTerm() string {
	return CurrentTerm(time.Now().In(svc.loc))
}
