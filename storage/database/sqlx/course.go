package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/storage/database"
)

var (
	courseOrderingColumns     = map[string]string{"pk": "id", "name": "name"}
	instructorOrderingColumns = map[string]string{"pk": "id", "wwuid": "wwuid"}
	studentOrderingColumns    = map[string]string{"pk": "id", "wwuid": "wwuid", "labgroup": "labgroup_id"}
	labGroupOrderingColumns   = map[string]string{
		"pk":         "id",
		"course":     "course_id",
		"instructor": "instructor_id",
		"group_name": "group_name",
		"term":       "term",
	}
)

type (
	courseRow struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}

	instructorRow struct {
		ID     int64  `db:"id"`
		UserID string `db:"user_id"`
		WWUID  string `db:"wwuid"`
	}

	studentRow struct {
		ID         int64      `db:"id"`
		UserID     string     `db:"user_id"`
		LabGroupID null.Int64 `db:"labgroup_id"`
		WWUID      string     `db:"wwuid"`
	}

	labGroupRow struct {
		ID           int64  `db:"id"`
		CourseID     int64  `db:"course_id"`
		InstructorID int64  `db:"instructor_id"`
		GroupName    string `db:"group_name"`
		Term         string `db:"term"`
		EnrollKey    string `db:"enroll_key"`
	}
)

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{repository{exec: exec}}
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), "INSERT INTO course (name) VALUES (?)", c.Name)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	c.ID = id
	return c, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	q := "SELECT id, name FROM course" + orderBy(ordering, courseOrderingColumns, "id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, course.Course(r))
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Course, error) {
	var r courseRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT id, name FROM course WHERE id = ?", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "finding course")
	}
	return course.Course(r), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrCourseNotFound, "UPDATE course SET name = ? WHERE id = ?", c.Name, c.ID)
	return c, wrapUnlessNotFound(err, "updating course")
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrCourseNotFound, "DELETE FROM course WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting course")
}

// Instructors

func (repo courseRepository) CreateInstructor(ctx context.Context, ins course.Instructor, exec ...core.DBExecutor) (course.Instructor, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), "INSERT INTO instructor (user_id, wwuid) VALUES (?, ?)", ins.UserID, ins.WWUID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return course.Instructor{}, course.ErrInstructorExists
		}
		return course.Instructor{}, errors.Wrap(err, "inserting instructor")
	}
	ins.ID = id
	return ins, nil
}

func (repo courseRepository) QueryInstructors(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Instructor, error) {
	var rows []instructorRow
	q := "SELECT id, user_id, wwuid FROM instructor" + orderBy(ordering, instructorOrderingColumns, "id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying instructors")
	}
	instructors := make([]course.Instructor, 0, len(rows))
	for _, r := range rows {
		instructors = append(instructors, course.Instructor(r))
	}
	return instructors, nil
}

func (repo courseRepository) GetInstructor(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Instructor, error) {
	var r instructorRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT id, user_id, wwuid FROM instructor WHERE id = ?", id); err != nil {
		return course.Instructor{}, trapNoRowsErr(err, course.ErrInstructorNotFound, "finding instructor")
	}
	return course.Instructor(r), nil
}

func (repo courseRepository) GetInstructorByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (course.Instructor, error) {
	var r instructorRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT id, user_id, wwuid FROM instructor WHERE user_id = ?", userID); err != nil {
		return course.Instructor{}, trapNoRowsErr(err, course.ErrInstructorNotFound, "finding instructor by user")
	}
	return course.Instructor(r), nil
}

func (repo courseRepository) UpdateInstructor(ctx context.Context, ins course.Instructor, exec ...core.DBExecutor) (course.Instructor, error) {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrInstructorNotFound,
		"UPDATE instructor SET user_id = ?, wwuid = ? WHERE id = ?", ins.UserID, ins.WWUID, ins.ID)
	if database.IsUniqueViolation(err) {
		return course.Instructor{}, course.ErrInstructorExists
	}
	return ins, wrapUnlessNotFound(err, "updating instructor")
}

func (repo courseRepository) DeleteInstructor(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrInstructorNotFound, "DELETE FROM instructor WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting instructor")
}

// Students

func (repo courseRepository) CreateStudent(ctx context.Context, st course.Student, exec ...core.DBExecutor) (course.Student, error) {
	id, err := repo.insert(ctx, repo.getExec(exec),
		"INSERT INTO student (user_id, labgroup_id, wwuid) VALUES (?, ?, ?)", st.UserID, st.LabGroupID, st.WWUID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return course.Student{}, course.ErrStudentExists
		}
		return course.Student{}, errors.Wrap(err, "inserting student")
	}
	st.ID = id
	return st, nil
}

func (repo courseRepository) QueryStudents(ctx context.Context, filter *course.StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Student, error) {
	var w where
	if filter != nil && filter.LabGroup != 0 {
		w.add("labgroup_id = ?", filter.LabGroup)
	}

	var rows []studentRow
	q := "SELECT id, user_id, labgroup_id, wwuid FROM student" + w.String() + orderBy(ordering, studentOrderingColumns, "id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]course.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, course.Student(r))
	}
	return students, nil
}

func (repo courseRepository) GetStudent(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Student, error) {
	var r studentRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT id, user_id, labgroup_id, wwuid FROM student WHERE id = ?", id); err != nil {
		return course.Student{}, trapNoRowsErr(err, course.ErrStudentNotFound, "finding student")
	}
	return course.Student(r), nil
}

func (repo courseRepository) GetStudentByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (course.Student, error) {
	var r studentRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT id, user_id, labgroup_id, wwuid FROM student WHERE user_id = ?", userID); err != nil {
		return course.Student{}, trapNoRowsErr(err, course.ErrStudentNotFound, "finding student by user")
	}
	return course.Student(r), nil
}

func (repo courseRepository) UpdateStudent(ctx context.Context, st course.Student, exec ...core.DBExecutor) (course.Student, error) {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrStudentNotFound,
		"UPDATE student SET user_id = ?, labgroup_id = ?, wwuid = ? WHERE id = ?", st.UserID, st.LabGroupID, st.WWUID, st.ID)
	if database.IsUniqueViolation(err) {
		return course.Student{}, course.ErrStudentExists
	}
	return st, wrapUnlessNotFound(err, "updating student")
}

func (repo courseRepository) DeleteStudent(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrStudentNotFound, "DELETE FROM student WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting student")
}

// Lab Groups

const labGroupColumns = "id, course_id, instructor_id, group_name, term, enroll_key"

func (repo courseRepository) CreateLabGroup(ctx context.Context, lg course.LabGroup, exec ...core.DBExecutor) (course.LabGroup, error) {
	id, err := repo.insert(ctx, repo.getExec(exec),
		"INSERT INTO labgroup (course_id, instructor_id, group_name, term, enroll_key) VALUES (?, ?, ?, ?, ?)",
		lg.CourseID, lg.InstructorID, lg.GroupName, lg.Term, lg.EnrollKey)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return course.LabGroup{}, course.ErrLabGroupExists
		}
		return course.LabGroup{}, errors.Wrap(err, "inserting lab group")
	}
	lg.ID = id
	return lg, nil
}

func (repo courseRepository) QueryLabGroups(ctx context.Context, filter *course.LabGroupFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.LabGroup, error) {
	var w where
	if filter != nil {
		if filter.Course != 0 {
			w.add("course_id = ?", filter.Course)
		}
		if filter.Instructor != 0 {
			w.add("instructor_id = ?", filter.Instructor)
		}
		if filter.Term != "" {
			w.add("term = ?", filter.Term)
		}
	}

	var rows []labGroupRow
	q := "SELECT " + labGroupColumns + " FROM labgroup" + w.String() + orderBy(ordering, labGroupOrderingColumns, "id ASC")
	if err := repo.all(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lab groups")
	}
	groups := make([]course.LabGroup, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, course.LabGroup(r))
	}
	return groups, nil
}

func (repo courseRepository) GetLabGroup(ctx context.Context, id int64, exec ...core.DBExecutor) (course.LabGroup, error) {
	var r labGroupRow
	if err := repo.get(ctx, repo.getExec(exec), &r, "SELECT "+labGroupColumns+" FROM labgroup WHERE id = ?", id); err != nil {
		return course.LabGroup{}, trapNoRowsErr(err, course.ErrLabGroupNotFound, "finding lab group")
	}
	return course.LabGroup(r), nil
}

func (repo courseRepository) UpdateLabGroup(ctx context.Context, lg course.LabGroup, exec ...core.DBExecutor) (course.LabGroup, error) {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrLabGroupNotFound,
		"UPDATE labgroup SET course_id = ?, instructor_id = ?, group_name = ?, term = ?, enroll_key = ? WHERE id = ?",
		lg.CourseID, lg.InstructorID, lg.GroupName, lg.Term, lg.EnrollKey, lg.ID)
	if database.IsUniqueViolation(err) {
		return course.LabGroup{}, course.ErrLabGroupExists
	}
	return lg, wrapUnlessNotFound(err, "updating lab group")
}

func (repo courseRepository) DeleteLabGroup(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	err := repo.execOne(ctx, repo.getExec(exec), course.ErrLabGroupNotFound, "DELETE FROM labgroup WHERE id = ?", id)
	return wrapUnlessNotFound(err, "deleting lab group")
}
