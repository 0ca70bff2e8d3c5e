package testutil

import (
	"context"
	"net/mail"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
	"github.com/wwu-chemlab/chemlab/storage/database"
)

// UnusablePasswordHash is stored for users created without a password.
const UnusablePasswordHash = "!"

// NewConfig returns the configuration used by tests; it does not read the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "ChemLab",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "ChemLab", Address: "noreply@localhost"},
		Location:                  time.UTC,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	conf.Register.EmailDomain = "wallawalla.edu"
	conf.Server.ReadTimeout = 5 * time.Second
	conf.Server.WriteTimeout = 5 * time.Second
	conf.Server.ShutdownTimeout = 5 * time.Second
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Server.DisableRequestLogs = true
	conf.Database.Engine = core.EngineSqlite
	return conf
}

// PrepareDB returns a migrated SQLite database living in the test's temp dir.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "chemlab_test.db"))
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, core.EngineSqlite); err != nil {
		t.Fatalf("PrepareDB(): migrating: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fname, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		FirstName: fname,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	} else {
		// password_hash is NOT NULL; no password matches this hash
		usr.PasswordHash = []byte(UnusablePasswordHash)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, name string) course.Course {
	t.Helper()

	c, err := repo.CreateCourse(context.Background(), course.Course{Name: name})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

func CreateInstructor(t *testing.T, repo course.Repository, userID, wwuid string) course.Instructor {
	t.Helper()

	ins, err := repo.CreateInstructor(context.Background(), course.Instructor{UserID: userID, WWUID: wwuid})
	if err != nil {
		t.Fatalf("CreateInstructor(): %v", err)
	}
	return ins
}

// CreateStudent creates a student profile; a zero labGroupID leaves the student without lab group.
func CreateStudent(t *testing.T, repo course.Repository, userID, wwuid string, labGroupID int64) course.Student {
	t.Helper()

	st := course.Student{UserID: userID, WWUID: wwuid}
	if labGroupID != 0 {
		st.LabGroupID = null.Int64From(labGroupID)
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return st
}

func CreateLabGroup(t *testing.T, repo course.Repository, courseID, instructorID int64, name, term, enrollKey string) course.LabGroup {
	t.Helper()

	lg, err := repo.CreateLabGroup(context.Background(), course.LabGroup{
		CourseID:     courseID,
		InstructorID: instructorID,
		GroupName:    name,
		Term:         term,
		EnrollKey:    enrollKey,
	})
	if err != nil {
		t.Fatalf("CreateLabGroup(): %v", err)
	}
	return lg
}

func CreateTemplate(t *testing.T, repo assignment.Repository, courseID int64, name string) assignment.Template {
	t.Helper()

	tmpl, err := repo.CreateTemplate(context.Background(), assignment.Template{CourseID: courseID, Name: name})
	if err != nil {
		t.Fatalf("CreateTemplate(): %v", err)
	}
	return tmpl
}

func CreateTaskTemplate(t *testing.T, repo assignment.Repository, task assignment.TaskTemplate) assignment.TaskTemplate {
	t.Helper()

	task, err := repo.CreateTaskTemplate(context.Background(), task)
	if err != nil {
		t.Fatalf("CreateTaskTemplate(): %v", err)
	}
	return task
}

func CreateAssignment(t *testing.T, repo assignment.Repository, templateID, labGroupID int64, open, close time.Time) assignment.Assignment {
	t.Helper()

	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		TemplateID: templateID,
		LabGroupID: labGroupID,
		OpenDate:   open,
		CloseDate:  close,
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return a
}
