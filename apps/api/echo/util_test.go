package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/wwu-chemlab/chemlab/assets"
	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
	emailsvc "github.com/wwu-chemlab/chemlab/services/email"
	logsvc "github.com/wwu-chemlab/chemlab/services/logger"
	sqlxrepos "github.com/wwu-chemlab/chemlab/storage/database/sqlx"
	testutil "github.com/wwu-chemlab/chemlab/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// testApp is a server backed by a fresh SQLite database.
type testApp struct {
	*Server

	conf    *core.Config
	usrRepo user.Repository
	crsRepo course.Repository
	asgRepo assignment.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	usrSvc  user.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	crsRepo := sqlxrepos.NewCourseRepository(db)
	asgRepo := sqlxrepos.NewAssignmentRepository(db)

	// set up validation
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	// set up services
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, logger, true)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	crsSvc := course.NewService(db, crsRepo, usrSvc, conf)
	asgSvc := assignment.NewService(db, asgRepo, crsSvc)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		AssignmentSvc: asgSvc,
		Validate:      validate,
		Translator:    translator,
	})
	return &testApp{
		Server:  srv,
		conf:    conf,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		asgRepo: asgRepo,
		mailSvc: mailSvc,
		usrSvc:  usrSvc,
	}
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.auth.generateToken(app.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

// run serves each test with the given method, defaulting wantCode to 200.
func (app *testApp) run(t *testing.T, method string, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = method
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList(): %v", err)
	}
	return data
}

// wrapped marshals objs as the list named key of a list response.
func wrapped(t *testing.T, key string, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, map[string]interface{}{key: objs})
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData compares the response with the test; a nil wantData skips the body check.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

// window returns an open/close pair around now, shifted by offset.
func window(offset time.Duration) (time.Time, time.Time) {
	now := time.Now().UTC().Add(offset)
	return now.Add(-time.Hour), now.Add(time.Hour)
}
