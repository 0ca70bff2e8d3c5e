package assignment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
)

// Template is an assignment template: a named set of tasks for a course.
type Template struct {
	ID       int64  `json:"pk"`
	CourseID int64  `json:"course"`
	Name     string `json:"name"`
}

type TaskTemplate struct {
	ID              int64       `json:"pk"`
	TemplateID      int64       `json:"assignment_template"`
	Name            string      `json:"name"`
	Summary         string      `json:"summary"`
	Prompt          string      `json:"prompt"`
	PromptFormat    null.String `json:"prompt_format"`
	ImageURLs       null.String `json:"image_urls"`
	AttemptsAllowed null.Int    `json:"attempts_allowed"`
	NumericAccuracy null.Int    `json:"numeric_accuracy"`
	NumericOnly     bool        `json:"numeric_only"`
	Answer          null.String `json:"answer"`
}

// StudentTaskTemplate is how students see a TaskTemplate: without its answer.
type StudentTaskTemplate struct {
	ID              int64       `json:"pk"`
	TemplateID      int64       `json:"assignment_template"`
	Name            string      `json:"name"`
	Summary         string      `json:"summary"`
	Prompt          string      `json:"prompt"`
	PromptFormat    null.String `json:"prompt_format"`
	ImageURLs       null.String `json:"image_urls"`
	AttemptsAllowed null.Int    `json:"attempts_allowed"`
	NumericAccuracy null.Int    `json:"numeric_accuracy"`
	NumericOnly     bool        `json:"numeric_only"`
}

func (t TaskTemplate) ForStudent() StudentTaskTemplate {
	return StudentTaskTemplate{
		ID:              t.ID,
		TemplateID:      t.TemplateID,
		Name:            t.Name,
		Summary:         t.Summary,
		Prompt:          t.Prompt,
		PromptFormat:    t.PromptFormat,
		ImageURLs:       t.ImageURLs,
		AttemptsAllowed: t.AttemptsAllowed,
		NumericAccuracy: t.NumericAccuracy,
		NumericOnly:     t.NumericOnly,
	}
}

// Assignment is a Template handed out to a lab group between OpenDate and CloseDate.
type Assignment struct {
	ID         int64     `json:"pk"`
	TemplateID int64     `json:"assignment_template"`
	LabGroupID int64     `json:"labgroup"`
	OpenDate   time.Time `json:"open_date"`  // UTC
	CloseDate  time.Time `json:"close_date"` // UTC
	Name       string    `json:"name"`       // template name, read-only
}

func (a Assignment) IsOpen(now time.Time) bool {
	return a.OpenDate.Before(now) && now.Before(a.CloseDate)
}

// Entry is a student's attempt at an Assignment.
type Entry struct {
	ID           int64        `json:"pk"`
	StudentID    int64        `json:"student"`
	AssignmentID int64        `json:"assignment"`
	StartDate    time.Time    `json:"start_date"`  // UTC
	SubmitDate   null.Time    `json:"submit_date"` // UTC
	Grade        null.Float64 `json:"grade"`       // percentage of tasks passed, set on submit
}

func (e Entry) IsSubmitted() bool { return e.SubmitDate.Valid }

type TaskEntry struct {
	ID             int64  `json:"pk"`
	EntryID        int64  `json:"assignment_entry"`
	TaskTemplateID int64  `json:"task_template"`
	Attempts       int    `json:"attempts"`
	Passed         bool   `json:"passed"`
	RawInput       string `json:"raw_input"`
}

// ExportRow is one answer of a student to one task; Task is invalid for entries without answers.
type ExportRow struct {
	EntryID  int64
	WWUID    string
	Task     null.String
	RawInput null.String
}

type TemplateData struct {
	Course int64  `json:"course" validate:"required"`
	Name   string `json:"name" validate:"required,max=100"`
}

func (td *TemplateData) Validate(ctx context.Context, validate *validator.Validate, roster Roster) error {
	td.Name = core.CleanString(td.Name)
	if err := validate.Struct(td); err != nil {
		return err
	}
	return roster.CheckCourse(ctx, td.Course)
}

type TaskTemplateData struct {
	AssignmentTemplate int64       `json:"assignment_template" validate:"required"`
	Name               string      `json:"name" validate:"required,max=30"`
	Summary            string      `json:"summary"`
	Prompt             string      `json:"prompt" validate:"required"`
	PromptFormat       null.String `json:"prompt_format"`
	ImageURLs          null.String `json:"image_urls"`
	AttemptsAllowed    null.Int    `json:"attempts_allowed"`
	NumericAccuracy    null.Int    `json:"numeric_accuracy"`
	NumericOnly        bool        `json:"numeric_only"`
	Answer             null.String `json:"answer"`
}

func (td *TaskTemplateData) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	td.Name = core.CleanString(td.Name)
	td.Summary = core.CleanString(td.Summary)
	td.Prompt = core.CleanString(td.Prompt)
	if err := validate.Struct(td); err != nil {
		return err
	}

	var flds []core.FieldError
	if td.AttemptsAllowed.Valid && td.AttemptsAllowed.Int < 1 {
		flds = append(flds, core.FieldError{Field: "attempts_allowed", Error: "attempts_allowed must be at least 1"})
	}
	if td.NumericAccuracy.Valid && (td.NumericAccuracy.Int < 0 || td.NumericAccuracy.Int > 15) {
		flds = append(flds, core.FieldError{Field: "numeric_accuracy", Error: "numeric_accuracy must be between 0 and 15"})
	}
	if td.NumericOnly && td.Answer.Valid {
		if _, err := strconv.ParseFloat(strings.TrimSpace(td.Answer.String), 64); err != nil {
			flds = append(flds, core.FieldError{Field: "answer", Error: "answer must be a number for numeric tasks"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errInvalidTaskTemplate, flds...)
	}
	return svc.CheckTemplate(ctx, td.AssignmentTemplate)
}

type AssignmentData struct {
	AssignmentTemplate int64     `json:"assignment_template" validate:"required"`
	LabGroup           int64     `json:"labgroup" validate:"required"`
	OpenDate           time.Time `json:"open_date" validate:"required"`
	CloseDate          time.Time `json:"close_date" validate:"required,gtfield=OpenDate"`
}

func (ad *AssignmentData) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ad.OpenDate = ad.OpenDate.UTC()
	ad.CloseDate = ad.CloseDate.UTC()
	if err := validate.Struct(ad); err != nil {
		return err
	}
	return svc.CheckAssignmentRefs(ctx, ad.AssignmentTemplate, ad.LabGroup)
}

type AnswerData struct {
	Value string `json:"value" validate:"required"`
}

func (ad *AnswerData) Validate(validate *validator.Validate) error {
	ad.Value = core.CleanString(ad.Value)
	return validate.Struct(ad)
}

type TemplateFilter struct {
	Course int64 `query:"course"`

	// OpenFor keeps the templates with an assignment for lab group OpenFor open at OpenAt.
	OpenFor int64     `query:"-"`
	OpenAt  time.Time `query:"-"`
}

type TaskTemplateFilter struct {
	Template int64 `query:"template"`

	// OpenFor keeps the tasks of templates with an assignment for lab group OpenFor open at OpenAt.
	OpenFor int64     `query:"-"`
	OpenAt  time.Time `query:"-"`
}

type AssignmentFilter struct {
	LabGroup int64 `query:"labgroup"`
	Template int64 `query:"template"`

	// OpenAt keeps the assignments open at that instant.
	OpenAt time.Time `query:"-"`
}
