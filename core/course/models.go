package course

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/wwu-chemlab/chemlab/core"
)

type Course struct {
	ID   int64  `json:"pk"`
	Name string `json:"name"`
}

type Instructor struct {
	ID     int64  `json:"pk"`
	UserID string `json:"user"`
	WWUID  string `json:"wwuid"`
}

type Student struct {
	ID         int64      `json:"pk"`
	UserID     string     `json:"user"`
	LabGroupID null.Int64 `json:"labgroup"`
	WWUID      string     `json:"wwuid"`
}

// InLabGroup reports whether the student is enrolled in the lab group with the given id.
func (s Student) InLabGroup(id int64) bool {
	return s.LabGroupID.Valid && s.LabGroupID.Int64 == id
}

type LabGroup struct {
	ID           int64  `json:"pk"`
	CourseID     int64  `json:"course"`
	InstructorID int64  `json:"instructor"`
	GroupName    string `json:"group_name"`
	Term         string `json:"term"`
	EnrollKey    string `json:"enroll_key"`
}

// LabGroupPartial is how students see a LabGroup: without its enroll key.
type LabGroupPartial struct {
	ID           int64  `json:"pk"`
	CourseID     int64  `json:"course"`
	InstructorID int64  `json:"instructor"`
	GroupName    string `json:"group_name"`
	Term         string `json:"term"`
}

func (lg LabGroup) Partial() LabGroupPartial {
	return LabGroupPartial{
		ID:           lg.ID,
		CourseID:     lg.CourseID,
		InstructorID: lg.InstructorID,
		GroupName:    lg.GroupName,
		Term:         lg.Term,
	}
}

type CourseData struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (cd *CourseData) Validate(validate *validator.Validate) error {
	cd.Name = core.CleanString(cd.Name)
	return validate.Struct(cd)
}

type InstructorData struct {
	User  string `json:"user" validate:"required"`
	WWUID string `json:"wwuid" validate:"required,wwuid"`
}

func (id *InstructorData) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	id.User = core.CleanString(id.User)
	id.WWUID = core.CleanString(id.WWUID)
	if err := validate.Struct(id); err != nil {
		return err
	}
	return svc.CheckUser(ctx, id.User)
}

type StudentData struct {
	User     string     `json:"user" validate:"required"`
	LabGroup null.Int64 `json:"labgroup"`
	WWUID    string     `json:"wwuid" validate:"required,wwuid"`
}

func (sd *StudentData) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	sd.User = core.CleanString(sd.User)
	sd.WWUID = core.CleanString(sd.WWUID)
	if err := validate.Struct(sd); err != nil {
		return err
	}
	if err := svc.CheckUser(ctx, sd.User); err != nil {
		return err
	}
	if sd.LabGroup.Valid {
		return svc.CheckLabGroup(ctx, sd.LabGroup.Int64)
	}
	return nil
}

type LabGroupData struct {
	Course     int64  `json:"course" validate:"required"`
	Instructor int64  `json:"instructor" validate:"required"`
	GroupName  string `json:"group_name" validate:"required,max=20"`
	Term       string `json:"term" validate:"required,term"`
	EnrollKey  string `json:"enroll_key" validate:"required,max=20"`
}

func (ld *LabGroupData) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ld.GroupName = core.CleanString(ld.GroupName)
	ld.Term = core.CleanString(ld.Term)
	ld.EnrollKey = core.CleanString(ld.EnrollKey)
	if err := validate.Struct(ld); err != nil {
		return err
	}
	if err := svc.CheckCourse(ctx, ld.Course); err != nil {
		return err
	}
	return svc.CheckInstructor(ctx, ld.Instructor)
}

type EnrollData struct {
	LabGroup  int64  `json:"labgroup" validate:"required"`
	EnrollKey string `json:"enroll_key" validate:"required"`
}

func (ed *EnrollData) Validate(validate *validator.Validate) error {
	ed.EnrollKey = core.CleanString(ed.EnrollKey)
	return validate.Struct(ed)
}

type StudentFilter struct {
	LabGroup int64 `query:"labgroup"`
}

type LabGroupFilter struct {
	Course     int64  `query:"course"`
	Instructor int64  `query:"instructor"`
	Term       string `query:"term"`
}
